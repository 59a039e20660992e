package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

// Smoke check against a running chatd: logs in an agent and a customer, sends
// one message through the REST fallback and reads it back from both sides.

type loginResponse struct {
	Token string `json:"token"`
}

func login(apiAddr, userID, role, name string) string {
	reqBody, _ := json.Marshal(map[string]string{"user_id": userID, "role": role, "name": name})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		log.Fatal("login failed: ", err)
	}
	defer resp.Body.Close()

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		log.Fatal(err)
	}
	return lr.Token
}

func get(apiAddr, path, token string) string {
	req, _ := http.NewRequest("GET", apiAddr+path, nil)
	req.Header.Add("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func main() {
	apiAddr := "http://localhost:8080"

	agentToken := login(apiAddr, "smoke_agent", "admin", "Smoke Agent")
	custToken := login(apiAddr, "smoke_cust", "customer", "Smoke Customer")
	fmt.Printf("Tokens: %s... / %s...\n", agentToken[:10], custToken[:10])

	reqBody, _ := json.Marshal(map[string]string{"recipient_id": "smoke_agent", "body": "smoke check"})
	req, _ := http.NewRequest("POST", apiAddr+"/messages", bytes.NewBuffer(reqBody))
	req.Header.Add("Authorization", "Bearer "+custToken)
	req.Header.Add("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal("send failed: ", err)
	}
	resp.Body.Close()
	log.Printf("send: %s", resp.Status)

	log.Printf("agent conversations: %s", get(apiAddr, "/conversations", agentToken))
	log.Printf("customer history: %s", get(apiAddr, "/conversations/support/messages?limit=10", custToken))
	log.Printf("online: %s", get(apiAddr, "/presence/online", agentToken))
}
