package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aminrj/storedesk/pkg/model"
)

type loginResponse struct {
	Token string `json:"token"`
}

func login(apiAddr, userID, role, name string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"user_id": userID, "role": role, "name": name})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(body))
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", err
	}
	return lr.Token, nil
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "chatd address")
	userID := flag.String("user", "user1", "identity id")
	role := flag.String("role", "customer", "identity role (customer or admin)")
	name := flag.String("name", "", "display name")
	peer := flag.String("to", "", "default recipient id for messages")
	flag.Parse()

	apiAddr := "http://" + *serverAddr

	log.Printf("Logging in as %s (%s)...", *userID, *role)
	token, err := login(apiAddr, *userID, *role, *name)
	if err != nil {
		log.Fatal("Login failed:", err)
	}

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	// Handshake before anything else; the gateway rejects all other events
	// until it succeeds.
	if err := c.WriteJSON(model.Event{
		Type:      model.EventHandshake,
		Handshake: &model.HandshakePayload{Token: token},
	}); err != nil {
		log.Fatal("handshake:", err)
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			var ev model.Event
			if err := c.ReadJSON(&ev); err != nil {
				log.Println("read:", err)
				return
			}
			switch ev.Type {
			case model.EventHandshakeAck:
				if ev.Ack != nil && ev.Ack.OK {
					fmt.Printf("\rconnected\n> ")
				} else {
					fmt.Printf("\rhandshake rejected: %s\n", ev.Ack.Error)
				}
			case model.EventIncomingMessage:
				if ev.Message != nil {
					fmt.Printf("\r[%s] %s: %s\n> ", ev.Message.ConversationID, ev.Message.SenderID, ev.Message.Body)
				}
			case model.EventPeerTyping:
				if ev.Peer != nil && ev.Peer.IsTyping {
					fmt.Printf("\r%s is typing...      \n> ", ev.Peer.SenderID)
				}
			case model.EventPresenceGained:
				fmt.Printf("\r%s came online\n> ", ev.Presence.IdentityID)
			case model.EventPresenceLost:
				fmt.Printf("\r%s went offline\n> ", ev.Presence.IdentityID)
			case model.EventOnlineSnapshot:
				fmt.Printf("\ronline now: %s\n> ", strings.Join(ev.Online, ", "))
			case model.EventIncomingNotification:
				if ev.Notification != nil {
					fmt.Printf("\r** %s: %s\n> ", ev.Notification.Title, ev.Notification.Body)
				}
			case model.EventError:
				fmt.Printf("\rserver: %s\n> ", ev.Error)
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := scanner.Text()
			if text == "" {
				fmt.Print("> ")
				continue
			}
			if text == "/quit" {
				close(interrupt)
				break
			}

			var ev model.Event
			switch {
			case text == "/typing":
				ev = model.Event{
					Type:   model.EventTyping,
					Typing: &model.TypingPayload{RecipientID: *peer, IsTyping: true},
				}
			case strings.HasPrefix(text, "/read "):
				ev = model.Event{
					Type:     model.EventMarkRead,
					MarkRead: &model.MarkReadPayload{SenderID: strings.TrimPrefix(text, "/read ")},
				}
			default:
				ev = model.Event{
					Type:    model.EventCompose,
					Compose: &model.ComposePayload{RecipientID: *peer, Body: text},
				}
			}

			if err := c.WriteJSON(ev); err != nil {
				log.Println("write:", err)
				break
			}
			fmt.Print("> ")
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("interrupt")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("write close:", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
