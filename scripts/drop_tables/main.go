package main

import (
	"log"
	"os"
	"strings"

	"github.com/aminrj/storedesk/pkg/db"
)

func main() {
	hostsStr := os.Getenv("SCYLLA_HOSTS")
	if hostsStr == "" {
		hostsStr = "localhost:9042"
	}
	hosts := strings.Split(hostsStr, ",")

	keyspace := os.Getenv("SCYLLA_KEYSPACE")
	if keyspace == "" {
		keyspace = "storedesk"
	}

	session, err := db.NewSession(db.Config{Hosts: hosts, Keyspace: keyspace})
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	for _, table := range []string{"messages", "conversations"} {
		if err := session.Query(`DROP TABLE IF EXISTS ` + table).Exec(); err != nil {
			log.Fatalf("Failed to drop %s: %v", table, err)
		}
		log.Printf("Dropped %s", table)
	}
}
