package main

import (
	"log"
	"os"
	"strings"

	"github.com/aminrj/storedesk/pkg/db"
)

// Bootstraps the keyspace and tables. In production schema changes go through
// a migration tool; this covers local/dev clusters.
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

	sysSession, err := db.NewSession(db.Config{Hosts: hosts, Keyspace: "system"})
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB system keyspace: %v", err)
	}
	err = sysSession.Query(`CREATE KEYSPACE IF NOT EXISTS ` + keyspace +
		` WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`).Exec()
	sysSession.Close()
	if err != nil {
		log.Fatalf("Failed to create keyspace: %v", err)
	}

	session, err := db.NewSession(db.Config{Hosts: hosts, Keyspace: keyspace})
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB %s keyspace: %v", keyspace, err)
	}
	defer session.Close()

	err = session.Query(`CREATE TABLE IF NOT EXISTS messages (
		conversation_id text,
		id bigint,
		sender_id text,
		recipient_id text,
		body text,
		kind text,
		file_name text,
		file_size bigint,
		read boolean,
		read_at timestamp,
		created_at timestamp,
		PRIMARY KEY (conversation_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`).Exec()
	if err != nil {
		log.Fatalf("Failed to create messages table: %v", err)
	}

	err = session.Query(`CREATE TABLE IF NOT EXISTS conversations (
		conversation_id text,
		last_updated timestamp,
		PRIMARY KEY (conversation_id)
	)`).Exec()
	if err != nil {
		log.Fatalf("Failed to create conversations table: %v", err)
	}

	log.Println("Schema ready")
}
