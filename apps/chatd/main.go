package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/aminrj/storedesk/pkg/convo"
	"github.com/aminrj/storedesk/pkg/db"
	"github.com/aminrj/storedesk/pkg/delivery"
	"github.com/aminrj/storedesk/pkg/identity"
	"github.com/aminrj/storedesk/pkg/presence"
	"github.com/aminrj/storedesk/pkg/snowflake"
	"github.com/aminrj/storedesk/pkg/store"
)

func main() {
	cfg := LoadConfig()

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	var msgStore store.MessageStore
	if cfg.StoreBackend == "memory" {
		log.Println("Using in-memory message store (messages are not durable)")
		msgStore = store.NewMemory()
	} else {
		session, err := db.NewSession(db.Config{Hosts: cfg.ScyllaHosts, Keyspace: cfg.ScyllaKeyspace})
		if err != nil {
			log.Fatalf("Failed to connect to ScyllaDB: %v", err)
		}
		defer session.Close()
		msgStore = store.NewScylla(session)
	}

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	var firehose delivery.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := delivery.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		firehose = kp
	} else {
		log.Println("KAFKA_BROKERS not set, firehose disabled")
	}

	registry := presence.NewMirror(presence.NewMemory(), rdb)
	dir := identity.NewRedis(rdb)

	coord := delivery.NewCoordinator(msgStore, registry, dir, node, firehose)
	bcast := delivery.NewBroadcaster(registry, firehose)
	agg := convo.NewAggregator(msgStore, dir)
	gateway := NewGateway(registry, dir, coord, bcast)

	r := mux.NewRouter()
	r.HandleFunc("/ws", gateway.ServeWS)
	newAPI(agg, coord, bcast, dir, rdb).routes(r)

	log.Printf("chatd listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Fatal(err)
	}
}
