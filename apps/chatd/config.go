package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string
	RedisAddr      string
	ScyllaHosts    []string
	ScyllaKeyspace string
	KafkaBrokers   []string
	KafkaTopic     string
	StoreBackend   string // "scylla" or "memory"
	NodeID         int64
	LogFile        string
}

func LoadConfig() Config {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := Config{
		Addr:           envOr("CHATD_ADDR", ":8080"),
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),
		ScyllaHosts:    strings.Split(envOr("SCYLLA_HOSTS", "localhost:9042"), ","),
		ScyllaKeyspace: envOr("SCYLLA_KEYSPACE", "storedesk"),
		KafkaTopic:     envOr("KAFKA_TOPIC", "storedesk-events"),
		StoreBackend:   envOr("STORE_BACKEND", "scylla"),
		NodeID:         1,
		LogFile:        os.Getenv("CHATD_LOG"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	// Node id must be unique per instance; irrelevant while single-process,
	// but kept configurable for the day the gateway is sharded.
	if raw := os.Getenv("NODE_ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.NodeID = id
		}
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
