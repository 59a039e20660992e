package db

import (
	"log"
	"time"

	"github.com/gocql/gocql"
)

type Config struct {
	Hosts    []string
	Keyspace string
}

type Session struct {
	*gocql.Session
}

func NewSession(cfg Config) (*Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}

	log.Printf("Connected to ScyllaDB cluster (keyspace %s)", cfg.Keyspace)
	return &Session{Session: session}, nil
}
