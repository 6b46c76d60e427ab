// Package postgres opens the lib/pq connection pool that backs the corpus
// store, the catalog and the analytics snapshots.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/config"
)

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// permanentClasses are SQLSTATE classes a reconnect cannot fix: bad
// credentials, a missing database, insufficient privilege, and invalid
// connection parameters.
var permanentClasses = map[pq.ErrorClass]struct{}{
	"28": {},
	"3D": {},
	"42": {},
	"08": {},
}

// IsTransient reports whether err may go away on a later attempt. Server
// errors in a permanent class are final; network and startup errors are not.
func IsTransient(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return true
	}
	if pqErr.Code == "08006" || pqErr.Code == "08001" {
		return true
	}
	_, permanent := permanentClasses[pqErr.Code.Class()]
	return !permanent
}
