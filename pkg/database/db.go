package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// Config describes the source database.
type Config struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Rows is a forward-only cursor over query results.
type Rows interface {
	Next() bool
	StructScan(dest any) error
	Err() error
	Close() error
}

// Conn is a single exclusive connection.
type Conn interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Select(ctx context.Context, dest any, query string, args ...any) error
	Close() error
}

// Connector hands out exclusive connections.
type Connector interface {
	Conn(ctx context.Context) (Conn, error)
}

// Pool is a sqlx connection pool to PostgreSQL.
type Pool struct {
	db     *sqlx.DB
	logger ectologger.Logger
}

// Open creates the pool. No connection is made until first use.
func Open(cfg Config, logger ectologger.Logger) (*Pool, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &Pool{db: db, logger: logger}, nil
}

// NewPool wraps an existing sqlx handle.
func NewPool(db *sqlx.DB, logger ectologger.Logger) *Pool {
	return &Pool{db: db, logger: logger}
}

func (p *Pool) Conn(ctx context.Context) (Conn, error) {
	c, err := p.db.Connx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire connection")
	}
	if err := c.PingContext(ctx); err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "failed to ping connection")
	}
	return &conn{c: c}, nil
}

func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	return p.db.Close()
}

type conn struct {
	c *sqlx.Conn
}

func (c *conn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.c.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}
	return rows, nil
}

func (c *conn) Select(ctx context.Context, dest any, query string, args ...any) error {
	return errors.Wrap(c.c.SelectContext(ctx, dest, query, args...), "select failed")
}

func (c *conn) Close() error {
	return c.c.Close()
}
