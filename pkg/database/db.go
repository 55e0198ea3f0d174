package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"
)

const (
	connectTimeout = 5 * time.Second
	healthTimeout  = 3 * time.Second
)

// Config holds the Postgres connection and pool settings
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns the development settings; zero pool values in any Config fall back to these.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		User:            "projecthub",
		Password:        "dev",
		Database:        "projecthub",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DSN renders a postgres:// URL; credentials are escaped so any password works.
func (c *Config) DSN() string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("connect_timeout", strconv.Itoa(int(connectTimeout/time.Second)))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (c *Config) validate() error {
	switch {
	case c.Host == "":
		return errors.New("database host is required")
	case c.Database == "":
		return errors.New("database name is required")
	case c.MaxOpenConns < 0, c.MaxIdleConns < 0, c.ConnMaxLifetime < 0:
		return errors.New("database pool settings must not be negative")
	case c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns:
		return fmt.Errorf("database max idle connections (%d) exceed max open connections (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// configurePool sizes db, filling unset values from DefaultConfig.
func (c *Config) configurePool(db *sql.DB) {
	defaults := DefaultConfig()
	open, idle, lifetime := c.MaxOpenConns, c.MaxIdleConns, c.ConnMaxLifetime
	if open == 0 {
		open = defaults.MaxOpenConns
	}
	if idle == 0 {
		idle = min(defaults.MaxIdleConns, open)
	}
	if lifetime == 0 {
		lifetime = defaults.ConnMaxLifetime
	}
	db.SetMaxOpenConns(open)
	db.SetMaxIdleConns(idle)
	db.SetConnMaxLifetime(lifetime)
}

// ConnectionPool owns the *sql.DB shared by every repository
type ConnectionPool struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewConnectionPool opens the pool and pings Postgres once before handing it out
func NewConnectionPool(ctx context.Context, config *Config, logger *slog.Logger) (*ConnectionPool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	config.configurePool(db)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s:%d: %w", config.Host, config.Port, err)
	}

	logger.Info("connected to postgres",
		slog.String("host", config.Host),
		slog.String("database", config.Database),
		slog.Int("max_open_conns", db.Stats().MaxOpenConnections),
	)
	return &ConnectionPool{db: db, logger: logger}, nil
}

// GetDB returns the underlying *sql.DB
func (cp *ConnectionPool) GetDB() *sql.DB {
	return cp.db
}

// Close closes the pool
func (cp *ConnectionPool) Close() error {
	if cp.db == nil {
		return nil
	}
	return cp.db.Close()
}

// Health pings Postgres; it backs the "postgres" readiness check.
func (cp *ConnectionPool) Health(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := cp.db.PingContext(pingCtx); err != nil {
		stats := cp.db.Stats()
		cp.logger.Warn("postgres health check failed",
			slog.String("error", err.Error()),
			slog.Int("open_connections", stats.OpenConnections),
			slog.Int("in_use", stats.InUse),
			slog.Int64("wait_count", stats.WaitCount),
		)
		return err
	}
	return nil
}
