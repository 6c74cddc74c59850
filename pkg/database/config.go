package database

import (
	"errors"
	"time"
)

// Config holds SQLite connection and write-loop settings.
type Config struct {
	DatabasePath    string        `json:"database_path"`
	MaxConnections  int           `json:"max_connections"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	WriteRetryDelay time.Duration `json:"write_retry_delay"`
}

// DefaultConfig returns settings sized for a single school deployment.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    "./data/rollcall.db",
		MaxConnections:  10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 10,
		WriteTimeout:    30 * time.Second,
		WriteRetryDelay: 5 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("database path cannot be empty")
	}
	if c.MaxConnections <= 0 {
		return errors.New("max connections must be greater than 0")
	}
	if c.ConnMaxLifetime <= 0 {
		return errors.New("connection max lifetime must be greater than 0")
	}
	if c.ConnMaxIdleTime <= 0 {
		return errors.New("connection max idle time must be greater than 0")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	if c.WriteRetryDelay < 0 {
		return errors.New("write retry delay cannot be negative")
	}
	return nil
}
