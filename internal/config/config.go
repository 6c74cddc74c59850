package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	dbconfig "rollcall/pkg/database"
)

// envPrefix namespaces every environment variable read by LoadFromEnv.
const envPrefix = "ROLLCALL_"

// Config is the complete runtime configuration.
type Config struct {
	Database   *DatabaseConfig   `json:"database"`
	HTTP       *HTTPConfig       `json:"http"`
	WebSocket  *WebSocketConfig  `json:"websocket"`
	Redis      *RedisConfig      `json:"redis"`
	Auth       *AuthConfig       `json:"auth"`
	Attendance *AttendanceConfig `json:"attendance"`
	Log        *LogConfig        `json:"log"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

// Addr is the listen address.
func (h *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

type WebSocketConfig struct {
	PingInterval   time.Duration `json:"ping_interval"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	MaxMessageSize int64         `json:"max_message_size"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type AuthConfig struct {
	JWTSecret  string        `json:"jwt_secret"`
	TokenTTL   time.Duration `json:"token_ttl"`
	BcryptCost int           `json:"bcrypt_cost"`
}

type AttendanceConfig struct {
	SessionTTL time.Duration `json:"session_ttl"`
	// RateLimit is inbound realtime events per user per minute. Zero
	// disables limiting.
	RateLimit int `json:"rate_limit"`
}

type LogConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
}

// DefaultConfig returns everything except the JWT secret, which has no safe
// default.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./data/rollcall.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval:   30 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   5 * time.Second,
			MaxMessageSize: 64 * 1024,
		},
		Redis: &RedisConfig{
			Addr: "localhost:6379",
		},
		Auth: &AuthConfig{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 10,
		},
		Attendance: &AttendanceConfig{
			SessionTTL: 2 * time.Hour,
			RateLimit:  100,
		},
		Log: &LogConfig{
			Level: "info",
		},
	}
}

// Validate checks every section. The first problem found is returned.
func (c *Config) Validate() error {
	if c.Database == nil || c.HTTP == nil || c.WebSocket == nil || c.Redis == nil ||
		c.Auth == nil || c.Attendance == nil || c.Log == nil {
		return errors.New("configuration is incomplete")
	}

	if c.Database.Path == "" {
		return errors.New("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return errors.New("database timeout must be positive")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return errors.New("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return errors.New("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return errors.New("HTTP host cannot be empty")
	}

	if c.WebSocket.PingInterval <= 0 {
		return errors.New("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return errors.New("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return errors.New("WebSocket write timeout must be positive")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return errors.New("WebSocket max message size must be positive")
	}

	if c.Redis.Addr == "" {
		return errors.New("redis address cannot be empty")
	}
	if c.Redis.DB < 0 {
		return errors.New("redis db cannot be negative")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret is required")
	}
	if c.Auth.TokenTTL < 0 {
		return errors.New("token TTL cannot be negative")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return errors.New("bcrypt cost must be between 4 and 31")
	}

	if c.Attendance.SessionTTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.Attendance.RateLimit < 0 {
		return errors.New("rate limit cannot be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	return nil
}

// DatabaseSettings converts the database section for the storage layer.
func (c *Config) DatabaseSettings() *dbconfig.Config {
	settings := dbconfig.DefaultConfig()
	settings.DatabasePath = c.Database.Path
	settings.WriteTimeout = c.Database.Timeout
	return settings
}

// LoadFromEnv applies ROLLCALL_* variables over the defaults. Unparseable
// values are ignored.
func LoadFromEnv() *Config {
	config := DefaultConfig()
	applyEnv(config)
	return config
}

func applyEnv(config *Config) {
	envString("HTTP_HOST", &config.HTTP.Host)
	envInt("HTTP_PORT", &config.HTTP.Port)
	envDuration("HTTP_READ_TIMEOUT", &config.HTTP.ReadTimeout)
	envDuration("HTTP_WRITE_TIMEOUT", &config.HTTP.WriteTimeout)

	envString("DATABASE_PATH", &config.Database.Path)
	envDuration("DATABASE_TIMEOUT", &config.Database.Timeout)

	envDuration("WEBSOCKET_PING_INTERVAL", &config.WebSocket.PingInterval)
	envDuration("WEBSOCKET_READ_TIMEOUT", &config.WebSocket.ReadTimeout)
	envDuration("WEBSOCKET_WRITE_TIMEOUT", &config.WebSocket.WriteTimeout)

	envString("REDIS_ADDR", &config.Redis.Addr)
	envString("REDIS_PASSWORD", &config.Redis.Password)
	envInt("REDIS_DB", &config.Redis.DB)

	envString("JWT_SECRET", &config.Auth.JWTSecret)
	envDuration("TOKEN_TTL", &config.Auth.TokenTTL)
	envInt("BCRYPT_COST", &config.Auth.BcryptCost)

	envDuration("SESSION_TTL", &config.Attendance.SessionTTL)
	envInt("RATE_LIMIT", &config.Attendance.RateLimit)

	envString("LOG_LEVEL", &config.Log.Level)
	if v := os.Getenv(envPrefix + "LOG_CONSOLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Log.Console = b
		}
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(envPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(envPrefix + name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(envPrefix + name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// ConfigFile is the JSON file layout. Durations are Go duration strings.
type ConfigFile struct {
	Database *struct {
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"database"`
	HTTP *struct {
		Port         int    `json:"port"`
		Host         string `json:"host"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval   string `json:"ping_interval"`
		ReadTimeout    string `json:"read_timeout"`
		WriteTimeout   string `json:"write_timeout"`
		MaxMessageSize int64  `json:"max_message_size"`
	} `json:"websocket"`
	Redis *struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       *int   `json:"db"`
	} `json:"redis"`
	Auth *struct {
		JWTSecret  string `json:"jwt_secret"`
		TokenTTL   string `json:"token_ttl"`
		BcryptCost int    `json:"bcrypt_cost"`
	} `json:"auth"`
	Attendance *struct {
		SessionTTL string `json:"session_ttl"`
		RateLimit  *int   `json:"rate_limit"`
	} `json:"attendance"`
	Log *struct {
		Level   string `json:"level"`
		Console *bool  `json:"console"`
	} `json:"log"`
}

// LoadFromFile reads a JSON config file and layers it over base. Fields
// absent from the file keep base's values. The result is not validated.
func LoadFromFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := base
	if config == nil {
		config = DefaultConfig()
	}

	var parseErr error
	duration := func(field, v string, dst *time.Duration) {
		if v == "" || parseErr != nil {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			parseErr = fmt.Errorf("invalid %s in %s: %w", field, path, err)
			return
		}
		*dst = d
	}

	if f := file.Database; f != nil {
		if f.Path != "" {
			config.Database.Path = f.Path
		}
		duration("database.timeout", f.Timeout, &config.Database.Timeout)
	}
	if f := file.HTTP; f != nil {
		if f.Port > 0 {
			config.HTTP.Port = f.Port
		}
		if f.Host != "" {
			config.HTTP.Host = f.Host
		}
		duration("http.read_timeout", f.ReadTimeout, &config.HTTP.ReadTimeout)
		duration("http.write_timeout", f.WriteTimeout, &config.HTTP.WriteTimeout)
	}
	if f := file.WebSocket; f != nil {
		if f.MaxMessageSize > 0 {
			config.WebSocket.MaxMessageSize = f.MaxMessageSize
		}
		duration("websocket.ping_interval", f.PingInterval, &config.WebSocket.PingInterval)
		duration("websocket.read_timeout", f.ReadTimeout, &config.WebSocket.ReadTimeout)
		duration("websocket.write_timeout", f.WriteTimeout, &config.WebSocket.WriteTimeout)
	}
	if f := file.Redis; f != nil {
		if f.Addr != "" {
			config.Redis.Addr = f.Addr
		}
		if f.Password != "" {
			config.Redis.Password = f.Password
		}
		if f.DB != nil {
			config.Redis.DB = *f.DB
		}
	}
	if f := file.Auth; f != nil {
		if f.JWTSecret != "" {
			config.Auth.JWTSecret = f.JWTSecret
		}
		if f.BcryptCost > 0 {
			config.Auth.BcryptCost = f.BcryptCost
		}
		duration("auth.token_ttl", f.TokenTTL, &config.Auth.TokenTTL)
	}
	if f := file.Attendance; f != nil {
		if f.RateLimit != nil {
			config.Attendance.RateLimit = *f.RateLimit
		}
		duration("attendance.session_ttl", f.SessionTTL, &config.Attendance.SessionTTL)
	}
	if f := file.Log; f != nil {
		if f.Level != "" {
			config.Log.Level = f.Level
		}
		if f.Console != nil {
			config.Log.Console = *f.Console
		}
	}

	if parseErr != nil {
		return nil, parseErr
	}
	return config, nil
}

// LoadConfigWithPrecedence resolves file > environment > defaults. An empty
// path skips the file layer.
func LoadConfigWithPrecedence(path string) (*Config, error) {
	config := LoadFromEnv()
	if path == "" {
		return config, nil
	}
	return LoadFromFile(path, config)
}
