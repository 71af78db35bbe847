package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RunRateLimit float64       `yaml:"run_rate_limit" mapstructure:"run_rate_limit"` // runs per second
	RunBurst     int           `yaml:"run_burst" mapstructure:"run_burst"`
}

// StorageConfig selects and configures the key-value backend for rule groups
type StorageConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory, file, redis or postgres
	File   struct {
		Path string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
	Redis struct {
		URL            string `yaml:"url" mapstructure:"url"`
		KeyPrefix      string `yaml:"key_prefix" mapstructure:"key_prefix"`
		MaxConnections int    `yaml:"max_connections" mapstructure:"max_connections"`
		MinIdleConns   int    `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	} `yaml:"redis" mapstructure:"redis"`
	Postgres struct {
		URL             string        `yaml:"url" mapstructure:"url"`
		MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	} `yaml:"postgres" mapstructure:"postgres"`
}

// TransportConfig controls the request/response exchange with page agents
type TransportConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	AttachTimeout time.Duration `yaml:"attach_timeout" mapstructure:"attach_timeout"`
}

// SessionConfig controls the editing session
type SessionConfig struct {
	PersistDelay time.Duration `yaml:"persist_delay" mapstructure:"persist_delay"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains page agent connection configuration
type WebSocketConfig struct {
	Path            string        `yaml:"path" mapstructure:"path"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	Username        string        `yaml:"username" mapstructure:"username"`
	Password        string        `yaml:"password" mapstructure:"password"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			RunRateLimit: 5,
			RunBurst:     5,
		},
		Storage: StorageConfig{
			Driver: "file",
		},
		Transport: TransportConfig{
			Timeout:       1200 * time.Millisecond,
			AttachTimeout: 5 * time.Second,
		},
		Session: SessionConfig{
			PersistDelay: 400 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Path:            "/ws",
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  4 << 20, // run results carry every rule's pattern
			Username:        "relay",
			Password:        "relay",
		},
	}

	cfg.Storage.File.Path = "regex-relay.json"
	cfg.Storage.Redis.URL = "redis://localhost:6379/0"
	cfg.Storage.Redis.KeyPrefix = "relay"
	cfg.Storage.Redis.MaxConnections = 10
	cfg.Storage.Redis.MinIdleConns = 1
	cfg.Storage.Postgres.MaxOpenConns = 5
	cfg.Storage.Postgres.MaxIdleConns = 2
	cfg.Storage.Postgres.ConnMaxLifetime = 30 * time.Minute
	cfg.Logging.File.Path = "logs/regex-relay.log"

	return cfg
}
