package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	Store StoreConfig `mapstructure:"store" yaml:"store"`
	JWT   JWTConfig   `mapstructure:"jwt" yaml:"jwt"`
	HTTP  HTTPConfig  `mapstructure:"http" yaml:"http"`
	WS    WSConfig    `mapstructure:"ws" yaml:"ws"`
	Game  GameConfig  `mapstructure:"game" yaml:"game"`
}

// StoreConfig selects the room tree backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // memory | sqlite
	Path   string `mapstructure:"path" yaml:"path"`
}

// JWTConfig configures player tokens.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// HTTPConfig configures the REST surface.
type HTTPConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// WSConfig configures WebSocket connections.
type WSConfig struct {
	MaxMessageBytes int64   `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RatePerSecond   float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst           int     `mapstructure:"burst" yaml:"burst"`
}

// GameConfig tunes the game service.
type GameConfig struct {
	MaxRoomIDAttempts int `mapstructure:"max_room_id_attempts" yaml:"max_room_id_attempts"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "ito.db",
		},
		JWT: JWTConfig{
			Secret:   "change-me",
			Issuer:   "ito-server",
			Audience: "ito-clients",
			TTL:      12 * time.Hour,
		},
		HTTP: HTTPConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		WS: WSConfig{
			MaxMessageBytes: 1 << 16,
			RatePerSecond:   5,
			Burst:           10,
		},
		Game: GameConfig{
			MaxRoomIDAttempts: 64,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.JWT.Secret != "" {
		c.JWT.Secret = other.JWT.Secret
	}
}
