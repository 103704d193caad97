package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// InstanceID tags presence records with their owning server instance.
	// Generated when left empty.
	InstanceID string `mapstructure:"instance_id" yaml:"instance_id"`

	// StaleTimeout is how long a connection may go without pinging before
	// the reaper evicts its presence record.
	StaleTimeout time.Duration `mapstructure:"stale_timeout" yaml:"stale_timeout"`
	// ReaperInterval is how often the reaper runs.
	ReaperInterval time.Duration `mapstructure:"reaper_interval" yaml:"reaper_interval"`
	// InactivityThreshold is how long a channel creator may stay idle before
	// their channel is auto-muted.
	InactivityThreshold time.Duration `mapstructure:"inactivity_threshold" yaml:"inactivity_threshold"`
	// AutoMuteInterval is how often the auto-muter runs.
	AutoMuteInterval time.Duration `mapstructure:"automute_interval" yaml:"automute_interval"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                ":8080",
		DatabasePath:        "causerie.db",
		LogLevel:            "info",
		ReadHeaderTimeout:   5 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		JWTSecret:           "",
		JWTIssuer:           "causerie",
		JWTAudience:         "causerie-clients",
		InstanceID:          "",
		StaleTimeout:        60 * time.Second,
		ReaperInterval:      30 * time.Second,
		InactivityThreshold: 5 * time.Minute,
		AutoMuteInterval:    30 * time.Second,
	}
}
