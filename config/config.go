package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Stream   StreamConfig   `mapstructure:"stream"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

type AuthConfig struct {
	Enable bool   `mapstructure:"enable"`
	Token  string `mapstructure:"token"`
}

// DispatchConfig holds the deck substitution rules for the playback channel.
type DispatchConfig struct {
	MissingDeck   string `mapstructure:"missing_deck"`
	WrongTypeDeck string `mapstructure:"wrong_type_deck"`
}

// StreamConfig controls the playback position stream.
type StreamConfig struct {
	Interval time.Duration `mapstructure:"interval"` // position sampling period
	Buffer   int           `mapstructure:"buffer"`   // events buffered per subscriber
	Overflow string        `mapstructure:"overflow"` // drop-oldest | block
}

// SetDefaults registers every key so env overrides apply to all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8088")
	v.SetDefault("server.mode", "release")
	v.SetDefault("auth.enable", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("dispatch.missing_deck", "A")
	v.SetDefault("dispatch.wrong_type_deck", "A")
	v.SetDefault("stream.interval", 100*time.Millisecond)
	v.SetDefault("stream.buffer", 16)
	v.SetDefault("stream.overflow", "drop-oldest")
}

// New returns a viper instance with defaults and DJPRO_ env binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("DJPRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path, then decodes and validates v.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr required"))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode %q: want debug, release or test", c.Server.Mode))
	}
	if c.Auth.Enable && c.Auth.Token == "" {
		errs = append(errs, errors.New("auth.token required when auth is enabled"))
	}
	if c.Dispatch.MissingDeck == "" || c.Dispatch.WrongTypeDeck == "" {
		errs = append(errs, errors.New("dispatch default decks must not be empty"))
	}
	if c.Stream.Interval <= 0 {
		errs = append(errs, errors.New("stream.interval must be positive"))
	}
	if c.Stream.Buffer < 1 {
		errs = append(errs, errors.New("stream.buffer must be >= 1"))
	}
	switch c.Stream.Overflow {
	case "drop-oldest", "block":
	default:
		errs = append(errs, fmt.Errorf("stream.overflow %q: want drop-oldest or block", c.Stream.Overflow))
	}
	return errors.Join(errs...)
}
