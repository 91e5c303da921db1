// Package config loads the rules engine configuration from a YAML file,
// with environment overrides under the MAGE_RULES prefix.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/magefree/mage-rules-go/internal/game"
)

// Config is the full configuration.
type Config struct {
	Game     GameConfig     `mapstructure:"game"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Database DatabaseConfig `mapstructure:"database"`
	Replay   ReplayConfig   `mapstructure:"replay"`
}

// GameConfig holds the rules every new game starts with.
type GameConfig struct {
	StartingLife    int   `mapstructure:"starting_life"`
	HandSize        int   `mapstructure:"hand_size"`
	MaxHandSize     int   `mapstructure:"max_hand_size"`
	DrawOnFirstTurn bool  `mapstructure:"draw_on_first_turn"`
	LoopLimit       int   `mapstructure:"loop_limit"`
	Shuffle         bool  `mapstructure:"shuffle"`
	Seed            int64 `mapstructure:"seed"`
}

// Rules converts the section into the engine's game config.
func (g GameConfig) Rules() game.Config {
	return game.Config{
		StartingLife:    g.StartingLife,
		HandSize:        g.HandSize,
		MaxHandSize:     g.MaxHandSize,
		DrawOnFirstTurn: g.DrawOnFirstTurn,
		LoopLimit:       g.LoopLimit,
		Shuffle:         g.Shuffle,
	}
}

// LoggingConfig selects the zap level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CatalogConfig lists extra card directories loaded on top of the core set.
type CatalogConfig struct {
	Paths []string `mapstructure:"paths"`
}

// DatabaseConfig configures the checkpoint database. An empty URL disables it.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConns       int32         `mapstructure:"max_conns"`
	MinConns       int32         `mapstructure:"min_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// ReplayConfig says where finished game recordings are written.
type ReplayConfig struct {
	Dir string `mapstructure:"dir"`
}

const envPrefix = "MAGE_RULES"

// Load reads the config file at path. A missing file is not an error when
// path is empty; defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := game.DefaultConfig()
	v.SetDefault("game.starting_life", def.StartingLife)
	v.SetDefault("game.hand_size", def.HandSize)
	v.SetDefault("game.max_hand_size", def.MaxHandSize)
	v.SetDefault("game.draw_on_first_turn", def.DrawOnFirstTurn)
	v.SetDefault("game.loop_limit", def.LoopLimit)
	v.SetDefault("game.shuffle", def.Shuffle)
	v.SetDefault("game.seed", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("catalog.paths", []string{})

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("replay.dir", "")
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Game.StartingLife <= 0 {
		errs = append(errs, fmt.Errorf("game.starting_life must be positive, got %d", c.Game.StartingLife))
	}
	if c.Game.HandSize < 0 {
		errs = append(errs, fmt.Errorf("game.hand_size must not be negative, got %d", c.Game.HandSize))
	}
	if c.Game.MaxHandSize <= 0 {
		errs = append(errs, fmt.Errorf("game.max_hand_size must be positive, got %d", c.Game.MaxHandSize))
	}
	if c.Game.LoopLimit <= 0 {
		errs = append(errs, fmt.Errorf("game.loop_limit must be positive, got %d", c.Game.LoopLimit))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	if c.Database.Enabled() && c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("database.min_conns (%d) exceeds max_conns (%d)", c.Database.MinConns, c.Database.MaxConns))
	}
	return errors.Join(errs...)
}
