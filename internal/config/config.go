package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sgomezmalagon/juego-bolas/internal/sim"
)

// EnvPrefix is prepended to every environment override, e.g.
// JUEGOBOLAS_WORLD_WIDTH.
const EnvPrefix = "JUEGOBOLAS"

// WorldConfig holds the simulation settings
type WorldConfig struct {
	Width               int           `json:"width" mapstructure:"width"`
	Height              int           `json:"height" mapstructure:"height"`
	Seed                uint64        `json:"seed" mapstructure:"seed"` // 0 = seeded from the clock
	CollisionIterations int           `json:"collisionIterations" mapstructure:"collisionIterations"`
	TickRate            int           `json:"tickRate" mapstructure:"tickRate"`
	SpawnInterval       time.Duration `json:"spawnInterval" mapstructure:"spawnInterval"` // 0 disables the spawner
	InitialBalls        int           `json:"initialBalls" mapstructure:"initialBalls"`
}

// ServerConfig holds the WebSocket bridge settings
type ServerConfig struct {
	Addr          string `json:"addr" mapstructure:"addr"` // empty disables the server
	BroadcastRate int    `json:"broadcastRate" mapstructure:"broadcastRate"`
	PasswordHash  string `json:"passwordHash" mapstructure:"passwordHash"` // bcrypt; empty leaves control open
	JWTSecret     string `json:"jwtSecret" mapstructure:"jwtSecret"`
	MaxConnsPerIP int    `json:"maxConnsPerIP" mapstructure:"maxConnsPerIP"`
	MaxConns      int    `json:"maxConns" mapstructure:"maxConns"`
}

// JournalConfig holds the SQLite event journal settings
type JournalConfig struct {
	Path          string        `json:"path" mapstructure:"path"` // empty disables the journal
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	BatchSize     int           `json:"batchSize" mapstructure:"batchSize"`
	StatsEvery    int           `json:"statsEvery" mapstructure:"statsEvery"` // ticks between stats rows
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
	File   string `json:"file" mapstructure:"file"` // empty means stderr
}

// Config is the fully resolved process configuration
type Config struct {
	World   WorldConfig   `json:"world" mapstructure:"world"`
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Journal JournalConfig `json:"journal" mapstructure:"journal"`
	Log     LogConfig     `json:"log" mapstructure:"log"`
	TUI     bool          `json:"tui" mapstructure:"tui"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("world.width", 1000)
	v.SetDefault("world.height", 700)
	v.SetDefault("world.seed", 0)
	v.SetDefault("world.collisionIterations", 4)
	v.SetDefault("world.tickRate", 60)
	v.SetDefault("world.spawnInterval", "2s")
	v.SetDefault("world.initialBalls", 0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.broadcastRate", 30)
	v.SetDefault("server.passwordHash", "")
	v.SetDefault("server.jwtSecret", "")
	v.SetDefault("server.maxConnsPerIP", 5)
	v.SetDefault("server.maxConns", 1000)

	v.SetDefault("journal.path", "")
	v.SetDefault("journal.flushInterval", "5s")
	v.SetDefault("journal.batchSize", 50)
	v.SetDefault("journal.statsEvery", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")

	v.SetDefault("tui", false)
}

// flag name -> config key
var flagKeys = map[string]string{
	"width":          "world.width",
	"height":         "world.height",
	"seed":           "world.seed",
	"tick-rate":      "world.tickRate",
	"spawn-interval": "world.spawnInterval",
	"balls":          "world.initialBalls",
	"addr":           "server.addr",
	"journal":        "journal.path",
	"log-level":      "log.level",
	"pretty":         "log.pretty",
	"log-file":       "log.file",
	"tui":            "tui",
}

// Flags returns the command-line flags understood by Load. The caller
// parses them.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("juegobolas", pflag.ContinueOnError)
	fs.String("config", "", "path to a JSON, TOML or YAML config file")
	fs.Int("width", 1000, "world width in pixels")
	fs.Int("height", 700, "world height in pixels")
	fs.Uint64("seed", 0, "random seed (0 = from the clock)")
	fs.Int("tick-rate", 60, "simulation ticks per second")
	fs.Duration("spawn-interval", 2*time.Second, "time between automatic ball spawns (0 disables)")
	fs.Int("balls", 0, "balls to spawn at startup")
	fs.String("addr", ":8080", "HTTP/WebSocket listen address (empty disables)")
	fs.String("journal", "", "SQLite journal path (empty disables)")
	fs.String("log-level", "info", "log level")
	fs.Bool("pretty", false, "human readable logs")
	fs.String("log-file", "", "write logs to this file instead of stderr")
	fs.Bool("tui", false, "run the terminal front-end")
	return fs
}

// Load resolves the configuration: defaults, then the config file, then
// JUEGOBOLAS_* environment variables, then flags that were set explicitly.
// fs may be nil.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.World.Width <= 0 || c.World.Height <= 0 || c.World.Width > sim.MaxWorldSize || c.World.Height > sim.MaxWorldSize {
		errs = append(errs, fmt.Errorf("world size %dx%d must be positive and at most %d", c.World.Width, c.World.Height, sim.MaxWorldSize))
	}
	if c.World.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick rate %d must be positive", c.World.TickRate))
	}
	if c.World.SpawnInterval < 0 {
		errs = append(errs, fmt.Errorf("spawn interval %s must not be negative", c.World.SpawnInterval))
	}
	if c.World.CollisionIterations < 0 {
		errs = append(errs, fmt.Errorf("collision iterations %d must not be negative", c.World.CollisionIterations))
	}
	if c.World.InitialBalls < 0 {
		errs = append(errs, fmt.Errorf("initial balls %d must not be negative", c.World.InitialBalls))
	}
	if c.Server.Addr != "" && c.Server.BroadcastRate <= 0 {
		errs = append(errs, fmt.Errorf("broadcast rate %d must be positive", c.Server.BroadcastRate))
	}
	if c.Server.PasswordHash != "" && c.Server.JWTSecret == "" {
		errs = append(errs, errors.New("server.jwtSecret is required when a password hash is set"))
	}
	if c.Journal.Path != "" && (c.Journal.FlushInterval <= 0 || c.Journal.BatchSize <= 0) {
		errs = append(errs, errors.New("journal flush interval and batch size must be positive"))
	}
	return errors.Join(errs...)
}
