package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override, e.g. ECS_LOGGING_LEVEL.
const EnvPrefix = "ECS_"

type Config struct {
	Runtime    RuntimeConfig    `toml:"runtime" envPrefix:"RUNTIME_"`
	Scheduler  SchedulerConfig  `toml:"scheduler" envPrefix:"SCHEDULER_"`
	Scripting  ScriptingConfig  `toml:"scripting" envPrefix:"SCRIPTING_"`
	Blueprints BlueprintsConfig `toml:"blueprints" envPrefix:"BLUEPRINTS_"`
	Logging    LoggingConfig    `toml:"logging" envPrefix:"LOGGING_"`
	Telemetry  TelemetryConfig  `toml:"telemetry" envPrefix:"OTEL_"`
}

type RuntimeConfig struct {
	Name           string `toml:"name" env:"NAME"`
	EntityCapacity int    `toml:"entity_capacity" env:"ENTITY_CAPACITY"`
	ValidateGroups bool   `toml:"validate_groups" env:"VALIDATE_GROUPS"` // full group re-check after every event
}

type SchedulerConfig struct {
	TickRate      time.Duration `toml:"tick_rate" env:"TICK_RATE"`             // host frame interval
	FixedStep     time.Duration `toml:"fixed_step" env:"FIXED_STEP"`           // FixedUpdate interval
	MaxFixedSteps int           `toml:"max_fixed_steps" env:"MAX_FIXED_STEPS"` // cap per frame, avoids spiral of death
}

type ScriptingConfig struct {
	Dir string `toml:"dir" env:"DIR"` // Lua behavior scripts; empty disables scripting
}

type BlueprintsConfig struct {
	Path string `toml:"path" env:"PATH"` // YAML file or directory
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"` // "json" or "console"
}

type TelemetryConfig struct {
	Endpoint string `toml:"endpoint" env:"ENDPOINT"` // OTLP/HTTP URL; empty disables tracing
	Service  string `toml:"service" env:"SERVICE"`
}

// Load reads the TOML file at path over the defaults, then applies ECS_*
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config { return defaults() }

// Validate reports the first invalid setting. Load calls it; callers that
// build a Config by hand should too.
func (c *Config) Validate() error {
	if c.Scheduler.TickRate <= 0 {
		return fmt.Errorf("scheduler.tick_rate must be positive, got %s", c.Scheduler.TickRate)
	}
	if c.Scheduler.FixedStep <= 0 {
		return fmt.Errorf("scheduler.fixed_step must be positive, got %s", c.Scheduler.FixedStep)
	}
	if c.Runtime.EntityCapacity < 0 {
		return fmt.Errorf("runtime.entity_capacity must not be negative, got %d", c.Runtime.EntityCapacity)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Name:           "ecs",
			EntityCapacity: 1024,
		},
		Scheduler: SchedulerConfig{
			TickRate:      16 * time.Millisecond,
			FixedStep:     20 * time.Millisecond,
			MaxFixedSteps: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Service: "ecs",
		},
	}
}
