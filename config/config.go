package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // signal-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN string `yaml:"dsn"` // empty: run in-memory only, no sink
}

type Sessions struct {
	DefaultMaxParticipants int `yaml:"defaultMaxParticipants"`
}

type Streams struct {
	Retention     string `yaml:"retention"`     // how long ended records stay in memory
	SweepInterval string `yaml:"sweepInterval"` // how often the sweep runs
}

type WS struct {
	PingInterval string `yaml:"pingInterval"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Sessions Sessions `yaml:"sessions"`
	Streams  Streams  `yaml:"streams"`
	WS       WS       `yaml:"ws"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "signal-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Sessions.DefaultMaxParticipants <= 0 {
		c.Sessions.DefaultMaxParticipants = 50
	}
	return nil
}

func (c *Config) StreamRetention() time.Duration {
	return parseDurationOr(30*time.Minute, c.Streams.Retention)
}

func (c *Config) SweepInterval() time.Duration {
	return parseDurationOr(5*time.Minute, c.Streams.SweepInterval)
}

func (c *Config) PingInterval() time.Duration {
	return parseDurationOr(15*time.Second, c.WS.PingInterval)
}

func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
