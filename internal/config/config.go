package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
	BackendBadger  = "badger"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"` // empty disables the health server

	Env     string `yaml:"env"`     // "dev" | "prod"
	Backend string `yaml:"backend"` // memory | sqlite | leveldb | badger

	DBPath      string `yaml:"db_path"`
	LevelDBPath string `yaml:"leveldb_path"`
	BadgerPath  string `yaml:"badger_path"`

	CallerHeader string  `yaml:"caller_header"`
	RateLimit    float64 `yaml:"rate_limit"` // req/s per caller, 0 = off
	RateBurst    int     `yaml:"rate_burst"`

	TokenBase uint64 `yaml:"token_base"`

	// Audit retention
	AuditRetentionDays int `yaml:"audit_retention_days"` // 0 = keep forever
	PruneIntervalHours int `yaml:"prune_interval_hours"`

	Metrics bool `yaml:"metrics"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:           ":8080",
		GRPCAddr:           ":9090",
		Env:                "dev",
		Backend:            BackendMemory,
		DBPath:             "./data/medledger.db",
		LevelDBPath:        "./data/medledger.leveldb",
		BadgerPath:         "./data/medledger.badger",
		CallerHeader:       "X-Caller-Identity",
		RateLimit:          0,
		RateBurst:          10,
		TokenBase:          1000,
		AuditRetentionDays: 90,
		PruneIntervalHours: 6,
		Metrics:            true,
	}
}

// FromEnv returns the defaults overridden by MEDLEDGER_* variables.
// Malformed values fall back to the default.
func FromEnv() Config {
	c := Defaults()
	applyEnv(&c)
	normalize(&c)
	return c
}

// Load reads the YAML file named by MEDLEDGER_CONFIG, if any, then applies
// environment overrides on top.  Unlike FromEnv it reports an unreadable
// file or an unknown backend.
func Load() (Config, error) {
	c := Defaults()

	if path := strings.TrimSpace(os.Getenv("MEDLEDGER_CONFIG")); path != "" {
		if err := loadFile(path, &c); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&c)
	normalize(&c)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendLevelDB, BackendBadger:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate_limit must not be negative")
	}
	return nil
}

func loadFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.HTTPAddr = getenvDefault("MEDLEDGER_HTTP_ADDR", c.HTTPAddr)
	if v, ok := os.LookupEnv("MEDLEDGER_GRPC_ADDR"); ok {
		// set-but-empty disables gRPC
		c.GRPCAddr = strings.TrimSpace(v)
	}

	c.Env = getenvDefault("MEDLEDGER_ENV", c.Env)
	c.Backend = getenvDefault("MEDLEDGER_BACKEND", c.Backend)

	c.DBPath = getenvDefault("MEDLEDGER_DB_PATH", c.DBPath)
	c.LevelDBPath = getenvDefault("MEDLEDGER_LEVELDB_PATH", c.LevelDBPath)
	c.BadgerPath = getenvDefault("MEDLEDGER_BADGER_PATH", c.BadgerPath)

	c.CallerHeader = getenvDefault("MEDLEDGER_CALLER_HEADER", c.CallerHeader)
	c.RateLimit = getenvFloat("MEDLEDGER_RATE_LIMIT", c.RateLimit)
	c.RateBurst = getenvInt("MEDLEDGER_RATE_BURST", c.RateBurst)

	c.TokenBase = getenvUint("MEDLEDGER_TOKEN_BASE", c.TokenBase)

	c.AuditRetentionDays = getenvInt("MEDLEDGER_AUDIT_RETENTION_DAYS", c.AuditRetentionDays)
	c.PruneIntervalHours = getenvInt("MEDLEDGER_PRUNE_INTERVAL_HOURS", c.PruneIntervalHours)

	c.Metrics = getenvBool("MEDLEDGER_METRICS", c.Metrics)
}

func normalize(c *Config) {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != "dev" && c.Env != "prod" {
		// fail-soft: treat unknown as dev
		c.Env = "dev"
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.PruneIntervalHours <= 0 {
		c.PruneIntervalHours = 6
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvUint(key string, def uint64) uint64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
