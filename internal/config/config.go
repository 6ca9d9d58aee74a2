// Package config loads the store's configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	PoolMaxConns   int32
	PoolMinConns   int32
	AcquireTimeout time.Duration

	KeyFile       string
	RetentionDays int
	PurgeInterval time.Duration
}

// FromEnv reads YAMII_* variables and applies defaults. Missing database
// credentials are fatal: the store must not start half-configured.
func FromEnv() (Config, error) {
	c := Config{
		DBHost:     os.Getenv("YAMII_DB_HOST"),
		DBName:     os.Getenv("YAMII_DB_NAME"),
		DBUser:     os.Getenv("YAMII_DB_USER"),
		DBPassword: os.Getenv("YAMII_DB_PASSWORD"),
		KeyFile:    os.Getenv("YAMII_KEY_FILE"),
	}

	var err error
	if c.DBPort, err = envInt("YAMII_DB_PORT", 5432); err != nil {
		return Config{}, err
	}
	maxConns, err := envInt("YAMII_DB_POOL_MAX_CONNS", 10)
	if err != nil {
		return Config{}, err
	}
	minConns, err := envInt("YAMII_DB_POOL_MIN_CONNS", 2)
	if err != nil {
		return Config{}, err
	}
	c.PoolMaxConns = int32(maxConns)
	c.PoolMinConns = int32(minConns)
	if c.AcquireTimeout, err = envDuration("YAMII_DB_ACQUIRE_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if c.RetentionDays, err = envInt("YAMII_RETENTION_DAYS", 30); err != nil {
		return Config{}, err
	}
	if c.PurgeInterval, err = envDuration("YAMII_PURGE_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}

	c.setDefaults()
	return c, c.validate()
}

func (c *Config) setDefaults() {
	if c.DBHost == "" {
		c.DBHost = "localhost"
	}
	if c.KeyFile == "" {
		c.KeyFile = "./yamii-master.key"
	}
}

func (c *Config) validate() error {
	if c.DBName == "" || c.DBUser == "" {
		return errors.New("config: YAMII_DB_NAME and YAMII_DB_USER are required")
	}
	if c.PoolMaxConns <= 0 {
		return errors.New("config: pool max conns must be positive")
	}
	return nil
}

// DSN renders the pgx connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// Retention converts the configured day count to a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return n, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return d, nil
}
