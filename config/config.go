// Package config loads the YAML configuration of the modred command.
package config

import (
	"os"
	"strconv"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/matio"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWorkers           = 1
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultDtTol             = 1e-6
	DefaultIndexFrom         = 1
	DefaultMaxVectorsPerNode = 64
	DefaultStorageFormat     = "text"
)

type Config struct {
	Workers int     `json:"workers" yaml:"workers"`
	Log     Log     `json:"log" yaml:"log"`
	ERA     ERA     `json:"era" yaml:"era"`
	BPOD    BPOD    `json:"bpod" yaml:"bpod"`
	Storage Storage `json:"storage" yaml:"storage"`
}

type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// ERA configures realizations. Zero block counts select the balanced
// default for the number of time steps.
type ERA struct {
	NumStates int     `json:"num_states" yaml:"num_states"`
	Mo        int     `json:"mo" yaml:"mo"`
	Mc        int     `json:"mc" yaml:"mc"`
	DtTol     float64 `json:"dt_tol" yaml:"dt_tol"`
	Verbose   *bool   `json:"verbose" yaml:"verbose"`
}

type BPOD struct {
	IndexFrom         *int `json:"index_from" yaml:"index_from"`
	MaxVectorsPerNode int  `json:"max_vectors_per_node" yaml:"max_vectors_per_node"`
}

type Storage struct {
	Format string `json:"format" yaml:"format"`
}

// Load reads path, applies environment overrides and defaults, and
// validates the result. An empty path gives the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(modred.ErrConfiguration, "parse config %s: %v", path, err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.SetDefaultsAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("MODRED_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(modred.ErrConfiguration, "MODRED_WORKERS=%q", v)
		}
		c.Workers = workers
	}
	if v := os.Getenv("MODRED_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// SetDefaultsAndValidate fills unset fields and checks the ranges.
func (c *Config) SetDefaultsAndValidate() error {
	c.setDefaults()
	return c.validate()
}

func (c *Config) setDefaults() {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.ERA.DtTol == 0 {
		c.ERA.DtTol = DefaultDtTol
	}
	if c.ERA.Verbose == nil {
		verbose := true
		c.ERA.Verbose = &verbose
	}
	if c.BPOD.IndexFrom == nil {
		indexFrom := DefaultIndexFrom
		c.BPOD.IndexFrom = &indexFrom
	}
	if c.BPOD.MaxVectorsPerNode == 0 {
		c.BPOD.MaxVectorsPerNode = DefaultMaxVectorsPerNode
	}
	if c.Storage.Format == "" {
		c.Storage.Format = DefaultStorageFormat
	}
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		return configErr("workers must be positive, got %d", c.Workers)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return configErr("log.level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return configErr("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.ERA.NumStates < 0 {
		return configErr("era.num_states must not be negative, got %d", c.ERA.NumStates)
	}
	if c.ERA.Mo < 0 || c.ERA.Mc < 0 {
		return configErr("era.mo and era.mc must not be negative, got %d and %d", c.ERA.Mo, c.ERA.Mc)
	}
	if c.ERA.DtTol < 0 {
		return configErr("era.dt_tol must not be negative, got %g", c.ERA.DtTol)
	}
	if c.BPOD.MaxVectorsPerNode < 2 {
		return configErr("bpod.max_vectors_per_node must be at least 2, got %d", c.BPOD.MaxVectorsPerNode)
	}
	if _, err := matio.ForFormat(c.Storage.Format); err != nil {
		return errors.Wrap(err, "storage.format")
	}
	return nil
}

func configErr(format string, args ...interface{}) error {
	return errors.Wrapf(modred.ErrConfiguration, format, args...)
}

// Logger builds the logger described by the log section.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// Store returns the matrix store for the storage format.
func (c *Config) Store() matio.Store {
	store, err := matio.ForFormat(c.Storage.Format)
	if err != nil {
		return matio.TextStore{}
	}
	return store
}
