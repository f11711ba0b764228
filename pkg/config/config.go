// Package config defines the configuration surface of bigtab. Every value
// is passed explicitly into component calls; there is no process-wide
// implicit state.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/berkeley-demography/bigtab/pkg/errors"
)

// Config collects the recognized options for one invocation
type Config struct {
	// Source is the path of the raw delimited file
	Source string `mapstructure:"source" json:"source"`

	// Head is the number of sample lines the inspector returns
	Head int `mapstructure:"head" json:"head"`

	Store     StoreConfig     `mapstructure:"store" json:"store"`
	Read      ReadConfig      `mapstructure:"read" json:"read"`
	Predicate PredicateConfig `mapstructure:"predicate" json:"predicate"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
}

// StoreConfig locates the persistent store
type StoreConfig struct {
	// Path of the DuckDB database file
	Path string `mapstructure:"path" json:"path"`
}

// ReadConfig controls the projected bulk read
type ReadConfig struct {
	// Limit caps the number of data rows parsed; 0 reads all
	Limit int `mapstructure:"limit" json:"limit"`
	// Columns restricts the read to the named columns; empty reads all
	Columns []string `mapstructure:"columns" json:"columns"`
}

// PredicateConfig defines the selective filter
type PredicateConfig struct {
	Column string   `mapstructure:"column" json:"column"`
	Values []string `mapstructure:"values" json:"values"`
}

// LogConfig controls the structured logger
type LogConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	Development bool   `mapstructure:"development" json:"development"`
}

// Default returns the baseline configuration
func Default() *Config {
	return &Config{
		Head: 5,
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads configuration from an optional file merged with BIGTAB_*
// environment variables over the defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	// Every key needs a default so environment overrides survive Unmarshal
	v.SetDefault("source", "")
	v.SetDefault("head", 5)
	v.SetDefault("store.path", "")
	v.SetDefault("read.limit", 0)
	v.SetDefault("read.columns", []string{})
	v.SetDefault("predicate.column", "")
	v.SetDefault("predicate.values", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetEnvPrefix("BIGTAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot read config file").
				WithDetail("path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component accepts
func (c *Config) Validate() error {
	if c.Head < 0 {
		return errors.New(errors.ErrorTypeConfig, "head must not be negative")
	}
	if c.Read.Limit < 0 {
		return errors.New(errors.ErrorTypeConfig, "read.limit must not be negative")
	}
	if len(c.Predicate.Values) > 0 && c.Predicate.Column == "" {
		return errors.New(errors.ErrorTypeConfig, "predicate.values given without predicate.column")
	}
	return nil
}
