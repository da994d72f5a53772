// Package config loads labelscan settings from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/japaniel/labelscan/pkg/mail"
)

const (
	// DefaultConfigPath is used when -config is not provided.
	DefaultConfigPath = "config.yml"

	defaultDBPath    = "labelscan.db"
	defaultTablePath = "harmful_ingredients.csv"
	defaultLanguage  = "eng"
	defaultTimeout   = 60 * time.Second
	defaultWorkers   = 4
)

// Reference source kinds.
const (
	SourceCSV = "csv"
	SourceDB  = "db"
)

// Config is the application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Reference ReferenceConfig `yaml:"reference"`
	OCR       OCRConfig       `yaml:"ocr"`
	Mail      mail.Config     `yaml:"mail"`
	Batch     BatchConfig     `yaml:"batch"`
	Log       LogConfig       `yaml:"log"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ReferenceConfig struct {
	CSV    string `yaml:"csv"`
	Source string `yaml:"source"` // "csv" | "db"
	// URL is downloaded to CSV when that file is missing.
	URL string `yaml:"url"`
}

type OCRConfig struct {
	Languages []string      `yaml:"languages"`
	PSM       int           `yaml:"psm"`
	Timeout   time.Duration `yaml:"timeout"`
}

type BatchConfig struct {
	Workers int `yaml:"workers"`
}

type LogConfig struct {
	Format string `yaml:"format"` // "console" | "json"
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Database:  DatabaseConfig{Path: defaultDBPath},
		Reference: ReferenceConfig{CSV: defaultTablePath, Source: SourceCSV},
		OCR:       OCRConfig{Languages: []string{defaultLanguage}, Timeout: defaultTimeout},
		Mail:      mail.Config{Port: 587},
		Batch:     BatchConfig{Workers: defaultWorkers},
		Log:       LogConfig{Format: "console"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}
	cfg := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values a file may have set out of range.
func (c *Config) Validate() error {
	switch c.Reference.Source {
	case SourceCSV, SourceDB:
	default:
		return fmt.Errorf("invalid reference.source %q, expected %q or %q", c.Reference.Source, SourceCSV, SourceDB)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("invalid batch.workers %d, expected >= 1", c.Batch.Workers)
	}
	if c.OCR.Timeout < 0 {
		return fmt.Errorf("invalid ocr.timeout %s", c.OCR.Timeout)
	}
	if c.Mail.Port < 0 || c.Mail.Port > 65535 {
		return fmt.Errorf("invalid mail.port %d, expected 1-65535", c.Mail.Port)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}
	return nil
}
