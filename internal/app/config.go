package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config can come from a YAML file, environment variables, or both.
// Environment variables override YAML values, which override DefaultConfig.
// Fields whose zero value is a valid choice (bools, counts, ratios) carry no
// env-default tag: cleanenv would apply it over an explicit YAML zero.
type Config struct {
	// DataDir anchors every relative file path below.
	DataDir string `yaml:"data_dir" env:"AWARD_DATA_DIR" env-default:"."`

	Log     LogConfig     `yaml:"log"`
	HTTP    HTTPConfig    `yaml:"http"`
	Files   FilesConfig   `yaml:"files"`
	Startup StartupConfig `yaml:"startup"`
	Tracing TracingConfig `yaml:"tracing"`
}

type LogConfig struct {
	// Mode is "development" (console, colored) or "production" (JSON).
	Mode  string `yaml:"mode" env:"LOG_MODE" env-default:"development"`
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type HTTPConfig struct {
	Addr                 string   `yaml:"addr" env:"HTTP_ADDR" env-default:"127.0.0.1:8080"`
	CORSOrigins          []string `yaml:"cors_origins" env:"HTTP_CORS_ORIGINS" env-separator:","`
	ShutdownGraceSeconds int      `yaml:"shutdown_grace_seconds" env:"HTTP_SHUTDOWN_GRACE_SECONDS"`
}

func (h HTTPConfig) ShutdownGrace() time.Duration {
	return time.Duration(h.ShutdownGraceSeconds) * time.Second
}

type FilesConfig struct {
	Records   string `yaml:"records" env:"AWARD_RECORDS_FILE" env-default:"Student_Awards.xlsx"`
	Database  string `yaml:"database" env:"AWARD_DB_FILE" env-default:"student.db"`
	Summary   string `yaml:"summary" env:"AWARD_SUMMARY_FILE" env-default:"Awards_Summary.xlsx"`
	RawSource string `yaml:"raw_source" env:"AWARD_RAW_SOURCE_FILE" env-default:"Raw_Source.xlsx"`
}

type StartupConfig struct {
	// InitTemplates creates a header-only summary workbook when none exists.
	InitTemplates bool `yaml:"init_templates" env:"AWARD_INIT_TEMPLATES"`
	// SeedFromSummary creates an empty record for every summary student.
	SeedFromSummary bool `yaml:"seed_from_summary" env:"AWARD_SEED_FROM_SUMMARY"`
}

// TracingConfig is off by default. With no endpoint, spans go to stderr.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" env:"OTEL_ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
	SampleRatio float64 `yaml:"sample_ratio" env:"OTEL_SAMPLER_RATIO"`
}

// LoadConfig reads path (when non-empty) with environment overrides, or the
// environment alone, then resolves file paths against DataDir.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.resolvePaths()
	return cfg, nil
}

// DefaultConfig mirrors the env-default tags.
func DefaultConfig() *Config {
	return &Config{
		DataDir: ".",
		Log:     LogConfig{Mode: "development", Level: "info"},
		HTTP:    HTTPConfig{Addr: "127.0.0.1:8080", ShutdownGraceSeconds: 10},
		Files: FilesConfig{
			Records:   "Student_Awards.xlsx",
			Database:  "student.db",
			Summary:   "Awards_Summary.xlsx",
			RawSource: "Raw_Source.xlsx",
		},
		Startup: StartupConfig{InitTemplates: true, SeedFromSummary: true},
		Tracing: TracingConfig{SampleRatio: 1},
	}
}

// WriteDefaultConfig writes the default configuration as YAML. It refuses
// to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	b, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Log.Mode) {
	case "development", "production", "test":
	default:
		return fmt.Errorf("log.mode %q must be development or production", c.Log.Mode)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}
	if c.HTTP.ShutdownGraceSeconds < 0 {
		return fmt.Errorf("http.shutdown_grace_seconds must not be negative")
	}
	for name, v := range map[string]string{
		"files.records":  c.Files.Records,
		"files.database": c.Files.Database,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s must be set", name)
		}
	}
	if ext := strings.ToLower(filepath.Ext(c.Files.Records)); ext != ".xlsx" {
		return fmt.Errorf("files.records must be an .xlsx file, got %q", c.Files.Records)
	}
	return nil
}

func (c *Config) resolvePaths() {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.DataDir, p)
	}
	c.Files.Records = resolve(c.Files.Records)
	c.Files.Database = resolve(c.Files.Database)
	c.Files.Summary = resolve(c.Files.Summary)
	c.Files.RawSource = resolve(c.Files.RawSource)
}
