// Package config loads the coordinator's runtime configuration from
// defaults, an optional .env file, and COORDINATOR_* environment variables,
// in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	GenAI   GenAIConfig
	SMTP    SMTPConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port     int    `validate:"min=1,max=65535"`
	APIToken string // empty disables bearer auth
}

type StorageConfig struct {
	DataDir string `validate:"required"`
}

type GenAIConfig struct {
	APIKey string // empty disables the chat assistant
	Model  string
}

// SMTPConfig is all-or-nothing: with Host empty email sending is disabled
// and sends are logged instead.
type SMTPConfig struct {
	Host     string
	Port     string
	From     string `validate:"omitempty,email"`
	Password string
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 4000},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		GenAI:   GenAIConfig{Model: "gemini-2.0-flash"},
		SMTP:    SMTPConfig{Port: "587"},
		Log:     LogConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".coordinator")
	}
	return "."
}

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{env: "COORDINATOR_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) }},
	{env: "COORDINATOR_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) }},
	{env: "COORDINATOR_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) }},
	{env: "COORDINATOR_GEMINI_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.GenAI.APIKey = v.(string) }},
	{env: "COORDINATOR_GEMINI_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.GenAI.Model = v.(string) }},
	{env: "COORDINATOR_SMTP_HOST", typ: kString,
		apply: func(cfg *Config, v any) { cfg.SMTP.Host = v.(string) }},
	{env: "COORDINATOR_SMTP_PORT", typ: kString,
		apply: func(cfg *Config, v any) { cfg.SMTP.Port = v.(string) }},
	{env: "COORDINATOR_SMTP_FROM", typ: kString,
		apply: func(cfg *Config, v any) { cfg.SMTP.From = v.(string) }},
	{env: "COORDINATOR_SMTP_PASSWORD", typ: kString,
		apply: func(cfg *Config, v any) { cfg.SMTP.Password = v.(string) }},
	{env: "COORDINATOR_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) }},
}

// Load reads configuration. A .env file in the working directory is applied
// first when present; real environment variables win over it.
func Load() (Config, error) {
	_ = godotenv.Load() // missing .env is fine
	return loadFromEnv()
}

func loadFromEnv() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.SMTP.Host != "" && cfg.SMTP.From == "" {
		return Config{}, fmt.Errorf("invalid configuration: COORDINATOR_SMTP_FROM is required when COORDINATOR_SMTP_HOST is set")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
