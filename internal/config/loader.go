// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	envFile    string
	version    string

	// Offline skips the Discord credential checks for commands that never
	// touch the network.
	Offline bool

	// ConsumedEnvKeys records every environment key the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. configPath may be empty; envFile defaults to
// ".env" in the working directory.
func NewLoader(configPath, envFile, version string) *Loader {
	if envFile == "" {
		envFile = ".env"
	}
	return &Loader{
		configPath:      configPath,
		envFile:         envFile,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, current string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, current)
}

func (l *Loader) envBool(key string, current bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, current)
}

func (l *Loader) envInt(key string, current int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, current)
}

func (l *Loader) envFloat(key string, current float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, current)
}

func (l *Loader) envDuration(key string, current time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, current)
}

// Load resolves defaults, then the YAML file, then the environment, and
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load %s: %w", l.envFile, err)
	}

	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	validate := Validate
	if l.Offline {
		validate = ValidateOffline
	}
	if err := validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file on top of cfg. Unknown fields and multiple
// documents are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Discord.Token = l.envString("DISCORD_TOKEN", cfg.Discord.Token)
	cfg.Discord.SubmissionChannelID = l.envString("SUBMISSION_CHANNEL_ID", cfg.Discord.SubmissionChannelID)
	cfg.Discord.PrivateThreadID = l.envString("PRIVATE_THREAD_ID", cfg.Discord.PrivateThreadID)
	cfg.Discord.GuildID = l.envString("GUILD_ID", cfg.Discord.GuildID)

	cfg.HTTP.Port = l.envInt("PORT", cfg.HTTP.Port)
	cfg.HTTP.RateLimit = l.envInt("HTTP_RATE_LIMIT", cfg.HTTP.RateLimit)

	cfg.ChangeList.Path = l.envString("CHANGELIST_PATH", cfg.ChangeList.Path)
	cfg.ChangeList.DateLayout = l.envString("CHANGELIST_DATE_LAYOUT", cfg.ChangeList.DateLayout)
	cfg.ChangeList.Watch = l.envBool("CHANGELIST_WATCH", cfg.ChangeList.Watch)

	cfg.Reconcile.Schedule = l.envString("RECONCILE_SCHEDULE", cfg.Reconcile.Schedule)
	cfg.Reconcile.Timezone = l.envString("RECONCILE_TIMEZONE", cfg.Reconcile.Timezone)
	cfg.Reconcile.Rate = l.envFloat("RECONCILE_RATE", cfg.Reconcile.Rate)
	cfg.Reconcile.Burst = l.envInt("RECONCILE_BURST", cfg.Reconcile.Burst)
	cfg.Reconcile.CallTimeout = l.envDuration("RECONCILE_CALL_TIMEOUT", cfg.Reconcile.CallTimeout)

	cfg.Reconnect.BaseDelay = l.envDuration("RECONNECT_BASE_DELAY", cfg.Reconnect.BaseDelay)
	cfg.Reconnect.MaxDelay = l.envDuration("RECONNECT_MAX_DELAY", cfg.Reconnect.MaxDelay)
	cfg.Reconnect.MaxAttempts = l.envInt("RECONNECT_MAX_ATTEMPTS", cfg.Reconnect.MaxAttempts)

	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = l.envString("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)

	cfg.Metrics.Enabled = l.envBool("METRICS_ENABLED", cfg.Metrics.Enabled)

	cfg.Tracing.Enabled = l.envBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString("TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SampleRate = l.envFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)
}
