// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads threadwarden's configuration with the precedence
// environment > YAML file > defaults. A .env file, if present, seeds the
// environment without overriding variables that are already set.
package config

import (
	"fmt"
	"strconv"
	"time"
)

// AppConfig is the fully resolved configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Discord    DiscordConfig    `yaml:"discord"`
	HTTP       HTTPConfig       `yaml:"http"`
	ChangeList ChangeListConfig `yaml:"changelist"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Reconnect  ReconnectConfig  `yaml:"reconnect"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// DiscordConfig holds the transport credential and the three fixed handles.
type DiscordConfig struct {
	Token               string `yaml:"token"`
	SubmissionChannelID string `yaml:"submissionChannelId"`
	PrivateThreadID     string `yaml:"privateThreadId"`
	GuildID             string `yaml:"guildId"`
}

// HTTPConfig controls the liveness / health / metrics listener.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// RateLimit is requests per minute per client IP; zero disables limiting.
	RateLimit int `yaml:"rateLimit"`
}

// ChangeListConfig locates and describes the change list.
type ChangeListConfig struct {
	Path       string `yaml:"path"`
	DateLayout string `yaml:"dateLayout"`
	Watch      bool   `yaml:"watch"`
}

// ReconcileConfig controls the daily run.
type ReconcileConfig struct {
	Schedule    string        `yaml:"schedule"`
	Timezone    string        `yaml:"timezone"`
	Rate        float64       `yaml:"rate"`
	Burst       int           `yaml:"burst"`
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// ReconnectConfig bounds the gateway supervisor.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"baseDelay"`
	MaxDelay    time.Duration `yaml:"maxDelay"`
	MaxAttempts int           `yaml:"maxAttempts"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Service string `yaml:"service"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Exporter   string  `yaml:"exporter"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() AppConfig {
	return AppConfig{
		HTTP: HTTPConfig{
			Port:      3000,
			RateLimit: 120,
		},
		ChangeList: ChangeListConfig{
			Path:       "./members.csv",
			DateLayout: "2006-01-02",
			Watch:      true,
		},
		Reconcile: ReconcileConfig{
			Schedule:    "1 0 * * *",
			Timezone:    "America/Los_Angeles",
			Rate:        5,
			Burst:       5,
			CallTimeout: 15 * time.Second,
		},
		Reconnect: ReconnectConfig{
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			MaxAttempts: 10,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "json",
			Service: "threadwarden",
		},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{
			Exporter:   "grpc",
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
	}
}

// ListenAddr is the HTTP listen address.
func (c AppConfig) ListenAddr() string {
	return ":" + strconv.Itoa(c.HTTP.Port)
}

// Location resolves the reconciliation timezone.
func (c AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Reconcile.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Reconcile.Timezone, err)
	}
	return loc, nil
}
