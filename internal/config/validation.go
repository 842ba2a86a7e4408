// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/threadwarden/internal/directive"
	"github.com/ManuGH/threadwarden/internal/resilience"
	"github.com/ManuGH/threadwarden/internal/schedule"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks everything the daemon needs, including credentials.
func Validate(cfg AppConfig) error {
	var errs []error
	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is required"))
	}
	if cfg.Discord.PrivateThreadID == "" {
		errs = append(errs, errors.New("PRIVATE_THREAD_ID is required"))
	}
	if cfg.Discord.GuildID == "" {
		errs = append(errs, errors.New("GUILD_ID is required"))
	}
	if cfg.Discord.SubmissionChannelID == "" {
		errs = append(errs, errors.New("SUBMISSION_CHANNEL_ID is required"))
	}
	errs = append(errs, operationalErrors(cfg)...)
	return joinInvalid(errs)
}

// ValidateOffline checks everything except the Discord credentials.
func ValidateOffline(cfg AppConfig) error {
	return joinInvalid(operationalErrors(cfg))
}

func operationalErrors(cfg AppConfig) []error {
	var errs []error

	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", cfg.HTTP.Port))
	}
	if cfg.HTTP.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("HTTP_RATE_LIMIT must not be negative, got %d", cfg.HTTP.RateLimit))
	}

	if strings.TrimSpace(cfg.ChangeList.Path) == "" {
		errs = append(errs, errors.New("CHANGELIST_PATH is required"))
	}
	if err := directive.ValidateLayout(cfg.ChangeList.DateLayout); err != nil {
		errs = append(errs, fmt.Errorf("CHANGELIST_DATE_LAYOUT: %w", err))
	}

	if _, err := schedule.ParseSpec(cfg.Reconcile.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("RECONCILE_SCHEDULE: %w", err))
	}
	if _, err := cfg.Location(); err != nil {
		errs = append(errs, fmt.Errorf("RECONCILE_TIMEZONE: %w", err))
	}
	if cfg.Reconcile.Rate < 0 {
		errs = append(errs, fmt.Errorf("RECONCILE_RATE must not be negative, got %v", cfg.Reconcile.Rate))
	}
	if cfg.Reconcile.Burst <= 0 {
		errs = append(errs, fmt.Errorf("RECONCILE_BURST must be positive, got %d", cfg.Reconcile.Burst))
	}
	if cfg.Reconcile.CallTimeout < 0 {
		errs = append(errs, fmt.Errorf("RECONCILE_CALL_TIMEOUT must not be negative, got %s", cfg.Reconcile.CallTimeout))
	}

	if err := cfg.ReconnectPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("RECONNECT_*: %w", err))
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be json or console", cfg.Log.Format))
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case "grpc", "http":
		default:
			errs = append(errs, fmt.Errorf("TRACING_EXPORTER %q must be grpc or http", cfg.Tracing.Exporter))
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, errors.New("TRACING_ENDPOINT is required when tracing is enabled"))
		}
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("TRACING_SAMPLE_RATE %v must be within [0, 1]", cfg.Tracing.SampleRate))
		}
	}
	return errs
}

// ReconnectPolicy converts the reconnect settings.
func (c AppConfig) ReconnectPolicy() resilience.Policy {
	return resilience.Policy{
		BaseDelay:   c.Reconnect.BaseDelay,
		MaxDelay:    c.Reconnect.MaxDelay,
		MaxAttempts: c.Reconnect.MaxAttempts,
	}
}

func joinInvalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
