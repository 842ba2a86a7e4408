// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/threadwarden/internal/log"
)

// ParseString reads a string from the environment or returns defaultValue.
// Sensitive keys are logged without their value.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	switch {
	case !exists:
		logger.Debug().
			Str("key", key).
			Str("source", "default").
			Msg("using default value")
		return defaultValue
	case value == "":
		logger.Debug().
			Str("key", key).
			Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return defaultValue
	case isSensitiveKey(key):
		logger.Debug().
			Str("key", key).
			Str("source", "environment").
			Bool("sensitive", true).
			Msg("using environment variable")
	default:
		logger.Debug().
			Str("key", key).
			Str("value", value).
			Str("source", "environment").
			Msg("using environment variable")
	}
	return value
}

// parseTyped covers the numeric and boolean helpers: empty or missing keys
// fall back to the default, unparsable values fall back with a warning.
func parseTyped[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().
			Str("key", key).
			Interface("default", defaultValue).
			Str("source", "default").
			Msg("using default value")
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Interface("default", defaultValue).
			Msg("invalid value in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Interface("value", parsed).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}

// ParseInt reads an integer from the environment or returns defaultValue.
func ParseInt(key string, defaultValue int) int {
	return parseTyped(key, defaultValue, strconv.Atoi)
}

// ParseFloat reads a float64 from the environment or returns defaultValue.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseTyped(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseDuration reads a Go duration (e.g. "5s") from the environment or
// returns defaultValue.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseTyped(key, defaultValue, time.ParseDuration)
}

// ParseBool accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseTyped(key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		default:
			return false, strconv.ErrSyntax
		}
	})
}
