// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "token-from-env")
	t.Setenv("SUBMISSION_CHANNEL_ID", "100")
	t.Setenv("PRIVATE_THREAD_ID", "200")
	t.Setenv("GUILD_ID", "300")
}

func TestLoader_DefaultsAndEnv(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()

	cfg, err := NewLoader("", filepath.Join(dir, "missing.env"), "v1.2.3").Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "v1.2.3"
	want.Discord = DiscordConfig{
		Token:               "token-from-env",
		SubmissionChannelID: "100",
		PrivateThreadID:     "200",
		GuildID:             "300",
	}
	assert.Equal(t, want, cfg)
	assert.Equal(t, ":3000", cfg.ListenAddr())
}

func TestLoader_Precedence(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "threadwarden.yaml", `
http:
  port: 8080
changelist:
  path: /data/roster.csv
  dateLayout: "01/02/2006"
reconcile:
  timezone: Europe/Berlin
  callTimeout: 5s
reconnect:
  maxAttempts: 4
`)
	t.Setenv("PORT", "9090")
	t.Setenv("RECONNECT_BASE_DELAY", "250ms")

	l := NewLoader(path, filepath.Join(dir, "none.env"), "")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port, "env beats file")
	assert.Equal(t, "/data/roster.csv", cfg.ChangeList.Path, "file beats default")
	assert.Equal(t, "01/02/2006", cfg.ChangeList.DateLayout)
	assert.Equal(t, "Europe/Berlin", cfg.Reconcile.Timezone)
	assert.Equal(t, 5*time.Second, cfg.Reconcile.CallTimeout)
	assert.Equal(t, 4, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Reconnect.BaseDelay)
	assert.Equal(t, "1 0 * * *", cfg.Reconcile.Schedule, "default kept")
	assert.Contains(t, l.ConsumedEnvKeys, "DISCORD_TOKEN")
	assert.Contains(t, l.ConsumedEnvKeys, "RECONCILE_TIMEZONE")
}

func TestLoader_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "DISCORD_TOKEN=from-dotenv\nCHANGELIST_PATH=/from/dotenv.csv\n")

	// godotenv sets process variables; make sure they are cleared afterwards.
	t.Setenv("CHANGELIST_PATH", "")
	require.NoError(t, os.Unsetenv("CHANGELIST_PATH"))

	cfg, err := NewLoader("", envFile, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "token-from-env", cfg.Discord.Token)
	assert.Equal(t, "/from/dotenv.csv", cfg.ChangeList.Path)
}

func TestLoader_StrictFile(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unknown field", file: "a.yaml", content: "http:\n  prot: 1\n"},
		{name: "multiple documents", file: "b.yaml", content: "http:\n  port: 1\n---\nhttp:\n  port: 2\n"},
		{name: "not yaml extension", file: "c.json", content: "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			_, err := NewLoader(path, filepath.Join(dir, "none.env"), "").Load()
			assert.Error(t, err)
		})
	}
}

func TestLoader_EmptyFileKeepsDefaults(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.yaml", "")

	cfg, err := NewLoader(path, filepath.Join(dir, "none.env"), "").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Reconcile, cfg.Reconcile)
}

func TestLoader_OfflineSkipsCredentials(t *testing.T) {
	dir := t.TempDir()
	for _, key := range []string{"DISCORD_TOKEN", "SUBMISSION_CHANNEL_ID", "PRIVATE_THREAD_ID", "GUILD_ID"} {
		t.Setenv(key, "")
	}

	_, err := NewLoader("", filepath.Join(dir, "none.env"), "").Load()
	require.ErrorIs(t, err, ErrInvalidConfig)

	l := NewLoader("", filepath.Join(dir, "none.env"), "")
	l.Offline = true
	_, err = l.Load()
	assert.NoError(t, err)
}

func TestParseHelpers(t *testing.T) {
	t.Setenv("TW_INT", "42")
	t.Setenv("TW_BAD_INT", "forty-two")
	t.Setenv("TW_BOOL", "YES")
	t.Setenv("TW_DUR", "90s")
	t.Setenv("TW_FLOAT", "0.25")
	t.Setenv("TW_EMPTY", "")

	assert.Equal(t, 42, ParseInt("TW_INT", 1))
	assert.Equal(t, 1, ParseInt("TW_BAD_INT", 1))
	assert.Equal(t, 7, ParseInt("TW_EMPTY", 7))
	assert.True(t, ParseBool("TW_BOOL", false))
	assert.False(t, ParseBool("TW_MISSING_BOOL", false))
	assert.Equal(t, 90*time.Second, ParseDuration("TW_DUR", time.Second))
	assert.Equal(t, 0.25, ParseFloat("TW_FLOAT", 1))
	assert.Equal(t, "fallback", ParseString("TW_EMPTY", "fallback"))
	assert.Equal(t, "fallback", ParseString("TW_MISSING", "fallback"))
}
