package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RAVAN_DOTENV", "off")
	for _, key := range []string{"RAVAN_LLM_TIMEOUT", "RAVAN_WORKERS", "RAVAN_TASK_MAX_ATTEMPTS", "RAVAN_STORE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, time.Duration(0), cfg.LLMTimeout, "no LM timeout by default")
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 1, cfg.TaskMaxAttempts)
	assert.Equal(t, StoreSurrealDB, cfg.Store)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RAVAN_DOTENV", "off")
	t.Setenv("RAVAN_LLM_TIMEOUT", "45s")
	t.Setenv("RAVAN_WORKERS", "9")
	t.Setenv("RAVAN_STORE", "SQLite")
	t.Setenv("RAVAN_LLM_PROVIDER", "Gemini")

	cfg := Load()

	assert.Equal(t, 45*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 9, cfg.Workers)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("RAVAN_WORKERS", "many")
	t.Setenv("RAVAN_RATE_WINDOW", "soon")

	assert.Equal(t, 4, getInt("RAVAN_WORKERS", 4))
	assert.Equal(t, time.Minute, getDuration("RAVAN_RATE_WINDOW", time.Minute))
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	content := "RAVAN_TEST_FROM_FILE=file\nRAVAN_TEST_PRESET=file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0600))

	t.Setenv("RAVAN_TEST_PRESET", "env")
	t.Setenv("RAVAN_TEST_FROM_FILE", "")
	os.Unsetenv("RAVAN_TEST_FROM_FILE")

	loadDotEnv(dir)

	assert.Equal(t, "file", os.Getenv("RAVAN_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("RAVAN_TEST_PRESET"))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("consolidated", "user_id", "u1")
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "consolidated")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "u1", entry["user_id"])
}
