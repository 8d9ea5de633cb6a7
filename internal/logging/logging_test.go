package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "k", "v")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "postgres://app@db:5432/tokens", RedactURL("postgres://app:s3cret@db:5432/tokens"))
	assert.Equal(t, "redis://redacted@cache:6379/0", RedactURL("redis://:s3cret@cache:6379/0"))
	assert.Equal(t, "", RedactURL(""))
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://app:s3cret@db:5432/tokens"
	err := errors.New("connect " + dsn + " failed: password=s3cret rejected")

	got := SanitizeError(err, dsn)

	assert.NotContains(t, got, "s3cret")
	assert.Contains(t, got, "postgres://app@db:5432/tokens")
	assert.Contains(t, got, "password=redacted")
	assert.Equal(t, "", SanitizeError(nil))
}
