package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, 2, cfg.Generator.SampleCount)
	assert.Equal(t, 1, cfg.Generator.DocumentSampleCount)
	assert.Equal(t, 2, cfg.Generator.ConstructCount)
	assert.Equal(t, 5, cfg.Generator.AttemptFactor)
	assert.Equal(t, int64(0), cfg.Generator.Seed)
	assert.InDelta(t, 0.6, cfg.Matcher.Cutoff, 1e-9)
	assert.Equal(t, MatchTokens, cfg.Matcher.RelationalMatch)
	assert.Equal(t, MatchSnake, cfg.Matcher.DocumentMatch)
	assert.Equal(t, "localhost", cfg.Connection.DefaultHost)
	assert.Equal(t, 10*time.Second, cfg.Connection.ConnectTimeout)
	assert.Equal(t, time.Duration(0), cfg.Connection.QueryTimeout)
	assert.Equal(t, 10, cfg.Connection.MaxOpenConns)
	assert.Equal(t, 5, cfg.Connection.MaxIdleConns)
	assert.Equal(t, 100, cfg.Connection.MaxRows)
	assert.True(t, cfg.Features.Upload)
	assert.True(t, cfg.Features.Drop)
	assert.True(t, cfg.Features.Constructs)
	assert.True(t, cfg.Features.NaturalLanguage)
	assert.True(t, cfg.Terminal.Color)
	assert.True(t, cfg.Terminal.Spinner)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"CHATDB_LOG_LEVEL":               "debug",
		"CHATDB_LOG_FORMAT":              "json",
		"CHATDB_SAMPLE_COUNT":            "4",
		"CHATDB_MATCH_CUTOFF":            "0.8",
		"CHATDB_DOCUMENT_FIELD_MATCH":    "tokens",
		"CHATDB_QUERY_TIMEOUT":           "30s",
		"CHATDB_FEATURE_UPLOAD":          "false",
		"CHATDB_COLOR":                   "false",
		"CHATDB_SEED":                    "42",
		"UNPREFIXED_SAMPLE_COUNT_IGNORE": "9",
	})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 4, cfg.Generator.SampleCount)
	assert.InDelta(t, 0.8, cfg.Matcher.Cutoff, 1e-9)
	assert.Equal(t, MatchTokens, cfg.Matcher.DocumentMatch)
	assert.Equal(t, 30*time.Second, cfg.Connection.QueryTimeout)
	assert.False(t, cfg.Features.Upload)
	assert.False(t, cfg.Terminal.Color)
	assert.Equal(t, int64(42), cfg.Generator.Seed)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"log level", map[string]string{"CHATDB_LOG_LEVEL": "verbose"}},
		{"log format", map[string]string{"CHATDB_LOG_FORMAT": "text"}},
		{"zero cap", map[string]string{"CHATDB_SAMPLE_COUNT": "0"}},
		{"zero factor", map[string]string{"CHATDB_ATTEMPT_FACTOR": "0"}},
		{"cutoff above one", map[string]string{"CHATDB_MATCH_CUTOFF": "1.5"}},
		{"zero cutoff", map[string]string{"CHATDB_MATCH_CUTOFF": "0"}},
		{"strategy", map[string]string{"CHATDB_RELATIONAL_FIELD_MATCH": "soundex"}},
		{"negative timeout", map[string]string{"CHATDB_QUERY_TIMEOUT": "-1s"}},
		{"not a number", map[string]string{"CHATDB_MAX_ROWS": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.env)
			assert.Error(t, err)
		})
	}
}
