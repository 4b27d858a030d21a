package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shakram02/go-chatdb/internal/config"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chatdb.log")

	logger, closeFn, err := New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("connected", zap.String("store", "sqlite"))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, `"msg":"connected"`)
	assert.Contains(t, content, `"store":"sqlite"`)
	assert.NotContains(t, content, "hidden")
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{"level", config.LoggingConfig{Level: "loud", Format: "console", Output: "stderr"}},
		{"format", config.LoggingConfig{Level: "info", Format: "xml", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	logger := zap.NewExample()
	assert.Same(t, logger, OrNop(logger))
}
