package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRoot(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CHATDB_COLOR", "false")
	t.Setenv("CHATDB_SPINNER", "false")

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandRunsSession(t *testing.T) {
	out, err := executeRoot(t, "0\n")
	require.NoError(t, err)
	assert.Contains(t, out, "--- ChatDB Main Menu ---")
	assert.True(t, strings.HasSuffix(out, "Exiting ChatDB. Have a good day :)\n"))
	assert.Equal(t, ExitSuccess, GetExitCode(err))
}

func TestRootCommandRejectsArguments(t *testing.T) {
	_, err := executeRoot(t, "", "mysql://localhost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommandRejectsInvalidConfig(t *testing.T) {
	t.Setenv("CHATDB_MATCH_CUTOFF", "1.5")

	_, err := executeRoot(t, "0\n")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "match cutoff")
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped exit error", WrapExitError(ExitFailure, "session failed", errors.New("eof")), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetExitCode(tt.err))
		})
	}

	err := WrapExitError(ExitFailure, "session failed", errors.New("broken pipe"))
	assert.Equal(t, "session failed: broken pipe", err.Error())
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())
}
