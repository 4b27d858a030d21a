package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewf(t *testing.T) {
	err := Newf(ErrTypeMapping, "could not map field %q", "revenue")

	assert.Equal(t, ErrTypeMapping, err.Type)
	assert.Equal(t, `could not map field "revenue"`, err.Message)
	assert.NoError(t, err.Cause)
}

func TestWrapf(t *testing.T) {
	original := errors.New("connection refused")
	wrapped := Wrapf(original, ErrTypeConnection, "failed to reach %s:%d", "localhost", 3306)

	assert.Equal(t, ErrTypeConnection, wrapped.Type)
	assert.Equal(t, "failed to reach localhost:3306", wrapped.Message)
	assert.ErrorIs(t, wrapped, original)
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(ErrTypeParse, "unparsable condition"),
			expected: "parse: unparsable condition",
		},
		{
			name:     "error with cause",
			err:      Wrap(errors.New("no such table: x"), ErrTypeExecution, "query failed"),
			expected: "execution: query failed (caused by: no such table: x)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestIsTypeAndGetType(t *testing.T) {
	err := fmt.Errorf("session: %w", New(ErrTypeEmptySchema, "nothing here"))

	assert.True(t, IsType(err, ErrTypeEmptySchema))
	assert.False(t, IsType(err, ErrTypeConnection))
	assert.Equal(t, ErrTypeEmptySchema, GetType(err))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
}

func TestSuggestionsWalkChain(t *testing.T) {
	inner := New(ErrTypeFileSystem, "missing file").WithSuggestion("Check the path")
	outer := Wrap(inner, ErrTypeExecution, "upload failed").WithSuggestion("Retry the upload")

	assert.Equal(t, []string{"Retry the upload", "Check the path"}, Suggestions(outer))
	assert.Empty(t, Suggestions(errors.New("plain")))
}

func TestConstructors(t *testing.T) {
	conn := NewConnectionError("MySQL", errors.New("timeout"))
	assert.Equal(t, ErrTypeConnection, conn.Type)
	assert.Contains(t, conn.Error(), "could not connect to MySQL")
	assert.NotEmpty(t, conn.Suggestions)

	empty := NewEmptySchemaError("MongoDB")
	assert.Equal(t, ErrTypeEmptySchema, empty.Type)
	assert.Contains(t, empty.Message, "MongoDB")
}
