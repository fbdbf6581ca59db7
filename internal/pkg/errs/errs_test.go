package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		details    []any
		wantCode   int
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "known code keeps its status",
			code:       ErrRoomNotFound,
			wantCode:   ErrRoomNotFound,
			wantStatus: http.StatusNotFound,
			wantMsg:    "Chat room not found.",
		},
		{
			name:       "missing status defaults to 200",
			code:       ErrAlreadyWaiting,
			wantCode:   ErrAlreadyWaiting,
			wantStatus: http.StatusOK,
			wantMsg:    "You are already waiting for a match. Cancel first.",
		},
		{
			name:       "placeholder is formatted",
			code:       ErrProtocol,
			details:    []any{"unknown type"},
			wantCode:   ErrProtocol,
			wantStatus: http.StatusOK,
			wantMsg:    "Malformed frame: unknown type.",
		},
		{
			name:       "unknown code falls back",
			code:       4242,
			wantCode:   ErrUnknown,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Something went wrong. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewError(tt.code, tt.details...)
			require.NotNil(t, err)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantStatus, err.Status)
			assert.Equal(t, tt.wantMsg, err.Message)
		})
	}
}

func TestNewErrorDoesNotMutateTemplate(t *testing.T) {
	_ = NewError(ErrProtocol, "first")
	second := NewError(ErrProtocol, "second")
	assert.Equal(t, "Malformed frame: second.", second.Message)
}

func TestIsAndCode(t *testing.T) {
	var err error = NewError(ErrAlreadyWaiting)

	assert.True(t, Is(err, ErrAlreadyWaiting))
	assert.False(t, Is(err, ErrEmptyBody))
	assert.False(t, Is(nil, ErrAlreadyWaiting))
	assert.True(t, errors.Is(err, NewError(ErrAlreadyWaiting)))

	wrapped := fmt.Errorf("enqueue: %w", err)
	assert.Equal(t, ErrAlreadyWaiting, Code(wrapped))
	assert.Equal(t, ErrUnknown, Code(errors.New("plain")))
}

func TestFrom(t *testing.T) {
	original := NewError(ErrEmptyBody)
	assert.Same(t, original, From(original))
	assert.Equal(t, ErrUnknown, From(errors.New("boom")).Code)
}
