package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuschat/internal/pkg/errs"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Command
		wantErr bool
	}{
		{name: "message", frame: `{"type":"message","message":"hi"}`, want: Command{Type: TypeMessage, Body: "hi"}},
		{name: "message keeps whitespace", frame: `{"type":"message","message":"  hi "}`, want: Command{Type: TypeMessage, Body: "  hi "}},
		{name: "blank body is well formed", frame: `{"type":"message","message":"   "}`, want: Command{Type: TypeMessage, Body: "   "}},
		{name: "disconnect", frame: ` {"type":"disconnect"}`, want: Command{Type: TypeDisconnect}},
		{name: "not json", frame: `hello`, wantErr: true},
		{name: "array", frame: `[1,2]`, wantErr: true},
		{name: "truncated", frame: `{"type":"message"`, wantErr: true},
		{name: "missing type", frame: `{"message":"hi"}`, wantErr: true},
		{name: "numeric type", frame: `{"type":3}`, wantErr: true},
		{name: "unknown type", frame: `{"type":"typing"}`, wantErr: true},
		{name: "missing body", frame: `{"type":"message"}`, wantErr: true},
		{name: "numeric body", frame: `{"type":"message","message":42}`, wantErr: true},
		{name: "null body", frame: `{"type":"message","message":null}`, wantErr: true},
		{name: "empty frame", frame: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.frame))
			if tt.wantErr {
				require.NotNil(t, err)
				assert.Equal(t, errs.ErrProtocol, err.Code)
				assert.NotContains(t, err.Message, "%")
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorFrame(t *testing.T) {
	frame := errorFrame(errs.NewError(errs.ErrAlreadyWaiting))
	assert.JSONEq(t, `{"type":"error","code":2301,"message":"You are already waiting for a match. Cancel first."}`, string(frame))
}
