package logx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"203.0.113.77:5555", "203.0.113.0"},
		{"203.0.113.77", "203.0.113.0"},
		{"127.0.0.1:80", "127.0.0.1"},
		{"[2001:db8:85a3::8a2e:370:7334]:443", "2001:db8:85a3::"},
		{"not-an-ip", "unknown_ip"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AnonymizeIP(tt.in), tt.in)
	}
}

func TestComponentAddsFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(&bytes.Buffer{})

	logger := Component("registry", "channel_id", "c-1")
	logger.Warn().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "registry", entry["component"])
	assert.Equal(t, "c-1", entry["channel_id"])
}

func TestRequestLoggerOmitsQuery(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(&bytes.Buffer{})

	h := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws/random?token=secret", nil)
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, `"upgrade":true`)
	assert.Contains(t, out, `"status":418`)
}
