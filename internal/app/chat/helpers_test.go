package chat

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"campuschat/internal/app/user"
	"campuschat/internal/pkg/logx"
)

func TestMain(m *testing.M) {
	logx.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// blockSet is a BlockChecker keyed by (recipient, sender).
type blockSet struct {
	mu    sync.RWMutex
	edges map[[2]string]bool
}

func newBlockSet() *blockSet {
	return &blockSet{edges: make(map[[2]string]bool)}
}

func (b *blockSet) block(recipient, sender string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edges[[2]string{recipient, sender}] = true
}

func (b *blockSet) Blocks(recipient, sender string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.edges[[2]string{recipient, sender}]
}

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m := NewManager(opts)
	t.Cleanup(m.Shutdown)
	return m
}

func subject(id string) user.Subject {
	return user.Subject{ID: id, Alias: "Anon" + id}
}

// drain returns every frame currently buffered on ch, decoded.
func drain(t *testing.T, ch *Channel) []map[string]any {
	t.Helper()

	var out []map[string]any
	for {
		select {
		case frame, ok := <-ch.Outbound():
			if !ok {
				return out
			}
			var ev map[string]any
			require.NoError(t, json.Unmarshal(frame, &ev))
			out = append(out, ev)
		default:
			return out
		}
	}
}

func typesOf(events []map[string]any) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev["type"].(string))
	}
	return out
}

func messagesOf(events []map[string]any) []map[string]any {
	var out []map[string]any
	for _, ev := range events {
		if ev["type"] == string(TypeMessage) {
			out = append(out, ev)
		}
	}
	return out
}
