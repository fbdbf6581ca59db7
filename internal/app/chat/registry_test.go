package chat

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuschat/internal/pkg/metrics"
)

func TestRegistryRegisterUnregister(t *testing.T) {
	m := metrics.New(nil)
	r := NewRegistry(4, nil, m)

	a1 := r.Register(subject("1"))
	a2 := r.Register(subject("1"))
	b := r.Register(subject("2"))

	assert.NotEqual(t, a1.ID, a2.ID)
	assert.Equal(t, 3, r.Len())
	assert.Len(t, r.ChannelsOf("1"), 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Channels))

	r.Unregister(a1.ID)
	r.Unregister(a1.ID)

	_, ok := r.Lookup(a1.ID)
	assert.False(t, ok)
	assert.Equal(t, StateClosed, a1.State())
	assert.Len(t, r.ChannelsOf("1"), 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Channels))

	r.Unregister(a2.ID)
	assert.Empty(t, r.ChannelsOf("1"))
	assert.Equal(t, StateConnecting, b.State())
}

func TestRegistrySendToGoneChannel(t *testing.T) {
	r := NewRegistry(4, nil, nil)

	assert.False(t, r.Send("missing", []byte(`{}`)))

	ch := r.Register(subject("1"))
	assert.True(t, r.Send(ch.ID, []byte(`{"type":"waiting"}`)))

	ch.close()
	assert.False(t, r.Send(ch.ID, []byte(`{}`)))
}

func TestRegistryBroadcastFiltersBlockedSenders(t *testing.T) {
	blocks := newBlockSet()
	blocks.block("3", "2")
	m := metrics.New(nil)
	r := NewRegistry(4, blocks, m)

	c1 := r.Register(subject("1"))
	c2 := r.Register(subject("2"))
	c3 := r.Register(subject("3"))
	ids := []string{c1.ID, c2.ID, c3.ID, "vanished"}

	delivered, suppressed := r.Broadcast(ids, []byte(`{"type":"message"}`), "2", "")
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 1, suppressed)

	assert.Len(t, drain(t, c1), 1)
	assert.Len(t, drain(t, c2), 1)
	assert.Empty(t, drain(t, c3))

	delivered, suppressed = r.Broadcast(ids, []byte(`{"type":"system"}`), "", c1.ID)
	assert.Equal(t, 2, delivered)
	assert.Zero(t, suppressed)
	assert.Empty(t, drain(t, c1))
	assert.Len(t, drain(t, c3), 1)
}

func TestRegistryEvictsSlowConsumer(t *testing.T) {
	m := metrics.New(nil)
	r := NewRegistry(2, nil, m)

	evicted := make(chan *Channel, 1)
	r.SetEvictHook(func(ch *Channel) { evicted <- ch })

	slow := r.Register(subject("1"))
	fast := r.Register(subject("2"))

	for range 3 {
		r.Broadcast([]string{slow.ID, fast.ID}, []byte(`{}`), "", "")
		drain(t, fast)
	}

	select {
	case ch := <-evicted:
		assert.Same(t, slow, ch)
	case <-time.After(time.Second):
		t.Fatal("evict hook not called")
	}

	assert.Equal(t, StateClosed, slow.State())
	assert.Equal(t, StateConnecting, fast.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evictions))

	// Buffered frames remain readable after eviction.
	assert.Len(t, drain(t, slow), 2)
	_, open := <-slow.Outbound()
	require.False(t, open)
}
