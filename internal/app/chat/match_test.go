package chat

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuschat/internal/pkg/errs"
	"campuschat/internal/pkg/metrics"
)

func TestMatchQueueWaitsThenPairs(t *testing.T) {
	reg := metrics.New(nil)
	m := newTestManager(t, Options{Metrics: reg})

	x := m.Connect(subject("x"))
	y := m.Connect(subject("y"))

	p, err := m.Queue().Enqueue(x)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, StateWaiting, x.State())
	assert.Equal(t, []string{"waiting"}, typesOf(drain(t, x)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.WaitingTicket))

	p, err = m.Queue().Enqueue(y)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, [2]*Channel{x, y}, p.Members())
	assert.Equal(t, StateJoined, x.State())
	assert.Same(t, p, x.Pair())
	assert.Same(t, p, y.Pair())
	assert.Zero(t, m.Queue().Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.WaitingTicket))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.OpenPairs))
	assert.Same(t, p, m.Pair(p.ID))

	for _, ch := range []*Channel{x, y} {
		ev := drain(t, ch)
		require.Len(t, ev, 1)
		assert.Equal(t, "matched", ev[0]["type"])
		assert.Equal(t, float64(p.ID), ev[0]["room_id"])
	}
}

func TestMatchQueueRejectsSecondTicket(t *testing.T) {
	m := newTestManager(t, Options{})

	tab1 := m.Connect(subject("x"))
	tab2 := m.Connect(subject("x"))

	require.NoError(t, m.RequestRandom(tab1))

	assert.True(t, errs.Is(m.RequestRandom(tab1), errs.ErrAlreadyWaiting))
	assert.True(t, errs.Is(m.RequestRandom(tab2), errs.ErrAlreadyWaiting))
	assert.Equal(t, 1, m.Queue().Len())
	assert.Equal(t, StateConnecting, tab2.State())
}

func TestMatchQueueCancel(t *testing.T) {
	m := newTestManager(t, Options{})

	x := m.Connect(subject("x"))
	other := m.Connect(subject("x"))
	require.NoError(t, m.RequestRandom(x))
	drain(t, x)

	assert.False(t, m.Queue().Cancel(other))
	assert.True(t, m.Queue().Cancel(x))
	assert.False(t, m.Queue().Cancel(x))
	assert.Zero(t, m.Queue().Len())
	assert.Equal(t, StateConnecting, x.State())
	assert.Empty(t, drain(t, x))

	// A fresh request starts a new ticket.
	require.NoError(t, m.RequestRandom(x))
	assert.Equal(t, 1, m.Queue().Len())
}

func TestMatchQueueSkipsDeadTickets(t *testing.T) {
	m := newTestManager(t, Options{})

	dead := m.Connect(subject("dead"))
	require.NoError(t, m.RequestRandom(dead))
	dead.close()

	alive := m.Connect(subject("alive"))
	p, err := m.Queue().Enqueue(alive)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, 1, m.Queue().Len())

	// The dead subject may queue again from a new channel.
	again := m.Connect(subject("dead"))
	p, err = m.Queue().Enqueue(again)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, [2]*Channel{alive, again}, p.Members())
}

func TestMatchQueueSweep(t *testing.T) {
	m := newTestManager(t, Options{MaxWait: time.Minute})

	dead := m.Connect(subject("dead"))
	old := m.Connect(subject("old"))
	require.NoError(t, m.RequestRandom(dead))
	dead.close()

	m.Queue().now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	require.NoError(t, m.RequestRandom(old))
	m.Queue().now = time.Now

	fresh := m.Connect(subject("fresh"))
	_, err := m.Queue().Enqueue(fresh)
	require.NoError(t, err)
	require.NotNil(t, fresh.Pair(), "fresh pairs with old")

	lonely := m.Connect(subject("lonely"))
	m.Queue().now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	require.NoError(t, m.RequestRandom(lonely))
	m.Queue().now = time.Now
	drain(t, lonely)

	m.sweep(time.Now())

	assert.Zero(t, m.Queue().Len())
	assert.Equal(t, StateClosed, lonely.State())

	ev := drain(t, lonely)
	require.Len(t, ev, 1)
	assert.Equal(t, "error", ev[0]["type"])
	assert.Equal(t, float64(errs.ErrMatchTimeout), ev[0]["code"])
}

func TestMatchQueueConcurrentPairing(t *testing.T) {
	const n = 101

	m := newTestManager(t, Options{})

	channels := make([]*Channel, n)
	for i := range channels {
		channels[i] = m.Connect(subject(fmt.Sprintf("s%03d", i)))
	}

	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch *Channel) {
			defer wg.Done()
			assert.NoError(t, m.RequestRandom(ch))
		}(ch)
	}
	wg.Wait()

	assert.Equal(t, 1, m.Queue().Len())
	assert.Equal(t, n/2, m.OpenPairs())

	seen := make(map[*PairSession]int)
	unpaired := 0
	for _, ch := range channels {
		p := ch.Pair()
		if p == nil {
			unpaired++
			assert.Equal(t, StateWaiting, ch.State())
			continue
		}
		seen[p]++
		members := p.Members()
		assert.NotEqual(t, members[0].Subject.ID, members[1].Subject.ID)
	}

	assert.Equal(t, 1, unpaired)
	assert.Len(t, seen, n/2)
	for _, count := range seen {
		assert.Equal(t, 2, count)
	}
}

func TestMatchQueuePairIDsResume(t *testing.T) {
	m := newTestManager(t, Options{LastPairID: 41})

	a := m.Connect(subject("a"))
	b := m.Connect(subject("b"))
	require.NoError(t, m.RequestRandom(a))
	p, err := m.Queue().Enqueue(b)
	require.NoError(t, err)
	assert.Equal(t, RoomID(42), p.ID)
}
