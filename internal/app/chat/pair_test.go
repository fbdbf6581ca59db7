package chat

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuschat/internal/app/user"
	"campuschat/internal/pkg/errs"
)

func matchedPair(t *testing.T, m *Manager, a, b *Channel) *PairSession {
	t.Helper()
	require.NoError(t, m.RequestRandom(a))
	p, err := m.Queue().Enqueue(b)
	require.NoError(t, err)
	require.NotNil(t, p)
	drain(t, a)
	drain(t, b)
	return p
}

func TestPairReconnectScenario(t *testing.T) {
	m := newTestManager(t, Options{})

	xSubject := user.Subject{ID: "10", Alias: "Anon70"}
	ySubject := user.Subject{ID: "20", Alias: "Anon140"}

	// Both drop their previous channels, reconnect, and ask for a partner, X first.
	m.Release(m.Connect(xSubject))
	m.Release(m.Connect(ySubject))

	x := m.Connect(xSubject)
	y := m.Connect(ySubject)

	require.NoError(t, m.RequestRandom(x))
	assert.Equal(t, []string{"waiting"}, typesOf(drain(t, x)))
	require.NoError(t, m.RequestRandom(y))

	evX, evY := drain(t, x), drain(t, y)
	require.Len(t, evX, 1)
	require.Len(t, evY, 1)
	assert.Equal(t, "matched", evX[0]["type"])
	assert.Equal(t, evX[0]["room_id"], evY[0]["room_id"])

	require.NoError(t, m.Post(x, "hi"))

	gotY := drain(t, y)
	require.Len(t, gotY, 1)
	assert.Equal(t, "message", gotY[0]["type"])
	assert.Equal(t, 1.0, gotY[0]["id"])
	assert.Equal(t, "Anon70", gotY[0]["sender"])
	assert.Equal(t, "hi", gotY[0]["message"])
	assert.Equal(t, false, gotY[0]["is_mine"])
	assert.Equal(t, "10", gotY[0]["user_id"])

	gotX := drain(t, x)
	require.Len(t, gotX, 1)
	assert.Equal(t, "hi", gotX[0]["message"])
	assert.Equal(t, true, gotX[0]["is_mine"])
}

func TestPairLeaveNotifiesPartnerOnce(t *testing.T) {
	m := newTestManager(t, Options{})

	a := m.Connect(subject("a"))
	b := m.Connect(subject("b"))
	p := matchedPair(t, m, a, b)

	assert.True(t, p.Leave(a))
	assert.False(t, p.Leave(a))
	assert.False(t, p.Leave(b))
	m.Release(a)

	assert.Equal(t, PairClosed, p.State())
	assert.Nil(t, m.Pair(p.ID))
	assert.Zero(t, m.OpenPairs())
	assert.Equal(t, []string{"partner_left"}, typesOf(drain(t, b)))

	// The remaining channel stays open but the session is gone for good.
	assert.Equal(t, StateJoined, b.State())
	assert.True(t, errs.Is(m.Post(b, "anyone?"), errs.ErrSessionClosed))
	assert.True(t, errs.Is(m.RequestRandom(b), errs.ErrAlreadyJoined))
	assert.Empty(t, drain(t, b))
}

func TestPairChannelLossClosesSession(t *testing.T) {
	m := newTestManager(t, Options{})

	a := m.Connect(subject("a"))
	b := m.Connect(subject("b"))
	p := matchedPair(t, m, a, b)

	m.Release(b)
	m.Release(b)

	assert.Equal(t, PairClosed, p.State())
	assert.Equal(t, []string{"partner_left"}, typesOf(drain(t, a)))
	_, ok := m.Registry().Lookup(b.ID)
	assert.False(t, ok)
}

func TestPairPostRespectsBlocks(t *testing.T) {
	blocks := newBlockSet()
	m := newTestManager(t, Options{Filter: blocks})

	a := m.Connect(subject("a"))
	b := m.Connect(subject("b"))
	matchedPair(t, m, a, b)

	blocks.block("b", "a")

	require.NoError(t, m.Post(a, "hello?"))
	assert.Len(t, drain(t, a), 1)
	assert.Empty(t, drain(t, b))

	require.NoError(t, m.Post(b, "still here"))
	got := drain(t, a)
	require.Len(t, got, 1)
	assert.Equal(t, "still here", got[0]["message"])
	assert.Equal(t, 2.0, got[0]["id"])
}

func TestPairMessagesNeverPrecedeMatched(t *testing.T) {
	m := newTestManager(t, Options{})

	for i := range 50 {
		a := m.Connect(subject("a"))
		b := m.Connect(subject("b"))
		require.NoError(t, m.RequestRandom(a))
		drain(t, a)

		done := make(chan struct{})
		go func() {
			defer close(done)
			deadline := time.Now().Add(time.Second)
			for a.Pair() == nil && time.Now().Before(deadline) {
			}
			_ = m.Post(a, "fast")
		}()

		require.NoError(t, m.RequestRandom(b))
		<-done

		ev := drain(t, b)
		require.NotEmpty(t, ev, "iteration %d", i)
		assert.Equal(t, "matched", ev[0]["type"], "iteration %d", i)

		m.Release(a)
		m.Release(b)
	}
}

func TestManagerPostRouting(t *testing.T) {
	m := newTestManager(t, Options{})
	globalRoom(m)

	idle := m.Connect(subject("idle"))
	assert.True(t, errs.Is(m.Post(idle, "hi"), errs.ErrNotJoined))

	waiting := m.Connect(subject("w"))
	require.NoError(t, m.RequestRandom(waiting))
	assert.True(t, errs.Is(m.Post(waiting, "hi"), errs.ErrNotMatched))

	assert.True(t, errs.Is(m.JoinRoom(idle, 404), errs.ErrRoomNotFound))
	assert.True(t, errs.Is(m.JoinRoom(waiting, 1), errs.ErrAlreadyJoined))

	require.NoError(t, m.JoinRoom(idle, 1))
	assert.True(t, errs.Is(m.RequestRandom(idle), errs.ErrAlreadyJoined))
	require.NoError(t, m.Post(idle, "hi"))

	m.Release(idle)
	assert.True(t, errs.Is(m.Post(idle, "hi"), errs.ErrChannelLost))
	assert.Zero(t, m.Room(1).OnlineCount())
}

// orderSink flags pair messages and closings recorded before the pair was opened.
type orderSink struct {
	mu     sync.Mutex
	opened map[RoomID]bool
	early  int
}

func (s *orderSink) MessagePosted(msg ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Pair && !s.opened[msg.RoomID] {
		s.early++
	}
}

func (s *orderSink) PairOpened(rec PairRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened[rec.ID] = true
}

func (s *orderSink) PairClosed(id RoomID, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened[id] {
		s.early++
	}
}

func TestPairOpenedRecordedBeforeFirstMessage(t *testing.T) {
	sink := &orderSink{opened: make(map[RoomID]bool)}
	m := newTestManager(t, Options{History: sink})

	for i := range 500 {
		a := m.Connect(subject(fmt.Sprintf("a%d", i)))
		b := m.Connect(subject(fmt.Sprintf("b%d", i)))
		require.NoError(t, m.RequestRandom(a))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for a.Pair() == nil {
				runtime.Gosched()
			}
			_ = m.Post(a, "hi")
			m.Release(a)
		}()

		require.NoError(t, m.RequestRandom(b))
		<-done
		m.Release(b)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.opened, 500)
	assert.Zero(t, sink.early)
}
