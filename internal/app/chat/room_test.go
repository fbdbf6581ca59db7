package chat

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuschat/internal/pkg/errs"
	"campuschat/internal/pkg/metrics"
)

func globalRoom(m *Manager) *Room {
	return m.AddRoom(RoomInfo{ID: 1, Name: "Campus", Kind: KindGlobal})
}

func TestRoomJoinAnnouncesOnlineCount(t *testing.T) {
	m := newTestManager(t, Options{})
	room := globalRoom(m)

	a := m.Connect(subject("1"))
	b := m.Connect(subject("2"))

	require.NoError(t, room.Join(a))
	require.NoError(t, room.Join(b))

	evA := drain(t, a)
	require.Len(t, evA, 2)
	assert.Equal(t, "system", evA[0]["type"])
	assert.Equal(t, 1.0, evA[0]["online_count"])
	assert.Equal(t, 2.0, evA[1]["online_count"])

	evB := drain(t, b)
	require.Len(t, evB, 1)
	assert.Equal(t, 2.0, evB[0]["online_count"])
	assert.Equal(t, joinedText, evB[0]["message"])

	// Joining again is a no-op.
	require.NoError(t, room.Join(b))
	assert.Empty(t, drain(t, b))
	assert.Equal(t, 2, room.OnlineCount())

	room.Leave(b)
	room.Leave(b)
	evA = drain(t, a)
	require.Len(t, evA, 1)
	assert.Equal(t, 1.0, evA[0]["online_count"])
	assert.Equal(t, leftText, evA[0]["message"])
	assert.Nil(t, b.Room())
}

func TestRoomOnlineCountCountsChannels(t *testing.T) {
	m := newTestManager(t, Options{})
	room := globalRoom(m)

	tab1 := m.Connect(subject("1"))
	tab2 := m.Connect(subject("1"))
	other := m.Connect(subject("2"))

	for _, ch := range []*Channel{tab1, tab2, other} {
		require.NoError(t, room.Join(ch))
	}

	assert.Equal(t, 3, room.OnlineCount())

	ev := drain(t, other)
	require.Len(t, ev, 1)
	assert.Equal(t, 3.0, ev[0]["online_count"])
}

func TestRoomJoinRejectsBoundChannels(t *testing.T) {
	m := newTestManager(t, Options{})
	room := globalRoom(m)
	second := m.AddRoom(RoomInfo{ID: 2, Name: "Algorithms", Kind: KindSubject})

	ch := m.Connect(subject("1"))
	require.NoError(t, room.Join(ch))

	err := second.Join(ch)
	assert.True(t, errs.Is(err, errs.ErrAlreadyJoined))

	closed := m.Connect(subject("2"))
	m.Release(closed)
	assert.True(t, errs.Is(room.Join(closed), errs.ErrChannelLost))
	assert.Equal(t, 1, room.OnlineCount())
}

func TestRoomPostValidation(t *testing.T) {
	m := newTestManager(t, Options{MaxContentBytes: 10})
	room := globalRoom(m)

	member := m.Connect(subject("1"))
	outsider := m.Connect(subject("2"))
	require.NoError(t, room.Join(member))
	drain(t, member)

	tests := []struct {
		name string
		ch   *Channel
		body string
		code int
	}{
		{"blank", member, "  \n\t ", errs.ErrEmptyBody},
		{"too long", member, strings.Repeat("x", 11), errs.ErrMessageContentTooLong},
		{"not a member", outsider, "hello", errs.ErrNotJoined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := room.Post(tt.ch, tt.body)
			assert.True(t, errs.Is(err, tt.code), "got %v", err)
		})
	}

	assert.Empty(t, drain(t, member))
	assert.Zero(t, room.LastMessageID())

	msg, err := room.Post(member, "  padded  ")
	require.NoError(t, err)
	assert.Equal(t, "padded", msg.Body)
	assert.Equal(t, int64(1), msg.ID)
}

func TestRoomBlockedSenderScenario(t *testing.T) {
	blocks := newBlockSet()
	reg := metrics.New(nil)
	m := newTestManager(t, Options{Filter: blocks, Metrics: reg})
	room := globalRoom(m)

	m1 := m.Connect(subject("1"))
	m2 := m.Connect(subject("2"))
	m3 := m.Connect(subject("3"))
	for _, ch := range []*Channel{m1, m2, m3} {
		require.NoError(t, room.Join(ch))
	}
	for _, ch := range []*Channel{m1, m2, m3} {
		drain(t, ch)
	}

	blocks.block("3", "2")

	_, err := room.Post(m2, "spam")
	require.NoError(t, err)

	got1 := messagesOf(drain(t, m1))
	require.Len(t, got1, 1)
	assert.Equal(t, "spam", got1[0]["message"])
	assert.Equal(t, "Anon2", got1[0]["sender"])
	assert.Equal(t, "2", got1[0]["user_id"])
	assert.Nil(t, got1[0]["is_mine"])

	echo := messagesOf(drain(t, m2))
	require.Len(t, echo, 1)
	assert.Equal(t, "spam", echo[0]["message"])

	assert.Empty(t, drain(t, m3))

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Delivered.WithLabelValues("room")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Suppressed))

	// Member 3 still receives the next online count update.
	m.Release(m1)
	ev := drain(t, m3)
	require.Len(t, ev, 1)
	assert.Equal(t, "system", ev[0]["type"])
	assert.Equal(t, 2.0, ev[0]["online_count"])
}

func TestRoomConcurrentPostersKeepIDsMonotonic(t *testing.T) {
	const posters, perPoster = 8, 25

	m := newTestManager(t, Options{SendBufferSize: posters*perPoster + posters + 8})
	room := m.AddRoom(RoomInfo{ID: 7, Name: "Busy", Kind: KindGlobal, LastMessageID: 100})

	observer := m.Connect(subject("observer"))
	require.NoError(t, room.Join(observer))

	channels := make([]*Channel, posters)
	for i := range channels {
		channels[i] = m.Connect(subject(string(rune('a' + i))))
		require.NoError(t, room.Join(channels[i]))
	}

	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch *Channel) {
			defer wg.Done()
			for range perPoster {
				_, err := room.Post(ch, "tick")
				assert.NoError(t, err)
			}
		}(ch)
	}
	wg.Wait()

	msgs := messagesOf(drain(t, observer))
	require.Len(t, msgs, posters*perPoster)

	prev := 100.0
	for _, msg := range msgs {
		id := msg["id"].(float64)
		assert.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, int64(100+posters*perPoster), room.LastMessageID())
}

func TestRoomEvictsSlowMemberAndReannounces(t *testing.T) {
	m := newTestManager(t, Options{SendBufferSize: 2})
	room := globalRoom(m)

	slow := m.Connect(subject("1"))
	fast := m.Connect(subject("2"))
	require.NoError(t, m.JoinRoom(slow, room.ID))
	require.NoError(t, m.JoinRoom(fast, room.ID))
	drain(t, fast)

	// slow holds two unread system events, so the next frame overflows it.
	require.NoError(t, m.Post(fast, "hello"))

	require.Eventually(t, func() bool {
		return room.OnlineCount() == 1 && m.Registry().Len() == 1
	}, time.Second, 5*time.Millisecond)

	events := drain(t, fast)
	require.Equal(t, []string{"message", "system"}, typesOf(events))
	assert.Equal(t, 1.0, events[1]["online_count"])
	assert.Equal(t, StateClosed, slow.State())
	assert.False(t, room.HasMember(slow.ID))
}
