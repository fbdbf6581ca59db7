/*
Package chat contains the core logic of the anonymous chat coordinator.

This file defines the Room struct, a durable chat room. Membership changes and
message appends are serialized by the room's own mutex, so independent rooms never
contend, while fan-out only places frames in recipient buffers and never waits on them.
*/
package chat

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"campuschat/internal/pkg/errs"
	"campuschat/internal/pkg/logx"
)

const (
	joinedText = "A new participant joined."
	leftText   = "A participant left."
)

// Room struct represents a single durable chat room.
type Room struct {
	ID          RoomID
	Name        string
	Description string
	Kind        RoomKind
	CreatedAt   time.Time

	// mu serializes join, leave and post.
	mu sync.Mutex

	// member channel ids; the Registry owns the channels.
	members map[string]struct{}

	// lastID is the id of the most recently appended message.
	lastID int64

	maxContentBytes int

	registry *Registry
	history  HistorySink
	presence PresenceSink
	m        *Manager

	logger zerolog.Logger
}

func newRoom(info RoomInfo, m *Manager) *Room {
	return &Room{
		ID:              info.ID,
		Name:            info.Name,
		Description:     info.Description,
		Kind:            info.Kind,
		CreatedAt:       info.CreatedAt,
		members:         make(map[string]struct{}),
		lastID:          info.LastMessageID,
		maxContentBytes: m.opts.MaxContentBytes,
		registry:        m.registry,
		history:         m.opts.History,
		presence:        m.opts.Presence,
		m:               m,
		logger:          logx.Component("Room", "room_id", int64(info.ID)),
	}
}

// Join adds ch to the room and sends the new online count to every member.
// Joining a room the channel is already in is a no-op.
func (r *Room) Join(ch *Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ch.attachRoom(r); err != nil {
		return err
	}

	if _, ok := r.members[ch.ID]; ok {
		return nil
	}

	r.members[ch.ID] = struct{}{}
	r.logger.Info().
		Str("channel_id", ch.ID).
		Str("subject_id", ch.Subject.ID).
		Int("online_count", len(r.members)).
		Msg("Channel joined room.")

	r.announceLocked(joinedText)
	return nil
}

// Leave removes ch and re-announces the online count. It never fails.
func (r *Room) Leave(ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch.detachRoom(r)

	if _, ok := r.members[ch.ID]; !ok {
		return
	}

	delete(r.members, ch.ID)
	r.logger.Info().
		Str("channel_id", ch.ID).
		Int("online_count", len(r.members)).
		Msg("Channel left room.")

	r.announceLocked(leftText)
}

func (r *Room) announceLocked(text string) {
	count := len(r.members)
	frame := mustMarshal(SystemEvent{Type: TypeSystem, OnlineCount: count, Message: text})

	r.registry.Broadcast(r.memberIDsLocked(), frame, "", "")
	r.presence.PublishOnline(r.ID, count)
}

// Post appends a message from ch and fans it out to every member, the sender included,
// except recipients who blocked the sender.
func (r *Room) Post(ch *Channel, body string) (ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return ChatMessage{}, errs.NewError(errs.ErrEmptyBody)
	}
	if len(body) > r.maxContentBytes {
		return ChatMessage{}, errs.NewError(errs.ErrMessageContentTooLong)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[ch.ID]; !ok {
		return ChatMessage{}, errs.NewError(errs.ErrNotJoined)
	}

	r.lastID++
	msg := ChatMessage{
		ID:          r.lastID,
		RoomID:      r.ID,
		SenderID:    ch.Subject.ID,
		SenderAlias: ch.Subject.Alias,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}

	frame := mustMarshal(MessageEvent{
		Type:      TypeMessage,
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.SenderID,
		Sender:    msg.SenderAlias,
		Message:   msg.Body,
		CreatedAt: msg.CreatedAt,
	})

	delivered, suppressed := r.registry.Broadcast(r.memberIDsLocked(), frame, msg.SenderID, "")
	r.m.countDelivery("room", delivered, suppressed)
	r.history.MessagePosted(msg)

	return msg, nil
}

// OnlineCount returns the number of member channels.
func (r *Room) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// LastMessageID returns the id of the last appended message.
func (r *Room) LastMessageID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastID
}

// HasMember reports whether channelID is currently a member.
func (r *Room) HasMember(channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[channelID]
	return ok
}

func (r *Room) memberIDsLocked() []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
