package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"campuschat/internal/pkg/errs"
	"campuschat/internal/pkg/logx"
)

// PairState is the lifecycle of a PairSession. It only moves from Open to Closed.
type PairState int

const (
	PairOpen PairState = iota
	PairClosed
)

// PairSession is an ephemeral room holding exactly two channels.
// It closes the moment either member leaves and is never reopened.
type PairSession struct {
	ID        RoomID
	CreatedAt time.Time

	mu      sync.Mutex
	state   PairState
	members [2]*Channel
	lastID  int64

	m      *Manager
	logger zerolog.Logger
}

func newPairSession(id RoomID, a, b *Channel, m *Manager) *PairSession {
	return &PairSession{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		members:   [2]*Channel{a, b},
		m:         m,
		logger:    logx.Component("PairSession", "room_id", int64(id)),
	}
}

// State returns the current lifecycle state.
func (p *PairSession) State() PairState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Members returns the two member channels, earliest waiter first.
func (p *PairSession) Members() [2]*Channel {
	return p.members
}

func (p *PairSession) partnerOf(ch *Channel) (*Channel, bool) {
	switch ch {
	case p.members[0]:
		return p.members[1], true
	case p.members[1]:
		return p.members[0], true
	}
	return nil, false
}

// Post appends a message from ch. The sender receives an echo with is_mine=true and the
// partner receives it with is_mine=false unless it blocked the sender.
func (p *PairSession) Post(ch *Channel, body string) (ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return ChatMessage{}, errs.NewError(errs.ErrEmptyBody)
	}
	if len(body) > p.m.opts.MaxContentBytes {
		return ChatMessage{}, errs.NewError(errs.ErrMessageContentTooLong)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == PairClosed {
		return ChatMessage{}, errs.NewError(errs.ErrSessionClosed)
	}

	partner, ok := p.partnerOf(ch)
	if !ok {
		return ChatMessage{}, errs.NewError(errs.ErrNotMatched)
	}

	p.lastID++
	msg := ChatMessage{
		ID:          p.lastID,
		RoomID:      p.ID,
		Pair:        true,
		SenderID:    ch.Subject.ID,
		SenderAlias: ch.Subject.Alias,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}

	mine, theirs := true, false
	event := MessageEvent{
		Type:      TypeMessage,
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.SenderID,
		Sender:    msg.SenderAlias,
		Message:   msg.Body,
		CreatedAt: msg.CreatedAt,
	}

	event.IsMine = &mine
	p.m.registry.Send(ch.ID, mustMarshal(event))

	delivered, suppressed := 0, 0
	if p.m.opts.Filter.Blocks(partner.Subject.ID, ch.Subject.ID) {
		suppressed = 1
	} else {
		event.IsMine = &theirs
		if p.m.registry.Send(partner.ID, mustMarshal(event)) {
			delivered = 1
		}
	}

	p.m.countDelivery("pair", delivered, suppressed)
	p.m.opts.History.MessagePosted(msg)

	return msg, nil
}

// Leave closes the session on behalf of ch. The other member receives partner_left
// exactly once. It reports whether this call closed the session.
func (p *PairSession) Leave(ch *Channel) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == PairClosed {
		return false
	}

	partner, ok := p.partnerOf(ch)
	if !ok {
		return false
	}

	p.state = PairClosed
	closedAt := time.Now().UTC()

	p.m.registry.Send(partner.ID, partnerLeftFrame)
	p.m.opts.History.PairClosed(p.ID, closedAt)
	p.m.destroyPair(p.ID)

	p.logger.Info().
		Str("leaver_channel_id", ch.ID).
		Str("partner_channel_id", partner.ID).
		Dur("lifetime", closedAt.Sub(p.CreatedAt)).
		Msg("Pair session closed.")

	return true
}
