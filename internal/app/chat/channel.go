package chat

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"campuschat/internal/app/user"
	"campuschat/internal/pkg/errs"
)

// ChannelState is the gateway state of one live connection.
type ChannelState int

const (
	StateConnecting ChannelState = iota
	StateWaiting
	StateJoined
	StateClosed
)

func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateWaiting:
		return "waiting"
	case StateJoined:
		return "joined"
	default:
		return "closed"
	}
}

var errBufferFull = errors.New("send buffer full")

// Channel is one live bidirectional connection of a subject.
// Every field below mu is guarded by it; the outbound buffer is closed exactly once, under mu.
type Channel struct {
	ID      string
	Subject user.Subject

	mu       sync.Mutex
	state    ChannelState
	room     *Room
	pair     *PairSession
	released bool
	send     chan []byte
	done     chan struct{}

	logger zerolog.Logger
}

func newChannel(id string, subject user.Subject, bufferSize int, logger zerolog.Logger) *Channel {
	return &Channel{
		ID:      id,
		Subject: subject,
		state:   StateConnecting,
		send:    make(chan []byte, bufferSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Outbound returns the buffered frames waiting to be written. It is closed when the channel closes.
func (c *Channel) Outbound() <-chan []byte {
	return c.send
}

// Done is closed when the channel closes.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// State returns the current gateway state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Room returns the durable room the channel is joined to, if any.
func (c *Channel) Room() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Pair returns the pair session the channel was matched into, if any. It stays set after the pair closes.
func (c *Channel) Pair() *PairSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pair
}

// enqueue never blocks: it fails with ErrChannelLost once closed and errBufferFull when the buffer is full.
func (c *Channel) enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enqueueLocked(frame)
}

func (c *Channel) enqueueLocked(frame []byte) error {
	if c.state == StateClosed {
		return errs.NewError(errs.ErrChannelLost)
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return errBufferFull
	}
}

// close reports whether this call performed the transition to StateClosed.
func (c *Channel) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return false
	}

	c.state = StateClosed
	close(c.send)
	close(c.done)
	return true
}

// markReleased reports whether the caller is the first to release the channel.
func (c *Channel) markReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return false
	}
	c.released = true
	return true
}

func (c *Channel) attachRoom(r *Room) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == StateClosed:
		return errs.NewError(errs.ErrChannelLost)
	case c.room == r:
		return nil
	case c.room != nil || c.pair != nil || c.state == StateWaiting:
		return errs.NewError(errs.ErrAlreadyJoined)
	}

	c.room = r
	c.state = StateJoined
	return nil
}

func (c *Channel) detachRoom(r *Room) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room != r {
		return
	}
	c.room = nil
	if c.state != StateClosed {
		c.state = StateConnecting
	}
}

func (c *Channel) markWaiting() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == StateClosed:
		return errs.NewError(errs.ErrChannelLost)
	case c.state == StateWaiting:
		return errs.NewError(errs.ErrAlreadyWaiting)
	case c.room != nil || c.pair != nil:
		return errs.NewError(errs.ErrAlreadyJoined)
	}

	c.state = StateWaiting
	return nil
}

func (c *Channel) unmarkWaiting() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateWaiting {
		c.state = StateConnecting
	}
}

// bindPair moves two waiting channels into p and queues the matched event for both while
// holding both channel locks, so no pair message can overtake the announcement.
// It returns the channel that turned out to be closed, or nil on success; evict lists channels whose buffer was full.
func bindPair(p *PairSession, a, b *Channel, frame []byte) (lost *Channel, evict []*Channel) {
	first, second := a, b
	if second.ID < first.ID {
		first, second = second, first
	}

	first.mu.Lock()
	second.mu.Lock()
	defer first.mu.Unlock()
	defer second.mu.Unlock()

	if b.state == StateClosed {
		return b, nil
	}
	if a.state == StateClosed {
		return a, nil
	}

	for _, c := range []*Channel{a, b} {
		c.pair = p
		c.state = StateJoined
		if err := c.enqueueLocked(frame); errors.Is(err, errBufferFull) {
			evict = append(evict, c)
		}
	}

	return nil, evict
}
