/*
Package chat contains the core logic of the anonymous chat coordinator.

This file defines the Manager struct, which serves as the central coordinator for the entire chat system.
It owns the Registry, the durable rooms, the MatchQueue and the open pair sessions, and routes
gateway commands to them. Its background loop sweeps abandoned match tickets.
*/
package chat

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"campuschat/internal/app/user"
	"campuschat/internal/pkg/errs"
	"campuschat/internal/pkg/logx"
	"campuschat/internal/pkg/metrics"
)

const (
	// DefaultSendBufferSize bounds each channel's outbound buffer.
	DefaultSendBufferSize = 256

	// DefaultMaxContentBytes bounds a trimmed message body.
	DefaultMaxContentBytes = 2000

	// DefaultSweepInterval is how often abandoned tickets are collected.
	DefaultSweepInterval = 30 * time.Second
)

var errPartnerLost = errors.New("waiting partner closed during pairing")

// Options configures a Manager. Zero values fall back to defaults and no-op collaborators.
type Options struct {
	SendBufferSize  int
	MaxContentBytes int

	Filter   BlockChecker
	History  HistorySink
	Presence PresenceSink
	Metrics  *metrics.Metrics

	// SweepInterval is the ticket sweep period.
	SweepInterval time.Duration

	// MaxWait expires waiting tickets when positive.
	MaxWait time.Duration

	// LastPairID resumes the pair room id counter.
	LastPairID RoomID
}

// Manager struct is responsible for coordinating rooms, matching and pair sessions.
type Manager struct {
	opts     Options
	registry *Registry
	queue    *MatchQueue
	metrics  *metrics.Metrics

	// roomsMu protects the durable room catalog.
	roomsMu sync.RWMutex
	rooms   map[RoomID]*Room

	// pairMu protects pairs and lastPairID.
	// Lock order: MatchQueue.mu, PairSession.mu, Channel.mu, then pairMu.
	pairMu     sync.Mutex
	pairs      map[RoomID]*PairSession
	lastPairID RoomID

	// stop terminates the sweep loop; wg waits for it during shutdown.
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// structured logger with Manager context.
	logger zerolog.Logger
}

// NewManager constructs and returns a new Manager instance and starts its sweep loop.
func NewManager(opts Options) *Manager {
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = DefaultSendBufferSize
	}
	if opts.MaxContentBytes <= 0 {
		opts.MaxContentBytes = DefaultMaxContentBytes
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Filter == nil {
		opts.Filter = noBlocks{}
	}
	if opts.History == nil {
		opts.History = nopHistory{}
	}
	if opts.Presence == nil {
		opts.Presence = nopPresence{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}

	m := &Manager{
		opts:       opts,
		metrics:    opts.Metrics,
		rooms:      make(map[RoomID]*Room),
		pairs:      make(map[RoomID]*PairSession),
		lastPairID: opts.LastPairID,
		stop:       make(chan struct{}),
		logger:     logx.Component("Manager"),
	}

	m.registry = NewRegistry(opts.SendBufferSize, opts.Filter, opts.Metrics)
	m.registry.SetEvictHook(m.Release)
	m.queue = newMatchQueue(m)

	m.wg.Add(1)

	go m.runSweepLoop()

	return m
}

// Registry returns the connection registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Queue returns the match queue.
func (m *Manager) Queue() *MatchQueue {
	return m.queue
}

// AddRoom registers a durable room. Adding an existing id returns the existing room.
func (m *Manager) AddRoom(info RoomInfo) *Room {
	m.roomsMu.Lock()
	defer m.roomsMu.Unlock()

	if room, ok := m.rooms[info.ID]; ok {
		return room
	}

	room := newRoom(info, m)
	m.rooms[info.ID] = room

	m.logger.Info().
		Int64("room_id", int64(info.ID)).
		Str("kind", string(info.Kind)).
		Int64("last_message_id", info.LastMessageID).
		Msg("Durable room added.")

	return room
}

// Room retrieves a durable room by id, or nil.
func (m *Manager) Room(id RoomID) *Room {
	m.roomsMu.RLock()
	defer m.roomsMu.RUnlock()
	return m.rooms[id]
}

// Rooms returns every durable room ordered by id.
func (m *Manager) Rooms() []*Room {
	m.roomsMu.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		out = append(out, room)
	}
	m.roomsMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pair retrieves an open pair session by id. Closed sessions are gone.
func (m *Manager) Pair(id RoomID) *PairSession {
	m.pairMu.Lock()
	defer m.pairMu.Unlock()
	return m.pairs[id]
}

// OpenPairs returns the number of open pair sessions.
func (m *Manager) OpenPairs() int {
	m.pairMu.Lock()
	defer m.pairMu.Unlock()
	return len(m.pairs)
}

// Connect registers a new channel for an authenticated subject.
func (m *Manager) Connect(subject user.Subject) *Channel {
	return m.registry.Register(subject)
}

// JoinRoom binds ch to the durable room id.
func (m *Manager) JoinRoom(ch *Channel, id RoomID) error {
	room := m.Room(id)
	if room == nil {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	return room.Join(ch)
}

// RequestRandom enters ch into the match queue.
func (m *Manager) RequestRandom(ch *Channel) error {
	_, err := m.queue.Enqueue(ch)
	return err
}

// openPair is called by the MatchQueue with its lock held. a is the earlier waiter.
func (m *Manager) openPair(a, b *Channel) (*PairSession, error) {
	m.pairMu.Lock()
	id := m.lastPairID + 1
	p := newPairSession(id, a, b, m)
	m.pairMu.Unlock()

	frame := mustMarshal(MatchedEvent{Type: TypeMatched, RoomID: id})

	// p.mu is held until the pair is recorded, so neither member can post or leave
	// before PairOpened reaches the history sink.
	p.mu.Lock()
	defer p.mu.Unlock()

	lost, slow := bindPair(p, a, b, frame)
	switch lost {
	case a:
		return nil, errPartnerLost
	case b:
		return nil, errs.NewError(errs.ErrChannelLost)
	}

	m.pairMu.Lock()
	m.lastPairID = id
	m.pairs[id] = p
	m.pairMu.Unlock()

	m.metrics.OpenPairs.Inc()
	m.metrics.PairsCreated.Inc()
	m.opts.History.PairOpened(PairRecord{
		ID:        id,
		FirstID:   a.Subject.ID,
		SecondID:  b.Subject.ID,
		CreatedAt: p.CreatedAt,
	})

	p.logger.Info().
		Str("first_channel_id", a.ID).
		Str("second_channel_id", b.ID).
		Msg("Pair session opened.")

	for _, ch := range slow {
		m.registry.Evict(ch)
	}

	return p, nil
}

// destroyPair is called by PairSession.Leave with the session lock held.
func (m *Manager) destroyPair(id RoomID) {
	m.pairMu.Lock()
	defer m.pairMu.Unlock()

	if _, ok := m.pairs[id]; ok {
		delete(m.pairs, id)
		m.metrics.OpenPairs.Dec()
	}
}

// Post routes a message command according to the channel's state.
func (m *Manager) Post(ch *Channel, body string) error {
	switch ch.State() {
	case StateClosed:
		return errs.NewError(errs.ErrChannelLost)
	case StateWaiting:
		return errs.NewError(errs.ErrNotMatched)
	}

	if room := ch.Room(); room != nil {
		_, err := room.Post(ch, body)
		return err
	}

	if p := ch.Pair(); p != nil {
		_, err := p.Post(ch, body)
		return err
	}

	return errs.NewError(errs.ErrNotJoined)
}

// Leave handles an explicit disconnect command: the channel leaves its session and is released.
func (m *Manager) Leave(ch *Channel) {
	m.Release(ch)
}

// Release tears a channel down: it is closed, its ticket is cancelled, its room or pair
// is left, and it is unregistered. Safe to call any number of times from any goroutine.
func (m *Manager) Release(ch *Channel) {
	if !ch.markReleased() {
		return
	}

	// Closing first makes any in-flight join or pairing fail on this channel.
	ch.close()

	m.queue.Cancel(ch)

	if room := ch.Room(); room != nil {
		room.Leave(ch)
	}

	if p := ch.Pair(); p != nil {
		p.Leave(ch)
	}

	m.registry.Unregister(ch.ID)

	ch.logger.Info().Msg("Channel released.")
}

// SendError queues an error event to ch only.
func (m *Manager) SendError(ch *Channel, err error) {
	m.registry.deliver(ch, errorFrame(err))
}

func (m *Manager) countDelivery(kind string, delivered, suppressed int) {
	if delivered > 0 {
		m.metrics.Delivered.WithLabelValues(kind).Add(float64(delivered))
	}
	if suppressed > 0 {
		m.metrics.Suppressed.Add(float64(suppressed))
	}
}

// runSweepLoop periodically drops dead tickets and expires tickets older than MaxWait.
func (m *Manager) runSweepLoop() {
	defer m.wg.Done()

	m.logger.Info().Dur("interval", m.opts.SweepInterval).Msg("Sweep loop started.")

	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.sweep(now)
		case <-m.stop:
			m.logger.Info().Msg("Sweep loop stopped.")
			return
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	dead, expired := m.queue.Sweep(now, m.opts.MaxWait)

	for _, ch := range expired {
		m.SendError(ch, errs.NewError(errs.ErrMatchTimeout))
		m.Release(ch)
	}

	if dead > 0 || len(expired) > 0 {
		m.logger.Info().
			Int("dead", dead).
			Int("expired", len(expired)).
			Msg("Match queue sweep finished.")
	}
}

// Shutdown stops the sweep loop and releases every channel.
func (m *Manager) Shutdown() {
	m.logger.Info().Msg("Shutting down Manager...")

	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()

	for _, ch := range m.registry.CloseAll() {
		m.Release(ch)
	}

	m.logger.Info().Msg("Manager shutdown complete.")
}
