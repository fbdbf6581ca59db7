/*
Package history persists chat traffic asynchronously.

The Recorder implements chat.HistorySink: sessions hand it events inside their critical
sections, and a single worker writes them to the Store in the order they were handed over.
When the buffer is full, events are dropped and logged rather than stalling a room.
*/
package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"campuschat/internal/app/chat"
	"campuschat/internal/pkg/logx"
)

// writeTimeout bounds a single store write.
const writeTimeout = 5 * time.Second

// Store is the persistent side of the history.
type Store interface {
	InsertMessage(ctx context.Context, msg chat.ChatMessage) error
	InsertPairRoom(ctx context.Context, rec chat.PairRecord) error
	ClosePairRoom(ctx context.Context, id chat.RoomID, at time.Time) error
}

type entryKind int

const (
	entryMessage entryKind = iota
	entryPairOpened
	entryPairClosed
)

type entry struct {
	kind entryKind
	msg  chat.ChatMessage
	pair chat.PairRecord
	id   chat.RoomID
	at   time.Time
}

// Recorder is an ordered, bounded, asynchronous writer.
type Recorder struct {
	store Store

	// mu guards closed against concurrent sends on entries.
	mu      sync.RWMutex
	closed  bool
	entries chan entry

	dropped atomic.Int64
	wg      sync.WaitGroup

	logger zerolog.Logger
}

// NewRecorder starts a Recorder that buffers up to size pending events.
func NewRecorder(store Store, size int) *Recorder {
	if size <= 0 {
		size = 1
	}

	r := &Recorder{
		store:   store,
		entries: make(chan entry, size),
		logger:  logx.Component("HistoryRecorder"),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

func (r *Recorder) MessagePosted(msg chat.ChatMessage) {
	r.push(entry{kind: entryMessage, msg: msg})
}

func (r *Recorder) PairOpened(rec chat.PairRecord) {
	r.push(entry{kind: entryPairOpened, pair: rec})
}

func (r *Recorder) PairClosed(id chat.RoomID, at time.Time) {
	r.push(entry{kind: entryPairClosed, id: id, at: at})
}

func (r *Recorder) push(e entry) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	select {
	case r.entries <- e:
	default:
		r.logger.Warn().Int("kind", int(e.kind)).Int64("dropped", r.dropped.Add(1)).Msg("History buffer full, event dropped.")
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for e := range r.entries {
		r.write(e)
	}
}

func (r *Recorder) write(e entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch e.kind {
	case entryMessage:
		err = r.store.InsertMessage(ctx, e.msg)
	case entryPairOpened:
		err = r.store.InsertPairRoom(ctx, e.pair)
	case entryPairClosed:
		err = r.store.ClosePairRoom(ctx, e.id, e.at)
	}

	if err != nil {
		r.logger.Error().Err(err).Int("kind", int(e.kind)).Msg("Failed to persist history event.")
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting events and waits until the buffered ones are written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.entries)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info().Msg("History recorder stopped.")
}
