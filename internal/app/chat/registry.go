package chat

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"campuschat/internal/app/user"
	"campuschat/internal/pkg/logx"
	"campuschat/internal/pkg/metrics"
	"campuschat/internal/pkg/randx"
)

// BlockChecker answers whether recipient has blocked sender.
// It is consulted on every delivery and must not block.
type BlockChecker interface {
	Blocks(recipientID, senderID string) bool
}

type noBlocks struct{}

func (noBlocks) Blocks(string, string) bool { return false }

// Registry owns every live Channel, indexed by channel id and by subject.
//
// Delivery never blocks: a frame is placed in the recipient's bounded buffer or,
// when that buffer is full, the recipient is evicted.
type Registry struct {
	mu        sync.RWMutex
	channels  map[string]*Channel
	bySubject map[string]map[string]*Channel

	bufferSize int
	filter     BlockChecker
	metrics    *metrics.Metrics

	// onEvict runs in its own goroutine after a slow consumer has been closed.
	onEvict func(*Channel)

	logger zerolog.Logger
}

// NewRegistry creates a Registry whose channels buffer up to bufferSize frames.
func NewRegistry(bufferSize int, filter BlockChecker, m *metrics.Metrics) *Registry {
	if filter == nil {
		filter = noBlocks{}
	}
	if m == nil {
		m = metrics.New(nil)
	}

	return &Registry{
		channels:   make(map[string]*Channel),
		bySubject:  make(map[string]map[string]*Channel),
		bufferSize: bufferSize,
		filter:     filter,
		metrics:    m,
		onEvict:    func(*Channel) {},
		logger:     logx.Component("Registry"),
	}
}

// SetEvictHook sets the function run after a channel is evicted.
func (r *Registry) SetEvictHook(fn func(*Channel)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = fn
}

// Register creates a new channel for subject.
func (r *Registry) Register(subject user.Subject) *Channel {
	id := randx.ChannelID()
	ch := newChannel(id, subject, r.bufferSize, r.logger.With().
		Str("channel_id", id).
		Str("subject_id", subject.ID).
		Logger())

	r.mu.Lock()
	r.channels[id] = ch
	set, ok := r.bySubject[subject.ID]
	if !ok {
		set = make(map[string]*Channel)
		r.bySubject[subject.ID] = set
	}
	set[id] = ch
	total := len(r.channels)
	r.mu.Unlock()

	r.metrics.Channels.Inc()
	ch.logger.Debug().Int("total_channels", total).Msg("Channel registered.")

	return ch
}

// Unregister removes the channel and closes it. Unknown ids are ignored.
func (r *Registry) Unregister(channelID string) {
	r.mu.Lock()
	ch, ok := r.channels[channelID]
	if ok {
		delete(r.channels, channelID)
		if set := r.bySubject[ch.Subject.ID]; set != nil {
			delete(set, channelID)
			if len(set) == 0 {
				delete(r.bySubject, ch.Subject.ID)
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	ch.close()
	r.metrics.Channels.Dec()
	ch.logger.Debug().Msg("Channel unregistered.")
}

// Lookup resolves a channel id.
func (r *Registry) Lookup(channelID string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[channelID]
	return ch, ok
}

// ChannelsOf returns every live channel of subjectID.
func (r *Registry) ChannelsOf(subjectID string) []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.bySubject[subjectID]
	out := make([]*Channel, 0, len(set))
	for _, ch := range set {
		out = append(out, ch)
	}
	return out
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Send queues frame on one channel. A vanished channel is logged and reported as false.
func (r *Registry) Send(channelID string, frame []byte) bool {
	ch, ok := r.Lookup(channelID)
	if !ok {
		r.logger.Debug().Str("channel_id", channelID).Msg("Send to unknown channel dropped.")
		return false
	}

	return r.deliver(ch, frame)
}

func (r *Registry) deliver(ch *Channel, frame []byte) bool {
	err := ch.enqueue(frame)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errBufferFull):
		r.Evict(ch)
	default:
		ch.logger.Debug().Err(err).Msg("Send to closed channel dropped.")
	}
	return false
}

// Broadcast delivers frame to every resolvable channel in memberIDs except excludeID,
// skipping recipients who blocked senderID. It returns the delivered and suppressed counts.
func (r *Registry) Broadcast(memberIDs []string, frame []byte, senderID, excludeID string) (delivered, suppressed int) {
	var slow []*Channel

	r.mu.RLock()
	for _, id := range memberIDs {
		if id == excludeID {
			continue
		}

		ch, ok := r.channels[id]
		if !ok {
			continue
		}

		if senderID != "" && r.filter.Blocks(ch.Subject.ID, senderID) {
			suppressed++
			continue
		}

		err := ch.enqueue(frame)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, errBufferFull):
			slow = append(slow, ch)
		}
	}
	r.mu.RUnlock()

	for _, ch := range slow {
		r.Evict(ch)
	}

	return delivered, suppressed
}

// Evict closes a slow consumer and hands it to the evict hook asynchronously.
func (r *Registry) Evict(ch *Channel) {
	if !ch.close() {
		return
	}

	r.metrics.Evictions.Inc()
	ch.logger.Warn().Int("buffer_size", r.bufferSize).Msg("Channel send buffer full, evicting slow consumer.")

	r.mu.RLock()
	hook := r.onEvict
	r.mu.RUnlock()

	go hook(ch)
}

// CloseAll closes every registered channel.
func (r *Registry) CloseAll() []*Channel {
	r.mu.RLock()
	all := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		all = append(all, ch)
	}
	r.mu.RUnlock()

	for _, ch := range all {
		ch.close()
	}
	return all
}
