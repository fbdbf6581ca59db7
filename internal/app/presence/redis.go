/*
Package presence mirrors durable-room online counts into Redis.

Every instance writes its local counts to one shared hash under the field
"<room id>:<instance id>", and readers sum the fields per room, so room listings served
by any instance show cluster-wide numbers. Publishing never blocks the caller: pending
counts are coalesced per room and flushed by a background worker, latest value wins.
*/
package presence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"campuschat/internal/app/chat"
	"campuschat/internal/pkg/logx"
)

const (
	// DefaultKey is the Redis hash holding online counts.
	DefaultKey = "chat:online"

	flushTimeout = 3 * time.Second
)

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisPublisher implements chat.PresenceSink on a Redis hash.
type RedisPublisher struct {
	client   *redis.Client
	key      string
	instance string

	mu      sync.Mutex
	pending map[chat.RoomID]int

	// written holds every field this instance has set, for removal on Close.
	written map[string]struct{}

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger zerolog.Logger
}

// NewRedisPublisher starts a publisher writing this instance's counts to key.
// An empty instance id is replaced by a random one.
func NewRedisPublisher(client *redis.Client, key, instance string) *RedisPublisher {
	if key == "" {
		key = DefaultKey
	}
	if instance == "" {
		instance = uuid.New().String()
	}

	p := &RedisPublisher{
		client:   client,
		key:      key,
		instance: instance,
		pending:  make(map[chat.RoomID]int),
		written:  make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		logger:   logx.Component("PresencePublisher", "key", key, "instance", instance),
	}

	p.wg.Add(1)
	go p.run()

	return p
}

// PublishOnline records the latest count for id and wakes the worker.
func (p *RedisPublisher) PublishOnline(id chat.RoomID, count int) {
	p.mu.Lock()
	p.pending[id] = count
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *RedisPublisher) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.stop:
			p.flush()
			return
		}
	}
}

func (p *RedisPublisher) flush() {
	p.mu.Lock()
	batch := p.pending
	p.pending = make(map[chat.RoomID]int)
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	values := make([]any, 0, len(batch)*2)
	fields := make([]string, 0, len(batch))
	for id, count := range batch {
		field := p.field(id)
		fields = append(fields, field)
		values = append(values, field, count)
	}

	if err := p.client.HSet(ctx, p.key, values...).Err(); err != nil {
		p.logger.Warn().Err(err).Int("rooms", len(batch)).Msg("Failed to publish online counts.")
		return
	}

	p.mu.Lock()
	for _, f := range fields {
		p.written[f] = struct{}{}
	}
	p.mu.Unlock()
}

func (p *RedisPublisher) field(id chat.RoomID) string {
	return strconv.FormatInt(int64(id), 10) + ":" + p.instance
}

// InstanceID returns the id this publisher writes its fields under.
func (p *RedisPublisher) InstanceID() string {
	return p.instance
}

// Online sums the counts every instance published, per room.
func (p *RedisPublisher) Online(ctx context.Context) (map[chat.RoomID]int, error) {
	raw, err := p.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[chat.RoomID]int, len(raw))
	for field, value := range raw {
		room, _, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(room, 10, 64)
		if err != nil {
			continue
		}
		count, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		out[chat.RoomID(id)] += count
	}
	return out, nil
}

// Close flushes pending counts, stops the worker and removes this instance's fields.
func (p *RedisPublisher) Close() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()
		p.withdraw()
	})
}

func (p *RedisPublisher) withdraw() {
	p.mu.Lock()
	fields := make([]string, 0, len(p.written))
	for f := range p.written {
		fields = append(fields, f)
	}
	p.mu.Unlock()

	if len(fields) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := p.client.HDel(ctx, p.key, fields...).Err(); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to withdraw online counts.")
	}
}
