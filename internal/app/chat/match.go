package chat

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"campuschat/internal/pkg/errs"
	"campuschat/internal/pkg/logx"
)

// ticket is a waiting request for a random partner.
type ticket struct {
	ch         *Channel
	enqueuedAt time.Time
}

// MatchQueue pairs waiting channels strictly in FIFO order.
// Every pairing decision happens inside one critical section guarded by mu,
// so a ticket is consumed at most once.
type MatchQueue struct {
	mu        sync.Mutex
	waiting   *list.List
	bySubject map[string]*list.Element

	m      *Manager
	now    func() time.Time
	logger zerolog.Logger
}

func newMatchQueue(m *Manager) *MatchQueue {
	return &MatchQueue{
		waiting:   list.New(),
		bySubject: make(map[string]*list.Element),
		m:         m,
		now:       time.Now,
		logger:    logx.Component("MatchQueue"),
	}
}

// Enqueue pairs ch with the earliest live waiter or, when none exists, queues it and sends waiting.
// A subject that already holds a live ticket is rejected with ErrAlreadyWaiting.
func (q *MatchQueue) Enqueue(ch *Channel) (*PairSession, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.bySubject[ch.Subject.ID]; ok {
		if e.Value.(*ticket).ch.State() != StateClosed {
			return nil, errs.NewError(errs.ErrAlreadyWaiting)
		}
		q.removeLocked(e)
	}

	if err := ch.markWaiting(); err != nil {
		return nil, err
	}

	for e := q.waiting.Front(); e != nil; e = q.waiting.Front() {
		waiter := e.Value.(*ticket)
		q.removeLocked(e)

		if waiter.ch.State() == StateClosed {
			q.logger.Debug().Str("channel_id", waiter.ch.ID).Msg("Skipped dead ticket.")
			continue
		}

		p, err := q.m.openPair(waiter.ch, ch)
		switch {
		case err == nil:
			return p, nil
		case errors.Is(err, errPartnerLost):
			continue
		default:
			// Requester is gone; the waiter keeps its place at the front.
			q.pushFrontLocked(waiter)
			return nil, err
		}
	}

	t := &ticket{ch: ch, enqueuedAt: q.now()}
	q.bySubject[ch.Subject.ID] = q.waiting.PushBack(t)
	q.m.metrics.WaitingTicket.Inc()

	q.m.registry.Send(ch.ID, waitingFrame)

	q.logger.Info().
		Str("channel_id", ch.ID).
		Str("subject_id", ch.Subject.ID).
		Int("queue_len", q.waiting.Len()).
		Msg("Ticket queued.")

	return nil, nil
}

// Cancel removes the ticket held by ch. It reports whether one was removed. No event is sent.
func (q *MatchQueue) Cancel(ch *Channel) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.bySubject[ch.Subject.ID]
	if !ok || e.Value.(*ticket).ch != ch {
		return false
	}

	q.removeLocked(e)
	ch.unmarkWaiting()
	return true
}

// Len returns the number of queued tickets, dead ones included until they are swept.
func (q *MatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiting.Len()
}

// Sweep drops tickets whose channel is closed and, when maxWait is positive,
// removes and returns the channels that waited longer than maxWait.
func (q *MatchQueue) Sweep(now time.Time, maxWait time.Duration) (dead int, expired []*Channel) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for e := q.waiting.Front(); e != nil; {
		next := e.Next()
		t := e.Value.(*ticket)

		switch {
		case t.ch.State() == StateClosed:
			q.removeLocked(e)
			dead++
		case maxWait > 0 && now.Sub(t.enqueuedAt) > maxWait:
			q.removeLocked(e)
			t.ch.unmarkWaiting()
			expired = append(expired, t.ch)
		}

		e = next
	}

	return dead, expired
}

func (q *MatchQueue) removeLocked(e *list.Element) {
	t := q.waiting.Remove(e).(*ticket)
	if cur, ok := q.bySubject[t.ch.Subject.ID]; ok && cur == e {
		delete(q.bySubject, t.ch.Subject.ID)
	}
	q.m.metrics.WaitingTicket.Dec()
}

func (q *MatchQueue) pushFrontLocked(t *ticket) {
	q.bySubject[t.ch.Subject.ID] = q.waiting.PushFront(t)
	q.m.metrics.WaitingTicket.Inc()
}
