package chat

import "time"

// RoomID identifies a durable room or a pair room. The two id spaces are independent.
type RoomID int64

// RoomKind classifies durable rooms.
type RoomKind string

const (
	KindGlobal  RoomKind = "global"
	KindSubject RoomKind = "subject"
)

// RoomInfo describes a durable room created out-of-band.
type RoomInfo struct {
	ID          RoomID
	Name        string
	Description string
	Kind        RoomKind
	CreatedAt   time.Time

	// LastMessageID resumes the room's message counter.
	LastMessageID int64
}

// ChatMessage is an immutable message as appended by a Room or PairSession.
type ChatMessage struct {
	ID          int64
	RoomID      RoomID
	Pair        bool
	SenderID    string
	SenderAlias string
	Body        string
	CreatedAt   time.Time
}

// PairRecord describes a pair room when it opens.
type PairRecord struct {
	ID        RoomID
	FirstID   string
	SecondID  string
	CreatedAt time.Time
}

// HistorySink receives every appended message and pair lifecycle change, in order.
// Implementations are called inside session critical sections and must not block.
type HistorySink interface {
	MessagePosted(msg ChatMessage)
	PairOpened(rec PairRecord)
	PairClosed(id RoomID, at time.Time)
}

// PresenceSink mirrors durable-room online counts. It must not block.
type PresenceSink interface {
	PublishOnline(id RoomID, count int)
}

type nopHistory struct{}

func (nopHistory) MessagePosted(ChatMessage)    {}
func (nopHistory) PairOpened(PairRecord)        {}
func (nopHistory) PairClosed(RoomID, time.Time) {}

type nopPresence struct{}

func (nopPresence) PublishOnline(RoomID, int) {}
