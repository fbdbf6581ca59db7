/*
Package moderation implements the block list and the report log.

Blocks are directional: a recipient that blocked a sender stops receiving the sender's
messages, and the sender is never told. Reports are append-only.
*/
package moderation

import (
	"context"
	"time"
)

// BlockEdge means Blocker no longer receives messages from Blocked.
type BlockEdge struct {
	BlockerID string    `json:"blocker_id"`
	BlockedID string    `json:"blocked_user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Reason is a report reason code.
type Reason string

const (
	ReasonSpam       Reason = "spam"
	ReasonAbuse      Reason = "abuse"
	ReasonObscene    Reason = "obscene"
	ReasonHarassment Reason = "harassment"
	ReasonOther      Reason = "other"
)

// Valid reports whether r is a known reason code.
func (r Reason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonAbuse, ReasonObscene, ReasonHarassment, ReasonOther:
		return true
	}
	return false
}

// RoomKind tells where the reported conduct happened.
type RoomKind string

const (
	RoomChat    RoomKind = "chat"
	RoomRandom  RoomKind = "random"
	RoomCommute RoomKind = "commute"
)

// Valid reports whether k is a known room kind. The empty kind is allowed.
func (k RoomKind) Valid() bool {
	switch k {
	case "", RoomChat, RoomRandom, RoomCommute:
		return true
	}
	return false
}

// ReportRecord is an immutable report entry.
type ReportRecord struct {
	ID               int64     `json:"id"`
	ReporterID       string    `json:"reporter_id"`
	ReportedID       string    `json:"reported_user_id"`
	Reason           Reason    `json:"reason"`
	Detail           string    `json:"detail,omitempty"`
	ContextMessageID *int64    `json:"message_id,omitempty"`
	RoomKind         RoomKind  `json:"room_type,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store persists block edges and reports.
type Store interface {
	// SaveBlock stores the edge. Saving an existing edge is not an error.
	SaveBlock(ctx context.Context, edge BlockEdge) error

	// DeleteBlock removes the edge. Deleting a missing edge is not an error.
	DeleteBlock(ctx context.Context, blockerID, blockedID string) error

	// LoadBlocks returns every stored edge.
	LoadBlocks(ctx context.Context) ([]BlockEdge, error)

	// AppendReport stores the report and returns its id.
	AppendReport(ctx context.Context, rec ReportRecord) (int64, error)
}
