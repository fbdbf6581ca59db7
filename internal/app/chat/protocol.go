/*
Package chat contains the core logic of the anonymous chat coordinator.

This file defines the JSON wire protocol: one JSON object per websocket frame,
the inbound command taxonomy (message, disconnect) and the outbound events.
*/
package chat

import (
	"bytes"
	"encoding/json"
	"time"

	"campuschat/internal/pkg/errs"
)

// EventType is the "type" discriminator shared by inbound commands and outbound events.
type EventType string

const (
	// TypeMessage is both the inbound chat command and the outbound chat event.
	TypeMessage EventType = "message"

	// TypeDisconnect asks the server to leave the current session.
	TypeDisconnect EventType = "disconnect"

	// TypeSystem carries durable-room online counts.
	TypeSystem EventType = "system"

	// TypeWaiting tells a random-chat channel it is queued.
	TypeWaiting EventType = "waiting"

	// TypeMatched announces a new pair room.
	TypeMatched EventType = "matched"

	// TypePartnerLeft tells the remaining pair member that the session closed.
	TypePartnerLeft EventType = "partner_left"

	// TypeError carries a business error to the originating channel only.
	TypeError EventType = "error"
)

// MessageEvent is a chat message as delivered to one recipient.
type MessageEvent struct {
	Type      EventType `json:"type"`
	ID        int64     `json:"id"`
	RoomID    RoomID    `json:"room_id"`
	UserID    string    `json:"user_id,omitempty"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`

	// IsMine is only set in pair rooms, where it is computed per recipient.
	IsMine *bool `json:"is_mine,omitempty"`
}

// SystemEvent reports the current online count of a durable room.
type SystemEvent struct {
	Type        EventType `json:"type"`
	OnlineCount int       `json:"online_count"`
	Message     string    `json:"message,omitempty"`
}

// MatchedEvent announces the pair room both members were placed in.
type MatchedEvent struct {
	Type   EventType `json:"type"`
	RoomID RoomID    `json:"room_id"`
}

// ErrorEvent mirrors errs.CustomError on the websocket.
type ErrorEvent struct {
	Type    EventType `json:"type"`
	Code    int       `json:"code"`
	Message string    `json:"message"`
}

type bareEvent struct {
	Type EventType `json:"type"`
}

var (
	waitingFrame     = mustMarshal(bareEvent{Type: TypeWaiting})
	partnerLeftFrame = mustMarshal(bareEvent{Type: TypePartnerLeft})
)

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Command is a well-formed inbound frame.
type Command struct {
	Type EventType

	// Body is the raw "message" field of a message command, untrimmed.
	Body string
}

// ParseCommand decodes one inbound frame. Any violation is reported as ErrProtocol.
func ParseCommand(frame []byte) (Command, *errs.CustomError) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Command{}, errs.NewError(errs.ErrProtocol, "frame is not a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Command{}, errs.NewError(errs.ErrProtocol, "invalid JSON")
	}

	var typ string
	rawType, ok := fields["type"]
	if !ok || json.Unmarshal(rawType, &typ) != nil {
		return Command{}, errs.NewError(errs.ErrProtocol, "missing type")
	}

	switch EventType(typ) {
	case TypeMessage:
		var body *string
		rawBody, ok := fields["message"]
		if !ok || json.Unmarshal(rawBody, &body) != nil || body == nil {
			return Command{}, errs.NewError(errs.ErrProtocol, "message must be a string")
		}
		return Command{Type: TypeMessage, Body: *body}, nil

	case TypeDisconnect:
		return Command{Type: TypeDisconnect}, nil

	default:
		return Command{}, errs.NewError(errs.ErrProtocol, "unknown type")
	}
}

func errorFrame(err error) []byte {
	customErr := errs.From(err)
	return mustMarshal(ErrorEvent{Type: TypeError, Code: customErr.Code, Message: customErr.Message})
}
