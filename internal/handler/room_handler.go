/*
Package handler provides HTTP handler functions for the durable room catalog.
*/
package handler

import (
	"net/http"
	"time"

	"campuschat/internal/app/chat"
	"campuschat/internal/pkg/logx"
	"campuschat/internal/pkg/resp"
)

// RoomView is one entry of the room listing.
type RoomView struct {
	ID          chat.RoomID   `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	RoomType    chat.RoomKind `json:"room_type"`
	OnlineCount int           `json:"online_count"`
	CreatedAt   time.Time     `json:"created_at"`
}

// HandleListRooms lists durable rooms with their online counts.
// Cluster-wide counts from Presence take precedence over local ones when available.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var online map[chat.RoomID]int
		if deps.Presence != nil {
			var err error
			online, err = deps.Presence.Online(r.Context())
			if err != nil {
				logx.Warn("Presence lookup failed, using local counts.", "error", err.Error())
			}
		}

		rooms := deps.Manager.Rooms()
		views := make([]RoomView, 0, len(rooms))
		for _, room := range rooms {
			count := room.OnlineCount()
			if n, ok := online[room.ID]; ok {
				count = n
			}

			views = append(views, RoomView{
				ID:          room.ID,
				Name:        room.Name,
				Description: room.Description,
				RoomType:    room.Kind,
				OnlineCount: count,
				CreatedAt:   room.CreatedAt,
			})
		}

		resp.RespondSuccess(w, r, map[string]any{"rooms": views})
	}
}
