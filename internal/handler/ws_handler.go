/*
Package handler provides the HTTP handler functions for WebSocket connection upgrading and initialization.

Admission happens before the upgrade: the bearer token from the query string is resolved to a
subject and the target is validated, so rejected requests receive a REST error envelope.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"campuschat/internal/app/chat"
	"campuschat/internal/app/user"
	"campuschat/internal/pkg/errs"
	"campuschat/internal/pkg/logx"
	"campuschat/internal/pkg/req"
	"campuschat/internal/pkg/resp"
)

// authenticate resolves the token query parameter, writing the error response on failure.
func authenticate(deps *AppDeps, w http.ResponseWriter, r *http.Request) (user.Subject, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return user.Subject{}, false
	}

	subject, err := deps.Verifier.Verify(token)
	if err != nil {
		logx.Info("WebSocket connection rejected: invalid token.", "error", err.Error())
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return user.Subject{}, false
	}

	return subject, true
}

// serve upgrades the request, binds a new channel with bind and runs the client loops.
// A bind error is sent to the channel, which is then released.
func serve(deps *AppDeps, upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, subject user.Subject, bind func(*chat.Channel) error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Error(err, "Failed to upgrade connection to WebSocket")
		return
	}

	ch := deps.Manager.Connect(subject)

	client := chat.NewClient(deps.Manager, ch, conn, chat.ClientOptions{
		MaxMalformedFrames: deps.Config.MaxMalformedFrames,
		MessageRate:        deps.Config.MessageRate,
		MessageBurst:       deps.Config.MessageBurst,
	})

	go client.WritePump()

	if err := bind(ch); err != nil {
		logx.Info("Channel rejected after upgrade.", "channel_id", ch.ID, "error", err.Error())
		deps.Manager.SendError(ch, err)
		deps.Manager.Release(ch)
	}

	client.ReadPump()
}

// HandleRoomWebSocket creates an HTTP HandlerFunc for /ws/chat/{roomID}.
func HandleRoomWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, customErr := req.PathInt64(r, "roomID")
		if customErr != nil {
			logx.Warn("WebSocket request rejected: invalid room id")
			resp.RespondError(w, r, customErr)
			return
		}

		subject, ok := authenticate(deps, w, r)
		if !ok {
			return
		}

		id := chat.RoomID(roomID)
		if deps.Manager.Room(id) == nil {
			logx.Info("WebSocket connection rejected: Room not found.", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		logx.Info("Attempting to upgrade connection", "room_id", roomID, "subject_id", subject.ID)

		serve(deps, upgrader, w, r, subject, func(ch *chat.Channel) error {
			return deps.Manager.JoinRoom(ch, id)
		})
	}
}

// HandleRandomWebSocket creates an HTTP HandlerFunc for /ws/random.
func HandleRandomWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := authenticate(deps, w, r)
		if !ok {
			return
		}

		logx.Info("Attempting to upgrade random chat connection", "subject_id", subject.ID)

		serve(deps, upgrader, w, r, subject, deps.Manager.RequestRandom)
	}
}
