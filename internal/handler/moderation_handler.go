/*
Package handler provides HTTP handler functions for block and report management.
*/
package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"campuschat/internal/app/moderation"
	"campuschat/internal/pkg/auth/jwt"
	"campuschat/internal/pkg/errs"
	"campuschat/internal/pkg/logx"
	"campuschat/internal/pkg/randx"
	"campuschat/internal/pkg/req"
	"campuschat/internal/pkg/resp"
)

// subjectRef accepts a subject id written as a JSON string or number.
type subjectRef string

func (s *subjectRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = subjectRef(v)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return err
	}
	*s = subjectRef(n.String())
	return nil
}

// BlockRequest defines the body of POST /api/block.
type BlockRequest struct {
	BlockedUserID subjectRef `json:"blocked_user_id"`
}

// ReportRequest defines the body of POST /api/report.
type ReportRequest struct {
	ReportedUserID subjectRef          `json:"reported_user_id"`
	Reason         moderation.Reason   `json:"reason"`
	Detail         string              `json:"detail,omitempty"`
	MessageID      *int64              `json:"message_id,omitempty"`
	RoomType       moderation.RoomKind `json:"room_type,omitempty"`
}

// BlockView is one entry of the caller's block list.
type BlockView struct {
	BlockedUserID string    `json:"blocked_user_id"`
	AnonName      string    `json:"anon_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// maxReportDetail bounds the free-form report detail.
const maxReportDetail = 1000

// callerID returns the authenticated subject id. RequireIdentity guarantees a payload.
func callerID(r *http.Request) string {
	return jwt.GetPayloadFromContext(r).SubjectID()
}

// HandleBlock adds a block edge from the caller to the named subject.
func HandleBlock(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body BlockRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if body.BlockedUserID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		blocked := string(body.BlockedUserID)
		if err := deps.Moderation.Block(r.Context(), callerID(r), blocked); err != nil {
			resp.RespondError(w, r, errs.From(err))
			return
		}

		resp.RespondStatus(w, r, http.StatusCreated, map[string]any{"blocked_user_id": blocked})
	}
}

// HandleUnblock removes the block edge from the caller to {subjectID}.
func HandleUnblock(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blocked := chi.URLParam(r, "subjectID")
		if blocked == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := deps.Moderation.Unblock(r.Context(), callerID(r), blocked); err != nil {
			resp.RespondError(w, r, errs.From(err))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleListBlocks lists the caller's blocks, oldest first.
func HandleListBlocks(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		edges := deps.Moderation.BlockList(callerID(r))

		views := make([]BlockView, 0, len(edges))
		for _, e := range edges {
			views = append(views, BlockView{
				BlockedUserID: e.BlockedID,
				AnonName:      randx.AnonAlias(e.BlockedID),
				CreatedAt:     e.CreatedAt,
			})
		}

		resp.RespondSuccess(w, r, map[string]any{"blocks": views})
	}
}

// HandleBlockedIDs returns the bare ids the caller has blocked.
func HandleBlockedIDs(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{"blocked_ids": deps.Moderation.BlockedIDs(callerID(r))})
	}
}

// HandleReport appends a report filed by the caller.
func HandleReport(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ReportRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if body.ReportedUserID == "" || len(body.Detail) > maxReportDetail {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		rec, err := deps.Moderation.Report(r.Context(), moderation.ReportRecord{
			ReporterID:       callerID(r),
			ReportedID:       string(body.ReportedUserID),
			Reason:           body.Reason,
			Detail:           body.Detail,
			ContextMessageID: body.MessageID,
			RoomKind:         body.RoomType,
		})
		if err != nil {
			resp.RespondError(w, r, errs.From(err))
			return
		}

		logx.Info("Report filed.", "report_id", rec.ID, "reason", string(rec.Reason))
		resp.RespondStatus(w, r, http.StatusCreated, map[string]any{"id": rec.ID})
	}
}
