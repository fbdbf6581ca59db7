package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"campuschat/internal/app/chat"
	"campuschat/internal/app/moderation"
)

// Store is the PostgreSQL implementation of history.Store and moderation.Store,
// plus the catalog queries used at startup.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const listRoomsSQL = `
SELECT r.id, r.name, COALESCE(r.description, ''), r.room_type, r.created_at,
       COALESCE((SELECT MAX(m.id) FROM chat_messages m WHERE m.room_id = r.id), 0)
FROM chat_rooms r
ORDER BY r.id`

// ListRooms returns the durable room catalog with each room's last message id.
func (s *Store) ListRooms(ctx context.Context) ([]chat.RoomInfo, error) {
	rows, err := s.pool.Query(ctx, listRoomsSQL)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.RoomInfo, error) {
		var (
			info chat.RoomInfo
			kind string
		)
		err := row.Scan(&info.ID, &info.Name, &info.Description, &kind, &info.CreatedAt, &info.LastMessageID)
		info.Kind = chat.RoomKind(kind)
		return info, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan rooms: %w", err)
	}

	return rooms, nil
}

// MaxPairRoomID returns the largest stored pair room id, or 0.
func (s *Store) MaxPairRoomID(ctx context.Context) (chat.RoomID, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM random_chat_rooms`).Scan(&id); err != nil {
		return 0, fmt.Errorf("max pair room id: %w", err)
	}
	return chat.RoomID(id), nil
}

// InsertMessage appends a durable or pair message. Re-inserting the same id is a no-op.
func (s *Store) InsertMessage(ctx context.Context, msg chat.ChatMessage) error {
	var err error
	if msg.Pair {
		_, err = s.pool.Exec(ctx, `
INSERT INTO random_chat_messages (room_id, id, user_id, message, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (room_id, id) DO NOTHING`,
			int64(msg.RoomID), msg.ID, msg.SenderID, msg.Body, msg.CreatedAt)
	} else {
		_, err = s.pool.Exec(ctx, `
INSERT INTO chat_messages (room_id, id, user_id, sender_alias, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (room_id, id) DO NOTHING`,
			int64(msg.RoomID), msg.ID, msg.SenderID, msg.SenderAlias, msg.Body, msg.CreatedAt)
	}

	if err != nil {
		return fmt.Errorf("insert message %d in room %d: %w", msg.ID, msg.RoomID, err)
	}
	return nil
}

// InsertPairRoom records a newly opened pair room.
func (s *Store) InsertPairRoom(ctx context.Context, rec chat.PairRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO random_chat_rooms (id, user1_id, user2_id, is_active, created_at)
VALUES ($1, $2, $3, TRUE, $4)`,
		int64(rec.ID), rec.FirstID, rec.SecondID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pair room %d: %w", rec.ID, err)
	}
	return nil
}

// ClosePairRoom marks a pair room inactive.
func (s *Store) ClosePairRoom(ctx context.Context, id chat.RoomID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
UPDATE random_chat_rooms SET is_active = FALSE, closed_at = $2
WHERE id = $1 AND is_active`,
		int64(id), at)
	if err != nil {
		return fmt.Errorf("close pair room %d: %w", id, err)
	}
	return nil
}

// SaveBlock stores a block edge. An existing edge is not an error.
func (s *Store) SaveBlock(ctx context.Context, edge moderation.BlockEdge) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO user_blocks (user_id, blocked_user_id, created_at) VALUES ($1, $2, $3)`,
		edge.BlockerID, edge.BlockedID, edge.CreatedAt)
	if err != nil && !IsUniqueViolation(err) {
		return fmt.Errorf("save block: %w", err)
	}
	return nil
}

// DeleteBlock removes a block edge.
func (s *Store) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_blocks WHERE user_id = $1 AND blocked_user_id = $2`, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}

// LoadBlocks returns every block edge.
func (s *Store) LoadBlocks(ctx context.Context) ([]moderation.BlockEdge, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, blocked_user_id, created_at FROM user_blocks`)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}

	edges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (moderation.BlockEdge, error) {
		var e moderation.BlockEdge
		err := row.Scan(&e.BlockerID, &e.BlockedID, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan blocks: %w", err)
	}
	return edges, nil
}

// AppendReport stores a report and returns its id.
func (s *Store) AppendReport(ctx context.Context, rec moderation.ReportRecord) (int64, error) {
	detail := pgtype.Text{String: rec.Detail, Valid: rec.Detail != ""}
	roomType := pgtype.Text{String: string(rec.RoomKind), Valid: rec.RoomKind != ""}

	var messageID pgtype.Int8
	if rec.ContextMessageID != nil {
		messageID = pgtype.Int8{Int64: *rec.ContextMessageID, Valid: true}
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO user_reports (reporter_id, reported_user_id, reason, detail, message_id, room_type, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		rec.ReporterID, rec.ReportedID, string(rec.Reason), detail, messageID, roomType, rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append report: %w", err)
	}
	return id, nil
}
