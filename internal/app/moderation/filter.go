package moderation

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"campuschat/internal/pkg/errs"
	"campuschat/internal/pkg/logx"
)

// blockIndex maps blocker -> blocked -> creation time. A published index is never mutated.
type blockIndex map[string]map[string]time.Time

// Filter answers block lookups without locking and serializes block list writes.
// Writers copy the affected blocker's set and publish a new index.
type Filter struct {
	index atomic.Pointer[blockIndex]

	// writeMu serializes Block, Unblock and Load.
	writeMu sync.Mutex

	store Store
	now   func() time.Time

	logger zerolog.Logger
}

// NewFilter creates an empty Filter backed by store.
func NewFilter(store Store) *Filter {
	f := &Filter{
		store:  store,
		now:    time.Now,
		logger: logx.Component("ModerationFilter"),
	}

	empty := blockIndex{}
	f.index.Store(&empty)

	return f
}

// Load replaces the in-memory index with the store's edges.
func (f *Filter) Load(ctx context.Context) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	edges, err := f.store.LoadBlocks(ctx)
	if err != nil {
		return err
	}

	next := make(blockIndex)
	for _, e := range edges {
		set, ok := next[e.BlockerID]
		if !ok {
			set = make(map[string]time.Time)
			next[e.BlockerID] = set
		}
		set[e.BlockedID] = e.CreatedAt
	}
	f.index.Store(&next)

	f.logger.Info().Int("edges", len(edges)).Msg("Block list loaded.")
	return nil
}

// Blocks reports whether recipientID has blocked senderID.
func (f *Filter) Blocks(recipientID, senderID string) bool {
	idx := *f.index.Load()
	_, ok := idx[recipientID][senderID]
	return ok
}

// Block adds the edge blocker -> blocked. It is idempotent and effective for every later delivery.
func (f *Filter) Block(ctx context.Context, blockerID, blockedID string) error {
	if blockerID == blockedID {
		return errs.NewError(errs.ErrSelfTarget)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if f.Blocks(blockerID, blockedID) {
		return nil
	}

	edge := BlockEdge{BlockerID: blockerID, BlockedID: blockedID, CreatedAt: f.now().UTC()}
	if err := f.store.SaveBlock(ctx, edge); err != nil {
		f.logger.Error().Err(err).Str("blocker_id", blockerID).Msg("Failed to save block.")
		return errs.NewError(errs.ErrUnknown, err)
	}

	f.publish(blockerID, func(set map[string]time.Time) {
		set[blockedID] = edge.CreatedAt
	})

	f.logger.Info().Str("blocker_id", blockerID).Str("blocked_id", blockedID).Msg("Block added.")
	return nil
}

// Unblock removes the edge blocker -> blocked if present.
func (f *Filter) Unblock(ctx context.Context, blockerID, blockedID string) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if !f.Blocks(blockerID, blockedID) {
		return nil
	}

	if err := f.store.DeleteBlock(ctx, blockerID, blockedID); err != nil {
		f.logger.Error().Err(err).Str("blocker_id", blockerID).Msg("Failed to delete block.")
		return errs.NewError(errs.ErrUnknown, err)
	}

	f.publish(blockerID, func(set map[string]time.Time) {
		delete(set, blockedID)
	})

	f.logger.Info().Str("blocker_id", blockerID).Str("blocked_id", blockedID).Msg("Block removed.")
	return nil
}

// publish copies blockerID's set, applies mutate and swaps in the new index. writeMu must be held.
func (f *Filter) publish(blockerID string, mutate func(map[string]time.Time)) {
	cur := *f.index.Load()

	set := make(map[string]time.Time, len(cur[blockerID])+1)
	for id, at := range cur[blockerID] {
		set[id] = at
	}
	mutate(set)

	next := make(blockIndex, len(cur)+1)
	for id, s := range cur {
		next[id] = s
	}
	if len(set) == 0 {
		delete(next, blockerID)
	} else {
		next[blockerID] = set
	}

	f.index.Store(&next)
}

// BlockedIDs returns the subjects blockerID has blocked, sorted.
func (f *Filter) BlockedIDs(blockerID string) []string {
	set := (*f.index.Load())[blockerID]

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BlockList returns blockerID's edges, oldest first.
func (f *Filter) BlockList(blockerID string) []BlockEdge {
	set := (*f.index.Load())[blockerID]

	out := make([]BlockEdge, 0, len(set))
	for id, at := range set {
		out = append(out, BlockEdge{BlockerID: blockerID, BlockedID: id, CreatedAt: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].BlockedID < out[j].BlockedID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Report validates and appends a report. CreatedAt and ID are assigned here.
func (f *Filter) Report(ctx context.Context, rec ReportRecord) (ReportRecord, error) {
	if rec.ReporterID == rec.ReportedID {
		return ReportRecord{}, errs.NewError(errs.ErrSelfTarget)
	}
	if !rec.Reason.Valid() {
		return ReportRecord{}, errs.NewError(errs.ErrInvalidReason)
	}
	if !rec.RoomKind.Valid() {
		return ReportRecord{}, errs.NewError(errs.ErrInvalidRoomKind)
	}

	rec.CreatedAt = f.now().UTC()

	id, err := f.store.AppendReport(ctx, rec)
	if err != nil {
		f.logger.Error().Err(err).Str("reporter_id", rec.ReporterID).Msg("Failed to append report.")
		return ReportRecord{}, errs.NewError(errs.ErrUnknown, err)
	}
	rec.ID = id

	f.logger.Info().
		Int64("report_id", id).
		Str("reporter_id", rec.ReporterID).
		Str("reported_id", rec.ReportedID).
		Str("reason", string(rec.Reason)).
		Msg("Report appended.")

	return rec, nil
}
