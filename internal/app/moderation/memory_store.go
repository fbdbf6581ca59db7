package moderation

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used in development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	blocks  map[[2]string]BlockEdge
	reports []ReportRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blocks: make(map[[2]string]BlockEdge)}
}

func (s *MemoryStore) SaveBlock(_ context.Context, edge BlockEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{edge.BlockerID, edge.BlockedID}
	if _, ok := s.blocks[key]; !ok {
		s.blocks[key] = edge
	}
	return nil
}

func (s *MemoryStore) DeleteBlock(_ context.Context, blockerID, blockedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blocks, [2]string{blockerID, blockedID})
	return nil
}

func (s *MemoryStore) LoadBlocks(context.Context) ([]BlockEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]BlockEdge, 0, len(s.blocks))
	for _, e := range s.blocks {
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) AppendReport(_ context.Context, rec ReportRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = int64(len(s.reports) + 1)
	s.reports = append(s.reports, rec)
	return rec.ID, nil
}

// Reports returns a copy of the appended reports.
func (s *MemoryStore) Reports() []ReportRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ReportRecord, len(s.reports))
	copy(out, s.reports)
	return out
}
