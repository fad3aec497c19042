package memory

import (
	"context"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
)

type historyRow struct {
	h   entity.HistoryEntry
	seq int64
}

// HistoryRepository implements port.HistoryRepository in memory
type HistoryRepository struct {
	store *Store
}

// Create appends a history entry
func (r *HistoryRepository) Create(ctx context.Context, h *entity.HistoryEntry) error {
	s := r.store
	return s.write(ctx, func(t *tx) error {
		t.history = append(t.history, historyRow{h: *h, seq: s.nextSeq()})
		return nil
	})
}

// ListByCase returns a case's history in insertion order
func (r *HistoryRepository) ListByCase(ctx context.Context, caseID string) ([]*entity.HistoryEntry, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.history[caseID]
	result := make([]*entity.HistoryEntry, 0, len(rows))
	for i := range rows {
		h := rows[i].h
		result = append(result, &h)
	}
	if t := txFrom(ctx); t != nil {
		for i := range t.history {
			if t.history[i].h.CaseID == caseID {
				h := t.history[i].h
				result = append(result, &h)
			}
		}
	}
	return result, nil
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
