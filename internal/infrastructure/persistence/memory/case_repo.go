package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

type caseRow struct {
	c *entity.Case
}

// CaseRepository implements port.CaseRepository in memory
type CaseRepository struct {
	store *Store
}

// Create inserts a new case
func (r *CaseRepository) Create(ctx context.Context, c *entity.Case) error {
	s := r.store
	return s.write(ctx, func(t *tx) error {
		if _, exists := s.caseView(t, c.ID); exists {
			return fmt.Errorf("%w: case %q already exists", workflow.ErrStorageFailure, c.ID)
		}
		t.cases[c.ID] = &stagedCase{row: caseRow{c: c.Clone()}, created: true}
		return nil
	})
}

// GetByID returns a copy of the stored case
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.caseView(txFrom(ctx), id)
	if !exists {
		return nil, fmt.Errorf("%w: case %q", workflow.ErrNotFound, id)
	}
	return row.c.Clone(), nil
}

// Save replaces the stored case when its version matches expectedVersion
func (r *CaseRepository) Save(ctx context.Context, c *entity.Case, expectedVersion int64) error {
	s := r.store
	return s.write(ctx, func(t *tx) error {
		existing, exists := s.caseView(t, c.ID)
		if !exists {
			return fmt.Errorf("%w: case %q", workflow.ErrNotFound, c.ID)
		}
		if existing.c.Version != expectedVersion {
			return fmt.Errorf("%w: case %q version conflict (expected %d, got %d)",
				workflow.ErrConcurrentModification, c.ID, expectedVersion, existing.c.Version)
		}

		c.Version = expectedVersion + 1
		staged := &stagedCase{row: caseRow{c: c.Clone()}, base: expectedVersion}
		if prev, ok := t.cases[c.ID]; ok {
			staged.created = prev.created
			staged.base = prev.base
		}
		t.cases[c.ID] = staged
		return nil
	})
}

// List returns matching cases in queue order
func (r *CaseRepository) List(ctx context.Context, filter port.CaseFilter) ([]*entity.Case, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := txFrom(ctx)
	result := []*entity.Case{}
	keep := func(c *entity.Case) {
		if matches(c, filter) {
			result = append(result, c.Clone())
		}
	}
	for id, row := range s.cases {
		if t != nil && t.cases[id] != nil {
			continue
		}
		keep(row.c)
	}
	if t != nil {
		for _, sc := range t.cases {
			keep(sc.row.c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return queueLess(result[i], result[j])
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*entity.Case{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

func matches(c *entity.Case, f port.CaseFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if c.Workflow.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Stage != "" && c.Workflow.CurrentStage != f.Stage {
		return false
	}
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.AssignedToUserID != "" && c.Workflow.AssignedToUserID != f.AssignedToUserID {
		return false
	}
	if f.PriorityOnly && !c.Workflow.Priority {
		return false
	}
	return true
}

// queueLess orders priority cases first, then the longest waiting in their stage, then by id
func queueLess(a, b *entity.Case) bool {
	if a.Workflow.Priority != b.Workflow.Priority {
		return a.Workflow.Priority
	}
	if !a.Workflow.CurrentStageEnteredAt.Equal(b.Workflow.CurrentStageEnteredAt) {
		return a.Workflow.CurrentStageEnteredAt.Before(b.Workflow.CurrentStageEnteredAt)
	}
	return a.ID < b.ID
}

// Len returns the number of stored cases. For testing.
func (r *CaseRepository) Len() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.cases)
}

// Verify interface compliance
var _ port.CaseRepository = (*CaseRepository)(nil)
