// Package memory holds in-memory repositories used by tests and the "memory" database driver.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

type contextKey string

const txKey contextKey = "memory-tx"

// tx stages writes until commit. Only its own transaction sees them.
type tx struct {
	cases         map[string]*stagedCase
	notifications map[string]*stagedNotification
	history       []historyRow
}

// stagedCase remembers the committed version the write was checked against
type stagedCase struct {
	row     caseRow
	created bool
	base    int64
}

// stagedNotification remembers the committed status the write was checked against
type stagedNotification struct {
	row     notificationRow
	created bool
	base    entity.NotificationStatus
}

func newTx() *tx {
	return &tx{
		cases:         make(map[string]*stagedCase),
		notifications: make(map[string]*stagedNotification),
	}
}

func txFrom(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey).(*tx)
	return t
}

// Store keeps cases, notifications and history in maps guarded by one mutex.
// A transaction stages its writes and applies them on commit after checking that
// every row it touched is still at the version or status it read. A conflicting
// commit fails with ErrConcurrentModification and applies nothing.
type Store struct {
	mu            sync.RWMutex
	cases         map[string]caseRow
	notifications map[string]notificationRow
	history       map[string][]historyRow
	seq           int64
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		cases:         make(map[string]caseRow),
		notifications: make(map[string]notificationRow),
		history:       make(map[string][]historyRow),
	}
}

// WithTransaction implements port.TransactionManager.
// A nested call joins the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	t := newTx()
	if err := fn(context.WithValue(ctx, txKey, t)); err != nil {
		return err
	}
	return s.commit(t)
}

// write stages fn's changes in ctx's transaction, or commits them at once when ctx has none
func (s *Store) write(ctx context.Context, fn func(t *tx) error) error {
	if t := txFrom(ctx); t != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(t)
	}

	t := newTx()
	s.mu.Lock()
	err := fn(t)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sc := range t.cases {
		existing, exists := s.cases[id]
		switch {
		case sc.created && exists:
			return fmt.Errorf("%w: case %q already exists", workflow.ErrStorageFailure, id)
		case !sc.created && !exists:
			return fmt.Errorf("%w: case %q", workflow.ErrNotFound, id)
		case !sc.created && existing.c.Version != sc.base:
			return fmt.Errorf("%w: case %q changed to version %d since it was read at %d",
				workflow.ErrConcurrentModification, id, existing.c.Version, sc.base)
		}
	}

	for id, sn := range t.notifications {
		existing, exists := s.notifications[id]
		switch {
		case sn.created && exists:
			return fmt.Errorf("%w: notification %q already exists", workflow.ErrStorageFailure, id)
		case sn.created:
			caseID := sn.row.n.CaseID
			if _, ok := s.cases[caseID]; !ok && t.cases[caseID] == nil {
				return fmt.Errorf("%w: case %q", workflow.ErrNotFound, caseID)
			}
		case !exists:
			return fmt.Errorf("%w: notification %q", workflow.ErrNotFound, id)
		case existing.n.Status != sn.base:
			return fmt.Errorf("%w: notification %q is %s, expected %s",
				workflow.ErrConcurrentModification, id, existing.n.Status, sn.base)
		}
	}

	for id, sc := range t.cases {
		s.cases[id] = sc.row
	}
	for id, sn := range t.notifications {
		s.notifications[id] = sn.row
	}
	for _, row := range t.history {
		s.history[row.h.CaseID] = append(s.history[row.h.CaseID], row)
	}
	return nil
}

// caseView returns a case as t sees it. Callers hold s.mu.
func (s *Store) caseView(t *tx, id string) (caseRow, bool) {
	if t != nil {
		if sc, ok := t.cases[id]; ok {
			return sc.row, true
		}
	}
	row, ok := s.cases[id]
	return row, ok
}

// notificationView returns a notification as t sees it. Callers hold s.mu.
func (s *Store) notificationView(t *tx, id string) (notificationRow, bool) {
	if t != nil {
		if sn, ok := t.notifications[id]; ok {
			return sn.row, true
		}
	}
	row, ok := s.notifications[id]
	return row, ok
}

// nextSeq returns a monotonically increasing insertion number. Callers hold s.mu.
func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// Cases returns the case repository backed by this store
func (s *Store) Cases() port.CaseRepository {
	return &CaseRepository{store: s}
}

// Notifications returns the notification repository backed by this store
func (s *Store) Notifications() port.NotificationRepository {
	return &NotificationRepository{store: s}
}

// History returns the history repository backed by this store
func (s *Store) History() port.HistoryRepository {
	return &HistoryRepository{store: s}
}

// Verify interface compliance
var _ port.TransactionManager = (*Store)(nil)
