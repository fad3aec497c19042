package dispatcher

import (
	"context"
	"sync"

	"github.com/garyjia/pharmacy-workflow/internal/domain/event"
)

type batchKey struct{}

type deferredEvent struct {
	publisher Publisher
	evt       *event.Event
}

// Batch holds async events raised inside a transaction until the transaction commits
type Batch struct {
	mu     sync.Mutex
	events []deferredEvent
	joined bool
}

// WithBatch returns a context under which Defer queues events on the returned batch.
// When ctx already carries a batch the events go to that one and Flush on the
// returned batch does nothing.
func WithBatch(ctx context.Context) (context.Context, *Batch) {
	if _, ok := ctx.Value(batchKey{}).(*Batch); ok {
		return ctx, &Batch{joined: true}
	}
	b := &Batch{}
	return context.WithValue(ctx, batchKey{}, b), b
}

// Defer queues evt for p on the batch carried by ctx. It reports false when ctx
// carries no batch, in which case the caller publishes directly.
func Defer(ctx context.Context, p Publisher, evt *event.Event) bool {
	b, ok := ctx.Value(batchKey{}).(*Batch)
	if !ok {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, deferredEvent{publisher: p, evt: evt})
	return true
}

// Flush publishes queued events in the order they were deferred.
// ctx should be the context that was passed to WithBatch.
func (b *Batch) Flush(ctx context.Context) {
	if b.joined {
		return
	}
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()

	for _, d := range events {
		d.publisher.DispatchAsync(ctx, d.evt)
	}
}

// Len returns the number of queued events
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// InBatch reports whether ctx carries a batch
func InBatch(ctx context.Context) bool {
	_, ok := ctx.Value(batchKey{}).(*Batch)
	return ok
}
