package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/event"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// fakeContacts resolves phones from a fixed table and accepts only "+" prefixed numbers
type fakeContacts struct {
	phones map[string]string
}

func (f fakeContacts) ResolvePhone(ctx context.Context, caseID string) (string, error) {
	return f.phones[caseID], nil
}

func (f fakeContacts) NormalizePhone(raw string) (string, error) {
	if !strings.HasPrefix(raw, "+") {
		return "", errors.New("not in international format")
	}
	return strings.ReplaceAll(raw, " ", ""), nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []*event.Event
	err    error
}

func (p *capturePublisher) Dispatch(ctx context.Context, evt *event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *capturePublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = p.Dispatch(ctx, evt)
}

func (p *capturePublisher) last() *event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

type stubExporter struct {
	got []*entity.Case
	err error
}

func (s *stubExporter) Export(w io.Writer, cases []*entity.Case) error {
	s.got = cases
	if s.err != nil {
		return s.err
	}
	_, err := w.Write([]byte("ok"))
	return err
}

func (s *stubExporter) ContentType() string { return "text/plain" }
