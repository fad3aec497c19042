package port

import (
	"context"
	"io"

	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
)

// ContactResolver looks up and normalizes patient phone numbers
type ContactResolver interface {
	// ResolvePhone returns the normalized phone on file for a case's patient,
	// or "" with a nil error when the patient has no usable phone
	ResolvePhone(ctx context.Context, caseID string) (string, error)

	// NormalizePhone converts a caller-supplied number to E.164
	NormalizePhone(raw string) (string, error)
}

// MessageSender transmits a queued notification to the patient
type MessageSender interface {
	Send(ctx context.Context, n *entity.Notification) error
	Name() string
}

// QueueExporter renders a work queue as a downloadable document
type QueueExporter interface {
	Export(w io.Writer, cases []*entity.Case) error
	ContentType() string
}
