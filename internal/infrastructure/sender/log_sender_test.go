package sender

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
)

func TestLogSender_Send(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	n := &entity.Notification{
		ID:             "n-1",
		CaseID:         "rx-1",
		CaseKind:       entity.CaseKindPrescription,
		RecipientPhone: "+14155550100",
		Message:        "ready",
	}

	require.NoError(t, s.Send(context.Background(), n))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Patient notification", entry.Message)
	assert.Equal(t, "+14155550100", entry.ContextMap()["to"])
	assert.Equal(t, "log", s.Name())
}

func TestLogSender_Errors(t *testing.T) {
	s := NewLogSender(zap.NewNop())

	err := s.Send(context.Background(), &entity.Notification{ID: "n-1"})
	assert.ErrorIs(t, err, ErrNoRecipient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Send(ctx, &entity.Notification{ID: "n-2", RecipientPhone: "+14155550100"})
	assert.ErrorIs(t, err, context.Canceled)
}
