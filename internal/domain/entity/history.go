package entity

import (
	"time"

	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// History action types
const (
	ActionCreate             = "CREATE"
	ActionAdvance            = "ADVANCE"
	ActionRejectToPrevious   = "REJECT_TO_PREVIOUS"
	ActionDecision           = "DECISION"
	ActionCancel             = "CANCEL"
	ActionAssign             = "ASSIGN"
	ActionNote               = "NOTE"
	ActionPriority           = "PRIORITY"
	ActionNotificationSent   = "NOTIFICATION_SENT"
	ActionNotificationFailed = "NOTIFICATION_FAILED"
	ActionRetryNotification  = "RETRY_NOTIFICATION"
)

// HistoryEntry is the audit trail of a case
type HistoryEntry struct {
	ID             string          `json:"id"`
	CaseID         string          `json:"case_id"`
	ActorID        string          `json:"actor_id"`
	PreviousStatus workflow.Status `json:"previous_status"`
	NewStatus      workflow.Status `json:"new_status"`
	Action         string          `json:"action"`
	Detail         string          `json:"detail,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
