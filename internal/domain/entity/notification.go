package entity

import "time"

// NotificationStatus tracks a queued outbound message
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
)

// IsValid returns true for a known notification status
func (s NotificationStatus) IsValid() bool {
	switch s {
	case NotificationStatusPending, NotificationStatusSent, NotificationStatusFailed:
		return true
	}
	return false
}

// Notification is a patient message queued when a case enters NOTIFICATIONS
type Notification struct {
	ID             string             `json:"id"`
	CaseID         string             `json:"case_id"`
	CaseKind       CaseKind           `json:"case_kind"`
	RecipientPhone string             `json:"recipient_phone"`
	Message        string             `json:"message"`
	Status         NotificationStatus `json:"status"`
	ErrorMessage   string             `json:"error_message,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	SentAt         *time.Time         `json:"sent_at,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}
