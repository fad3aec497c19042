package event

// Type identifies the type of domain event
type Type string

const (
	TypeCaseCreated          Type = "case.created"
	TypeCaseStatusChanged    Type = "case.status_changed"
	TypeNotificationEnqueued Type = "notification.enqueued"
	TypeNotificationSent     Type = "notification.sent"
	TypeNotificationFailed   Type = "notification.failed"
)

// Payload keys
const (
	KeyNotificationID = "notification_id"
	KeyPreviousStatus = "previous_status"
	KeyNewStatus      = "new_status"
	KeyActorID        = "actor_id"
	KeyReason         = "reason"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeCaseCreated,
		TypeCaseStatusChanged,
		TypeNotificationEnqueued,
		TypeNotificationSent,
		TypeNotificationFailed:
		return true
	default:
		return false
	}
}
