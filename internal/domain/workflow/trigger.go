package workflow

// Trigger names the action that moves a case from one status to another
type Trigger string

const (
	TriggerAdvance          Trigger = "ADVANCE"
	TriggerRejectToPrevious Trigger = "REJECT_TO_PREVIOUS"
	TriggerCancel           Trigger = "CANCEL"

	// Within-stage decisions taken by an operator
	TriggerStart      Trigger = "START"
	TriggerComplete   Trigger = "COMPLETE"
	TriggerApprove    Trigger = "APPROVE"
	TriggerReject     Trigger = "REJECT"
	TriggerSelect     Trigger = "SELECT"
	TriggerOutOfStock Trigger = "OUT_OF_STOCK"
	TriggerRestock    Trigger = "RESTOCK"
	TriggerFulfill    Trigger = "FULFILL"

	// Driven by the notification sender callbacks
	TriggerNotificationSent   Trigger = "NOTIFICATION_SENT"
	TriggerNotificationFailed Trigger = "NOTIFICATION_FAILED"
	TriggerRetryNotification  Trigger = "RETRY_NOTIFICATION"
)

var decisionTriggers = map[Trigger]bool{
	TriggerStart:      true,
	TriggerComplete:   true,
	TriggerApprove:    true,
	TriggerReject:     true,
	TriggerSelect:     true,
	TriggerOutOfStock: true,
	TriggerRestock:    true,
	TriggerFulfill:    true,
}

// IsDecision returns true for triggers an operator may fire through ApplyDecision
func (t Trigger) IsDecision() bool {
	return decisionTriggers[t]
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
