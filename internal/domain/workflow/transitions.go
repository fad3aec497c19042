package workflow

// AdvanceTable maps a stage-completing status to the first status of the next stage.
// Statuses absent from this map have no forward transition.
var AdvanceTable = map[Status]Status{
	StatusDataEntryCompleted:    StatusDataReviewPending,
	StatusDataReviewApproved:    StatusProductPending,
	StatusProductFulfilled:      StatusProductReviewPending,
	StatusProductReviewApproved: StatusNotificationsPending,
	StatusNotificationsSent:     StatusCompleted,
}

// RejectionTable maps a review rejection to the status the case returns to
var RejectionTable = map[Status]Status{
	StatusDataReviewRejected:    StatusDataEntryPending,
	StatusProductReviewRejected: StatusProductPending,
}

type decision struct {
	from    Status
	trigger Trigger
	to      Status
}

// decisions are the operator choices taken inside a stage
var decisions = []decision{
	{StatusDataEntryPending, TriggerStart, StatusDataEntryInProgress},
	{StatusDataEntryInProgress, TriggerComplete, StatusDataEntryCompleted},

	{StatusDataReviewPending, TriggerStart, StatusDataReviewInProgress},
	{StatusDataReviewInProgress, TriggerApprove, StatusDataReviewApproved},
	{StatusDataReviewInProgress, TriggerReject, StatusDataReviewRejected},

	{StatusProductPending, TriggerStart, StatusProductInProgress},
	{StatusProductInProgress, TriggerSelect, StatusProductSelected},
	{StatusProductInProgress, TriggerOutOfStock, StatusProductOutOfStock},
	{StatusProductOutOfStock, TriggerRestock, StatusProductInProgress},
	{StatusProductSelected, TriggerFulfill, StatusProductFulfilled},

	{StatusProductReviewPending, TriggerStart, StatusProductReviewInProgress},
	{StatusProductReviewInProgress, TriggerApprove, StatusProductReviewApproved},
	{StatusProductReviewInProgress, TriggerReject, StatusProductReviewRejected},
}

// notificationOutcomes are driven by the sender callbacks and the retry operation
var notificationOutcomes = []decision{
	{StatusNotificationsPending, TriggerNotificationSent, StatusNotificationsSent},
	{StatusNotificationsPending, TriggerNotificationFailed, StatusNotificationsFailed},
	{StatusNotificationsFailed, TriggerRetryNotification, StatusNotificationsPending},
}

// NewTable compiles the advance, rejection, decision, notification and cancel rules into one Table
func NewTable() *Table {
	b := NewBuilder()

	for from, to := range AdvanceTable {
		b.Configure(from).Permit(TriggerAdvance, to)
	}
	for from, to := range RejectionTable {
		b.Configure(from).Permit(TriggerRejectToPrevious, to)
	}
	for _, d := range decisions {
		b.Configure(d.from).Permit(d.trigger, d.to)
	}
	for _, d := range notificationOutcomes {
		b.Configure(d.from).Permit(d.trigger, d.to)
	}
	for _, s := range Statuses() {
		if !s.IsTerminal() {
			b.Configure(s).Permit(TriggerCancel, StatusCancelled)
		}
	}

	return b.Build()
}

// DefaultTable is the transition table used by the workflow engine
var DefaultTable = NewTable()
