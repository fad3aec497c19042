package workflow

// Status is the fine-grained position of a case within its stage
type Status string

const (
	StatusDataEntryPending    Status = "DATA_ENTRY_PENDING"
	StatusDataEntryInProgress Status = "DATA_ENTRY_IN_PROGRESS"
	StatusDataEntryCompleted  Status = "DATA_ENTRY_COMPLETED"

	StatusDataReviewPending    Status = "DATA_REVIEW_PENDING"
	StatusDataReviewInProgress Status = "DATA_REVIEW_IN_PROGRESS"
	StatusDataReviewApproved   Status = "DATA_REVIEW_APPROVED"
	StatusDataReviewRejected   Status = "DATA_REVIEW_REJECTED"

	StatusProductPending    Status = "PRODUCT_PENDING"
	StatusProductInProgress Status = "PRODUCT_IN_PROGRESS"
	StatusProductSelected   Status = "PRODUCT_SELECTED"
	StatusProductOutOfStock Status = "PRODUCT_OUT_OF_STOCK"
	StatusProductFulfilled  Status = "PRODUCT_FULFILLED"

	StatusProductReviewPending    Status = "PRODUCT_REVIEW_PENDING"
	StatusProductReviewInProgress Status = "PRODUCT_REVIEW_IN_PROGRESS"
	StatusProductReviewApproved   Status = "PRODUCT_REVIEW_APPROVED"
	StatusProductReviewRejected   Status = "PRODUCT_REVIEW_REJECTED"

	StatusNotificationsPending Status = "NOTIFICATIONS_PENDING"
	StatusNotificationsSent    Status = "NOTIFICATIONS_SENT"
	StatusNotificationsFailed  Status = "NOTIFICATIONS_FAILED"

	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

type statusInfo struct {
	stage       Stage
	description string
}

var statuses = map[Status]statusInfo{
	StatusDataEntryPending:    {StageDataEntry, "Data Entry - Awaiting Input"},
	StatusDataEntryInProgress: {StageDataEntry, "Data Entry - Currently Being Processed"},
	StatusDataEntryCompleted:  {StageDataEntry, "Data Entry - Completed, Ready for Review"},

	StatusDataReviewPending:    {StageDataReview, "Data Review - Awaiting Pharmacist Review"},
	StatusDataReviewInProgress: {StageDataReview, "Data Review - Under Pharmacist Review"},
	StatusDataReviewApproved:   {StageDataReview, "Data Review - Approved by Pharmacist"},
	StatusDataReviewRejected:   {StageDataReview, "Data Review - Rejected by Pharmacist"},

	StatusProductPending:    {StageProduct, "Product Selection - Awaiting Product Selection"},
	StatusProductInProgress: {StageProduct, "Product Selection - Currently Selecting Products"},
	StatusProductSelected:   {StageProduct, "Product Selection - Products Selected"},
	StatusProductOutOfStock: {StageProduct, "Product Selection - Items Need to be Ordered"},
	StatusProductFulfilled:  {StageProduct, "Product Selection - Ready for Review"},

	StatusProductReviewPending:    {StageProductReview, "Product Review - Awaiting Final Check"},
	StatusProductReviewInProgress: {StageProductReview, "Product Review - Under Final Review"},
	StatusProductReviewApproved:   {StageProductReview, "Product Review - Approved for Dispensing"},
	StatusProductReviewRejected:   {StageProductReview, "Product Review - Rejected, Return to Product Selection"},

	StatusNotificationsPending: {StageNotifications, "Notifications - Ready to Send to Patient"},
	StatusNotificationsSent:    {StageNotifications, "Notifications - Sent to Patient"},
	StatusNotificationsFailed:  {StageNotifications, "Notifications - Failed to Send"},

	StatusCompleted: {StageCompleted, "Prescription Completed Successfully"},
	StatusCancelled: {StageCancelled, "Prescription Cancelled"},
}

// workQueueStatuses are the statuses an operator picks work from, per stage
var workQueueStatuses = map[Stage][]Status{
	StageDataEntry:     {StatusDataEntryPending, StatusDataEntryInProgress},
	StageDataReview:    {StatusDataReviewPending, StatusDataReviewInProgress},
	StageProduct:       {StatusProductPending, StatusProductInProgress, StatusProductOutOfStock},
	StageProductReview: {StatusProductReviewPending, StatusProductReviewInProgress},
	StageNotifications: {StatusNotificationsPending, StatusNotificationsFailed},
}

// Statuses returns every known status
func Statuses() []Status {
	out := make([]Status, 0, len(statuses))
	for s := range statuses {
		out = append(out, s)
	}
	return out
}

// QueueStatuses returns the statuses that make up the outstanding-work queue of a stage.
// Terminal stages have no queue.
func QueueStatuses(stage Stage) []Status {
	return append([]Status(nil), workQueueStatuses[stage]...)
}

// IsValid returns true if the status is a known workflow status
func (s Status) IsValid() bool {
	_, ok := statuses[s]
	return ok
}

// Stage returns the stage implied by the status, or "" for an unknown status
func (s Status) Stage() Stage {
	return statuses[s].stage
}

// IsTerminal returns true if the status belongs to a terminal stage
func (s Status) IsTerminal() bool {
	return s.Stage().IsTerminal()
}

// Description returns a human-readable label
func (s Status) Description() string {
	return statuses[s].description
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
