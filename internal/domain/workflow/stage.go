package workflow

// Stage is the coarse position of a case in the pharmacy pipeline
type Stage string

const (
	StageDataEntry     Stage = "DATA_ENTRY"
	StageDataReview    Stage = "DATA_REVIEW"
	StageProduct       Stage = "PRODUCT"
	StageProductReview Stage = "PRODUCT_REVIEW"
	StageNotifications Stage = "NOTIFICATIONS"
	StageCompleted     Stage = "COMPLETED"
	StageCancelled     Stage = "CANCELLED"
)

// stageOrder lists the forward chain; CANCELLED sits outside it
var stageOrder = []Stage{
	StageDataEntry,
	StageDataReview,
	StageProduct,
	StageProductReview,
	StageNotifications,
	StageCompleted,
}

var stageDescriptions = map[Stage]string{
	StageDataEntry:     "Data Entry - Patient/Prescriber/Medication Selection",
	StageDataReview:    "Data Review - Pharmacist Verification",
	StageProduct:       "Product - Inventory Selection and Fulfillment",
	StageProductReview: "Product Review - Final Pharmacist Check",
	StageNotifications: "Notifications - Patient Communication",
	StageCompleted:     "Completed - Workflow Finished",
	StageCancelled:     "Cancelled - Workflow Terminated",
}

// Stages returns all stages in pipeline order, CANCELLED last
func Stages() []Stage {
	out := make([]Stage, 0, len(stageOrder)+1)
	out = append(out, stageOrder...)
	return append(out, StageCancelled)
}

// IsValid returns true if the stage is a known workflow stage
func (s Stage) IsValid() bool {
	_, ok := stageDescriptions[s]
	return ok
}

// IsTerminal returns true for stages that accept no further transitions
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageCancelled
}

// Order returns the position of the stage in the forward chain, or -1 for CANCELLED
func (s Stage) Order() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Description returns a human-readable label
func (s Stage) Description() string {
	return stageDescriptions[s]
}

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}
