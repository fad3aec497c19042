package workflow

import (
	"errors"
	"testing"
)

func TestStatus_StageMapping(t *testing.T) {
	tests := []struct {
		status Status
		stage  Stage
	}{
		{StatusDataEntryPending, StageDataEntry},
		{StatusDataEntryCompleted, StageDataEntry},
		{StatusDataReviewRejected, StageDataReview},
		{StatusProductOutOfStock, StageProduct},
		{StatusProductReviewApproved, StageProductReview},
		{StatusNotificationsFailed, StageNotifications},
		{StatusCompleted, StageCompleted},
		{StatusCancelled, StageCancelled},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Stage(); got != tt.stage {
				t.Errorf("Status.Stage() = %v, want %v", got, tt.stage)
			}
		})
	}
}

func TestStatus_EveryStatusHasValidStage(t *testing.T) {
	all := Statuses()
	if len(all) != 21 {
		t.Fatalf("Statuses() returned %d values, want 21", len(all))
	}
	for _, s := range all {
		if !s.Stage().IsValid() {
			t.Errorf("status %s maps to invalid stage %q", s, s.Stage())
		}
		if s.Description() == "" {
			t.Errorf("status %s has no description", s)
		}
	}
}

func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"valid status", StatusDataEntryPending, true},
		{"terminal status", StatusCancelled, true},
		{"invalid status", Status("INVALID"), false},
		{"empty status", Status(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.expected {
				t.Errorf("Status.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStage_IsTerminal(t *testing.T) {
	tests := []struct {
		stage    Stage
		expected bool
	}{
		{StageDataEntry, false},
		{StageDataReview, false},
		{StageProduct, false},
		{StageProductReview, false},
		{StageNotifications, false},
		{StageCompleted, true},
		{StageCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			if got := tt.stage.IsTerminal(); got != tt.expected {
				t.Errorf("Stage.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStage_Order(t *testing.T) {
	if StageDataEntry.Order() != 0 || StageCompleted.Order() != 5 {
		t.Errorf("unexpected order: DATA_ENTRY=%d COMPLETED=%d", StageDataEntry.Order(), StageCompleted.Order())
	}
	if StageCancelled.Order() != -1 {
		t.Errorf("CANCELLED order = %d, want -1", StageCancelled.Order())
	}
}

func TestAdvanceTable_MovesExactlyOneStageForward(t *testing.T) {
	if len(AdvanceTable) != 5 {
		t.Fatalf("AdvanceTable has %d entries, want 5", len(AdvanceTable))
	}
	for from, to := range AdvanceTable {
		if to.Stage().Order() != from.Stage().Order()+1 {
			t.Errorf("advance %s -> %s skips or repeats a stage", from, to)
		}
	}
}

func TestRejectionTable_MovesOneStageBack(t *testing.T) {
	for from, to := range RejectionTable {
		if to.Stage().Order() != from.Stage().Order()-1 {
			t.Errorf("rejection %s -> %s is not one stage back", from, to)
		}
	}
}

func TestTable_Next(t *testing.T) {
	table := NewTable()

	tests := []struct {
		name    string
		from    Status
		trigger Trigger
		want    Status
		wantErr error
	}{
		{"advance data entry", StatusDataEntryCompleted, TriggerAdvance, StatusDataReviewPending, nil},
		{"advance notifications sent", StatusNotificationsSent, TriggerAdvance, StatusCompleted, nil},
		{"advance pending has no successor", StatusDataEntryPending, TriggerAdvance, "", ErrInvalidTransition},
		{"advance review pending has no successor", StatusDataReviewPending, TriggerAdvance, "", ErrInvalidTransition},
		{"reject data review", StatusDataReviewRejected, TriggerRejectToPrevious, StatusDataEntryPending, nil},
		{"reject product review", StatusProductReviewRejected, TriggerRejectToPrevious, StatusProductPending, nil},
		{"reject from pending", StatusDataReviewPending, TriggerRejectToPrevious, "", ErrInvalidTransition},
		{"approve review", StatusDataReviewInProgress, TriggerApprove, StatusDataReviewApproved, nil},
		{"restock", StatusProductOutOfStock, TriggerRestock, StatusProductInProgress, nil},
		{"notification failed", StatusNotificationsPending, TriggerNotificationFailed, StatusNotificationsFailed, nil},
		{"retry notification", StatusNotificationsFailed, TriggerRetryNotification, StatusNotificationsPending, nil},
		{"cancel mid-stage", StatusProductInProgress, TriggerCancel, StatusCancelled, nil},
		{"cancel completed", StatusCompleted, TriggerCancel, "", ErrCaseTerminal},
		{"advance cancelled", StatusCancelled, TriggerAdvance, "", ErrCaseTerminal},
		{"unknown status", Status("BOGUS"), TriggerAdvance, "", ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Next(tt.from, tt.trigger)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Next() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Next() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTable_EveryNonTerminalStatusCanCancel(t *testing.T) {
	table := NewTable()
	for _, s := range Statuses() {
		if s.IsTerminal() {
			if len(table.PermittedTriggers(s)) != 0 {
				t.Errorf("terminal status %s has permitted triggers", s)
			}
			continue
		}
		if !table.CanFire(s, TriggerCancel) {
			t.Errorf("status %s cannot be cancelled", s)
		}
	}
}

func TestTable_OnlyAdvanceMovesStageForward(t *testing.T) {
	table := NewTable()
	for _, from := range Statuses() {
		for _, trigger := range table.PermittedTriggers(from) {
			to, err := table.Next(from, trigger)
			if err != nil {
				t.Fatalf("Next(%s, %s) failed: %v", from, trigger, err)
			}
			if to == StatusCancelled {
				continue
			}
			fwd := to.Stage().Order() > from.Stage().Order()
			back := to.Stage().Order() < from.Stage().Order()
			if fwd && trigger != TriggerAdvance {
				t.Errorf("%s via %s moves stage forward", from, trigger)
			}
			if back && trigger != TriggerRejectToPrevious {
				t.Errorf("%s via %s moves stage backward", from, trigger)
			}
		}
	}
}

func TestTable_CanTransition(t *testing.T) {
	table := NewTable()
	if !table.CanTransition(StatusNotificationsFailed, StatusNotificationsPending) {
		t.Error("NOTIFICATIONS_FAILED should be able to return to NOTIFICATIONS_PENDING")
	}
	if table.CanTransition(StatusDataEntryPending, StatusCompleted) {
		t.Error("DATA_ENTRY_PENDING should not reach COMPLETED directly")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidStatus(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid status")
		}
	}()

	builder.Configure(Status("INVALID"))
}

func TestBuilder_PermitPanicsOnAmbiguousTrigger(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic when one trigger has two targets")
		}
	}()

	builder.Configure(StatusDataEntryPending).
		Permit(TriggerStart, StatusDataEntryInProgress).
		Permit(TriggerStart, StatusDataEntryCompleted)
}

func TestBuilder_BuildIsImmutable(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatusDataEntryPending).Permit(TriggerStart, StatusDataEntryInProgress)
	table := builder.Build()

	builder.Configure(StatusDataEntryPending).Permit(TriggerComplete, StatusDataEntryCompleted)

	if table.CanFire(StatusDataEntryPending, TriggerComplete) {
		t.Error("table should not see transitions configured after Build()")
	}
}

func TestTrigger_IsDecision(t *testing.T) {
	if !TriggerApprove.IsDecision() {
		t.Error("APPROVE should be a decision")
	}
	if TriggerAdvance.IsDecision() || TriggerNotificationSent.IsDecision() {
		t.Error("ADVANCE and NOTIFICATION_SENT are not decisions")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		client bool
		status int
	}{
		{"nil", nil, KindNone, false, 200},
		{"not found", ErrNotFound, KindNotFound, true, 404},
		{"wrapped transition", errors.Join(errors.New("ctx"), ErrInvalidTransition), KindInvalidTransition, true, 403},
		{"terminal", ErrCaseTerminal, KindCaseTerminal, true, 409},
		{"conflict", ErrConcurrentModification, KindConcurrentModification, true, 409},
		{"validation", ErrValidation, KindValidation, true, 400},
		{"storage", ErrStorageFailure, KindStorageFailure, false, 500},
		{"unknown", errors.New("boom"), KindStorageFailure, false, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := Classify(tt.err)
			if kind != tt.kind {
				t.Errorf("Classify() = %v, want %v", kind, tt.kind)
			}
			if kind.IsClientError() != tt.client {
				t.Errorf("IsClientError() = %v, want %v", kind.IsClientError(), tt.client)
			}
			if kind.HTTPStatus() != tt.status {
				t.Errorf("HTTPStatus() = %v, want %v", kind.HTTPStatus(), tt.status)
			}
		})
	}
}

func TestAsStorageFailure(t *testing.T) {
	if AsStorageFailure(nil) != nil {
		t.Error("nil should stay nil")
	}
	if err := AsStorageFailure(ErrNotFound); err != ErrNotFound {
		t.Errorf("known kind should pass through, got %v", err)
	}
	wrapped := AsStorageFailure(errors.New("disk full"))
	if !errors.Is(wrapped, ErrStorageFailure) {
		t.Errorf("unknown error should wrap ErrStorageFailure, got %v", wrapped)
	}
	if AsStorageFailure(wrapped) != wrapped {
		t.Error("already wrapped error should not be wrapped again")
	}
}
