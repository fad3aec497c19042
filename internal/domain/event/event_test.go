package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"case created", TypeCaseCreated, true},
		{"status changed", TypeCaseStatusChanged, true},
		{"notification sent", TypeNotificationSent, true},
		{"notification failed", TypeNotificationFailed, true},
		{"unknown", Type("instance.created"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	evt := NewEvent(TypeNotificationSent, "case-1", map[string]interface{}{KeyNotificationID: "n-1"})

	if evt.ID == "" || evt.CorrelationID == "" {
		t.Fatal("NewEvent() should generate ID and correlation ID")
	}
	if evt.ID == evt.CorrelationID {
		t.Error("ID and CorrelationID should differ")
	}
	if evt.CaseID != "case-1" {
		t.Errorf("CaseID = %v, want case-1", evt.CaseID)
	}
	if evt.Timestamp.Before(before) {
		t.Error("Timestamp should not precede creation")
	}
	if got := evt.GetPayloadString(KeyNotificationID); got != "n-1" {
		t.Errorf("GetPayloadString() = %v, want n-1", got)
	}
}

func TestNewEvent_NilPayload(t *testing.T) {
	evt := NewEvent(TypeCaseCreated, "case-1", nil)
	if evt.Payload == nil {
		t.Fatal("payload should be initialised")
	}
	if evt.GetPayloadString("missing") != "" {
		t.Error("missing key should return empty string")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	evt := NewEventWithCorrelation(TypeCaseStatusChanged, "case-1", nil, "corr-1")
	if evt.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %v, want corr-1", evt.CorrelationID)
	}
}

func TestEvent_WithPayloadDoesNotMutate(t *testing.T) {
	orig := NewEvent(TypeCaseStatusChanged, "case-1", map[string]interface{}{KeyNewStatus: "A"})
	next := orig.WithPayload(KeyReason, "wrong lot").WithPayload("urgent", true)

	if _, ok := orig.Payload[KeyReason]; ok {
		t.Error("WithPayload() mutated the original event")
	}
	if next.GetPayloadString(KeyReason) != "wrong lot" {
		t.Error("WithPayload() lost the new key")
	}
	if !next.GetPayloadBool("urgent") {
		t.Error("GetPayloadBool() should return true")
	}
	if next.ID != orig.ID || next.CorrelationID != orig.CorrelationID {
		t.Error("WithPayload() should keep identity")
	}
}
