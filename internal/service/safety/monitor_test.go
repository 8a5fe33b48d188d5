package safety

import (
	"context"
	"testing"

	safetymodel "github.com/auralabs/aura/backend/internal/model/safety"
	"github.com/auralabs/aura/backend/internal/store"
	"github.com/auralabs/aura/backend/internal/stream"
)

func header(fields map[string]any) *stream.Header {
	return &stream.Header{Fields: fields}
}

func TestInspectDetectedPersistsAlert(t *testing.T) {
	st := store.NewMemStore()
	monitor := NewMonitor(st.Alerts())

	alert := monitor.Inspect(context.Background(), header(map[string]any{
		FieldDetected: "true",
		FieldRisk:     "High",
		FieldCategory: safetymodel.CategorySelfHarm,
	}), "u1", "I can't go on anymore")

	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Risk != safetymodel.RiskHigh {
		t.Fatalf("risk: got %s", alert.Risk)
	}
	if alert.Category != safetymodel.CategorySelfHarm {
		t.Fatalf("category: got %s", alert.Category)
	}
	if alert.Message != "I can't go on anymore" {
		t.Fatalf("message: got %q", alert.Message)
	}

	stored, err := st.Alerts().ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser err: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 persisted alert, got %d", len(stored))
	}
}

func TestInspectNotDetectedIsNil(t *testing.T) {
	st := store.NewMemStore()
	monitor := NewMonitor(st.Alerts())

	for _, fields := range []map[string]any{
		{},
		{FieldDetected: "false"},
		{FieldDetected: "false", FieldRisk: "High", FieldCategory: "violence"},
		{FieldDetected: false},
	} {
		if alert := monitor.Inspect(context.Background(), header(fields), "u1", "hi"); alert != nil {
			t.Fatalf("expected no alert for %v, got %+v", fields, alert)
		}
	}

	stored, _ := st.Alerts().ListByUser(context.Background(), "u1")
	if len(stored) != 0 {
		t.Fatalf("expected no persisted alerts, got %d", len(stored))
	}
}

func TestInspectDefaultsWhenDetectedWithoutGrading(t *testing.T) {
	st := store.NewMemStore()
	monitor := NewMonitor(st.Alerts())

	alert := monitor.Inspect(context.Background(), header(map[string]any{
		FieldDetected: "true",
	}), "u1", "something troubling")

	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Risk != safetymodel.RiskLow {
		t.Fatalf("default risk: got %s", alert.Risk)
	}
	if alert.Category != safetymodel.CategoryEmotionalDistress {
		t.Fatalf("default category: got %s", alert.Category)
	}
}

func TestInspectBoolFromJSONHeader(t *testing.T) {
	st := store.NewMemStore()
	monitor := NewMonitor(st.Alerts())

	alert := monitor.Inspect(context.Background(), header(map[string]any{
		FieldDetected: true,
		FieldRisk:     "medium",
	}), "u1", "msg")

	if alert == nil {
		t.Fatal("expected alert for native bool detection")
	}
	if alert.Risk != safetymodel.RiskMedium {
		t.Fatalf("risk parse should be case-insensitive, got %s", alert.Risk)
	}
}

func TestInspectNilHeader(t *testing.T) {
	monitor := NewMonitor(store.NewMemStore().Alerts())
	if alert := monitor.Inspect(context.Background(), nil, "u1", "msg"); alert != nil {
		t.Fatalf("nil header must not alert, got %+v", alert)
	}
}
