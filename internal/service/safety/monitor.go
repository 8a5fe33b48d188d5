// Package safety turns risk signals from the reply header into persisted
// alerts.
package safety

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	safetymodel "github.com/auralabs/aura/backend/internal/model/safety"
	"github.com/auralabs/aura/backend/internal/store"
	"github.com/auralabs/aura/backend/internal/stream"
)

// Header field names emitted by the model.
const (
	FieldDetected = "safetyDetected"
	FieldRisk     = "safetyRisk"
	FieldCategory = "safetyCategory"
)

// Monitor inspects parsed headers and records alerts. Persistence failures
// are logged and swallowed; the alert side channel must never break the
// reply.
type Monitor struct {
	alerts store.AlertStore
}

// NewMonitor wires the safety monitor.
func NewMonitor(alerts store.AlertStore) *Monitor {
	return &Monitor{alerts: alerts}
}

// Inspect returns an alert when the header marks risk as detected, nil
// otherwise. Risk defaults to Low and category to emotional_distress when the
// model flags detection without grading it.
func (m *Monitor) Inspect(ctx context.Context, header *stream.Header, userID, messageText string) *safetymodel.Alert {
	if !header.Bool(FieldDetected) {
		return nil
	}

	risk, ok := safetymodel.ParseRiskLevel(header.String(FieldRisk, ""))
	if !ok {
		risk = safetymodel.RiskLow
	}

	alert := &safetymodel.Alert{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   messageText,
		Risk:      risk,
		Category:  header.String(FieldCategory, safetymodel.CategoryEmotionalDistress),
		CreatedAt: time.Now().UTC(),
	}

	if err := m.alerts.Append(ctx, *alert); err != nil {
		log.Printf("[safety] failed to persist alert for user=%s: %v", userID, err)
	} else {
		log.Printf("[safety] recorded %s/%s alert for user=%s", alert.Risk, alert.Category, userID)
	}
	return alert
}
