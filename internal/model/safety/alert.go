package safety

import (
	"strings"
	"time"
)

// RiskLevel grades a detected safety signal.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Alert categories. The set is open; these are the values the model is
// instructed to emit.
const (
	CategorySelfHarm          = "self-harm"
	CategoryViolence          = "violence"
	CategoryEmotionalDistress = "emotional_distress"
	CategoryPanic             = "panic"
	CategoryOther             = "other"
)

// Alert records a risk signal detected in one exchange. Append-only.
type Alert struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Risk      RiskLevel `json:"riskLevel"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// ParseRiskLevel normalizes a risk string from the model header. Unknown or
// empty values report false.
func ParseRiskLevel(raw string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	default:
		return "", false
	}
}
