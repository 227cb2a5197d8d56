package analysis

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medguard/medguard/internal/engine"
)

// PatientAlert maps to the patient_alert table. Rows are written once per
// analysis run and mutated only to flip the acknowledged flag.
type PatientAlert struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PatientID      uuid.UUID       `db:"patient_id" json:"patient_id"`
	RuleID         string          `db:"rule_id" json:"rule_id"`
	RuleName       string          `db:"rule_name" json:"rule_name"`
	Severity       string          `db:"severity" json:"severity"`
	Message        string          `db:"message" json:"message"`
	Recommendation string          `db:"recommendation" json:"recommendation"`
	Evidence       json.RawMessage `db:"evidence" json:"evidence,omitempty"`
	Acknowledged   bool            `db:"acknowledged" json:"acknowledged"`
	AcknowledgedAt *time.Time      `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

func fromEngineAlert(patientID uuid.UUID, a *engine.Alert) *PatientAlert {
	row := &PatientAlert{
		ID:             a.ID,
		PatientID:      patientID,
		RuleID:         a.RuleID,
		RuleName:       a.RuleName,
		Severity:       a.Severity,
		Message:        a.Message,
		Recommendation: a.Recommendation,
		Acknowledged:   a.Acknowledged,
		CreatedAt:      a.Timestamp,
	}
	if len(a.Evidence) > 0 {
		if raw, err := json.Marshal(a.Evidence); err == nil {
			row.Evidence = raw
		}
	}
	return row
}

// RunResult is what the alert consumer receives for one analysis run. The
// patient id doubles as the identity token: callers compare it against the
// current selection before committing alerts to visible state, discarding
// runs that finished after the subject changed.
type RunResult struct {
	PatientID     uuid.UUID            `json:"patient_id"`
	StartedAt     time.Time            `json:"started_at"`
	Alerts        []*PatientAlert      `json:"alerts"`
	Stats         engine.Stats         `json:"stats"`
	Diagnostics   []engine.Diagnostic  `json:"diagnostics,omitempty"`
	FallbackRules bool                 `json:"fallback_rules"`
}
