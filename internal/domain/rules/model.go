package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medguard/medguard/internal/engine"
)

// ClinicalRule maps to the clinical_rule table. The condition and action
// columns are JSONB; older imports stored them as JSON-encoded strings, so
// decoding tolerates both shapes.
type ClinicalRule struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	RuleType    string          `db:"rule_type" json:"rule_type"`
	Description *string         `db:"description" json:"description,omitempty"`
	Severity    string          `db:"severity" json:"severity"`
	Category    *string         `db:"category" json:"category,omitempty"`
	Tags        []string        `db:"tags" json:"tags,omitempty"`
	Condition   json.RawMessage `db:"condition" json:"condition"`
	Action      json.RawMessage `db:"action" json:"action"`
	Active      bool            `db:"active" json:"active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// unwrapJSON peels one level of string encoding: `"{\"all\":[...]}"` becomes
// `{"all":[...]}`. Raw objects pass through untouched.
func unwrapJSON(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '"' {
		return trimmed, nil
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return nil, fmt.Errorf("unwrap string payload: %w", err)
	}
	return json.RawMessage(inner), nil
}

// ToEngine converts the stored row into an evaluatable rule.
func (r *ClinicalRule) ToEngine() (*engine.Rule, error) {
	out := &engine.Rule{
		ID:       r.ID.String(),
		Name:     r.Name,
		Type:     r.RuleType,
		Severity: r.Severity,
		Tags:     r.Tags,
		Active:   r.Active,
	}
	if r.Description != nil {
		out.Description = *r.Description
	}
	if r.Category != nil {
		out.Category = *r.Category
	}

	condRaw, err := unwrapJSON(r.Condition)
	if err != nil {
		return nil, fmt.Errorf("rule %s condition: %w", r.ID, err)
	}
	if condRaw != nil {
		var cond engine.Condition
		if err := json.Unmarshal(condRaw, &cond); err != nil {
			return nil, fmt.Errorf("rule %s condition: %w", r.ID, err)
		}
		out.Condition = &cond
	}

	actionRaw, err := unwrapJSON(r.Action)
	if err != nil {
		return nil, fmt.Errorf("rule %s action: %w", r.ID, err)
	}
	if actionRaw != nil {
		if err := json.Unmarshal(actionRaw, &out.Action); err != nil {
			return nil, fmt.Errorf("rule %s action: %w", r.ID, err)
		}
	}
	return out, nil
}

// ToEngineRules converts a batch, skipping rows that fail to decode and
// reporting them so the caller can log without dropping the whole set.
func ToEngineRules(rows []*ClinicalRule) ([]*engine.Rule, []error) {
	var (
		out  []*engine.Rule
		errs []error
	)
	for _, row := range rows {
		rule, err := row.ToEngine()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rule)
	}
	return out, errs
}
