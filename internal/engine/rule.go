package engine

import "fmt"

// Severity levels, ordered critical > high > moderate > low.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityModerate = "moderate"
	SeverityLow      = "low"
)

// SeverityRank orders alerts for sorting; unknown severities sort last.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityModerate:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// Action is what a triggered rule emits: message and recommendation
// templates (with {{fact}} placeholders) plus the alert severity.
type Action struct {
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
	Severity       string `json:"severity,omitempty"`
}

// Rule is one declarative clinical rule. Rules arrive from the rule source
// already normalized into this shape and are immutable for the duration of
// an analysis run.
type Rule struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type,omitempty"`
	Description string     `json:"description,omitempty"`
	Condition   *Condition `json:"condition"`
	Action      Action     `json:"action"`
	Severity    string     `json:"severity,omitempty"`
	Category    string     `json:"category,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Active      bool       `json:"active"`
}

// AlertSeverity resolves the severity for an alert produced by this rule:
// the action's severity, then the rule's, then moderate.
func (r *Rule) AlertSeverity() string {
	if r.Action.Severity != "" {
		return r.Action.Severity
	}
	if r.Severity != "" {
		return r.Severity
	}
	return SeverityModerate
}

// EvaluateRule evaluates the rule's condition tree against the fact map.
// A combinator node is AND over All / OR over Any; a bare node is a single
// condition. Structural problems (and any panic out of a malformed value)
// are returned as an error with the rule treated as not triggered, so one
// bad rule never aborts the batch.
func EvaluateRule(rule *Rule, facts FactMap) (triggered bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			triggered = false
			err = fmt.Errorf("rule %s: evaluation panic: %v", rule.ID, r)
		}
	}()

	if rule.Condition == nil {
		return false, fmt.Errorf("rule %s: missing condition", rule.ID)
	}
	return evaluateNode(*rule.Condition, facts), nil
}

func evaluateNode(c Condition, facts FactMap) bool {
	switch {
	case len(c.All) > 0:
		for _, child := range c.All {
			if !evaluateNode(child, facts) {
				return false
			}
		}
		return true
	case len(c.Any) > 0:
		for _, child := range c.Any {
			if evaluateNode(child, facts) {
				return true
			}
		}
		return false
	}
	return EvaluateCondition(c, facts)
}

// FactPaths returns every fact path referenced anywhere in the rule's
// condition tree. The orchestrator snapshots these into alert evidence.
func (r *Rule) FactPaths() []string {
	if r.Condition == nil {
		return nil
	}
	var paths []string
	var walk func(c Condition)
	walk = func(c Condition) {
		if c.Fact != "" {
			paths = append(paths, c.Fact)
		}
		for _, child := range c.All {
			walk(child)
		}
		for _, child := range c.Any {
			walk(child)
		}
	}
	walk(*r.Condition)
	return paths
}
