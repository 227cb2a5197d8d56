package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Alert is the product of a triggered rule. The engine creates alerts; the
// caller owns their lifecycle afterwards (persistence, acknowledgement).
type Alert struct {
	ID             uuid.UUID              `json:"id"`
	RuleID         string                 `json:"rule_id"`
	RuleName       string                 `json:"rule_name"`
	Severity       string                 `json:"severity"`
	Message        string                 `json:"message"`
	Recommendation string                 `json:"recommendation"`
	Evidence       map[string]interface{} `json:"evidence,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Acknowledged   bool                   `json:"acknowledged"`
}

// Stats summarizes one analysis run.
type Stats struct {
	TotalRules      int            `json:"total_rules"`
	RulesEvaluated  int            `json:"rules_evaluated"`
	RulesTriggered  int            `json:"rules_triggered"`
	AlertsGenerated int            `json:"alerts_generated"`
	BySeverity      map[string]int `json:"by_severity"`
}

// Diagnostic records a per-rule evaluation failure. Failures never abort
// the batch; they surface here instead of in the alert list.
type Diagnostic struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Error    string `json:"error"`
}

// Result is everything one analysis run produces.
type Result struct {
	Alerts      []*Alert     `json:"alerts"`
	Stats       Stats        `json:"stats"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	// FallbackRules is set when the supplied rule list was empty and the
	// built-in sample set was evaluated instead, marking the run as
	// test-derived.
	FallbackRules bool `json:"fallback_rules,omitempty"`
}

// AnalysisError wraps a top-level analysis failure (fact normalization
// blowing up on a malformed record). When it is returned no alerts are
// produced: evaluation aborts entirely rather than running rules against a
// partial fact map.
type AnalysisError struct {
	Stage string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed during %s: %v", e.Stage, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Analyzer runs rule lists against patient snapshots. It is stateless and
// safe for concurrent use; the logger only receives per-rule diagnostics.
type Analyzer struct {
	log zerolog.Logger
}

func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{log: log}
}

// Analyze normalizes the patient snapshot and evaluates every rule against
// it. An empty rule list substitutes the built-in default set (a documented
// escape hatch, flagged on the result). Per-rule failures are collected as
// diagnostics; only a normalization failure aborts the run.
func (a *Analyzer) Analyze(patient PatientRecord, meds []MedicationRecord, rules []*Rule) (*Result, error) {
	facts, err := safeNormalize(patient, meds)
	if err != nil {
		return nil, &AnalysisError{Stage: "fact normalization", Err: err}
	}

	result := &Result{Stats: Stats{BySeverity: map[string]int{}}}
	if len(rules) == 0 {
		rules = DefaultRules()
		result.FallbackRules = true
		a.log.Debug().Int("rules", len(rules)).Msg("no rules supplied, using built-in default set")
	}
	result.Stats.TotalRules = len(rules)

	now := time.Now().UTC()
	for _, rule := range rules {
		result.Stats.RulesEvaluated++

		triggered, err := EvaluateRule(rule, facts)
		if err != nil {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Error:    err.Error(),
			})
			a.log.Warn().Str("rule_id", rule.ID).Err(err).Msg("rule evaluation failed")
			continue
		}
		if !triggered {
			continue
		}

		result.Stats.RulesTriggered++
		alert := &Alert{
			ID:             uuid.New(),
			RuleID:         rule.ID,
			RuleName:       rule.Name,
			Severity:       rule.AlertSeverity(),
			Message:        FormatTemplate(rule.Action.Message, facts),
			Recommendation: FormatTemplate(rule.Action.Recommendation, facts),
			Evidence:       collectEvidence(rule, facts),
			Timestamp:      now,
		}
		result.Alerts = append(result.Alerts, alert)
	}

	// Severity-ranked, stable with respect to rule order within a rank.
	sort.SliceStable(result.Alerts, func(i, j int) bool {
		return SeverityRank(result.Alerts[i].Severity) < SeverityRank(result.Alerts[j].Severity)
	})

	result.Stats.AlertsGenerated = len(result.Alerts)
	for _, alert := range result.Alerts {
		result.Stats.BySeverity[alert.Severity]++
	}
	return result, nil
}

// safeNormalize guards the one stage allowed to abort analysis. Normalize
// is written never to fail, but a malformed record that defeats it must
// surface as an AnalysisError, not a panic.
func safeNormalize(patient PatientRecord, meds []MedicationRecord) (facts FactMap, err error) {
	defer func() {
		if r := recover(); r != nil {
			facts = nil
			err = fmt.Errorf("normalize: %v", r)
		}
	}()
	return Normalize(patient, meds), nil
}

// collectEvidence snapshots the resolved value of every fact the rule's
// condition references, for audit and debugging.
func collectEvidence(rule *Rule, facts FactMap) map[string]interface{} {
	paths := rule.FactPaths()
	if len(paths) == 0 {
		return nil
	}
	evidence := make(map[string]interface{}, len(paths))
	for _, path := range paths {
		if v, ok := Resolve(facts, path); ok {
			evidence[path] = v
		}
	}
	if len(evidence) == 0 {
		return nil
	}
	return evidence
}
