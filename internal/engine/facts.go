// Package engine evaluates declarative clinical rules against a normalized
// snapshot of patient data and produces severity-ranked safety alerts.
//
// The engine is pure: one analysis run takes an immutable patient record,
// medication history, and rule list, and performs no I/O. Fetching those
// inputs is the caller's concern (see internal/domain/analysis).
package engine

import (
	"strconv"
	"strings"
)

// PatientRecord is the raw, heterogeneous patient payload supplied by the
// patient data provider. Keys and value shapes vary by upstream source
// (age in years vs. days vs. birth date, labs keyed with spaces or
// underscores, allergies as arrays or comma-separated strings), which is
// why normalization exists.
type PatientRecord map[string]interface{}

// MedicationRecord is one entry of a patient's medication history.
type MedicationRecord struct {
	DrugName    string `json:"drug_name"`
	GenericName string `json:"generic_name"`
	BrandName   string `json:"brand_name"`
	DrugClass   string `json:"drug_class"`
}

// FactMap is the canonical working set rule conditions resolve against.
// It holds scalar facts at the top level plus the labs, vitals,
// medications, and allergies containers. A FactMap is rebuilt from scratch
// for every analysis run and never mutated afterwards.
type FactMap map[string]interface{}

// Patient type enum values.
const (
	PatientTypeNeonate    = "neonate"
	PatientTypeInfant     = "infant"
	PatientTypeChild      = "child"
	PatientTypeAdolescent = "adolescent"
	PatientTypeAdult      = "adult"
	PatientTypeGeriatric  = "geriatric"
)

// Age bracket thresholds in days.
const (
	neonateMaxDays    = 28
	infantMaxDays     = 365
	childMaxDays      = 12 * 365
	adolescentMaxDays = 18 * 365
	geriatricMinYears = 65
	daysPerYear       = 365.25
)

// asMap unwraps the map shapes that show up in raw patient payloads and in
// the fact map itself.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case FactMap:
		return m, true
	case PatientRecord:
		return m, true
	}
	return nil, false
}

// toFloat coerces numbers and numeric strings. Strings are trimmed, and a
// leading-numeric prefix is accepted the way lab feeds write qualified
// values ("120/80", "5.2 mmol/L").
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		if f, ok := leadingFloat(s); ok {
			return f, true
		}
	}
	return 0, false
}

// leadingFloat parses the longest numeric prefix of s.
func leadingFloat(s string) (float64, bool) {
	end := 0
	seenDigit := false
	seenDot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			end = i + 1
		case r == '.' && !seenDot:
			seenDot = true
			end = i + 1
		case (r == '-' || r == '+') && i == 0:
			end = i + 1
		default:
			goto done
		}
	}
done:
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	return f, err == nil
}

// toBool recognizes boolean facts and their string renderings.
func toBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// snakeCase lower-cases a fact key and normalizes spaces to underscores.
func snakeCase(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// keyVariants returns the lookup spellings tried for a fact key, in order:
// the key itself, lower-cased, underscores as spaces, spaces as
// underscores, and underscores removed.
func keyVariants(key string) []string {
	lower := strings.ToLower(key)
	return []string{
		key,
		lower,
		strings.ReplaceAll(lower, "_", " "),
		strings.ReplaceAll(lower, " ", "_"),
		strings.ReplaceAll(lower, "_", ""),
	}
}

// lookupVariant finds key in m tolerating case and space/underscore
// differences.
func lookupVariant(m map[string]interface{}, key string) (interface{}, bool) {
	for _, k := range keyVariants(key) {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	// Fall back to scanning for a case-insensitive match so "Heart Rate"
	// finds "heart rate" even when neither spelling is canonical.
	want := snakeCase(key)
	for k, v := range m {
		if snakeCase(k) == want {
			return v, true
		}
	}
	return nil, false
}
