package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Field-name substrings that pick the numeric formatting policy, checked
// in this order.
var (
	oneDecimalFields = []string{
		"creatinine", "potassium", "sodium", "calcium", "magnesium",
		"phosphate", "inr", "hba1c", "uric_acid", "urea",
	}
	integerFields = []string{
		"egfr", "age", "bmi", "pregnancy_weeks", "age_in_days", "age_days",
		"weight", "height", "platelet_count", "wbc_count", "rbc_count",
	}
	zeroDecimalFields = []string{
		"temperature", "heart_rate", "respiratory_rate", "oxygen_saturation",
	}
)

// FormatTemplate substitutes every {{path}} placeholder in the template
// with the value resolved from the fact map. Numeric values are formatted
// per the field-name policy, booleans render Yes/No, and unresolvable
// placeholders render the literal "N/A". Substitution is textual, so
// duplicate placeholders all receive the same value.
func FormatTemplate(template string, facts FactMap) string {
	matches := placeholderRe.FindAllStringSubmatch(template, -1)
	if len(matches) == 0 {
		return template
	}

	out := template
	for _, m := range matches {
		token, path := m[0], strings.TrimSpace(m[1])
		out = strings.ReplaceAll(out, token, renderValue(path, facts))
	}
	return out
}

func renderValue(path string, facts FactMap) string {
	v, ok := Resolve(facts, path)
	if !ok || v == nil {
		return "N/A"
	}

	if b, isBool := v.(bool); isBool {
		if b {
			return "Yes"
		}
		return "No"
	}

	if f, isNum := toFloat(v); isNum {
		// Non-numeric strings fall through to plain rendering; "120/80"
		// style values should not be reformatted as numbers.
		if s, isStr := v.(string); isStr {
			if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
				return s
			}
		}
		return formatNumber(path, f)
	}

	if s, isStr := v.(string); isStr {
		if s == "" {
			return "N/A"
		}
		return s
	}
	return stringify(v)
}

// formatNumber applies the per-field rounding policy.
func formatNumber(path string, f float64) string {
	field := strings.ToLower(path)
	switch {
	case matchesAny(field, oneDecimalFields):
		return strconv.FormatFloat(f, 'f', 1, 64)
	case matchesAny(field, integerFields):
		return strconv.FormatFloat(math.Round(f), 'f', 0, 64)
	case matchesAny(field, zeroDecimalFields):
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', 1, 64)
}

func matchesAny(field string, substrings []string) bool {
	for _, s := range substrings {
		if strings.Contains(field, s) {
			return true
		}
	}
	return false
}
