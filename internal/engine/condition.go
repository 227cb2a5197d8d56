package engine

import (
	"fmt"
	"strings"
)

// Condition is one node of a rule's condition tree. A node carrying All or
// Any children is a combinator (AND / OR); otherwise it is a leaf
// {fact, operator, value} test. Combinators may nest.
type Condition struct {
	Fact     string      `json:"fact,omitempty"`
	Operator string      `json:"operator,omitempty"`
	Value    interface{} `json:"value,omitempty"`
	All      []Condition `json:"all,omitempty"`
	Any      []Condition `json:"any,omitempty"`
}

// IsCombinator reports whether the node aggregates child conditions.
func (c *Condition) IsCombinator() bool {
	return len(c.All) > 0 || len(c.Any) > 0
}

// equality tolerance for numeric comparison, so values that went through
// float formatting still match.
const numericEpsilon = 0.01

// EvaluateCondition evaluates a single leaf condition against the fact
// map. The operator table fails closed: missing facts satisfy only
// not_exists, type mismatches and unrecognized operators evaluate false.
func EvaluateCondition(cond Condition, facts FactMap) bool {
	patientValue, resolved := Resolve(facts, cond.Fact)
	if !resolved || patientValue == nil {
		return cond.Operator == "not_exists"
	}

	switch cond.Operator {
	case "exists":
		return valueExists(patientValue)
	case "not_exists":
		return !valueExists(patientValue)
	case "contains":
		return containsMatch(patientValue, cond.Value)
	case "not_contains":
		return !containsMatch(patientValue, cond.Value)
	}

	// Boolean identity, covering literal bools and "true"/"false" strings.
	if pb, pok := toBool(patientValue); pok {
		if rb, rok := toBool(cond.Value); rok {
			switch cond.Operator {
			case "equals", "==", "===":
				return pb == rb
			case "not_equals", "!=", "!==":
				return pb != rb
			}
		}
	}

	pf, pNum := toFloat(patientValue)
	if cond.Operator == "between" {
		min, max, ok := betweenBounds(cond.Value)
		return pNum && ok && pf >= min && pf <= max
	}

	rf, rNum := toFloat(cond.Value)
	if pNum && rNum {
		switch cond.Operator {
		case ">":
			return pf > rf
		case ">=":
			return pf >= rf
		case "<":
			return pf < rf
		case "<=":
			return pf <= rf
		case "equals", "==", "===":
			return abs(pf-rf) < numericEpsilon
		case "not_equals", "!=", "!==":
			return abs(pf-rf) >= numericEpsilon
		}
		return false
	}

	// String comparison, case-insensitive and trimmed. Numeric-only
	// operators are invalid for strings.
	ps := strings.ToLower(strings.TrimSpace(stringify(patientValue)))
	rs := strings.ToLower(strings.TrimSpace(stringify(cond.Value)))
	switch cond.Operator {
	case "equals", "==", "===":
		return ps == rs
	case "not_equals", "!=", "!==":
		return ps != rs
	case "starts_with":
		return strings.HasPrefix(ps, rs)
	case "ends_with":
		return strings.HasSuffix(ps, rs)
	}
	return false
}

// valueExists treats nil and empty strings as absent.
func valueExists(v interface{}) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// containsMatch is case-insensitive. Arrays match when any element equals
// or contains the needle; scalars match on substring of the stringified
// value.
func containsMatch(patientValue, ruleValue interface{}) bool {
	needle := strings.ToLower(strings.TrimSpace(stringify(ruleValue)))
	if needle == "" {
		return false
	}

	switch list := patientValue.(type) {
	case []string:
		for _, item := range list {
			if elementMatches(item, needle) {
				return true
			}
		}
		return false
	case []interface{}:
		for _, item := range list {
			if elementMatches(stringify(item), needle) {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(stringify(patientValue)), needle)
}

func elementMatches(element, needle string) bool {
	e := strings.ToLower(strings.TrimSpace(element))
	return e == needle || strings.Contains(e, needle)
}

func betweenBounds(v interface{}) (float64, float64, bool) {
	list, ok := v.([]interface{})
	if !ok || len(list) != 2 {
		return 0, 0, false
	}
	min, ok1 := toFloat(list[0])
	max, ok2 := toFloat(list[1])
	return min, max, ok1 && ok2
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
