package engine

import "strings"

// factAliases maps rule-author spellings of the age/pediatric vocabulary to
// canonical fact keys. Rule authors routinely write these without knowing
// the normalized names.
var factAliases = map[string]string{
	"age_days":          "age_in_days",
	"days_old":          "age_in_days",
	"age_in_years":      "age",
	"age_years":         "age",
	"pediatric":         "is_pediatric",
	"paediatric":        "is_pediatric",
	"is_paediatric":     "is_pediatric",
	"neonate":           "is_neonate",
	"newborn":           "is_neonate",
	"is_newborn":        "is_neonate",
	"infant":            "is_infant",
	"child":             "is_child",
	"adolescent":        "is_adolescent",
	"geriatric":         "is_geriatric",
	"elderly":           "is_geriatric",
	"is_elderly":        "is_geriatric",
	"adult":             "is_adult",
	"patient_category":  "patient_type",
	"age_group":         "patient_type",
	"age_bracket":       "patient_type",
	"pregnant":          "is_pregnant",
	"pregnancy":         "is_pregnant",
	"gestational_weeks": "pregnancy_weeks",
}

// Resolve looks up a rule's fact path in the fact map through the fallback
// chain: dotted traversal, direct key, alias table, labs container, vitals
// container, then lower-cased direct key. The first hit wins. Resolution is
// total: it reports a miss rather than failing, since rule authors are
// not guaranteed to know the exact normalized key.
func Resolve(facts FactMap, fieldPath string) (interface{}, bool) {
	if facts == nil || fieldPath == "" {
		return nil, false
	}

	if strings.Contains(fieldPath, ".") {
		return resolveDotted(facts, fieldPath)
	}

	if v, ok := facts[fieldPath]; ok {
		return v, true
	}

	if canonical, ok := factAliases[strings.ToLower(strings.TrimSpace(fieldPath))]; ok {
		if v, ok := facts[canonical]; ok {
			return v, true
		}
	}

	if labs, ok := asMap(facts["labs"]); ok {
		if v, ok := lookupVariant(labs, fieldPath); ok {
			return v, true
		}
	}

	if vitals, ok := asMap(facts["vitals"]); ok {
		if v, ok := lookupVariant(vitals, fieldPath); ok {
			return v, true
		}
	}

	if v, ok := facts[strings.ToLower(fieldPath)]; ok {
		return v, true
	}

	return nil, false
}

// resolveDotted walks a dotted path segment by segment, trying the key
// variants at each hop. Any unresolvable segment aborts the walk.
func resolveDotted(facts FactMap, fieldPath string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(facts)
	for _, segment := range strings.Split(fieldPath, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		next, ok := lookupVariant(m, segment)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}
