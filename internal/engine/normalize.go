package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// knownLabNames is the reference list of lab keys probed in addition to
// whatever the payload's labs container carries. Lookup tolerates case and
// space/underscore spelling differences.
var knownLabNames = []string{
	"creatinine", "bun", "egfr", "sodium", "potassium", "chloride",
	"bicarbonate", "calcium", "magnesium", "phosphate", "glucose",
	"hba1c", "uric_acid", "urea",
	"hemoglobin", "hematocrit", "platelet_count", "wbc_count", "rbc_count",
	"mcv", "mch", "mchc", "rdw", "neutrophils", "lymphocytes", "monocytes",
	"eosinophils", "basophils",
	"ast", "alt", "alp", "ggt", "total_bilirubin", "direct_bilirubin",
	"indirect_bilirubin", "albumin", "total_protein",
	"total_cholesterol", "ldl", "hdl", "triglycerides",
	"inr", "pt", "ptt", "aptt", "d_dimer", "fibrinogen",
	"tsh", "t3", "t4", "free_t4",
	"troponin", "ck", "ck_mb", "bnp", "ldh", "lipase", "amylase",
	"crp", "esr", "ferritin", "iron", "tibc", "transferrin_saturation",
	"vitamin_d", "vitamin_b12", "folate",
	"urine_protein", "urine_glucose", "urine_ketones", "urine_blood",
	"urine_leukocytes", "urine_nitrites",
}

// knownVitalNames is the fixed vitals vocabulary.
var knownVitalNames = []string{
	"weight", "height", "blood_pressure", "heart_rate", "temperature",
	"respiratory_rate", "oxygen_saturation", "head_circumference",
}

// Normalize transforms a raw patient record plus medication history into
// the canonical fact map. It never fails: missing or malformed inputs
// degrade to zero values so a partial record still yields an evaluable
// snapshot.
func Normalize(patient PatientRecord, meds []MedicationRecord) FactMap {
	facts := FactMap{}
	if patient == nil {
		patient = PatientRecord{}
	}

	normalizeDemographics(facts, patient)
	normalizeAge(facts, patient)
	normalizePregnancy(facts, patient)

	facts["allergies"] = extractStringList(firstPresent(patient, "allergies", "allergy_list"))
	facts["conditions"] = extractStringList(firstPresent(patient, "conditions", "medical_conditions", "diagnoses"))

	normalizeMedications(facts, meds)
	normalizeLabs(facts, patient)
	normalizeVitals(facts, patient)
	deriveValues(facts)

	return facts
}

func firstPresent(patient PatientRecord, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := lookupVariant(patient, k); ok && v != nil {
			return v
		}
	}
	return nil
}

func normalizeDemographics(facts FactMap, patient PatientRecord) {
	gender := ""
	if v, ok := firstPresent(patient, "gender", "sex").(string); ok {
		gender = strings.ToLower(strings.TrimSpace(v))
	}
	facts["gender"] = gender
}

// normalizeAge resolves age_in_days through the documented priority chain:
// an explicit age_in_days field wins, then age in (possibly decimal) years,
// then the day difference from date_of_birth. Exactly one method produces
// the value; age brackets derive from it.
func normalizeAge(facts FactMap, patient PatientRecord) {
	ageInDays := 0
	ageYears := 0.0

	if v, ok := lookupVariant(patient, "age_in_days"); ok {
		if f, ok := toFloat(v); ok && f > 0 {
			ageInDays = int(f)
		}
	}
	if v, ok := lookupVariant(patient, "age"); ok {
		if f, ok := toFloat(v); ok && f > 0 {
			ageYears = f
			if ageInDays == 0 {
				ageInDays = int(f * daysPerYear)
			}
		}
	}
	if ageInDays == 0 {
		if v, ok := lookupVariant(patient, "date_of_birth"); ok {
			if dob, ok := parseDate(v); ok {
				diff := int(math.Floor(time.Since(dob).Hours() / 24))
				if diff > 0 {
					ageInDays = diff
				}
			}
		}
	}
	if ageYears == 0 && ageInDays > 0 {
		ageYears = float64(ageInDays) / daysPerYear
	}

	facts["age"] = int(ageYears)
	facts["age_in_days"] = ageInDays

	// Brackets come from age_in_days when we have it, else from years.
	days := float64(ageInDays)
	if days <= 0 {
		days = ageYears * daysPerYear
	}

	patientType := PatientTypeAdult
	switch {
	case days > 0 && days <= neonateMaxDays:
		patientType = PatientTypeNeonate
	case days > 0 && days <= infantMaxDays:
		patientType = PatientTypeInfant
	case days > 0 && days <= childMaxDays:
		patientType = PatientTypeChild
	case days > 0 && days <= adolescentMaxDays:
		patientType = PatientTypeAdolescent
	case ageYears > geriatricMinYears:
		patientType = PatientTypeGeriatric
	}

	facts["patient_type"] = patientType
	facts["is_neonate"] = patientType == PatientTypeNeonate
	facts["is_infant"] = patientType == PatientTypeInfant
	facts["is_child"] = patientType == PatientTypeChild
	facts["is_adolescent"] = patientType == PatientTypeAdolescent
	facts["is_geriatric"] = patientType == PatientTypeGeriatric
	facts["is_pediatric"] = patientType == PatientTypeNeonate ||
		patientType == PatientTypeInfant ||
		patientType == PatientTypeChild ||
		patientType == PatientTypeAdolescent
	facts["is_adult"] = patientType == PatientTypeAdult || patientType == PatientTypeGeriatric
}

func parseDate(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizePregnancy(facts FactMap, patient PatientRecord) {
	pregnant := false
	if v, ok := lookupVariant(patient, "is_pregnant"); ok {
		if b, ok := toBool(v); ok {
			pregnant = b
		}
	}
	facts["is_pregnant"] = pregnant

	weeks := 0.0
	if v, ok := lookupVariant(patient, "pregnancy_weeks"); ok {
		if f, ok := toFloat(v); ok {
			weeks = f
		}
	}
	facts["pregnancy_weeks"] = weeks
}

// extractStringList accepts the list shapes upstream systems send: a string
// array, an array of {name: ...} objects, a JSON-encoded array string, or a
// comma-separated string. All converge to a lower-cased, trimmed,
// de-duplicated slice.
func extractStringList(v interface{}) []string {
	var raw []string
	switch list := v.(type) {
	case nil:
	case []string:
		raw = list
	case []interface{}:
		for _, item := range list {
			switch entry := item.(type) {
			case string:
				raw = append(raw, entry)
			case map[string]interface{}:
				if name, ok := entry["name"].(string); ok {
					raw = append(raw, name)
				}
			}
		}
	case string:
		s := strings.TrimSpace(list)
		if s == "" {
			break
		}
		if strings.HasPrefix(s, "[") {
			var decoded []interface{}
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return extractStringList(decoded)
			}
		}
		raw = strings.Split(s, ",")
	}
	return dedupeLower(raw)
}

// dedupeLower lower-cases, trims, and case-insensitively de-duplicates,
// preserving first-seen order.
func dedupeLower(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		s := strings.ToLower(strings.TrimSpace(item))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func normalizeMedications(facts FactMap, meds []MedicationRecord) {
	var medications, names, classes []string
	for _, m := range meds {
		if m.DrugName != "" {
			medications = append(medications, m.DrugName)
			names = append(names, m.DrugName)
		}
		if m.GenericName != "" {
			medications = append(medications, m.GenericName)
		}
		if m.BrandName != "" {
			medications = append(medications, m.BrandName)
		}
		if m.DrugClass != "" {
			classes = append(classes, m.DrugClass)
			medications = append(medications, m.DrugClass)
		}
	}
	names = dedupeLower(names)
	facts["medications"] = dedupeLower(medications)
	facts["medication_names"] = names
	facts["medication_classes"] = dedupeLower(classes)
	facts["medication_count"] = len(names)
}

// normalizeLabs collects every key present in the patient's labs container
// (tolerating one level of nesting under labs.labs) plus the known lab
// reference list. Values parse to numbers when possible and otherwise stay
// strings, so qualitative results ("trace", "negative") survive. Each lab
// is stored under its original key and its snake_case key, and mirrored to
// a top-level fact unless a fact of that name already exists; top-level
// facts win over lab-table shadowing.
func normalizeLabs(facts FactMap, patient PatientRecord) {
	labs := map[string]interface{}{}
	facts["labs"] = labs

	container, _ := asMap(firstPresent(patient, "labs", "lab_results", "laboratory"))
	if container != nil {
		if inner, ok := asMap(container["labs"]); ok {
			container = inner
		}
	}

	probe := make([]string, 0, len(container)+len(knownLabNames))
	for k := range container {
		probe = append(probe, k)
	}
	probe = append(probe, knownLabNames...)

	for _, name := range probe {
		if container == nil {
			break
		}
		v, ok := lookupVariant(container, name)
		if !ok || v == nil {
			continue
		}
		var value interface{}
		if f, ok := toFloat(v); ok {
			value = f
		} else if s, ok := v.(string); ok {
			value = s
		} else {
			continue
		}
		key := snakeCase(name)
		labs[name] = value
		labs[key] = value
		if _, exists := facts[key]; !exists {
			facts[key] = value
		}
	}
}

// normalizeVitals reads the vitals container (falling back to top-level
// patient fields for growth measurements) and splits "120/80" blood
// pressure strings into systolic/diastolic facts.
func normalizeVitals(facts FactMap, patient PatientRecord) {
	vitals := map[string]interface{}{}
	facts["vitals"] = vitals

	container, _ := asMap(firstPresent(patient, "vitals", "vital_signs"))

	for _, name := range knownVitalNames {
		var v interface{}
		var ok bool
		if container != nil {
			v, ok = lookupVariant(container, name)
		}
		if !ok {
			v, ok = lookupVariant(patient, name)
		}
		if !ok || v == nil {
			continue
		}

		if name == "blood_pressure" {
			if s, isStr := v.(string); isStr {
				vitals[name] = s
				if sys, dia, ok := splitBloodPressure(s); ok {
					vitals["systolic_bp"] = sys
					vitals["diastolic_bp"] = dia
					setIfAbsent(facts, "systolic_bp", sys)
					setIfAbsent(facts, "diastolic_bp", dia)
				}
				setIfAbsent(facts, name, s)
			}
			continue
		}

		if f, ok := toFloat(v); ok {
			vitals[name] = f
			setIfAbsent(facts, name, f)
		} else if s, ok := v.(string); ok {
			vitals[name] = s
			setIfAbsent(facts, name, s)
		}
	}
}

func setIfAbsent(facts FactMap, key string, v interface{}) {
	if _, ok := facts[key]; !ok {
		facts[key] = v
	}
}

func splitBloodPressure(s string) (float64, float64, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	sys, ok1 := toFloat(parts[0])
	dia, ok2 := toFloat(parts[1])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return sys, dia, true
}

// deriveValues computes BMI, eGFR, and the lab ratios. Each derivation only
// populates when all of its numeric operands are positive; ratios mirror
// into both the top-level facts and the labs map.
func deriveValues(facts FactMap) {
	labs, _ := asMap(facts["labs"])

	weight, _ := toFloat(facts["weight"])
	height, _ := toFloat(facts["height"])
	if weight > 0 && height > 0 {
		hm := height / 100
		facts["bmi"] = round1(weight / (hm * hm))
	}

	cr := labFloat(facts, labs, "creatinine")
	age, _ := toFloat(facts["age"])
	gender, _ := facts["gender"].(string)
	if cr > 0 && age > 0 && gender != "" {
		facts["egfr"] = computeEGFR(cr, age, gender)
		if labs != nil {
			labs["egfr"] = facts["egfr"]
		}
	}

	setRatio(facts, labs, "bun_creatinine_ratio", func() (float64, bool) {
		bun := labFloat(facts, labs, "bun")
		if bun > 0 && cr > 0 {
			return round1(bun / cr), true
		}
		return 0, false
	})
	setRatio(facts, labs, "anion_gap", func() (float64, bool) {
		na := labFloat(facts, labs, "sodium")
		cl := labFloat(facts, labs, "chloride")
		hco3 := labFloat(facts, labs, "bicarbonate")
		if na > 0 && cl > 0 && hco3 > 0 {
			return round1(na - (cl + hco3)), true
		}
		return 0, false
	})
	setRatio(facts, labs, "bilirubin_ratio", func() (float64, bool) {
		direct := labFloat(facts, labs, "direct_bilirubin")
		total := labFloat(facts, labs, "total_bilirubin")
		if direct > 0 && total > 0 {
			return round1(direct / total), true
		}
		return 0, false
	})
	setRatio(facts, labs, "ast_alt_ratio", func() (float64, bool) {
		ast := labFloat(facts, labs, "ast")
		alt := labFloat(facts, labs, "alt")
		if ast > 0 && alt > 0 {
			return round1(ast / alt), true
		}
		return 0, false
	})
	setRatio(facts, labs, "total_hdl_ratio", func() (float64, bool) {
		total := labFloat(facts, labs, "total_cholesterol")
		hdl := labFloat(facts, labs, "hdl")
		if total > 0 && hdl > 0 {
			return round1(total / hdl), true
		}
		return 0, false
	})
	setRatio(facts, labs, "ldl_hdl_ratio", func() (float64, bool) {
		ldl := labFloat(facts, labs, "ldl")
		hdl := labFloat(facts, labs, "hdl")
		if ldl > 0 && hdl > 0 {
			return round1(ldl / hdl), true
		}
		return 0, false
	})
}

func labFloat(facts FactMap, labs map[string]interface{}, name string) float64 {
	if f, ok := toFloat(facts[name]); ok {
		return f
	}
	if labs != nil {
		if v, ok := lookupVariant(labs, name); ok {
			if f, ok := toFloat(v); ok {
				return f
			}
		}
	}
	return 0
}

func setRatio(facts FactMap, labs map[string]interface{}, name string, compute func() (float64, bool)) {
	v, ok := compute()
	if !ok {
		return
	}
	facts[name] = v
	if labs != nil {
		labs[name] = v
	}
}

// computeEGFR implements the CKD-EPI style estimate:
// 141 * min(cr/k,1)^a * max(cr/k,1)^-1.209 * 0.993^age, with a 1.018
// multiplier for female patients, rounded to one decimal.
func computeEGFR(cr, age float64, gender string) float64 {
	k, a := 0.9, -0.411
	female := strings.HasPrefix(gender, "f")
	if female {
		k, a = 0.7, -0.329
	}
	ratio := cr / k
	egfr := 141 * math.Pow(math.Min(ratio, 1), a) * math.Pow(math.Max(ratio, 1), -1.209) * math.Pow(0.993, age)
	if female {
		egfr *= 1.018
	}
	return round1(egfr)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// String renders a compact summary for diagnostics logging.
func (f FactMap) String() string {
	meds, _ := f["medications"].([]string)
	return fmt.Sprintf("facts{age_in_days=%v type=%v meds=%d}", f["age_in_days"], f["patient_type"], len(meds))
}
