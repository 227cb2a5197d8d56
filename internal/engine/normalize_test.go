package engine

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalize_AgeBrackets(t *testing.T) {
	tests := []struct {
		name        string
		patient     PatientRecord
		wantDays    int
		wantType    string
		wantFlags   map[string]bool
	}{
		{
			name:     "neonate at 20 days",
			patient:  PatientRecord{"age_in_days": 20},
			wantDays: 20,
			wantType: PatientTypeNeonate,
			wantFlags: map[string]bool{
				"is_neonate": true, "is_infant": false, "is_pediatric": true,
			},
		},
		{
			name:     "boundary neonate at 28 days",
			patient:  PatientRecord{"age_in_days": 28},
			wantDays: 28,
			wantType: PatientTypeNeonate,
			wantFlags: map[string]bool{"is_neonate": true},
		},
		{
			name:     "child at 400 days",
			patient:  PatientRecord{"age_in_days": 400},
			wantDays: 400,
			wantType: PatientTypeChild,
			wantFlags: map[string]bool{
				"is_infant": false, "is_child": true, "is_pediatric": true,
			},
		},
		{
			name:     "adolescent at 15 years",
			patient:  PatientRecord{"age": 15},
			wantDays: 5478,
			wantType: PatientTypeAdolescent,
			wantFlags: map[string]bool{"is_adolescent": true, "is_pediatric": true},
		},
		{
			name:     "adult at 40 years",
			patient:  PatientRecord{"age": 40},
			wantDays: 14610,
			wantType: PatientTypeAdult,
			wantFlags: map[string]bool{"is_adult": true, "is_pediatric": false},
		},
		{
			name:     "geriatric at 70 years",
			patient:  PatientRecord{"age": 70},
			wantDays: 25567,
			wantType: PatientTypeGeriatric,
			wantFlags: map[string]bool{"is_geriatric": true, "is_adult": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := Normalize(tt.patient, nil)
			if got := facts["age_in_days"]; got != tt.wantDays {
				t.Errorf("age_in_days = %v, want %d", got, tt.wantDays)
			}
			if got := facts["patient_type"]; got != tt.wantType {
				t.Errorf("patient_type = %v, want %q", got, tt.wantType)
			}
			for flag, want := range tt.wantFlags {
				if got := facts[flag]; got != want {
					t.Errorf("%s = %v, want %v", flag, got, want)
				}
			}
		})
	}
}

func TestNormalize_AgeResolutionPriority(t *testing.T) {
	// Explicit age_in_days wins over years.
	facts := Normalize(PatientRecord{"age_in_days": 100, "age": 5}, nil)
	if facts["age_in_days"] != 100 {
		t.Errorf("age_in_days = %v, want 100", facts["age_in_days"])
	}
	if facts["age"] != 5 {
		t.Errorf("age = %v, want 5", facts["age"])
	}

	// Decimal years convert with 365.25 days/year.
	facts = Normalize(PatientRecord{"age": 0.5}, nil)
	if facts["age_in_days"] != 182 {
		t.Errorf("age_in_days = %v, want 182", facts["age_in_days"])
	}

	// date_of_birth is the last resort.
	dob := time.Now().AddDate(0, 0, -10).Format("2006-01-02")
	facts = Normalize(PatientRecord{"date_of_birth": dob}, nil)
	days := facts["age_in_days"].(int)
	if days < 9 || days > 10 {
		t.Errorf("age_in_days from dob = %d, want 9 or 10", days)
	}
}

func TestNormalize_MedicationDedup(t *testing.T) {
	meds := []MedicationRecord{
		{DrugName: "Lisinopril", GenericName: "lisinopril", DrugClass: "ACE Inhibitor"},
		{DrugName: "LISINOPRIL"},
		{DrugName: "Metformin", BrandName: "Glucophage"},
	}
	facts := Normalize(PatientRecord{}, meds)

	medications := facts["medications"].([]string)
	count := 0
	for _, m := range medications {
		if m == "lisinopril" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("medications contains %q %d times, want exactly once", "lisinopril", count)
	}

	wantNames := []string{"lisinopril", "metformin"}
	if got := facts["medication_names"].([]string); !reflect.DeepEqual(got, wantNames) {
		t.Errorf("medication_names = %v, want %v", got, wantNames)
	}
	if facts["medication_count"] != 2 {
		t.Errorf("medication_count = %v, want 2", facts["medication_count"])
	}
	if got := facts["medication_classes"].([]string); !reflect.DeepEqual(got, []string{"ace inhibitor"}) {
		t.Errorf("medication_classes = %v", got)
	}
}

func TestNormalize_AllergyShapes(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		want    []string
	}{
		{"string array", []interface{}{"Penicillin", "sulfa "}, []string{"penicillin", "sulfa"}},
		{"object array", []interface{}{map[string]interface{}{"name": "Penicillin"}}, []string{"penicillin"}},
		{"json string", `["Penicillin","Sulfa"]`, []string{"penicillin", "sulfa"}},
		{"comma separated", "Penicillin, Sulfa, penicillin", []string{"penicillin", "sulfa"}},
		{"empty string", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := Normalize(PatientRecord{"allergies": tt.in}, nil)
			if got := facts["allergies"].([]string); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("allergies = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize_LabExtraction(t *testing.T) {
	patient := PatientRecord{
		"labs": map[string]interface{}{
			"labs": map[string]interface{}{
				"Creatinine":     "1.4",
				"uric acid":      7.2,
				"urine_ketones":  "trace",
			},
		},
	}
	facts := Normalize(patient, nil)
	labs := facts["labs"].(map[string]interface{})

	if labs["creatinine"] != 1.4 {
		t.Errorf("labs.creatinine = %v, want 1.4", labs["creatinine"])
	}
	if facts["creatinine"] != 1.4 {
		t.Errorf("top-level creatinine = %v, want 1.4", facts["creatinine"])
	}
	if labs["uric_acid"] != 7.2 {
		t.Errorf("labs.uric_acid = %v, want 7.2", labs["uric_acid"])
	}
	// Qualitative results stay strings.
	if labs["urine_ketones"] != "trace" {
		t.Errorf("labs.urine_ketones = %v, want trace", labs["urine_ketones"])
	}
}

func TestNormalize_LabDoesNotShadowTopLevelFact(t *testing.T) {
	// "age" as a lab key must not overwrite the demographic fact.
	patient := PatientRecord{
		"age":  30,
		"labs": map[string]interface{}{"age": 99},
	}
	facts := Normalize(patient, nil)
	if facts["age"] != 30 {
		t.Errorf("age = %v, want 30 (top-level fact wins)", facts["age"])
	}
}

func TestNormalize_VitalsAndBloodPressure(t *testing.T) {
	patient := PatientRecord{
		"vitals": map[string]interface{}{
			"Weight":         "80",
			"height":         180,
			"blood_pressure": "120/80",
			"Heart Rate":     72,
		},
	}
	facts := Normalize(patient, nil)
	vitals := facts["vitals"].(map[string]interface{})

	if vitals["weight"] != 80.0 {
		t.Errorf("vitals.weight = %v, want 80", vitals["weight"])
	}
	if facts["systolic_bp"] != 120.0 {
		t.Errorf("systolic_bp = %v, want 120", facts["systolic_bp"])
	}
	if facts["diastolic_bp"] != 80.0 {
		t.Errorf("diastolic_bp = %v, want 80", facts["diastolic_bp"])
	}
	if vitals["heart_rate"] != 72.0 {
		t.Errorf("vitals.heart_rate = %v, want 72", vitals["heart_rate"])
	}
}

func TestNormalize_DerivedBMI(t *testing.T) {
	facts := Normalize(PatientRecord{
		"vitals": map[string]interface{}{"weight": 80, "height": 180},
	}, nil)
	if facts["bmi"] != 24.7 {
		t.Errorf("bmi = %v, want 24.7", facts["bmi"])
	}

	// Missing height leaves bmi unset.
	facts = Normalize(PatientRecord{"vitals": map[string]interface{}{"weight": 80}}, nil)
	if _, ok := facts["bmi"]; ok {
		t.Error("bmi should not be set without height")
	}
}

func TestNormalize_DerivedEGFR(t *testing.T) {
	facts := Normalize(PatientRecord{
		"age":    50,
		"gender": "female",
		"labs":   map[string]interface{}{"creatinine": 0.7},
	}, nil)

	egfr, ok := facts["egfr"].(float64)
	if !ok {
		t.Fatal("egfr not computed")
	}
	// cr/k == 1 for a female at 0.7, so egfr = 141 * 0.993^50 * 1.018.
	if egfr < 100 || egfr > 102 {
		t.Errorf("egfr = %v, want ~101", egfr)
	}

	// No gender, no egfr.
	facts = Normalize(PatientRecord{
		"age":  50,
		"labs": map[string]interface{}{"creatinine": 0.7},
	}, nil)
	if _, ok := facts["egfr"]; ok {
		t.Error("egfr should require gender")
	}
}

func TestNormalize_DerivedRatios(t *testing.T) {
	facts := Normalize(PatientRecord{
		"labs": map[string]interface{}{
			"sodium":      140,
			"chloride":    100,
			"bicarbonate": 24,
			"bun":         28,
			"creatinine":  1.4,
		},
	}, nil)

	if facts["anion_gap"] != 16.0 {
		t.Errorf("anion_gap = %v, want 16", facts["anion_gap"])
	}
	if facts["bun_creatinine_ratio"] != 20.0 {
		t.Errorf("bun_creatinine_ratio = %v, want 20", facts["bun_creatinine_ratio"])
	}
	labs := facts["labs"].(map[string]interface{})
	if labs["anion_gap"] != 16.0 {
		t.Errorf("labs.anion_gap = %v, want 16 (ratios mirror into labs)", labs["anion_gap"])
	}

	// A zero operand suppresses the ratio.
	facts = Normalize(PatientRecord{
		"labs": map[string]interface{}{"sodium": 140, "chloride": 0, "bicarbonate": 24},
	}, nil)
	if _, ok := facts["anion_gap"]; ok {
		t.Error("anion_gap should require all operands > 0")
	}
}

func TestNormalize_Pregnancy(t *testing.T) {
	facts := Normalize(PatientRecord{"is_pregnant": "true", "pregnancy_weeks": "22.5"}, nil)
	if facts["is_pregnant"] != true {
		t.Errorf("is_pregnant = %v, want true", facts["is_pregnant"])
	}
	if facts["pregnancy_weeks"] != 22.5 {
		t.Errorf("pregnancy_weeks = %v, want 22.5", facts["pregnancy_weeks"])
	}
}

func TestNormalize_NilAndMalformedInputs(t *testing.T) {
	facts := Normalize(nil, nil)
	if facts["age_in_days"] != 0 {
		t.Errorf("age_in_days = %v, want 0", facts["age_in_days"])
	}
	if facts["gender"] != "" {
		t.Errorf("gender = %v, want empty", facts["gender"])
	}

	// Garbage values degrade, never panic.
	facts = Normalize(PatientRecord{
		"age":       "not a number",
		"labs":      "not a map",
		"allergies": 42,
	}, nil)
	if facts["age"] != 0 {
		t.Errorf("age = %v, want 0", facts["age"])
	}
	if got := facts["allergies"].([]string); len(got) != 0 {
		t.Errorf("allergies = %v, want empty", got)
	}
}
