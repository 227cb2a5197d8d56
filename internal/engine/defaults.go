package engine

// DefaultRules is the built-in sample rule set evaluated when the rule
// source supplies nothing (empty store or fetch failure). It covers a
// handful of well-known drug therapy problems so a fresh deployment still
// produces meaningful output; production deployments are expected to
// replace it with an authored rule set.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			ID:       "default-geriatric-hyperkalemia",
			Name:     "Geriatric hyperkalemia with potassium-sparing therapy",
			Type:     "drug_monitoring",
			Severity: SeverityCritical,
			Category: "electrolyte",
			Active:   true,
			Condition: &Condition{All: []Condition{
				{Fact: "age", Operator: ">", Value: 65},
				{Fact: "labs.potassium", Operator: ">", Value: 5.0},
				{Fact: "medications", Operator: "contains", Value: "spironolactone"},
			}},
			Action: Action{
				Message:        "Patient is {{age}} years old with potassium {{labs.potassium}} mmol/L on a potassium-sparing diuretic",
				Recommendation: "Hold spironolactone and recheck potassium ({{labs.potassium}} mmol/L); review concurrent ACE inhibitor use",
				Severity:       SeverityCritical,
			},
		},
		{
			ID:       "default-ace-pregnancy",
			Name:     "ACE inhibitor in pregnancy",
			Type:     "contraindication",
			Severity: SeverityCritical,
			Category: "pregnancy",
			Active:   true,
			Condition: &Condition{All: []Condition{
				{Fact: "is_pregnant", Operator: "equals", Value: true},
				{Fact: "medications", Operator: "contains", Value: "lisinopril"},
			}},
			Action: Action{
				Message:        "ACE inhibitor prescribed during pregnancy ({{pregnancy_weeks}} weeks)",
				Recommendation: "Discontinue lisinopril; ACE inhibitors are fetotoxic in the second and third trimesters",
				Severity:       SeverityCritical,
			},
		},
		{
			ID:       "default-pediatric-tetracycline",
			Name:     "Tetracycline in pediatric patient",
			Type:     "contraindication",
			Severity: SeverityHigh,
			Category: "pediatric",
			Active:   true,
			Condition: &Condition{All: []Condition{
				{Fact: "is_pediatric", Operator: "equals", Value: true},
				{Fact: "medications", Operator: "contains", Value: "tetracycline"},
			}},
			Action: Action{
				Message:        "Tetracycline ordered for a {{patient_type}} ({{age_in_days}} days old)",
				Recommendation: "Avoid tetracyclines under 8 years: permanent tooth discoloration and enamel hypoplasia",
				Severity:       SeverityHigh,
			},
		},
		{
			ID:       "default-renal-impairment",
			Name:     "Severe renal impairment",
			Type:     "dosing",
			Severity: SeverityHigh,
			Category: "renal",
			Active:   true,
			Condition: &Condition{All: []Condition{
				{Fact: "egfr", Operator: "<", Value: 30},
			}},
			Action: Action{
				Message:        "Estimated GFR is {{egfr}} mL/min/1.73m2 (creatinine {{labs.creatinine}} mg/dL)",
				Recommendation: "Review renally cleared medications for dose adjustment or discontinuation",
				Severity:       SeverityHigh,
			},
		},
		{
			ID:       "default-thrombocytopenia",
			Name:     "Severe thrombocytopenia",
			Type:     "lab_monitoring",
			Severity: SeverityModerate,
			Category: "hematology",
			Active:   true,
			Condition: &Condition{Any: []Condition{
				{Fact: "labs.platelet_count", Operator: "<", Value: 50},
			}},
			Action: Action{
				Message:        "Platelet count {{platelet_count}} x10^9/L",
				Recommendation: "Review anticoagulants and antiplatelet agents; consider hematology referral",
				Severity:       SeverityModerate,
			},
		},
		{
			ID:       "default-polypharmacy",
			Name:     "Geriatric polypharmacy",
			Type:     "drug_monitoring",
			Severity: SeverityLow,
			Category: "polypharmacy",
			Active:   true,
			Condition: &Condition{All: []Condition{
				{Fact: "is_geriatric", Operator: "equals", Value: true},
				{Fact: "medication_count", Operator: ">=", Value: 10},
			}},
			Action: Action{
				Message:        "Patient is on {{medication_count}} concurrent medications",
				Recommendation: "Schedule a medication reconciliation and deprescribing review",
				Severity:       SeverityLow,
			},
		},
	}
}
