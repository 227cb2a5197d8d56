package patient

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medguard/medguard/internal/engine"
)

// Patient maps to the patient_record table. The record column is JSONB and
// carries the raw clinical snapshot as received from the source system; it is
// deliberately schemaless because upstream exports disagree on field names.
type Patient struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	MRN       *string         `db:"mrn" json:"mrn,omitempty"`
	Record    json.RawMessage `db:"record" json:"record"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// EngineRecord decodes the stored snapshot into the loose map the analyzer
// consumes.
func (p *Patient) EngineRecord() (engine.PatientRecord, error) {
	if len(p.Record) == 0 {
		return engine.PatientRecord{}, nil
	}
	var rec engine.PatientRecord
	if err := json.Unmarshal(p.Record, &rec); err != nil {
		return nil, fmt.Errorf("patient %s record: %w", p.ID, err)
	}
	if rec == nil {
		rec = engine.PatientRecord{}
	}
	return rec, nil
}

// Medication maps to the medication_record table.
type Medication struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	DrugName    string    `db:"drug_name" json:"drug_name"`
	GenericName *string   `db:"generic_name" json:"generic_name,omitempty"`
	BrandName   *string   `db:"brand_name" json:"brand_name,omitempty"`
	DrugClass   *string   `db:"drug_class" json:"drug_class,omitempty"`
	Active      bool      `db:"active" json:"active"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	StoppedAt   *time.Time `db:"stopped_at" json:"stopped_at,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// EngineRecord flattens the row into the normalizer's input shape.
func (m *Medication) EngineRecord() engine.MedicationRecord {
	rec := engine.MedicationRecord{DrugName: m.DrugName}
	if m.GenericName != nil {
		rec.GenericName = *m.GenericName
	}
	if m.BrandName != nil {
		rec.BrandName = *m.BrandName
	}
	if m.DrugClass != nil {
		rec.DrugClass = *m.DrugClass
	}
	return rec
}

// EngineRecords converts a medication list for analysis.
func EngineRecords(meds []*Medication) []engine.MedicationRecord {
	out := make([]engine.MedicationRecord, 0, len(meds))
	for _, m := range meds {
		out = append(out, m.EngineRecord())
	}
	return out
}
