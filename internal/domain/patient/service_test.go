package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

type mockPatientRepo struct {
	data map[uuid.UUID]*Patient
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.data[p.ID] = p
	return nil
}
func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	if p, ok := m.data[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("not found")
}
func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.data[p.ID] = p
	return nil
}
func (m *mockPatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.data, id)
	return nil
}
func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.data {
		out = append(out, p)
	}
	return out, len(out), nil
}

type mockMedicationRepo struct {
	data map[uuid.UUID][]*Medication
	err  error
}

func (m *mockMedicationRepo) Create(_ context.Context, med *Medication) error {
	med.ID = uuid.New()
	m.data[med.PatientID] = append(m.data[med.PatientID], med)
	return nil
}
func (m *mockMedicationRepo) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	for _, meds := range m.data {
		for _, med := range meds {
			if med.ID == id {
				return med, nil
			}
		}
	}
	return nil, fmt.Errorf("not found")
}
func (m *mockMedicationRepo) Update(_ context.Context, med *Medication) error { return nil }
func (m *mockMedicationRepo) Delete(_ context.Context, id uuid.UUID) error    { return nil }
func (m *mockMedicationRepo) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*Medication, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*Medication
	for _, med := range m.data[patientID] {
		if med.Active {
			out = append(out, med)
		}
	}
	return out, nil
}

func TestService_GetRecord(t *testing.T) {
	patients := &mockPatientRepo{data: map[uuid.UUID]*Patient{}}
	meds := &mockMedicationRepo{data: map[uuid.UUID][]*Medication{}}
	svc := NewService(patients, meds)

	p := &Patient{Record: json.RawMessage(`{"age": 70}`)}
	if err := patients.Create(context.Background(), p); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, err := svc.GetRecord(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec["age"] != float64(70) {
		t.Errorf("age = %v", rec["age"])
	}

	if _, err := svc.GetRecord(context.Background(), uuid.New()); err == nil {
		t.Error("unknown patient should error")
	}
}

func TestService_ListMedications(t *testing.T) {
	patients := &mockPatientRepo{data: map[uuid.UUID]*Patient{}}
	meds := &mockMedicationRepo{data: map[uuid.UUID][]*Medication{}}
	svc := NewService(patients, meds)

	patientID := uuid.New()
	meds.data[patientID] = []*Medication{
		{ID: uuid.New(), PatientID: patientID, DrugName: "lisinopril", Active: true},
		{ID: uuid.New(), PatientID: patientID, DrugName: "warfarin", Active: false},
	}

	recs, err := svc.ListMedications(context.Background(), patientID)
	if err != nil {
		t.Fatalf("ListMedications: %v", err)
	}
	if len(recs) != 1 || recs[0].DrugName != "lisinopril" {
		t.Errorf("records = %v, want active medications only", recs)
	}
}
