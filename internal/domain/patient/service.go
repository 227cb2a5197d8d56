package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/medguard/medguard/internal/engine"
)

// Service is the data provider the analyzer pulls from: one snapshot per
// patient plus the active medication history.
type Service struct {
	patients    Repository
	medications MedicationRepository
}

func NewService(patients Repository, medications MedicationRepository) *Service {
	return &Service{patients: patients, medications: medications}
}

func (s *Service) GetRecord(ctx context.Context, patientID uuid.UUID) (engine.PatientRecord, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return p.EngineRecord()
}

func (s *Service) ListMedications(ctx context.Context, patientID uuid.UUID) ([]engine.MedicationRecord, error) {
	meds, err := s.medications.ListActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return EngineRecords(meds), nil
}
