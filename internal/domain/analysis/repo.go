package analysis

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateBatch(ctx context.Context, alerts []*PatientAlert) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientAlert, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*PatientAlert, int, error)
	Acknowledge(ctx context.Context, id uuid.UUID) error
	AcknowledgeAllForPatient(ctx context.Context, patientID uuid.UUID) (int, error)
}
