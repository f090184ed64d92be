package prescriptions

import "context"

type Repository interface {
	Create(ctx context.Context, p Prescription) error
	GetByID(ctx context.Context, id string) (Prescription, error)
	ListByDoctor(ctx context.Context, doctorUserID string) ([]Prescription, error)
	Delete(ctx context.Context, id string) error
}
