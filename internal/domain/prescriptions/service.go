package prescriptions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Patient     PatientInfo
	Medications []Medication
	Clinical    ClinicalInfo
	Doctor      DoctorInfo
}

func (s *Service) Create(ctx context.Context, doctorUserID string, in CreateInput) (Prescription, error) {
	doctorUserID = strings.TrimSpace(doctorUserID)
	if doctorUserID == "" {
		return Prescription{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Patient.Name) == "" {
		return Prescription{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Patient.Mobile) == "" {
		return Prescription{}, ErrInvalidInput
	}
	if len(in.Medications) == 0 {
		return Prescription{}, ErrInvalidInput
	}
	for _, m := range in.Medications {
		if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Dosage) == "" {
			return Prescription{}, ErrInvalidInput
		}
	}

	p := Prescription{
		ID:           uuid.NewString(),
		DoctorUserID: doctorUserID,
		Patient: PatientInfo{
			Name:   strings.TrimSpace(in.Patient.Name),
			Age:    strings.TrimSpace(in.Patient.Age),
			Gender: in.Patient.Gender,
			Mobile: strings.TrimSpace(in.Patient.Mobile),
		},
		Medications: in.Medications,
		Clinical:    in.Clinical,
		Doctor:      in.Doctor,
		CreatedAt:   s.now(),
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Prescription{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Prescription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Prescription{}, ErrInvalidInput
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Prescription{}, ErrNotFound
	}
	return p, nil
}

// GetForOwner es el camino autenticado del médico: sin token ni TTL,
// pero solo el emisor puede entrar.
func (s *Service) GetForOwner(ctx context.Context, id, callerUserID string) (Prescription, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return Prescription{}, err
	}
	if p.DoctorUserID != strings.TrimSpace(callerUserID) {
		return Prescription{}, ErrForbidden
	}
	return p, nil
}

func (s *Service) ListByDoctor(ctx context.Context, doctorUserID string) ([]Prescription, error) {
	doctorUserID = strings.TrimSpace(doctorUserID)
	if doctorUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByDoctor(ctx, doctorUserID)
}

// Delete borra una receta del médico emisor. El subsistema de share no
// borra recetas por su cuenta: esto existe solo para el CRUD del emisor.
func (s *Service) Delete(ctx context.Context, id, callerUserID string) error {
	if _, err := s.GetForOwner(ctx, id, callerUserID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
