package memory

import (
	"context"
	"errors"
	"sync"

	"prescription-share/internal/domain/sharegrants"
)

type eventsRepo struct {
	mu     sync.RWMutex
	events []sharegrants.ChangeEvent
}

func NewChangeEventsRepo() sharegrants.EventsRepository {
	return &eventsRepo{}
}

// Append es append-only: los eventos nunca se mutan ni se borran.
func (r *eventsRepo) Append(ctx context.Context, e sharegrants.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		return errors.New("event id required")
	}
	r.events = append(r.events, e)
	return nil
}

func (r *eventsRepo) ListByPrescription(ctx context.Context, prescriptionID string) ([]sharegrants.ChangeEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sharegrants.ChangeEvent, 0)
	for _, e := range r.events {
		if e.PrescriptionID == prescriptionID {
			out = append(out, e)
		}
	}
	return out, nil
}
