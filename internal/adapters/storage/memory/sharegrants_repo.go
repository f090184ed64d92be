package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"prescription-share/internal/domain/sharegrants"
)

type grantsRepo struct {
	mu      sync.RWMutex
	byID    map[string]sharegrants.Grant
	byToken map[string]string // token -> grant id
}

func NewShareGrantsRepo() sharegrants.Repository {
	return &grantsRepo{
		byID:    make(map[string]sharegrants.Grant),
		byToken: make(map[string]string),
	}
}

func (r *grantsRepo) Create(ctx context.Context, g sharegrants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" || g.Token == "" {
		return errors.New("grant id and token required")
	}
	if _, exists := r.byID[g.ID]; exists {
		return errors.New("grant already exists")
	}
	if _, exists := r.byToken[g.Token]; exists {
		return sharegrants.ErrTokenInUse
	}

	r.byID[g.ID] = g
	r.byToken[g.Token] = g.ID
	return nil
}

func (r *grantsRepo) GetByToken(ctx context.Context, token string) (sharegrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[token]
	if !ok {
		return sharegrants.Grant{}, sharegrants.ErrNotFound
	}
	return r.byID[id], nil
}

// GetByPrescription devuelve el grant más reciente de la receta
// (re-shares dejan grants anteriores expirados en el store).
func (r *grantsRepo) GetByPrescription(ctx context.Context, prescriptionID string) (sharegrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var winner sharegrants.Grant
	has := false

	for _, g := range r.byID {
		if g.PrescriptionID != prescriptionID {
			continue
		}
		if !has || g.CreatedAt.After(winner.CreatedAt) {
			winner = g
			has = true
		}
	}

	if !has {
		return sharegrants.Grant{}, sharegrants.ErrNotFound
	}
	return winner, nil
}

func (r *grantsRepo) ListByLinkedAccount(ctx context.Context, accountID string) ([]sharegrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sharegrants.Grant, 0)
	for _, g := range r.byID {
		if g.LinkedAccountID == accountID && accountID != "" {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *grantsRepo) MarkViewed(ctx context.Context, id string, at time.Time) (sharegrants.Grant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.byID[id]
	if !ok {
		return sharegrants.Grant{}, false, sharegrants.ErrNotFound
	}

	if g.Status != sharegrants.StatusIssued {
		// otra lectura ya registró la transición (o el grant ya fue vinculado)
		return g, false, nil
	}

	t := at
	g.Status = sharegrants.StatusViewed
	g.ViewedAt = &t
	r.byID[id] = g
	return g, true, nil
}

// LinkAccount hace el compare-and-set bajo el lock del repo: setea
// LinkedAccountID solo si está vacío. El perdedor recibe el estado ya
// comprometido y won=false.
func (r *grantsRepo) LinkAccount(ctx context.Context, id, accountID string, at time.Time) (sharegrants.Grant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.byID[id]
	if !ok {
		return sharegrants.Grant{}, false, sharegrants.ErrNotFound
	}

	if g.LinkedAccountID != "" {
		return g, false, nil
	}

	t := at
	g.LinkedAccountID = accountID
	g.Status = sharegrants.StatusLinked
	g.LinkedAt = &t
	r.byID[id] = g
	return g, true, nil
}
