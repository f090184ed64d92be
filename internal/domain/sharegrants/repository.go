package sharegrants

import (
	"context"
	"time"
)

type Repository interface {
	// Create falla con ErrTokenInUse si el token ya existe (colisión).
	Create(ctx context.Context, g Grant) error

	GetByToken(ctx context.Context, token string) (Grant, error)

	// GetByPrescription devuelve el grant más reciente de la receta
	// (después de un re-share pueden existir grants anteriores expirados).
	GetByPrescription(ctx context.Context, prescriptionID string) (Grant, error)

	ListByLinkedAccount(ctx context.Context, accountID string) ([]Grant, error)

	// MarkViewed transiciona issued -> viewed de forma condicional.
	// Devuelve el grant post-update y si esta llamada produjo la transición.
	MarkViewed(ctx context.Context, id string, at time.Time) (Grant, bool, error)

	// LinkAccount es el compare-and-set sobre LinkedAccountID: lo setea solo
	// si está vacío. Devuelve el grant post-update y si esta llamada ganó.
	// El perdedor de una carrera observa el estado ya comprometido.
	LinkAccount(ctx context.Context, id, accountID string, at time.Time) (Grant, bool, error)
}

// EventsRepository persiste los LinkageEvents (append-only).
type EventsRepository interface {
	Append(ctx context.Context, e ChangeEvent) error
	ListByPrescription(ctx context.Context, prescriptionID string) ([]ChangeEvent, error)
}

// Notifier publica transiciones comprometidas hacia los suscriptores
// (vista del médico y del paciente). La implementación vive fuera del
// dominio; acá solo importa el contrato.
type Notifier interface {
	PublishChange(ctx context.Context, e ChangeEvent)
}
