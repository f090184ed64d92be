package sharegrants

import "time"

// TTL es la ventana de validez fija de todo share link emitido.
const TTL = 48 * time.Hour

// Status define el ciclo de vida de un grant.
// issued -> viewed -> linked. La expiración no es una transición:
// se evalúa lazy contra ExpiresAt en cada lectura.
type Status string

const (
	StatusIssued Status = "issued"
	StatusViewed Status = "viewed"
	StatusLinked Status = "linked"
)

// Grant es el sobre de autorización adjunto 1:1 a una receta.
// El token es único globalmente y nunca se rota in-place:
// un re-share después de expirar crea un grant nuevo.
type Grant struct {
	ID             string
	PrescriptionID string
	OwnerUserID    string // médico emisor

	Token     string
	ShareURL  string
	QRPayload string

	Status          Status
	LinkedAccountID string // vacío = sin vincular

	ExpiresAt time.Time
	CreatedAt time.Time
	ViewedAt  *time.Time
	LinkedAt  *time.Time
}

// Expired evalúa el predicado de expiración (lazy, sin job de fondo).
func (g Grant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}

// IdentityKind distingue cuentas registradas de invitados transitorios.
type IdentityKind string

const (
	IdentityAccount IdentityKind = "ACCOUNT"
	IdentityGuest   IdentityKind = "GUEST"
)

// Identity es la identidad concreta del que intenta acceder/vincular.
// GUEST no tiene AccountID durable: observa la receta pero no la reclama.
type Identity struct {
	Kind      IdentityKind
	AccountID string // solo ACCOUNT
	Name      string
	Contact   string
}

// LinkStatus es el resultado de una llamada a Link.
type LinkStatus string

const (
	LinkStatusLinked        LinkStatus = "linked"
	LinkStatusAlreadyLinked LinkStatus = "already_linked"
	LinkStatusGuestAccess   LinkStatus = "guest_access"
)

type LinkResult struct {
	Status LinkStatus
	Grant  Grant
}

// ChangeType clasifica las transiciones que viajan por el change feed.
type ChangeType string

const (
	ChangeViewed ChangeType = "VIEWED"
	ChangeLinked ChangeType = "LINKED"
)

// ChangeEvent es el hecho append-only que registra una transición
// comprometida. Nunca se muta después de creado; los consumidores lo
// tratan como señal de "algo cambió, re-consultar", no como fuente de verdad.
type ChangeEvent struct {
	ID             string
	Type           ChangeType
	PrescriptionID string
	GrantID        string
	OwnerUserID    string
	AccountID      string // solo LINKED
	OccurredAt     time.Time
}
