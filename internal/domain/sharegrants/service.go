package sharegrants

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("share link expired")
	ErrLinkConflict = errors.New("already linked to another account")
	ErrTokenInUse   = errors.New("share token already in use")
)

// maxTokenAttempts acota los reintentos ante colisión de token.
// Con 62^24 de espacio una colisión real es prácticamente imposible;
// el retry existe para no sobrescribir jamás un grant ajeno.
const maxTokenAttempts = 5

const (
	defaultQRRenderURL = "https://api.qrserver.com/v1/create-qr-code/"
)

type Service struct {
	grants   Repository
	events   EventsRepository
	notifier Notifier

	baseURL     string
	qrRenderURL string

	now      func() time.Time
	newToken func() (string, error)
}

type Options struct {
	// BaseURL del visor público, p.ej. https://app.example.com
	BaseURL string
	// QRRenderURL renderiza el share URL como imagen QR. Opcional.
	QRRenderURL string
}

func NewService(grants Repository, events EventsRepository, notifier Notifier, opts Options) *Service {
	qr := strings.TrimSpace(opts.QRRenderURL)
	if qr == "" {
		qr = defaultQRRenderURL
	}
	return &Service{
		grants:      grants,
		events:      events,
		notifier:    notifier,
		baseURL:     strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		qrRenderURL: qr,
		now:         time.Now,
		newToken:    NewToken,
	}
}

// Issue emite el grant de una receta recién creada.
// Idempotente mientras exista un grant vigente sin vincular; después de
// expirar emite un grant nuevo (token nuevo, nunca rotación in-place).
// Una receta ya reclamada no se re-comparte: ErrLinkConflict.
func (s *Service) Issue(ctx context.Context, prescriptionID, ownerUserID string) (Grant, error) {
	prescriptionID = strings.TrimSpace(prescriptionID)
	ownerUserID = strings.TrimSpace(ownerUserID)
	if prescriptionID == "" || ownerUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	now := s.now()

	existing, err := s.grants.GetByPrescription(ctx, prescriptionID)
	switch {
	case err == nil:
		if existing.Status == StatusLinked {
			return Grant{}, ErrLinkConflict
		}
		if !existing.Expired(now) {
			return existing, nil
		}
		// expirado: cae al mint de un grant nuevo
	case errors.Is(err, ErrNotFound):
		// primera emisión
	default:
		return Grant{}, err
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return Grant{}, err
		}

		shareURL := s.shareURL(token)
		g := Grant{
			ID:             uuid.NewString(),
			PrescriptionID: prescriptionID,
			OwnerUserID:    ownerUserID,
			Token:          token,
			ShareURL:       shareURL,
			QRPayload:      s.qrPayload(shareURL),
			Status:         StatusIssued,
			ExpiresAt:      now.Add(TTL),
			CreatedAt:      now,
		}

		err = s.grants.Create(ctx, g)
		if errors.Is(err, ErrTokenInUse) {
			continue
		}
		if err != nil {
			return Grant{}, err
		}
		return g, nil
	}

	return Grant{}, ErrTokenInUse
}

// Resolve valida existencia y no-expiración del token y registra la
// transición issued -> viewed como efecto de una lectura exitosa.
// Un grant expirado nunca avanza a viewed.
func (s *Service) Resolve(ctx context.Context, token string) (Grant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Grant{}, ErrNotFound
	}

	g, err := s.grants.GetByToken(ctx, token)
	if err != nil {
		return Grant{}, ErrNotFound
	}

	now := s.now()
	if g.Expired(now) {
		return Grant{}, ErrExpired
	}

	if g.Status == StatusIssued {
		updated, changed, err := s.grants.MarkViewed(ctx, g.ID, now)
		if err != nil {
			return Grant{}, err
		}
		g = updated
		if changed && s.notifier != nil {
			s.notifier.PublishChange(ctx, ChangeEvent{
				ID:             uuid.NewString(),
				Type:           ChangeViewed,
				PrescriptionID: g.PrescriptionID,
				GrantID:        g.ID,
				OwnerUserID:    g.OwnerUserID,
				OccurredAt:     now,
			})
		}
	}

	return g, nil
}

// Link intenta vincular el grant a la identidad dada.
// - invitado: observa la receta, el grant queda en viewed, sin evento.
// - cuenta y grant sin vincular: compare-and-set; exactamente un ganador
//   ante llamadas concurrentes, un solo LinkageEvent.
// - misma cuenta: idempotente (already_linked), sin evento duplicado.
// - otra cuenta: ErrLinkConflict, el grant no se toca.
func (s *Service) Link(ctx context.Context, token string, identity Identity) (LinkResult, error) {
	switch identity.Kind {
	case IdentityAccount:
		if strings.TrimSpace(identity.AccountID) == "" {
			return LinkResult{}, ErrInvalidInput
		}
	case IdentityGuest:
		if strings.TrimSpace(identity.Contact) == "" {
			return LinkResult{}, ErrInvalidInput
		}
	default:
		return LinkResult{}, ErrInvalidInput
	}

	g, err := s.Resolve(ctx, token)
	if err != nil {
		return LinkResult{}, err
	}

	if identity.Kind == IdentityGuest {
		return LinkResult{Status: LinkStatusGuestAccess, Grant: g}, nil
	}

	accountID := strings.TrimSpace(identity.AccountID)
	now := s.now()

	updated, won, err := s.grants.LinkAccount(ctx, g.ID, accountID, now)
	if err != nil {
		return LinkResult{}, err
	}

	if won {
		ev := ChangeEvent{
			ID:             uuid.NewString(),
			Type:           ChangeLinked,
			PrescriptionID: updated.PrescriptionID,
			GrantID:        updated.ID,
			OwnerUserID:    updated.OwnerUserID,
			AccountID:      accountID,
			OccurredAt:     now,
		}
		// El grant ya está comprometido; el evento es best-effort porque los
		// consumidores re-derivan el estado del grant, no del stream.
		_ = s.events.Append(ctx, ev)
		if s.notifier != nil {
			s.notifier.PublishChange(ctx, ev)
		}
		return LinkResult{Status: LinkStatusLinked, Grant: updated}, nil
	}

	if updated.LinkedAccountID == accountID {
		return LinkResult{Status: LinkStatusAlreadyLinked, Grant: updated}, nil
	}
	return LinkResult{}, ErrLinkConflict
}

// GetByPrescription expone el grant vigente de una receta (para el dashboard
// del médico emisor).
func (s *Service) GetByPrescription(ctx context.Context, prescriptionID string) (Grant, error) {
	prescriptionID = strings.TrimSpace(prescriptionID)
	if prescriptionID == "" {
		return Grant{}, ErrInvalidInput
	}
	return s.grants.GetByPrescription(ctx, prescriptionID)
}

// ListByAccount devuelve los grants reclamados por una cuenta (historial
// del paciente).
func (s *Service) ListByAccount(ctx context.Context, accountID string) ([]Grant, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, ErrInvalidInput
	}
	return s.grants.ListByLinkedAccount(ctx, accountID)
}

// ListEvents devuelve los LinkageEvents de una receta.
func (s *Service) ListEvents(ctx context.Context, prescriptionID string) ([]ChangeEvent, error) {
	prescriptionID = strings.TrimSpace(prescriptionID)
	if prescriptionID == "" {
		return nil, ErrInvalidInput
	}
	return s.events.ListByPrescription(ctx, prescriptionID)
}

func (s *Service) shareURL(token string) string {
	if s.baseURL == "" {
		return "/share/" + token
	}
	return s.baseURL + "/share/" + token
}

// qrPayload es una transformación pura y determinística del share URL.
func (s *Service) qrPayload(shareURL string) string {
	return s.qrRenderURL + "?size=300x300&data=" + url.QueryEscape(shareURL)
}
