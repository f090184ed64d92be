package sharegrants

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"prescription-share/internal/domain/prescriptions"
	"prescription-share/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, records *prescriptions.Service) {
	// Emisión: el médico comparte una receta recién creada.
	r.Post("/prescriptions/{prescriptionID}/share", issueGrantHandler(svc, records))

	// Dashboard del emisor: grant vigente y trazas de vinculación.
	r.Get("/prescriptions/{prescriptionID}/share", getGrantHandler(svc, records))
	r.Get("/prescriptions/{prescriptionID}/events", listEventsHandler(svc, records))

	// Acceso público por token (paciente o invitado, sin cuenta).
	r.Route("/share/{token}", func(sr chi.Router) {
		sr.Get("/", resolveGrantHandler(svc, records))
		sr.Post("/link", linkGrantHandler(svc, records))
	})

	// Historial del paciente: recetas reclamadas por su cuenta.
	r.Get("/me/prescriptions", listMyPrescriptionsHandler(svc, records))
}

type grantResponse struct {
	Token     string     `json:"token"`
	ShareURL  string     `json:"share_url"`
	QRPayload string     `json:"qr_payload"`
	Status    Status     `json:"status"`
	ExpiresAt time.Time  `json:"expires_at"`
	LinkedAt  *time.Time `json:"linked_at,omitempty"`
}

type resolveResponse struct {
	Prescription    any       `json:"prescription"`
	Status          Status    `json:"status"`
	LinkedAccountID string    `json:"linked_account_id,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type linkRequest struct {
	// Datos de invitado; se ignoran si el caller está autenticado.
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type linkResponse struct {
	Status       LinkStatus `json:"status"`
	Prescription any        `json:"prescription"`
	ExpiresAt    time.Time  `json:"expires_at"`
	LinkedAt     *time.Time `json:"linked_at,omitempty"`
}

func issueGrantHandler(svc *Service, records *prescriptions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prescriptionID, ok := requireOwner(w, r, records)
		if !ok {
			return
		}

		claims, _ := middleware.GetClaims(r.Context())

		g, err := svc.Issue(r.Context(), prescriptionID, claims.UserID)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrLinkConflict):
				http.Error(w, "prescription already claimed", http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toGrantResponse(g))
	}
}

func getGrantHandler(svc *Service, records *prescriptions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prescriptionID, ok := requireOwner(w, r, records)
		if !ok {
			return
		}

		g, err := svc.GetByPrescription(r.Context(), prescriptionID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

type eventResponse struct {
	ID         string     `json:"id"`
	Type       ChangeType `json:"type"`
	GrantID    string     `json:"grant_id"`
	AccountID  string     `json:"account_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

func listEventsHandler(svc *Service, records *prescriptions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prescriptionID, ok := requireOwner(w, r, records)
		if !ok {
			return
		}

		events, err := svc.ListEvents(r.Context(), prescriptionID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		out := make([]eventResponse, 0, len(events))
		for _, e := range events {
			out = append(out, eventResponse{
				ID:         e.ID,
				Type:       e.Type,
				GrantID:    e.GrantID,
				AccountID:  e.AccountID,
				OccurredAt: e.OccurredAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// requireOwner resuelve el prescriptionID de la URL y corta con
// 401/404/403 si el caller no es el médico emisor.
func requireOwner(w http.ResponseWriter, r *http.Request, records *prescriptions.Service) (string, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}

	prescriptionID := chi.URLParam(r, "prescriptionID")

	ownerID, err := records.OwnerOf(r.Context(), prescriptionID)
	if err != nil || strings.TrimSpace(ownerID) == "" {
		http.Error(w, "prescription not found", http.StatusNotFound)
		return "", false
	}
	if ownerID != claims.UserID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return prescriptionID, true
}

func resolveGrantHandler(svc *Service, records *prescriptions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")

		g, err := svc.Resolve(r.Context(), token)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		p, err := records.GetByID(r.Context(), g.PrescriptionID)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, resolveResponse{
			Prescription:    prescriptions.ToResponse(p),
			Status:          g.Status,
			LinkedAccountID: g.LinkedAccountID,
			ExpiresAt:       g.ExpiresAt,
		})
	}
}

func linkGrantHandler(svc *Service, records *prescriptions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")

		var req linkRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}

		identity := identityFromRequest(r, req)

		res, err := svc.Link(r.Context(), token, identity)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		p, err := records.GetByID(r.Context(), res.Grant.PrescriptionID)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, linkResponse{
			Status:       res.Status,
			Prescription: prescriptions.ToResponse(p),
			ExpiresAt:    res.Grant.ExpiresAt,
			LinkedAt:     res.Grant.LinkedAt,
		})
	}
}

func listMyPrescriptionsHandler(svc *Service, records *prescriptions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		grants, err := svc.ListByAccount(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		type entry struct {
			Prescription any        `json:"prescription"`
			LinkedAt     *time.Time `json:"linked_at,omitempty"`
			ExpiresAt    time.Time  `json:"expires_at"`
		}

		out := make([]entry, 0, len(grants))
		for _, g := range grants {
			p, err := records.GetByID(r.Context(), g.PrescriptionID)
			if err != nil {
				// receta borrada por el emisor: el grant queda huérfano, se omite
				continue
			}
			out = append(out, entry{
				Prescription: prescriptions.ToResponse(p),
				LinkedAt:     g.LinkedAt,
				ExpiresAt:    g.ExpiresAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// identityFromRequest arma la identidad del caller:
// cuenta autenticada si hay claims, invitado con los datos del body si no.
func identityFromRequest(r *http.Request, req linkRequest) Identity {
	if claims, ok := middleware.GetClaims(r.Context()); ok && strings.TrimSpace(claims.UserID) != "" {
		return Identity{
			Kind:      IdentityAccount,
			AccountID: claims.UserID,
			Name:      claims.Name,
			Contact:   claims.Contact,
		}
	}
	return Identity{
		Kind:    IdentityGuest,
		Name:    strings.TrimSpace(req.Name),
		Contact: strings.TrimSpace(req.Contact),
	}
}

// Los tres motivos de rechazo se distinguen a propósito:
// expirado => pedir re-share al médico; conflicto => ya fue reclamada.
func writeGrantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrExpired):
		http.Error(w, "share link expired", http.StatusGone)
	case errors.Is(err, ErrLinkConflict):
		http.Error(w, "prescription already claimed by another account", http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toGrantResponse(g Grant) grantResponse {
	return grantResponse{
		Token:     g.Token,
		ShareURL:  g.ShareURL,
		QRPayload: g.QRPayload,
		Status:    g.Status,
		ExpiresAt: g.ExpiresAt,
		LinkedAt:  g.LinkedAt,
	}
}

// writeJSON está duplicado a propósito en los handlers de cada módulo
// para no crear helpers compartidos antes de tiempo.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
