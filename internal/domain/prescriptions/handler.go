package prescriptions

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"prescription-share/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/prescriptions", func(pr chi.Router) {
		pr.Post("/", createPrescriptionHandler(svc))
		pr.Get("/", listPrescriptionsHandler(svc))
		pr.Get("/{prescriptionID}", getPrescriptionHandler(svc))
		pr.Delete("/{prescriptionID}", deletePrescriptionHandler(svc))
	})
}

type medicationPayload struct {
	Name     string `json:"name"`
	Dosage   string `json:"dosage"`
	Timing   string `json:"timing"`
	Duration string `json:"duration"`
}

type createPrescriptionRequest struct {
	Patient struct {
		Name   string `json:"name"`
		Age    string `json:"age"`
		Gender string `json:"gender"`
		Mobile string `json:"mobile"`
	} `json:"patient"`
	Medications []medicationPayload `json:"medications"`
	Clinical    struct {
		Diagnosis    string `json:"diagnosis"`
		Notes        string `json:"notes"`
		FollowUpDate string `json:"follow_up_date"`
	} `json:"clinical"`
	Doctor struct {
		Name          string `json:"name"`
		Qualification string `json:"qualification"`
		Registration  string `json:"registration"`
	} `json:"doctor"`
}

type prescriptionResponse struct {
	ID           string `json:"id"`
	DoctorUserID string `json:"doctor_user_id"`
	Patient      struct {
		Name   string `json:"name"`
		Age    string `json:"age"`
		Gender string `json:"gender"`
		Mobile string `json:"mobile"`
	} `json:"patient"`
	Medications []medicationPayload `json:"medications"`
	Clinical    struct {
		Diagnosis    string `json:"diagnosis"`
		Notes        string `json:"notes"`
		FollowUpDate string `json:"follow_up_date"`
	} `json:"clinical"`
	Doctor struct {
		Name          string `json:"name"`
		Qualification string `json:"qualification"`
		Registration  string `json:"registration"`
	} `json:"doctor"`
	CreatedAt time.Time `json:"created_at"`
}

// ToResponse arma el DTO público de una receta.
// Exportado porque el módulo sharegrants lo reutiliza al resolver por token.
func ToResponse(p Prescription) prescriptionResponse {
	var out prescriptionResponse
	out.ID = p.ID
	out.DoctorUserID = p.DoctorUserID
	out.Patient.Name = p.Patient.Name
	out.Patient.Age = p.Patient.Age
	out.Patient.Gender = string(p.Patient.Gender)
	out.Patient.Mobile = p.Patient.Mobile
	out.Medications = make([]medicationPayload, 0, len(p.Medications))
	for _, m := range p.Medications {
		out.Medications = append(out.Medications, medicationPayload{
			Name:     m.Name,
			Dosage:   m.Dosage,
			Timing:   string(m.Timing),
			Duration: m.Duration,
		})
	}
	out.Clinical.Diagnosis = p.Clinical.Diagnosis
	out.Clinical.Notes = p.Clinical.Notes
	out.Clinical.FollowUpDate = p.Clinical.FollowUpDate
	out.Doctor.Name = p.Doctor.Name
	out.Doctor.Qualification = p.Doctor.Qualification
	out.Doctor.Registration = p.Doctor.Registration
	out.CreatedAt = p.CreatedAt
	return out
}

func createPrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createPrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		in := CreateInput{
			Patient: PatientInfo{
				Name:   req.Patient.Name,
				Age:    req.Patient.Age,
				Gender: Gender(strings.TrimSpace(req.Patient.Gender)),
				Mobile: req.Patient.Mobile,
			},
			Clinical: ClinicalInfo{
				Diagnosis:    strings.TrimSpace(req.Clinical.Diagnosis),
				Notes:        strings.TrimSpace(req.Clinical.Notes),
				FollowUpDate: strings.TrimSpace(req.Clinical.FollowUpDate),
			},
			Doctor: DoctorInfo{
				Name:          strings.TrimSpace(req.Doctor.Name),
				Qualification: strings.TrimSpace(req.Doctor.Qualification),
				Registration:  strings.TrimSpace(req.Doctor.Registration),
			},
		}
		for _, m := range req.Medications {
			in.Medications = append(in.Medications, Medication{
				Name:     strings.TrimSpace(m.Name),
				Dosage:   strings.TrimSpace(m.Dosage),
				Timing:   Timing(strings.TrimSpace(m.Timing)),
				Duration: strings.TrimSpace(m.Duration),
			})
		}

		p, err := svc.Create(r.Context(), claims.UserID, in)
		if err != nil {
			switch err {
			case ErrInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, ToResponse(p))
	}
}

func listPrescriptionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByDoctor(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]prescriptionResponse, 0, len(items))
		for _, p := range items {
			out = append(out, ToResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getPrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id := chi.URLParam(r, "prescriptionID")
		p, err := svc.GetForOwner(r.Context(), id, claims.UserID)
		if err != nil {
			switch err {
			case ErrInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			case ErrNotFound:
				http.Error(w, "not found", http.StatusNotFound)
			case ErrForbidden:
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, ToResponse(p))
	}
}

func deletePrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id := chi.URLParam(r, "prescriptionID")
		if err := svc.Delete(r.Context(), id, claims.UserID); err != nil {
			switch err {
			case ErrInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			case ErrNotFound:
				http.Error(w, "not found", http.StatusNotFound)
			case ErrForbidden:
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// writeJSON está duplicado a propósito en los handlers de cada módulo
// para no crear helpers compartidos antes de tiempo.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
