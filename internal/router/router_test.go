package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

const createPrescriptionBody = `{
	"patient": {"name": "María López", "age": "34", "gender": "female", "mobile": "+5491122334455"},
	"medications": [{"name": "Amoxicilina", "dosage": "500mg", "timing": "after_meals", "duration": "7 días"}],
	"clinical": {"diagnosis": "Faringitis"},
	"doctor": {"name": "Dr. Pérez", "registration": "MN 12345"}
}`

func doRequest(t *testing.T, h http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-Debug-User-ID", userID)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestRouter_Health(t *testing.T) {
	h := NewRouter(Options{})

	rec := doRequest(t, h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_CreateRequiresAuth(t *testing.T) {
	h := NewRouter(Options{})

	rec := doRequest(t, h, http.MethodPost, "/prescriptions", "", createPrescriptionBody)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}
}

func TestRouter_ShareFlow(t *testing.T) {
	h := NewRouter(Options{ShareBaseURL: "https://rx.example.com"})

	// 1) el médico emite la receta
	rec := doRequest(t, h, http.MethodPost, "/prescriptions", "doctor-1", createPrescriptionBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)
	if created.ID == "" {
		t.Fatal("create: missing prescription id")
	}

	// 2) solo el emisor puede compartir
	rec = doRequest(t, h, http.MethodPost, "/prescriptions/"+created.ID+"/share", "doctor-2", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("share by non-owner: expected 403, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/prescriptions/"+created.ID+"/share", "doctor-1", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("share: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var grant struct {
		Token     string `json:"token"`
		ShareURL  string `json:"share_url"`
		QRPayload string `json:"qr_payload"`
		Status    string `json:"status"`
	}
	decodeBody(t, rec, &grant)
	if grant.Token == "" || grant.Status != "issued" {
		t.Fatalf("share: unexpected grant %+v", grant)
	}
	if grant.ShareURL != "https://rx.example.com/share/"+grant.Token {
		t.Fatalf("share: unexpected share url %s", grant.ShareURL)
	}
	if grant.QRPayload == "" {
		t.Fatal("share: missing qr payload")
	}

	// 3) re-share mientras está vigente: mismo token
	rec = doRequest(t, h, http.MethodPost, "/prescriptions/"+created.ID+"/share", "doctor-1", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("re-share: expected 201, got %d", rec.Code)
	}
	var again struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &again)
	if again.Token != grant.Token {
		t.Fatalf("re-share while active should return the same token")
	}

	// 4) lectura anónima por token: la receta se ve, el grant pasa a viewed
	rec = doRequest(t, h, http.MethodGet, "/share/"+grant.Token, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resolved struct {
		Status       string `json:"status"`
		Prescription struct {
			ID      string `json:"id"`
			Patient struct {
				Name string `json:"name"`
			} `json:"patient"`
		} `json:"prescription"`
	}
	decodeBody(t, rec, &resolved)
	if resolved.Status != "viewed" || resolved.Prescription.ID != created.ID {
		t.Fatalf("resolve: unexpected body %+v", resolved)
	}
	if resolved.Prescription.Patient.Name != "María López" {
		t.Fatalf("resolve: prescription content missing")
	}

	// 5) acceso de invitado: observa sin reclamar
	rec = doRequest(t, h, http.MethodPost, "/share/"+grant.Token+"/link", "", `{"name":"Ana","contact":"+549110001"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("guest link: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var guest struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &guest)
	if guest.Status != "guest_access" {
		t.Fatalf("guest link: expected guest_access, got %s", guest.Status)
	}

	// 6) el paciente se registra y reclama
	rec = doRequest(t, h, http.MethodPost, "/share/"+grant.Token+"/link", "patient-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("account link: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var linked struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &linked)
	if linked.Status != "linked" {
		t.Fatalf("account link: expected linked, got %s", linked.Status)
	}

	// 7) recarga: idempotente
	rec = doRequest(t, h, http.MethodPost, "/share/"+grant.Token+"/link", "patient-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("relink: expected 200, got %d", rec.Code)
	}
	decodeBody(t, rec, &linked)
	if linked.Status != "already_linked" {
		t.Fatalf("relink: expected already_linked, got %s", linked.Status)
	}

	// 8) otra cuenta choca
	rec = doRequest(t, h, http.MethodPost, "/share/"+grant.Token+"/link", "patient-2", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("conflicting link: expected 409, got %d", rec.Code)
	}

	// 9) dashboard del emisor: grant vigente y traza de vinculación
	rec = doRequest(t, h, http.MethodGet, "/prescriptions/"+created.ID+"/share", "doctor-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get grant: expected 200, got %d", rec.Code)
	}
	var current struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &current)
	if current.Status != "linked" {
		t.Fatalf("get grant: expected linked, got %s", current.Status)
	}

	rec = doRequest(t, h, http.MethodGet, "/prescriptions/"+created.ID+"/events", "doctor-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list events: expected 200, got %d", rec.Code)
	}
	var events []struct {
		Type      string `json:"type"`
		AccountID string `json:"account_id"`
	}
	decodeBody(t, rec, &events)
	if len(events) != 1 || events[0].Type != "LINKED" || events[0].AccountID != "patient-1" {
		t.Fatalf("list events: expected one LINKED event for patient-1, got %+v", events)
	}

	rec = doRequest(t, h, http.MethodGet, "/prescriptions/"+created.ID+"/events", "doctor-2", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("list events by non-owner: expected 403, got %d", rec.Code)
	}

	// 10) el historial del paciente incluye la receta reclamada
	rec = doRequest(t, h, http.MethodGet, "/me/prescriptions", "patient-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me/prescriptions: expected 200, got %d", rec.Code)
	}
	var mine []struct {
		Prescription struct {
			ID string `json:"id"`
		} `json:"prescription"`
	}
	decodeBody(t, rec, &mine)
	if len(mine) != 1 || mine[0].Prescription.ID != created.ID {
		t.Fatalf("me/prescriptions: expected the claimed prescription, got %+v", mine)
	}

	// 11) el de la otra cuenta sigue vacío
	rec = doRequest(t, h, http.MethodGet, "/me/prescriptions", "patient-2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me/prescriptions (other): expected 200, got %d", rec.Code)
	}
	var empty []json.RawMessage
	decodeBody(t, rec, &empty)
	if len(empty) != 0 {
		t.Fatalf("me/prescriptions (other): expected empty list, got %d items", len(empty))
	}
}

func TestRouter_UnknownToken(t *testing.T) {
	h := NewRouter(Options{})

	rec := doRequest(t, h, http.MethodGet, "/share/AAAAAAAAAAAAAAAAAAAAAAAA", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown token, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/share/AAAAAAAAAAAAAAAAAAAAAAAA/link", "patient-1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 linking unknown token, got %d", rec.Code)
	}
}

func TestRouter_OwnerReadIsScoped(t *testing.T) {
	h := NewRouter(Options{})

	rec := doRequest(t, h, http.MethodPost, "/prescriptions", "doctor-1", createPrescriptionBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)

	rec = doRequest(t, h, http.MethodGet, "/prescriptions/"+created.ID, "doctor-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("owner read: expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/prescriptions/"+created.ID, "doctor-2", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner read: expected 403, got %d", rec.Code)
	}
}
