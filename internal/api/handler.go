package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/PRADEEP131204/Medimate/domain"
	"github.com/PRADEEP131204/Medimate/internal/reminder"
	"github.com/PRADEEP131204/Medimate/internal/store"
)

type ctxKey string

const (
	ctxUserID   ctxKey = "userID"
	ctxUserName ctxKey = "userName"
	ctxRole     ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	users         *store.UserStore
	prescriptions *store.PrescriptionStore
	deriver       *reminder.Deriver
	controller    *reminder.Controller
	secret        string
	now           func() time.Time
}

// New constructs a Handler. now may be nil to use the wall clock.
func New(users *store.UserStore, prescriptions *store.PrescriptionStore, deriver *reminder.Deriver, controller *reminder.Controller, secret string, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		users:         users,
		prescriptions: prescriptions,
		deriver:       deriver,
		controller:    controller,
		secret:        secret,
		now:           now,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Post("/auth/login", h.login)

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Get("/patients", h.listPatients)

		pr.Route("/prescriptions", func(r chi.Router) {
			r.Get("/", h.listPrescriptions)
			r.Post("/", h.createPrescription)
			r.Get("/{id}", h.getPrescription)
			r.Put("/{id}", h.updatePrescription)
			r.Delete("/{id}", h.deletePrescription)
		})

		pr.Route("/reminders", func(r chi.Router) {
			r.Get("/", h.listReminders)
			r.Get("/next", h.nextReminder)
			r.Post("/taken", h.markAllTaken)
			r.Post("/{id}/taken", h.toggleTaken)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(u domain.User) (string, error) {
	claims := authClaims{
		UserID: u.ID,
		Name:   u.Name,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(h.now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(h.now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		// Expiry is checked against the handler clock so issue and
		// validation agree on what "now" is.
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		}, jwt.WithTimeFunc(h.now))
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxUserName, claims.Name)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(string)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

// scopeFor maps the caller's role to a reminder visibility scope: doctors
// see every patient, patients only themselves.
func scopeFor(r *http.Request) reminder.Scope {
	if r.Context().Value(ctxRole).(string) == domain.RoleDoctor {
		return reminder.ScopeAll()
	}
	return reminder.ScopePatient(r.Context().Value(ctxUserID).(string))
}

// Auth handlers

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// Patient listing (doctor's prescription form)

func (h *Handler) listPatients(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDoctor) {
		return
	}
	patients, err := h.users.ListByRole(r.Context(), domain.RolePatient)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list patients")
		return
	}
	respondJSON(w, http.StatusOK, patients)
}

// Prescription handlers

type medicineRequest struct {
	Name      string   `json:"name"`
	Dosage    string   `json:"dosage"`
	Frequency string   `json:"frequency"`
	Times     []string `json:"times"`
}

type prescriptionRequest struct {
	PatientID string            `json:"patient_id"`
	Notes     string            `json:"notes"`
	Medicines []medicineRequest `json:"medicines"`
}

// buildMedicines keeps the original form's lenient policy: rows missing a
// name, dosage or time are skipped, but at least one valid row must remain.
func buildMedicines(reqs []medicineRequest) ([]domain.Medicine, bool) {
	out := make([]domain.Medicine, 0, len(reqs))
	for _, m := range reqs {
		name := strings.TrimSpace(m.Name)
		dosage := strings.TrimSpace(m.Dosage)
		times := make([]string, 0, len(m.Times))
		for _, t := range m.Times {
			if v := strings.TrimSpace(t); v != "" {
				times = append(times, v)
			}
		}
		if name == "" || dosage == "" || len(times) == 0 {
			continue
		}
		frequency := strings.TrimSpace(m.Frequency)
		if frequency == "" {
			frequency = "As needed"
		}
		out = append(out, domain.Medicine{Name: name, Dosage: dosage, Frequency: frequency, Times: times})
	}
	return out, len(out) > 0
}

func (h *Handler) listPrescriptions(w http.ResponseWriter, r *http.Request) {
	prescriptions, err := h.prescriptions.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list prescriptions")
		return
	}

	role := r.Context().Value(ctxRole).(string)
	userID := r.Context().Value(ctxUserID).(string)
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))

	visible := make([]domain.Prescription, 0, len(prescriptions))
	for _, p := range prescriptions {
		if role != domain.RoleDoctor && p.PatientID != userID {
			continue
		}
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		visible = append(visible, p)
	}
	respondJSON(w, http.StatusOK, visible)
}

func matchesQuery(p domain.Prescription, query string) bool {
	if strings.Contains(strings.ToLower(p.PatientName), query) {
		return true
	}
	for _, m := range p.Medicines {
		if strings.Contains(strings.ToLower(m.Name), query) {
			return true
		}
	}
	return false
}

func (h *Handler) getPrescription(w http.ResponseWriter, r *http.Request) {
	p, err := h.prescriptions.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "prescription not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load prescription")
		return
	}
	role := r.Context().Value(ctxRole).(string)
	userID := r.Context().Value(ctxUserID).(string)
	if role != domain.RoleDoctor && p.PatientID != userID {
		respondError(w, http.StatusForbidden, "you are not allowed to view this prescription")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) createPrescription(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDoctor) {
		return
	}
	var req prescriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PatientID == "" {
		respondError(w, http.StatusBadRequest, "patient_id is required")
		return
	}
	patient, err := h.users.Get(r.Context(), req.PatientID)
	if err != nil || patient.Role != domain.RolePatient {
		respondError(w, http.StatusBadRequest, "unknown patient")
		return
	}
	medicines, ok := buildMedicines(req.Medicines)
	if !ok {
		respondError(w, http.StatusBadRequest, "at least one medicine with name, dosage and time is required")
		return
	}

	created, err := h.prescriptions.Create(r.Context(), domain.Prescription{
		PatientID:   patient.ID,
		PatientName: patient.Name,
		DoctorID:    r.Context().Value(ctxUserID).(string),
		DoctorName:  r.Context().Value(ctxUserName).(string),
		Medicines:   medicines,
		Notes:       strings.TrimSpace(req.Notes),
		Date:        h.now().Format("2006-01-02"),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create prescription")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) updatePrescription(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDoctor) {
		return
	}
	var req prescriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PatientID == "" {
		respondError(w, http.StatusBadRequest, "patient_id is required")
		return
	}
	patient, err := h.users.Get(r.Context(), req.PatientID)
	if err != nil || patient.Role != domain.RolePatient {
		respondError(w, http.StatusBadRequest, "unknown patient")
		return
	}
	medicines, ok := buildMedicines(req.Medicines)
	if !ok {
		respondError(w, http.StatusBadRequest, "at least one medicine with name, dosage and time is required")
		return
	}

	updated, err := h.prescriptions.Update(r.Context(), domain.Prescription{
		ID:          chi.URLParam(r, "id"),
		PatientID:   patient.ID,
		PatientName: patient.Name,
		Medicines:   medicines,
		Notes:       strings.TrimSpace(req.Notes),
		Date:        h.now().Format("2006-01-02"),
	})
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "prescription not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update prescription")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) deletePrescription(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDoctor) {
		return
	}
	err := h.prescriptions.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "prescription not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete prescription")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Reminder handlers

// reminderView adds the display urgency, where a taken dose wins over the
// time-based classification.
type reminderView struct {
	domain.Reminder
	Urgency domain.Urgency `json:"urgency"`
}

func toViews(reminders []domain.Reminder) []reminderView {
	out := make([]reminderView, len(reminders))
	for i, r := range reminders {
		out[i] = reminderView{Reminder: r, Urgency: r.DisplayUrgency()}
	}
	return out
}

func (h *Handler) listReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.deriver.Today(r.Context(), scopeFor(r), h.now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to derive reminders")
		return
	}
	respondJSON(w, http.StatusOK, toViews(reminders))
}

func (h *Handler) nextReminder(w http.ResponseWriter, r *http.Request) {
	next, ok, err := h.deriver.Next(r.Context(), scopeFor(r), h.now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to derive reminders")
		return
	}
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"reminder": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reminder": reminderView{Reminder: next, Urgency: next.DisplayUrgency()}})
}

func (h *Handler) toggleTaken(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePatient) {
		return
	}
	taken, err := h.controller.ToggleTaken(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update reminder")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"taken": taken})
}

func (h *Handler) markAllTaken(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePatient) {
		return
	}
	reminders, err := h.deriver.Today(r.Context(), scopeFor(r), h.now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to derive reminders")
		return
	}
	pending := make([]string, 0, len(reminders))
	for _, rem := range reminders {
		if !rem.Taken {
			pending = append(pending, rem.ID)
		}
	}

	marked, err := h.controller.MarkAllTaken(r.Context(), pending)
	if errors.Is(err, reminder.ErrNoPending) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "no pending reminders", "marked": 0})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update reminders")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "marked", "marked": marked})
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
