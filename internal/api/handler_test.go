package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/PRADEEP131204/Medimate/domain"
	"github.com/PRADEEP131204/Medimate/internal/migrations"
	"github.com/PRADEEP131204/Medimate/internal/reminder"
	"github.com/PRADEEP131204/Medimate/internal/store"
)

type testEnv struct {
	server *httptest.Server
	users  map[string]domain.User
}

// newTestEnv boots the whole stack on an in-memory database with the
// clock pinned to 09:10, so the seeded 09:00 dose is due.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	migrations.Run(db)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	users := store.NewUserStore(db)
	prescriptions := store.NewPrescriptionStore(db)
	flags := store.NewFlagStore(db)

	hash, err := bcrypt.GenerateFromPassword([]byte("pass123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	byUsername := map[string]domain.User{}
	for _, u := range []domain.User{
		{Username: "patient1", Name: "John Doe", Role: domain.RolePatient},
		{Username: "patient2", Name: "Jane Smith", Role: domain.RolePatient},
		{Username: "doctor1", Name: "Dr. Williams", Role: domain.RoleDoctor},
	} {
		u.Password = string(hash)
		created, err := users.Create(ctx, u)
		if err != nil {
			t.Fatalf("create user %s: %v", u.Username, err)
		}
		byUsername[u.Username] = created
	}

	for _, p := range []domain.Prescription{
		{
			PatientID:   byUsername["patient1"].ID,
			PatientName: "John Doe",
			DoctorID:    byUsername["doctor1"].ID,
			DoctorName:  "Dr. Williams",
			Date:        "2025-09-25",
			Medicines: []domain.Medicine{
				{Name: "Paracetamol", Dosage: "500mg", Frequency: "Twice daily", Times: []string{"09:00", "21:00"}},
			},
		},
		{
			PatientID:   byUsername["patient2"].ID,
			PatientName: "Jane Smith",
			DoctorID:    byUsername["doctor1"].ID,
			DoctorName:  "Dr. Williams",
			Date:        "2025-09-25",
			Medicines: []domain.Medicine{
				{Name: "Metformin", Dosage: "850mg", Frequency: "Twice daily", Times: []string{"08:00", "20:00"}},
			},
		},
	} {
		if _, err := prescriptions.Create(ctx, p); err != nil {
			t.Fatalf("create prescription: %v", err)
		}
	}

	now := func() time.Time { return time.Date(2025, 9, 25, 9, 10, 0, 0, time.UTC) }
	deriver := reminder.NewDeriver(prescriptions, flags)
	controller := reminder.NewController(flags, now)
	handler := New(users, prescriptions, deriver, controller, "test_secret", now)

	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, users: byUsername}
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": "pass123"})
	resp, err := http.Post(e.server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return out.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

type reminderPayload struct {
	ID      string `json:"id"`
	Patient string `json:"patient_name"`
	Time    string `json:"time"`
	Taken   bool   `json:"taken"`
	Urgency string `json:"urgency"`
}

func TestRemindersScopedByRole(t *testing.T) {
	env := newTestEnv(t)

	patientToken := env.login(t, "patient1")
	resp := env.do(t, http.MethodGet, "/reminders", patientToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list reminders status = %d", resp.StatusCode)
	}
	own := decodeBody[[]reminderPayload](t, resp)
	if len(own) != 2 {
		t.Fatalf("patient1 should see 2 reminders, got %d", len(own))
	}
	for _, r := range own {
		if r.Patient != "John Doe" {
			t.Fatalf("patient scope leaked reminder for %s", r.Patient)
		}
	}
	// 09:00 at 09:10 is due; 21:00 upcoming. Sorted ascending.
	if own[0].Time != "09:00" || own[0].Urgency != "due" {
		t.Fatalf("first reminder = %+v, want due 09:00", own[0])
	}
	if own[1].Time != "21:00" || own[1].Urgency != "upcoming" {
		t.Fatalf("second reminder = %+v, want upcoming 21:00", own[1])
	}

	doctorToken := env.login(t, "doctor1")
	resp = env.do(t, http.MethodGet, "/reminders", doctorToken, nil)
	all := decodeBody[[]reminderPayload](t, resp)
	if len(all) != 4 {
		t.Fatalf("doctor should see 4 reminders, got %d", len(all))
	}
}

func TestAuthMiddlewareValidatesAgainstHandlerClock(t *testing.T) {
	pinned := time.Date(2025, 9, 25, 9, 10, 0, 0, time.UTC)
	h := New(nil, nil, nil, nil, "test_secret", func() time.Time { return pinned })
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := h.authMiddleware(next)

	fresh, err := h.generateToken(domain.User{ID: "u1", Name: "John Doe", Role: domain.RolePatient})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/reminders", nil)
	req.Header.Set("Authorization", "Bearer "+fresh)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("token minted at the handler clock was rejected: %d", rec.Code)
	}

	// A token issued more than its 24h lifetime before the handler
	// clock must be expired.
	issuer := New(nil, nil, nil, nil, "test_secret", func() time.Time { return pinned.Add(-25 * time.Hour) })
	old, err := issuer.generateToken(domain.User{ID: "u1", Name: "John Doe", Role: domain.RolePatient})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/reminders", nil)
	req.Header.Set("Authorization", "Bearer "+old)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token accepted: %d", rec.Code)
	}
}

func TestToggleTakenRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "patient1")

	reminders := decodeBody[[]reminderPayload](t, env.do(t, http.MethodGet, "/reminders", token, nil))
	id := reminders[0].ID

	resp := env.do(t, http.MethodPost, "/reminders/"+id+"/taken", token, nil)
	out := decodeBody[map[string]bool](t, resp)
	if !out["taken"] {
		t.Fatalf("toggle should report taken")
	}

	reminders = decodeBody[[]reminderPayload](t, env.do(t, http.MethodGet, "/reminders", token, nil))
	if !reminders[0].Taken || reminders[0].Urgency != "taken" {
		t.Fatalf("reminder not shown as taken: %+v", reminders[0])
	}

	// Undo restores the pending state.
	resp = env.do(t, http.MethodPost, "/reminders/"+id+"/taken", token, nil)
	out = decodeBody[map[string]bool](t, resp)
	if out["taken"] {
		t.Fatalf("second toggle should clear taken")
	}
}

func TestMarkAllTaken(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "patient1")

	resp := env.do(t, http.MethodPost, "/reminders/taken", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark-all status = %d", resp.StatusCode)
	}
	out := decodeBody[map[string]any](t, resp)
	marked, ok := out["marked"].(float64)
	if !ok || marked != 2 {
		t.Fatalf("marked = %v, want 2", out["marked"])
	}

	reminders := decodeBody[[]reminderPayload](t, env.do(t, http.MethodGet, "/reminders", token, nil))
	for _, r := range reminders {
		if !r.Taken {
			t.Fatalf("reminder %s still pending", r.ID)
		}
	}

	// Nothing left to mark: reported as a no-op, not an error.
	resp = env.do(t, http.MethodPost, "/reminders/taken", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("empty mark-all status = %d", resp.StatusCode)
	}
	out = decodeBody[map[string]any](t, resp)
	if out["status"] != "no pending reminders" {
		t.Fatalf("unexpected no-op response: %v", out)
	}
}

func TestPrescriptionCRUDRequiresDoctor(t *testing.T) {
	env := newTestEnv(t)
	patientToken := env.login(t, "patient1")
	doctorToken := env.login(t, "doctor1")

	body := map[string]any{
		"patient_id": env.users["patient1"].ID,
		"notes":      "With water.",
		"medicines": []map[string]any{
			{"name": "Ibuprofen", "dosage": "200mg", "times": []string{"12:00"}},
		},
	}

	resp := env.do(t, http.MethodPost, "/prescriptions", patientToken, body)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("patient create status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/prescriptions", doctorToken, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("doctor create status = %d, want 201", resp.StatusCode)
	}
	created := decodeBody[domain.Prescription](t, resp)
	if created.DoctorName != "Dr. Williams" || len(created.Medicines) != 1 {
		t.Fatalf("created prescription malformed: %+v", created)
	}
	// Blank frequency falls back to the original form's default.
	if created.Medicines[0].Frequency != "As needed" {
		t.Fatalf("frequency default missing: %q", created.Medicines[0].Frequency)
	}

	resp = env.do(t, http.MethodDelete, "/prescriptions/"+created.ID, doctorToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPatientCannotReadOthersPrescription(t *testing.T) {
	env := newTestEnv(t)
	doctorToken := env.login(t, "doctor1")
	patientToken := env.login(t, "patient1")

	all := decodeBody[[]domain.Prescription](t, env.do(t, http.MethodGet, "/prescriptions", doctorToken, nil))
	if len(all) != 2 {
		t.Fatalf("doctor should list 2 prescriptions, got %d", len(all))
	}
	var other string
	for _, p := range all {
		if p.PatientName == "Jane Smith" {
			other = p.ID
		}
	}

	resp := env.do(t, http.MethodGet, "/prescriptions/"+other, patientToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-patient read status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	mine := decodeBody[[]domain.Prescription](t, env.do(t, http.MethodGet, "/prescriptions", patientToken, nil))
	if len(mine) != 1 || mine[0].PatientName != "John Doe" {
		t.Fatalf("patient listing wrong: %+v", mine)
	}
}

func TestPrescriptionSearch(t *testing.T) {
	env := newTestEnv(t)
	doctorToken := env.login(t, "doctor1")

	found := decodeBody[[]domain.Prescription](t, env.do(t, http.MethodGet, "/prescriptions?query=metformin", doctorToken, nil))
	if len(found) != 1 || found[0].PatientName != "Jane Smith" {
		t.Fatalf("search by medicine failed: %+v", found)
	}

	found = decodeBody[[]domain.Prescription](t, env.do(t, http.MethodGet, "/prescriptions?query=john", doctorToken, nil))
	if len(found) != 1 || found[0].PatientName != "John Doe" {
		t.Fatalf("search by patient failed: %+v", found)
	}
}
