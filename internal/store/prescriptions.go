// Package store persists prescriptions and reminder flags in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/PRADEEP131204/Medimate/domain"
)

var ErrNotFound = errors.New("store: not found")

// PrescriptionStore owns the prescriptions and medicines tables. The
// reminder core only reads from it; writes come from the doctor API.
type PrescriptionStore struct {
	db *sqlx.DB
}

func NewPrescriptionStore(db *sqlx.DB) *PrescriptionStore {
	return &PrescriptionStore{db: db}
}

type medicineRow struct {
	ID             string `db:"id"`
	PrescriptionID string `db:"prescription_id"`
	Name           string `db:"name"`
	Dosage         string `db:"dosage"`
	Frequency      string `db:"frequency"`
	Times          string `db:"times"`
}

func (r medicineRow) toDomain() domain.Medicine {
	return domain.Medicine{
		ID:        r.ID,
		Name:      r.Name,
		Dosage:    r.Dosage,
		Frequency: r.Frequency,
		Times:     splitTimes(r.Times),
	}
}

// Times are stored comma-joined, the same shape the original entry form
// accepted them in.
func splitTimes(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func joinTimes(times []string) string {
	trimmed := make([]string, 0, len(times))
	for _, t := range times {
		if v := strings.TrimSpace(t); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	return strings.Join(trimmed, ",")
}

// List returns every prescription with its medicines in entry order.
func (s *PrescriptionStore) List(ctx context.Context) ([]domain.Prescription, error) {
	var prescriptions []domain.Prescription
	err := s.db.SelectContext(ctx, &prescriptions,
		`SELECT id, patient_id, patient_name, doctor_id, doctor_name, notes, date
         FROM prescriptions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list prescriptions: %w", err)
	}
	if len(prescriptions) == 0 {
		return []domain.Prescription{}, nil
	}

	ids := make([]string, len(prescriptions))
	for i, p := range prescriptions {
		ids[i] = p.ID
	}
	query, args, err := sqlx.In(
		`SELECT id, prescription_id, name, dosage, frequency, times
         FROM medicines WHERE prescription_id IN (?) ORDER BY position`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: prepare medicines query: %w", err)
	}
	var rows []medicineRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("store: load medicines: %w", err)
	}

	byPrescription := make(map[string][]domain.Medicine)
	for _, row := range rows {
		byPrescription[row.PrescriptionID] = append(byPrescription[row.PrescriptionID], row.toDomain())
	}
	for i := range prescriptions {
		medicines := byPrescription[prescriptions[i].ID]
		if medicines == nil {
			medicines = []domain.Medicine{}
		}
		prescriptions[i].Medicines = medicines
	}
	return prescriptions, nil
}

// Get loads one prescription with its medicines.
func (s *PrescriptionStore) Get(ctx context.Context, id string) (domain.Prescription, error) {
	var p domain.Prescription
	err := s.db.GetContext(ctx, &p,
		`SELECT id, patient_id, patient_name, doctor_id, doctor_name, notes, date
         FROM prescriptions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Prescription{}, ErrNotFound
	}
	if err != nil {
		return domain.Prescription{}, fmt.Errorf("store: get prescription: %w", err)
	}
	var rows []medicineRow
	err = s.db.SelectContext(ctx, &rows,
		`SELECT id, prescription_id, name, dosage, frequency, times
         FROM medicines WHERE prescription_id = ? ORDER BY position`, id)
	if err != nil {
		return domain.Prescription{}, fmt.Errorf("store: load medicines: %w", err)
	}
	p.Medicines = make([]domain.Medicine, 0, len(rows))
	for _, row := range rows {
		p.Medicines = append(p.Medicines, row.toDomain())
	}
	return p, nil
}

// Create inserts a prescription and its medicines, assigning IDs where
// the caller left them empty.
func (s *PrescriptionStore) Create(ctx context.Context, p domain.Prescription) (domain.Prescription, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Prescription{}, fmt.Errorf("store: begin create: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO prescriptions (id, patient_id, patient_name, doctor_id, doctor_name, notes, date)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PatientID, p.PatientName, p.DoctorID, p.DoctorName, p.Notes, p.Date)
	if err != nil {
		return domain.Prescription{}, fmt.Errorf("store: insert prescription: %w", err)
	}
	if err := insertMedicines(ctx, tx, p.ID, p.Medicines); err != nil {
		return domain.Prescription{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Prescription{}, fmt.Errorf("store: commit create: %w", err)
	}
	return s.Get(ctx, p.ID)
}

// Update rewrites a prescription in place, replacing its medicine list.
func (s *PrescriptionStore) Update(ctx context.Context, p domain.Prescription) (domain.Prescription, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Prescription{}, fmt.Errorf("store: begin update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE prescriptions SET patient_id = ?, patient_name = ?, notes = ?, date = ?,
         updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		p.PatientID, p.PatientName, p.Notes, p.Date, p.ID)
	if err != nil {
		return domain.Prescription{}, fmt.Errorf("store: update prescription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Prescription{}, ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM medicines WHERE prescription_id = ?`, p.ID); err != nil {
		return domain.Prescription{}, fmt.Errorf("store: clear medicines: %w", err)
	}
	if err := insertMedicines(ctx, tx, p.ID, p.Medicines); err != nil {
		return domain.Prescription{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Prescription{}, fmt.Errorf("store: commit update: %w", err)
	}
	return s.Get(ctx, p.ID)
}

// Delete removes a prescription and its medicines.
func (s *PrescriptionStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM medicines WHERE prescription_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete medicines: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete prescription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func insertMedicines(ctx context.Context, tx *sqlx.Tx, prescriptionID string, medicines []domain.Medicine) error {
	for i, m := range medicines {
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO medicines (id, prescription_id, position, name, dosage, frequency, times)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, prescriptionID, i, m.Name, m.Dosage, m.Frequency, joinTimes(m.Times))
		if err != nil {
			return fmt.Errorf("store: insert medicine %s: %w", m.Name, err)
		}
	}
	return nil
}
