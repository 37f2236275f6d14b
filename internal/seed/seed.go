// Package seed installs the demo accounts and sample prescriptions on
// first run, so the service is usable straight after startup.
package seed

import (
	"context"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/PRADEEP131204/Medimate/domain"
	"github.com/PRADEEP131204/Medimate/internal/store"
)

type demoUser struct {
	username string
	password string
	name     string
	role     string
}

var demoUsers = []demoUser{
	{"patient1", "pass123", "John Doe", domain.RolePatient},
	{"patient2", "pass123", "Jane Smith", domain.RolePatient},
	{"doctor1", "doc123", "Dr. Williams", domain.RoleDoctor},
	{"admin", "admin123", "Admin User", domain.RoleDoctor},
}

// Run seeds demo users and, when the prescription table is empty, two
// sample prescriptions. Failures are logged and skipped; a partially
// seeded database is still serviceable.
func Run(ctx context.Context, users *store.UserStore, prescriptions *store.PrescriptionStore) {
	byUsername := make(map[string]domain.User)
	for _, du := range demoUsers {
		hashed, err := bcrypt.GenerateFromPassword([]byte(du.password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("seed: unable to hash password for %s: %v", du.username, err)
			continue
		}
		u, err := users.Create(ctx, domain.User{
			Username: du.username,
			Name:     du.name,
			Password: string(hashed),
			Role:     du.role,
		})
		if err != nil {
			log.Printf("seed: unable to create user %s: %v", du.username, err)
			continue
		}
		byUsername[du.username] = u
	}

	existing, err := prescriptions.List(ctx)
	if err != nil {
		log.Printf("seed: unable to check prescriptions: %v", err)
		return
	}
	if len(existing) > 0 {
		return
	}

	patient1, ok1 := byUsername["patient1"]
	patient2, ok2 := byUsername["patient2"]
	doctor, ok3 := byUsername["doctor1"]
	if !ok1 || !ok2 || !ok3 {
		log.Printf("seed: demo users incomplete, skipping sample prescriptions")
		return
	}

	today := time.Now().Format("2006-01-02")
	samples := []domain.Prescription{
		{
			PatientID:   patient1.ID,
			PatientName: patient1.Name,
			DoctorID:    doctor.ID,
			DoctorName:  doctor.Name,
			Notes:       "Take with food.",
			Date:        today,
			Medicines: []domain.Medicine{
				{Name: "Paracetamol", Dosage: "500mg", Frequency: "Twice daily", Times: []string{"09:00", "21:00"}},
				{Name: "Vitamin D", Dosage: "1000IU", Frequency: "Once daily", Times: []string{"08:00"}},
			},
		},
		{
			PatientID:   patient2.ID,
			PatientName: patient2.Name,
			DoctorID:    doctor.ID,
			DoctorName:  doctor.Name,
			Notes:       "Monitor blood sugar.",
			Date:        today,
			Medicines: []domain.Medicine{
				{Name: "Metformin", Dosage: "850mg", Frequency: "Twice daily", Times: []string{"08:00", "20:00"}},
			},
		},
	}
	seeded := 0
	for _, p := range samples {
		if _, err := prescriptions.Create(ctx, p); err != nil {
			log.Printf("seed: unable to create prescription for %s: %v", p.PatientName, err)
			continue
		}
		seeded++
	}
	log.Printf("seeded %d sample prescriptions", seeded)
}
