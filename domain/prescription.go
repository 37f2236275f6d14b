package domain

// Medicine is one line item on a prescription. Times holds the scheduled
// times of day in zero-padded 24-hour "HH:MM" form.
type Medicine struct {
	ID        string   `db:"id" json:"id"`
	Name      string   `db:"name" json:"name"`
	Dosage    string   `db:"dosage" json:"dosage"`
	Frequency string   `db:"frequency" json:"frequency"`
	Times     []string `db:"-" json:"times"`
}

type Prescription struct {
	ID          string     `db:"id" json:"id"`
	PatientID   string     `db:"patient_id" json:"patient_id"`
	PatientName string     `db:"patient_name" json:"patient_name"`
	DoctorID    string     `db:"doctor_id" json:"doctor_id"`
	DoctorName  string     `db:"doctor_name" json:"doctor_name"`
	Medicines   []Medicine `db:"-" json:"medicines"`
	Notes       string     `db:"notes" json:"notes"`
	Date        string     `db:"date" json:"date"`
}
