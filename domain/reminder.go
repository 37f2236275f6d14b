package domain

import "fmt"

// Urgency classifies a reminder relative to wall-clock time.
type Urgency string

const (
	UrgencyUpcoming Urgency = "upcoming"
	UrgencyDue      Urgency = "due"
	UrgencyOverdue  Urgency = "overdue"
	UrgencyTaken    Urgency = "taken"
)

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyUpcoming, UrgencyDue, UrgencyOverdue, UrgencyTaken:
		return true
	default:
		return false
	}
}

// Reminder is a single dosage occurrence for one medicine at one scheduled
// time on one day. Reminders are derived on demand and never stored; only
// the taken and notified flags persist, keyed by ID and date.
type Reminder struct {
	ID             string  `json:"id"`
	PrescriptionID string  `json:"prescription_id"`
	PatientID      string  `json:"patient_id"`
	PatientName    string  `json:"patient_name"`
	Medicine       string  `json:"medicine"`
	Dosage         string  `json:"dosage"`
	Time           string  `json:"time"`
	Date           string  `json:"date"`
	Taken          bool    `json:"taken"`
	Urgency        Urgency `json:"-"`
}

// ReminderID builds the stable identity key for a prescription/medicine/time
// triple. The calendar date is deliberately not part of the ID; flag keys
// add it so acknowledgement state resets each day.
func ReminderID(prescriptionID, medicineID, timeOfDay string) string {
	return fmt.Sprintf("%s-%s-%s", prescriptionID, medicineID, timeOfDay)
}

// DisplayUrgency is what the view layer shows: taken wins over the
// time-based classification, which is still retained for sweep decisions.
func (r Reminder) DisplayUrgency() Urgency {
	if r.Taken {
		return UrgencyTaken
	}
	return r.Urgency
}
