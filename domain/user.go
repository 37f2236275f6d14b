package domain

// Roles understood by the API. Doctors manage prescriptions and see every
// patient's reminders; patients see and acknowledge only their own.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

type User struct {
	ID        string `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	Name      string `json:"name" db:"name"`
	Password  string `json:"password,omitempty" db:"password"`
	Role      string `json:"role" db:"role"`
	CreatedAt string `json:"created_at,omitempty" db:"created_at"`
}
