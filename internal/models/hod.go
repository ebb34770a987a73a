package models

import "time"

// AppointmentStatus is the lifecycle state of a Head-of-Department
// appointment. An appointment is a two-state machine: ACTIVE until it is
// retired, and RETIRED is terminal.
type AppointmentStatus string

const (
	AppointmentActive  AppointmentStatus = "ACTIVE"
	AppointmentRetired AppointmentStatus = "RETIRED"
)

// HeadOfDepartment records one appointment of a staff member as the head of a
// department. A department's succession history is the sequence of its rows
// ordered by start date; at most one row per department is ACTIVE.
type HeadOfDepartment struct {
	ID         string            `db:"id" json:"id"`
	StaffID    string            `db:"staff_id" json:"staff_id"`
	Department string            `db:"department" json:"department"`
	StartDate  time.Time         `db:"start_date" json:"start_date"`
	EndDate    *time.Time        `db:"end_date" json:"end_date,omitempty"`
	Status     AppointmentStatus `db:"status" json:"status"`
	Notes      *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the appointment currently holds the headship.
func (h *HeadOfDepartment) IsActive() bool {
	return h.Status == AppointmentActive
}

// HODDetail joins an appointment with the staff member holding it.
type HODDetail struct {
	HeadOfDepartment
	StaffCode      string `db:"staff_code" json:"staff_code"`
	StaffFirstName string `db:"staff_first_name" json:"staff_first_name"`
	StaffLastName  string `db:"staff_last_name" json:"staff_last_name"`
}

// StaffName returns the display name of the appointed staff member.
func (h *HODDetail) StaffName() string {
	if h.StaffFirstName == "" {
		return h.StaffLastName
	}
	if h.StaffLastName == "" {
		return h.StaffFirstName
	}
	return h.StaffFirstName + " " + h.StaffLastName
}

// HODFilter captures filtering options for listing appointments.
type HODFilter struct {
	Department string
	Status     AppointmentStatus
	Page       int
	PageSize   int
}
