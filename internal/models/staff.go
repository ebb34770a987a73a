package models

import "time"

// Staff holds the 1:1 profile attached to a user with the staff role.
type Staff struct {
	UserID        string     `db:"user_id" json:"user_id"`
	StaffID       string     `db:"staff_id" json:"staff_id"`
	DateOfBirth   *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender        *string    `db:"gender" json:"gender,omitempty"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	Address       *string    `db:"address" json:"address,omitempty"`
	Department    *string    `db:"department" json:"department,omitempty"`
	Designation   *string    `db:"designation" json:"designation,omitempty"`
	Qualification *string    `db:"qualification" json:"qualification,omitempty"`
	Salary        *float64   `db:"salary" json:"salary,omitempty"`
	JoiningDate   time.Time  `db:"joining_date" json:"joining_date"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// StaffDetail joins the profile with its owning user for list/read views.
type StaffDetail struct {
	Staff
	Email     string   `db:"email" json:"email"`
	FirstName string   `db:"first_name" json:"first_name"`
	LastName  string   `db:"last_name" json:"last_name"`
	Role      UserRole `db:"role" json:"role"`
	IsActive  bool     `db:"is_active" json:"is_active"`
}

// FullName returns the staff member's display name.
func (s *StaffDetail) FullName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StaffFilter captures filtering options for listing staff members.
type StaffFilter struct {
	Department string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
