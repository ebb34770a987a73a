package models

import "time"

// Student holds the 1:1 profile attached to a user with the student role.
type Student struct {
	UserID         string     `db:"user_id" json:"user_id"`
	StudentID      string     `db:"student_id" json:"student_id"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender         *string    `db:"gender" json:"gender,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Address        *string    `db:"address" json:"address,omitempty"`
	Department     *string    `db:"department" json:"department,omitempty"`
	EnrollmentDate time.Time  `db:"enrollment_date" json:"enrollment_date"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins the profile with its owning user for list/read views.
type StudentDetail struct {
	Student
	Email     string   `db:"email" json:"email"`
	FirstName string   `db:"first_name" json:"first_name"`
	LastName  string   `db:"last_name" json:"last_name"`
	Role      UserRole `db:"role" json:"role"`
	IsActive  bool     `db:"is_active" json:"is_active"`
}

// StudentFilter captures filtering options for listing students.
type StudentFilter struct {
	Department string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
