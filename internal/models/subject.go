package models

import "time"

// Semester bounds for the subject catalog.
const (
	MinSemester = 1
	MaxSemester = 8
)

// Subject represents a catalog entry. The subject code is generated once at
// creation and never recomputed.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	SubjectCode string    `db:"subject_code" json:"subject_code"`
	Department  string    `db:"department" json:"department"`
	Semester    int       `db:"semester" json:"semester"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Department string
	Semester   int
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
