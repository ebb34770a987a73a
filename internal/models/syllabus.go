package models

import "time"

// Syllabus is the 1:1 document attached to a subject.
type Syllabus struct {
	ID         string    `db:"id" json:"id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	PDFURL     string    `db:"pdf_url" json:"pdf_url"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// SyllabusDetail joins the syllabus with its subject for list views.
type SyllabusDetail struct {
	Syllabus
	SubjectName string `db:"subject_name" json:"subject_name"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
	Department  string `db:"department" json:"department"`
	Semester    int    `db:"semester" json:"semester"`
}

// SyllabusFilter captures supported filters for listing syllabi.
type SyllabusFilter struct {
	Department string
	Semester   int
	Page       int
	PageSize   int
}
