package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-portal-api/internal/models"
)

const syllabusDetailColumns = `sy.id, sy.subject_id, sy.pdf_url, sy.uploaded_at, su.name AS subject_name, su.subject_code, su.department, su.semester`

// SyllabusRepository handles persistence for syllabus documents.
type SyllabusRepository struct {
	db *sqlx.DB
}

// NewSyllabusRepository creates a new repository instance.
func NewSyllabusRepository(db *sqlx.DB) *SyllabusRepository {
	return &SyllabusRepository{db: db}
}

// FindByID returns a syllabus by identifier.
func (r *SyllabusRepository) FindByID(ctx context.Context, id string) (*models.SyllabusDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM syllabi sy JOIN subjects su ON su.id = sy.subject_id WHERE sy.id = $1 LIMIT 1`, syllabusDetailColumns)
	var detail models.SyllabusDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find syllabus: %w", err)
	}
	return &detail, nil
}

// FindBySubject returns the syllabus attached to a subject.
func (r *SyllabusRepository) FindBySubject(ctx context.Context, subjectID string) (*models.SyllabusDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM syllabi sy JOIN subjects su ON su.id = sy.subject_id WHERE sy.subject_id = $1 LIMIT 1`, syllabusDetailColumns)
	var detail models.SyllabusDetail
	if err := r.db.GetContext(ctx, &detail, query, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find syllabus by subject: %w", err)
	}
	return &detail, nil
}

// List returns syllabi joined with subject context.
func (r *SyllabusRepository) List(ctx context.Context, filter models.SyllabusFilter) ([]models.SyllabusDetail, int, error) {
	base := `FROM syllabi sy JOIN subjects su ON su.id = sy.subject_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("su.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("su.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY su.department ASC, su.semester ASC, su.name ASC LIMIT %d OFFSET %d", syllabusDetailColumns, base, size, offset)
	var syllabi []models.SyllabusDetail
	if err := r.db.SelectContext(ctx, &syllabi, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list syllabi: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count syllabi: %w", err)
	}

	return syllabi, total, nil
}

// UpsertBySubject creates or replaces the syllabus attached to a subject.
func (r *SyllabusRepository) UpsertBySubject(ctx context.Context, syllabus *models.Syllabus) error {
	if syllabus.ID == "" {
		syllabus.ID = uuid.NewString()
	}
	if syllabus.UploadedAt.IsZero() {
		syllabus.UploadedAt = time.Now().UTC()
	}

	const query = `INSERT INTO syllabi (id, subject_id, pdf_url, uploaded_at) VALUES (:id, :subject_id, :pdf_url, :uploaded_at) ON CONFLICT (subject_id) DO UPDATE SET pdf_url = EXCLUDED.pdf_url, uploaded_at = EXCLUDED.uploaded_at`
	if _, err := r.db.NamedExecContext(ctx, query, syllabus); err != nil {
		return fmt.Errorf("upsert syllabus: %w", err)
	}
	return nil
}

// Delete removes a syllabus record.
func (r *SyllabusRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM syllabi WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete syllabus: %w", err)
	}
	return nil
}
