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

// staff_id is NULL once the staff member is deleted; the joins stay LEFT so
// retired history rows still come back, with staff columns blanked.
const hodDetailColumns = `h.id, COALESCE(h.staff_id::text, '') AS staff_id, h.department, h.start_date, h.end_date, h.status, h.notes, h.created_at, h.updated_at, COALESCE(s.staff_id, '') AS staff_code, COALESCE(u.first_name, '') AS staff_first_name, COALESCE(u.last_name, '') AS staff_last_name`

const hodJoin = `FROM head_of_department h LEFT JOIN staff s ON s.user_id = h.staff_id LEFT JOIN users u ON u.id = s.user_id`

// HODRepository handles persistence for Head-of-Department appointments.
type HODRepository struct {
	db *sqlx.DB
}

// NewHODRepository creates a new repository instance.
func NewHODRepository(db *sqlx.DB) *HODRepository {
	return &HODRepository{db: db}
}

// FindByID returns an appointment by identifier.
func (r *HODRepository) FindByID(ctx context.Context, id string) (*models.HODDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE h.id = $1 LIMIT 1`, hodDetailColumns, hodJoin)
	var detail models.HODDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find hod: %w", err)
	}
	return &detail, nil
}

// CurrentByDepartment returns the unique active appointment for a department.
func (r *HODRepository) CurrentByDepartment(ctx context.Context, department string) (*models.HODDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE h.department = $1 AND h.status = $2 LIMIT 1`, hodDetailColumns, hodJoin)
	var detail models.HODDetail
	if err := r.db.GetContext(ctx, &detail, query, department, models.AppointmentActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find current hod: %w", err)
	}
	return &detail, nil
}

// ActiveByStaff returns the staff member's active appointment in any
// department, if one exists.
func (r *HODRepository) ActiveByStaff(ctx context.Context, staffUserID string) (*models.HODDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE h.staff_id = $1 AND h.status = $2 LIMIT 1`, hodDetailColumns, hodJoin)
	var detail models.HODDetail
	if err := r.db.GetContext(ctx, &detail, query, staffUserID, models.AppointmentActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active hod by staff: %w", err)
	}
	return &detail, nil
}

// List returns appointments matching filters with pagination metadata.
func (r *HODRepository) List(ctx context.Context, filter models.HODFilter) ([]models.HODDetail, int, error) {
	base := hodJoin + ` WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("h.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("h.status = $%d", len(args)+1))
		args = append(args, filter.Status)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY h.department ASC, h.status ASC, h.start_date DESC LIMIT %d OFFSET %d", hodDetailColumns, base, size, offset)
	var appointments []models.HODDetail
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list hods: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count hods: %w", err)
	}

	return appointments, total, nil
}

// Appoint retires any active appointment for the department and inserts the
// new active row in one transaction. The partial unique index on
// (department) WHERE status = 'ACTIVE' is the authoritative guard: when two
// appointments race, one insert fails with a unique violation.
func (r *HODRepository) Appoint(ctx context.Context, hod *models.HeadOfDepartment) error {
	if hod.ID == "" {
		hod.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if hod.StartDate.IsZero() {
		hod.StartDate = now
	}
	hod.Status = models.AppointmentActive
	hod.EndDate = nil
	hod.CreatedAt = now
	hod.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin appoint: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := retireDepartmentTx(ctx, tx, hod.Department, now); err != nil {
		return err
	}

	const insertQuery = `INSERT INTO head_of_department (id, staff_id, department, start_date, end_date, status, notes, created_at, updated_at) VALUES (:id, :staff_id, :department, :start_date, :end_date, :status, :notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, hod); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit appoint: %w", err)
	}
	return nil
}

// Update persists mutable appointment fields.
func (r *HODRepository) Update(ctx context.Context, hod *models.HeadOfDepartment) error {
	hod.UpdatedAt = time.Now().UTC()
	const query = `UPDATE head_of_department SET start_date = :start_date, end_date = :end_date, status = :status, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, hod); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

// Retire marks the appointment retired without deleting the row, preserving
// succession history. End date defaults to now when unset.
func (r *HODRepository) Retire(ctx context.Context, id string) error {
	now := time.Now().UTC()
	const query = `UPDATE head_of_department SET status = $2, end_date = COALESCE(end_date, $3), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.AppointmentRetired, now, now); err != nil {
		return fmt.Errorf("retire appointment: %w", err)
	}
	return nil
}

// Transfer retires the given appointment and inserts a fresh active row for
// the new department, atomically. Used when an update moves a head to a
// different department.
func (r *HODRepository) Transfer(ctx context.Context, oldID string, replacement *models.HeadOfDepartment) error {
	if replacement.ID == "" {
		replacement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if replacement.StartDate.IsZero() {
		replacement.StartDate = now
	}
	replacement.Status = models.AppointmentActive
	replacement.EndDate = nil
	replacement.CreatedAt = now
	replacement.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const endQuery = `UPDATE head_of_department SET status = $2, end_date = COALESCE(end_date, $3), updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, endQuery, oldID, models.AppointmentRetired, now, now); err != nil {
		return fmt.Errorf("end current appointment: %w", err)
	}

	if err := retireDepartmentTx(ctx, tx, replacement.Department, now); err != nil {
		return err
	}

	const insertQuery = `INSERT INTO head_of_department (id, staff_id, department, start_date, end_date, status, notes, created_at, updated_at) VALUES (:id, :staff_id, :department, :start_date, :end_date, :status, :notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, replacement); err != nil {
		return fmt.Errorf("insert transfer appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

func retireDepartmentTx(ctx context.Context, tx *sqlx.Tx, department string, now time.Time) error {
	const query = `UPDATE head_of_department SET status = $2, end_date = COALESCE(end_date, $3), updated_at = $4 WHERE department = $1 AND status = $5`
	if _, err := tx.ExecContext(ctx, query, department, models.AppointmentRetired, now, now, models.AppointmentActive); err != nil {
		return fmt.Errorf("retire department head: %w", err)
	}
	return nil
}
