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

const staffDetailColumns = `s.user_id, s.staff_id, s.date_of_birth, s.gender, s.phone, s.address, s.department, s.designation, s.qualification, s.salary, s.joining_date, s.created_at, s.updated_at, u.email, u.first_name, u.last_name, u.role, u.is_active`

// StaffRepository handles persistence for staff profiles.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository creates a new repository instance.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// CreateWithUser inserts the owning user and the staff profile atomically.
// The owning user's role is pinned to staff before the insert.
func (r *StaffRepository) CreateWithUser(ctx context.Context, user *models.User, staff *models.Staff) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.DateJoined.IsZero() {
		user.DateJoined = now
	}
	user.UpdatedAt = now
	user.Role = models.RoleStaff
	user.IsStaff = true

	staff.UserID = user.ID
	if staff.JoiningDate.IsZero() {
		staff.JoiningDate = now
	}
	staff.CreatedAt = now
	staff.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create staff: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const userQuery = `INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_active, is_staff, date_joined, updated_at) VALUES (:id, :email, :password_hash, :first_name, :last_name, :role, :is_active, :is_staff, :date_joined, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("create staff user: %w", err)
	}

	const staffQuery = `INSERT INTO staff (user_id, staff_id, date_of_birth, gender, phone, address, department, designation, qualification, salary, joining_date, created_at, updated_at) VALUES (:user_id, :staff_id, :date_of_birth, :gender, :phone, :address, :department, :designation, :qualification, :salary, :joining_date, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, staffQuery, staff); err != nil {
		return fmt.Errorf("create staff profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create staff: %w", err)
	}
	return nil
}

// FindByStaffID returns a staff member by its public identifier.
func (r *StaffRepository) FindByStaffID(ctx context.Context, staffID string) (*models.StaffDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff s JOIN users u ON u.id = s.user_id WHERE s.staff_id = $1 LIMIT 1`, staffDetailColumns)
	var detail models.StaffDetail
	if err := r.db.GetContext(ctx, &detail, query, staffID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find staff: %w", err)
	}
	return &detail, nil
}

// FindByUserID returns a staff member by the owning user id.
func (r *StaffRepository) FindByUserID(ctx context.Context, userID string) (*models.StaffDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff s JOIN users u ON u.id = s.user_id WHERE s.user_id = $1 LIMIT 1`, staffDetailColumns)
	var detail models.StaffDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find staff by user: %w", err)
	}
	return &detail, nil
}

// ExistsByStaffID checks uniqueness of the public identifier.
func (r *StaffRepository) ExistsByStaffID(ctx context.Context, staffID string) (bool, error) {
	const query = `SELECT 1 FROM staff WHERE staff_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, staffID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check staff id: %w", err)
	}
	return true, nil
}

// List returns staff profiles joined with user data.
func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.StaffDetail, int, error) {
	base := `FROM staff s JOIN users u ON u.id = s.user_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("s.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.email) LIKE $%d OR LOWER(u.first_name || ' ' || u.last_name) LIKE $%d OR LOWER(s.staff_id) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"staff_id":     "s.staff_id",
		"joining_date": "s.joining_date",
		"date_joined":  "u.date_joined",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "u.date_joined"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", staffDetailColumns, base, column, order, size, offset)
	var staff []models.StaffDetail
	if err := r.db.SelectContext(ctx, &staff, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}

	return staff, total, nil
}

// Update modifies the mutable profile fields. Joining date is immutable.
func (r *StaffRepository) Update(ctx context.Context, staff *models.Staff) error {
	staff.UpdatedAt = time.Now().UTC()
	const query = `UPDATE staff SET date_of_birth = :date_of_birth, gender = :gender, phone = :phone, address = :address, department = :department, designation = :designation, qualification = :qualification, salary = :salary, updated_at = :updated_at WHERE user_id = :user_id`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("update staff: %w", err)
	}
	return nil
}

// DeleteWithUser removes the owning user inside one transaction, optionally
// retiring any active HOD appointment first (cascade-retire policy). The
// profile row cascades with the user; retired appointment rows survive with
// a nulled staff link.
func (r *StaffRepository) DeleteWithUser(ctx context.Context, userID string, retireAppointments bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete staff: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if retireAppointments {
		const retireQuery = `UPDATE head_of_department SET status = $2, end_date = COALESCE(end_date, $3), updated_at = $4 WHERE staff_id = $1 AND status = $5`
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, retireQuery, userID, models.AppointmentRetired, now, now, models.AppointmentActive); err != nil {
			return fmt.Errorf("retire staff appointments: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete staff user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete staff: %w", err)
	}
	return nil
}
