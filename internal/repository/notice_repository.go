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

const noticeColumns = `id, category, audience, title, content, date, event_time, posted_by, priority, expiry_date, created_at, updated_at`

// NoticeRepository handles persistence for notices.
type NoticeRepository struct {
	db *sqlx.DB
}

// NewNoticeRepository creates a new repository instance.
func NewNoticeRepository(db *sqlx.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// FindByID returns a notice by identifier.
func (r *NoticeRepository) FindByID(ctx context.Context, id string) (*models.Notice, error) {
	query := fmt.Sprintf(`SELECT %s FROM notices WHERE id = $1 LIMIT 1`, noticeColumns)
	var notice models.Notice
	if err := r.db.GetContext(ctx, &notice, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notice: %w", err)
	}
	return &notice, nil
}

// List returns notices matching filters with pagination metadata.
func (r *NoticeRepository) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	base := "FROM notices WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.AudienceAll {
		conditions = append(conditions, fmt.Sprintf("audience = $%d", len(args)+1))
		args = append(args, models.AudienceAll)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", noticeColumns, base, size, offset)
	var notices []models.Notice
	if err := r.db.SelectContext(ctx, &notices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notices: %w", err)
	}

	return notices, total, nil
}

// Create persists a new notice.
func (r *NoticeRepository) Create(ctx context.Context, notice *models.Notice) error {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = now
	}
	notice.UpdatedAt = now

	const query = `INSERT INTO notices (id, category, audience, title, content, date, event_time, posted_by, priority, expiry_date, created_at, updated_at) VALUES (:id, :category, :audience, :title, :content, :date, :event_time, :posted_by, :priority, :expiry_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notice); err != nil {
		return fmt.Errorf("create notice: %w", err)
	}
	return nil
}

// Update modifies a notice.
func (r *NoticeRepository) Update(ctx context.Context, notice *models.Notice) error {
	notice.UpdatedAt = time.Now().UTC()
	const query = `UPDATE notices SET category = :category, audience = :audience, title = :title, content = :content, date = :date, event_time = :event_time, priority = :priority, expiry_date = :expiry_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, notice); err != nil {
		return fmt.Errorf("update notice: %w", err)
	}
	return nil
}

// Delete removes a notice record.
func (r *NoticeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notices WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete notice: %w", err)
	}
	return nil
}

// DeleteOlderThan removes notices created before the cutoff and returns the
// number of rows deleted. Idempotent, safe to run concurrently with traffic.
func (r *NoticeRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notices WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old notices: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted notices: %w", err)
	}
	return deleted, nil
}
