package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-portal-api/internal/models"
)

func newNoticeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func noticeRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "category", "audience", "title", "content", "date", "event_time", "posted_by", "priority", "expiry_date", "created_at", "updated_at",
	}).AddRow("n1", "Events", "all", "Sports Day", "Annual sports day", nil, nil, nil, "normal", nil, now, now)
}

func TestNoticeRepositoryListAudienceScoped(t *testing.T) {
	db, mock, cleanup := newNoticeRepoMock(t)
	defer cleanup()
	repo := NewNoticeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, category, audience, title, content, date, event_time, posted_by, priority, expiry_date, created_at, updated_at FROM notices WHERE 1=1 AND audience = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(models.AudienceAll).
		WillReturnRows(noticeRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notices WHERE 1=1 AND audience = $1")).
		WithArgs(models.AudienceAll).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.NoticeFilter{AudienceAll: true})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoticeRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newNoticeRepoMock(t)
	defer cleanup()
	repo := NewNoticeRepository(db)

	mock.ExpectExec("INSERT INTO notices").
		WillReturnResult(sqlmock.NewResult(1, 1))

	notice := &models.Notice{Category: "Events", Audience: models.AudienceAll, Title: "Sports Day", Priority: models.PriorityNormal}
	require.NoError(t, repo.Create(context.Background(), notice))
	assert.NotEmpty(t, notice.ID)
	assert.False(t, notice.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoticeRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, cleanup := newNoticeRepoMock(t)
	defer cleanup()
	repo := NewNoticeRepository(db)

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notices WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
