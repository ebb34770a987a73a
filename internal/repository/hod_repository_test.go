package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-portal-api/internal/models"
)

func newHODRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func hodRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "staff_id", "department", "start_date", "end_date", "status", "notes", "created_at", "updated_at",
		"staff_code", "staff_first_name", "staff_last_name",
	}).AddRow("h1", "u1", "CS", now, nil, "ACTIVE", nil, now, now, "STF001", "Ada", "Lovelace")
}

func TestHODRepositoryCurrentByDepartment(t *testing.T) {
	db, mock, cleanup := newHODRepoMock(t)
	defer cleanup()
	repo := NewHODRepository(db)

	mock.ExpectQuery("SELECT .+ FROM head_of_department h LEFT JOIN staff s ON s.user_id = h.staff_id LEFT JOIN users u ON u.id = s.user_id WHERE h.department = \\$1 AND h.status = \\$2").
		WithArgs("CS", models.AppointmentActive).
		WillReturnRows(hodRows())

	detail, err := repo.CurrentByDepartment(context.Background(), "CS")
	require.NoError(t, err)
	assert.Equal(t, "h1", detail.ID)
	assert.Equal(t, "Ada Lovelace", detail.StaffName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHODRepositoryCurrentByDepartmentMissing(t *testing.T) {
	db, mock, cleanup := newHODRepoMock(t)
	defer cleanup()
	repo := NewHODRepository(db)

	mock.ExpectQuery("SELECT .+ FROM head_of_department").
		WithArgs("CS", models.AppointmentActive).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.CurrentByDepartment(context.Background(), "CS")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestHODRepositoryAppointRetiresIncumbentFirst(t *testing.T) {
	db, mock, cleanup := newHODRepoMock(t)
	defer cleanup()
	repo := NewHODRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE head_of_department SET status = $2, end_date = COALESCE(end_date, $3), updated_at = $4 WHERE department = $1 AND status = $5")).
		WithArgs("CS", models.AppointmentRetired, sqlmock.AnyArg(), sqlmock.AnyArg(), models.AppointmentActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO head_of_department").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	hod := &models.HeadOfDepartment{StaffID: "u1", Department: "CS"}
	require.NoError(t, repo.Appoint(context.Background(), hod))
	assert.NotEmpty(t, hod.ID)
	assert.Equal(t, models.AppointmentActive, hod.Status)
	assert.False(t, hod.StartDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHODRepositoryAppointRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newHODRepoMock(t)
	defer cleanup()
	repo := NewHODRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE head_of_department SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO head_of_department").
		WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := repo.Appoint(context.Background(), &models.HeadOfDepartment{StaffID: "u1", Department: "CS"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHODRepositoryRetire(t *testing.T) {
	db, mock, cleanup := newHODRepoMock(t)
	defer cleanup()
	repo := NewHODRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE head_of_department SET status = $2, end_date = COALESCE(end_date, $3), updated_at = $4 WHERE id = $1")).
		WithArgs("h1", models.AppointmentRetired, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Retire(context.Background(), "h1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHODRepositoryTransfer(t *testing.T) {
	db, mock, cleanup := newHODRepoMock(t)
	defer cleanup()
	repo := NewHODRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE head_of_department SET status = $2, end_date = COALESCE(end_date, $3), updated_at = $4 WHERE id = $1")).
		WithArgs("h1", models.AppointmentRetired, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE head_of_department SET status = $2, end_date = COALESCE(end_date, $3), updated_at = $4 WHERE department = $1 AND status = $5")).
		WithArgs("IT", models.AppointmentRetired, sqlmock.AnyArg(), sqlmock.AnyArg(), models.AppointmentActive).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO head_of_department").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	replacement := &models.HeadOfDepartment{StaffID: "u1", Department: "IT"}
	require.NoError(t, repo.Transfer(context.Background(), "h1", replacement))
	assert.NotEmpty(t, replacement.ID)
	assert.Equal(t, models.AppointmentActive, replacement.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHODRepositoryListKeepsDepartedStaffHistory(t *testing.T) {
	db, mock, cleanup := newHODRepoMock(t)
	defer cleanup()
	repo := NewHODRepository(db)

	// Retired rows whose staff member was deleted come back with blanked
	// staff columns instead of being dropped by the join.
	now := time.Now()
	ended := now.Add(-24 * time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "staff_id", "department", "start_date", "end_date", "status", "notes", "created_at", "updated_at",
		"staff_code", "staff_first_name", "staff_last_name",
	}).AddRow("h2", "", "CS", now.Add(-48*time.Hour), ended, "RETIRED", nil, now, now, "", "", "")

	mock.ExpectQuery("SELECT .+ FROM head_of_department h LEFT JOIN staff s .+ WHERE 1=1 AND h.status = \\$1").
		WithArgs(models.AppointmentRetired).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM head_of_department")).
		WithArgs(models.AppointmentRetired).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.HODFilter{Status: models.AppointmentRetired})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, models.AppointmentRetired, list[0].Status)
	assert.Empty(t, list[0].StaffID)
	assert.Empty(t, list[0].StaffCode)
	require.NotNil(t, list[0].EndDate)
}

func TestHODRepositoryList(t *testing.T) {
	db, mock, cleanup := newHODRepoMock(t)
	defer cleanup()
	repo := NewHODRepository(db)

	mock.ExpectQuery("SELECT .+ FROM head_of_department h LEFT JOIN staff s .+ WHERE 1=1 AND h.department = \\$1 ORDER BY h.department ASC, h.status ASC, h.start_date DESC LIMIT 20 OFFSET 0").
		WithArgs("CS").
		WillReturnRows(hodRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM head_of_department")).
		WithArgs("CS").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.HODFilter{Department: "CS"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
