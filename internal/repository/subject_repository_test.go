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
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-portal-api/internal/models"
)

func newSubjectRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSubjectRepositoryList(t *testing.T) {
	db, mock, cleanup := newSubjectRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "subject_code", "department", "semester", "created_at", "updated_at"}).
		AddRow("s1", "Data Structures", "CS101", "CS", 1, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, subject_code, department, semester, created_at, updated_at FROM subjects WHERE 1=1 AND department = $1 AND semester = $2 ORDER BY subject_code ASC LIMIT 20 OFFSET 0")).
		WithArgs("CS", 1).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subjects WHERE 1=1 AND department = $1 AND semester = $2")).
		WithArgs("CS", 1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.SubjectFilter{Department: "CS", Semester: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryLastCodeForPair(t *testing.T) {
	db, mock, cleanup := newSubjectRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT subject_code FROM subjects WHERE department = $1 AND semester = $2 ORDER BY subject_code DESC LIMIT 1")).
		WithArgs("CS", 1).
		WillReturnRows(sqlmock.NewRows([]string{"subject_code"}).AddRow("CS107"))

	code, err := repo.LastCodeForPair(context.Background(), "CS", 1)
	require.NoError(t, err)
	assert.Equal(t, "CS107", code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryLastCodeForPairEmpty(t *testing.T) {
	db, mock, cleanup := newSubjectRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery("SELECT subject_code FROM subjects").
		WithArgs("CS", 1).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LastCodeForPair(context.Background(), "CS", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestSubjectRepositoryExistsByNameWithExclusion(t *testing.T) {
	db, mock, cleanup := newSubjectRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM subjects WHERE LOWER(name) = LOWER($1) AND department = $2 AND semester = $3 AND id <> $4 LIMIT 1")).
		WithArgs("Data Structures", "CS", 1, "s1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByName(context.Background(), "Data Structures", "CS", 1, "s1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryCreateSurfacesUniqueViolation(t *testing.T) {
	db, mock, cleanup := newSubjectRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec("INSERT INTO subjects").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "subjects_subject_code_key"})

	err := repo.Create(context.Background(), &models.Subject{Name: "Data Structures", SubjectCode: "CS101", Department: "CS", Semester: 1})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, "subjects_subject_code_key"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryUpdateNeverTouchesCode(t *testing.T) {
	db, mock, cleanup := newSubjectRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec("UPDATE subjects SET name = .+ WHERE id = .+").
		WillReturnResult(sqlmock.NewResult(0, 1))

	subject := &models.Subject{ID: "s1", Name: "Algorithms", SubjectCode: "CS101", Department: "CS", Semester: 2}
	require.NoError(t, repo.Update(context.Background(), subject))
	assert.NoError(t, mock.ExpectationsWereMet())
}
