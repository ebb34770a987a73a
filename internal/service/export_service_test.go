package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type mockExportStudents struct {
	rows []models.StudentDetail
}

func (m *mockExportStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(m.rows) {
		return nil, len(m.rows), nil
	}
	end := start + filter.PageSize
	if end > len(m.rows) {
		end = len(m.rows)
	}
	return m.rows[start:end], len(m.rows), nil
}

type mockExportStaff struct {
	rows []models.StaffDetail
}

func (m *mockExportStaff) List(ctx context.Context, filter models.StaffFilter) ([]models.StaffDetail, int, error) {
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(m.rows) {
		return nil, len(m.rows), nil
	}
	end := start + filter.PageSize
	if end > len(m.rows) {
		end = len(m.rows)
	}
	return m.rows[start:end], len(m.rows), nil
}

func exportStudents(n int) []models.StudentDetail {
	dept := "CS"
	out := make([]models.StudentDetail, n)
	for i := range out {
		out[i] = models.StudentDetail{
			Student: models.Student{
				UserID:         "u" + string(rune('a'+i%26)),
				StudentID:      "STU" + strings.Repeat("0", 2) + string(rune('1'+i%9)),
				Department:     &dept,
				EnrollmentDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			},
			Email:     "student@example.com",
			FirstName: "Jo",
			LastName:  "March",
		}
	}
	return out
}

func TestExportServiceStudentRosterCSV(t *testing.T) {
	students := &mockExportStudents{rows: exportStudents(3)}
	store := &mockFileStorage{}
	service := NewExportService(students, &mockExportStaff{}, store, &mockURLSigner{}, zap.NewNop())

	result, err := service.StudentRoster(context.Background(), "CS", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, ExportFormatCSV, result.Format)
	assert.NotEmpty(t, result.Token)
	require.Len(t, store.saved, 1)

	for name, data := range store.saved {
		assert.True(t, strings.HasPrefix(name, "rosters/students-"))
		assert.True(t, strings.HasSuffix(name, ".csv"))
		content := string(data)
		assert.Contains(t, content, "Student ID")
		assert.Contains(t, content, "Computer Science")
		break
	}
}

func TestExportServiceStudentRosterPagesThroughAll(t *testing.T) {
	students := &mockExportStudents{rows: exportStudents(exportPageSize + 5)}
	service := NewExportService(students, &mockExportStaff{}, &mockFileStorage{}, &mockURLSigner{}, zap.NewNop())

	result, err := service.StudentRoster(context.Background(), "", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, exportPageSize+5, result.Rows)
}

func TestExportServiceStaffRosterPDF(t *testing.T) {
	dept := "CS"
	designation := "Professor"
	staff := &mockExportStaff{rows: []models.StaffDetail{
		{
			Staff: models.Staff{
				UserID:      "u1",
				StaffID:     "STF001",
				Department:  &dept,
				Designation: &designation,
				JoiningDate: time.Date(2019, 1, 15, 0, 0, 0, 0, time.UTC),
			},
			Email:     "ada@example.com",
			FirstName: "Ada",
			LastName:  "Lovelace",
		},
	}}
	store := &mockFileStorage{}
	service := NewExportService(&mockExportStudents{}, staff, store, &mockURLSigner{}, zap.NewNop())

	result, err := service.StaffRoster(context.Background(), "CS", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	require.Len(t, store.saved, 1)
	for name, data := range store.saved {
		assert.True(t, strings.HasSuffix(name, ".pdf"))
		assert.True(t, strings.HasPrefix(string(data), "%PDF"))
	}
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	service := NewExportService(&mockExportStudents{}, &mockExportStaff{}, &mockFileStorage{}, &mockURLSigner{}, zap.NewNop())

	_, err := service.StudentRoster(context.Background(), "", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceResolveDownload(t *testing.T) {
	service := NewExportService(&mockExportStudents{}, &mockExportStaff{}, &mockFileStorage{}, &mockURLSigner{}, zap.NewNop())

	relPath, err := service.ResolveDownload("token")
	require.NoError(t, err)
	assert.Equal(t, "syllabi/sub1.pdf", relPath)
}
