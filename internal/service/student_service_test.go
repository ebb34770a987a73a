package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type mockStudentRepo struct {
	items   map[string]*models.StudentDetail
	deleted []string
}

func (m *mockStudentRepo) CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error {
	if m.items == nil {
		m.items = make(map[string]*models.StudentDetail)
	}
	if user.ID == "" {
		user.ID = "generated"
	}
	student.UserID = user.ID
	m.items[student.StudentID] = &models.StudentDetail{
		Student:   *student,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		IsActive:  user.IsActive,
	}
	return nil
}

func (m *mockStudentRepo) FindByStudentID(ctx context.Context, studentID string) (*models.StudentDetail, error) {
	if d, ok := m.items[studentID]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByStudentID(ctx context.Context, studentID string) (bool, error) {
	_, ok := m.items[studentID]
	return ok, nil
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var out []models.StudentDetail
	for _, d := range m.items {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	for _, d := range m.items {
		if d.UserID == student.UserID {
			d.Student = *student
		}
	}
	return nil
}

func (m *mockStudentRepo) DeleteWithUser(ctx context.Context, userID string) error {
	m.deleted = append(m.deleted, userID)
	for key, d := range m.items {
		if d.UserID == userID {
			delete(m.items, key)
		}
	}
	return nil
}

type mockUserAuditor struct {
	emails    map[string]bool
	auditLogs []models.AuditLog
}

func (m *mockUserAuditor) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return m.emails[email], nil
}

func (m *mockUserAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, *log)
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	users := &mockUserAuditor{}
	service := NewStudentService(repo, users, validator.New(), zap.NewNop())

	detail, err := service.Create(context.Background(), CreateStudentRequest{
		Email:     "Jo@Example.com",
		FirstName: "Jo",
		LastName:  "March",
		Password:  "secret123",
		StudentID: "STU001",
	}, "admin", "127.0.0.1", "test")
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", detail.Email)
	assert.Equal(t, models.RoleStudent, detail.Role)
	assert.True(t, detail.IsActive)
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionStudentCreate, users.auditLogs[0].Action)
}

func TestStudentServiceCreateRejectsLowercaseStudentID(t *testing.T) {
	repo := &mockStudentRepo{}
	users := &mockUserAuditor{}
	service := NewStudentService(repo, users, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateStudentRequest{
		Email:     "jo@example.com",
		FirstName: "Jo",
		LastName:  "March",
		Password:  "secret123",
		StudentID: "stu001",
	}, "admin", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockStudentRepo{}
	users := &mockUserAuditor{emails: map[string]bool{"jo@example.com": true}}
	service := NewStudentService(repo, users, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateStudentRequest{
		Email:     "jo@example.com",
		FirstName: "Jo",
		LastName:  "March",
		Password:  "secret123",
		StudentID: "STU001",
	}, "admin", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateDuplicateStudentID(t *testing.T) {
	repo := &mockStudentRepo{
		items: map[string]*models.StudentDetail{
			"STU001": {Student: models.Student{UserID: "u0", StudentID: "STU001"}},
		},
	}
	service := NewStudentService(repo, &mockUserAuditor{}, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateStudentRequest{
		Email:     "jo@example.com",
		FirstName: "Jo",
		LastName:  "March",
		Password:  "secret123",
		StudentID: "STU001",
	}, "admin", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateUnknownDepartment(t *testing.T) {
	service := NewStudentService(&mockStudentRepo{}, &mockUserAuditor{}, validator.New(), zap.NewNop())

	dept := "NOPE"
	_, err := service.Create(context.Background(), CreateStudentRequest{
		Email:      "jo@example.com",
		FirstName:  "Jo",
		LastName:   "March",
		Password:   "secret123",
		StudentID:  "STU001",
		Department: &dept,
	}, "admin", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateMergesFields(t *testing.T) {
	phone := "555-0101"
	repo := &mockStudentRepo{
		items: map[string]*models.StudentDetail{
			"STU001": {Student: models.Student{UserID: "u1", StudentID: "STU001", Phone: &phone}},
		},
	}
	service := NewStudentService(repo, &mockUserAuditor{}, validator.New(), zap.NewNop())

	dept := "CS"
	detail, err := service.Update(context.Background(), "STU001", UpdateStudentRequest{Department: &dept}, "admin", "", "")
	require.NoError(t, err)
	require.NotNil(t, detail.Department)
	assert.Equal(t, "CS", *detail.Department)
	require.NotNil(t, detail.Phone)
	assert.Equal(t, "555-0101", *detail.Phone)
	assert.Equal(t, "STU001", detail.StudentID)
}

func TestStudentServiceDelete(t *testing.T) {
	repo := &mockStudentRepo{
		items: map[string]*models.StudentDetail{
			"STU001": {Student: models.Student{UserID: "u1", StudentID: "STU001"}},
		},
	}
	users := &mockUserAuditor{}
	service := NewStudentService(repo, users, validator.New(), zap.NewNop())

	require.NoError(t, service.Delete(context.Background(), "STU001", "admin", "", ""))
	assert.Equal(t, []string{"u1"}, repo.deleted)
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionStudentDelete, users.auditLogs[0].Action)

	err := service.Delete(context.Background(), "STU001", "admin", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
