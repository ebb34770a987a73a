package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type mockSubjectRepo struct {
	items       map[string]*models.Subject
	lastCode    map[string]string
	createFails int
	deleted     []string
}

func (m *mockSubjectRepo) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	var out []models.Subject
	for _, s := range m.items {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := m.items[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubjectRepo) LastCodeForPair(ctx context.Context, department string, semester int) (string, error) {
	key := department + string(rune('0'+semester))
	if code, ok := m.lastCode[key]; ok {
		return code, nil
	}
	return "", sql.ErrNoRows
}

func (m *mockSubjectRepo) ExistsByName(ctx context.Context, name, department string, semester int, excludeID string) (bool, error) {
	for _, s := range m.items {
		if s.Name == name && s.Department == department && s.Semester == semester && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	if m.createFails > 0 {
		m.createFails--
		return &pq.Error{Code: "23505", Constraint: "subjects_subject_code_key"}
	}
	if m.items == nil {
		m.items = make(map[string]*models.Subject)
	}
	if subject.ID == "" {
		subject.ID = "generated"
	}
	if m.lastCode == nil {
		m.lastCode = make(map[string]string)
	}
	key := subject.Department + string(rune('0'+subject.Semester))
	m.lastCode[key] = subject.SubjectCode
	cp := *subject
	m.items[subject.ID] = &cp
	return nil
}

func (m *mockSubjectRepo) Update(ctx context.Context, subject *models.Subject) error {
	cp := *subject
	m.items[subject.ID] = &cp
	return nil
}

func (m *mockSubjectRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

func TestSubjectServiceCreateFirstCode(t *testing.T) {
	repo := &mockSubjectRepo{}
	service := NewSubjectService(repo, validator.New(), zap.NewNop())

	subject, err := service.Create(context.Background(), CreateSubjectRequest{
		Name:       "Data Structures",
		Department: "CS",
		Semester:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, "CS101", subject.SubjectCode)
}

func TestSubjectServiceCreateSequentialCodes(t *testing.T) {
	repo := &mockSubjectRepo{}
	service := NewSubjectService(repo, validator.New(), zap.NewNop())

	names := []string{"Data Structures", "Algorithms", "Operating Systems"}
	want := []string{"CS101", "CS102", "CS103"}
	for i, name := range names {
		subject, err := service.Create(context.Background(), CreateSubjectRequest{
			Name:       name,
			Department: "CS",
			Semester:   1,
		})
		require.NoError(t, err)
		assert.Equal(t, want[i], subject.SubjectCode)
	}
}

func TestSubjectServiceCreateSequencePerPair(t *testing.T) {
	repo := &mockSubjectRepo{}
	service := NewSubjectService(repo, validator.New(), zap.NewNop())

	first, err := service.Create(context.Background(), CreateSubjectRequest{Name: "Data Structures", Department: "CS", Semester: 1})
	require.NoError(t, err)
	assert.Equal(t, "CS101", first.SubjectCode)

	other, err := service.Create(context.Background(), CreateSubjectRequest{Name: "Circuits", Department: "ECE", Semester: 3})
	require.NoError(t, err)
	assert.Equal(t, "ECE301", other.SubjectCode)
}

func TestSubjectServiceCreateWidensPast99(t *testing.T) {
	repo := &mockSubjectRepo{lastCode: map[string]string{"CS1": "CS199"}}
	service := NewSubjectService(repo, validator.New(), zap.NewNop())

	subject, err := service.Create(context.Background(), CreateSubjectRequest{Name: "Compilers", Department: "CS", Semester: 1})
	require.NoError(t, err)
	assert.Equal(t, "CS1100", subject.SubjectCode)
}

func TestSubjectServiceCreateUnparsableSuffixRestarts(t *testing.T) {
	repo := &mockSubjectRepo{lastCode: map[string]string{"CS1": "CS1XX"}}
	service := NewSubjectService(repo, validator.New(), zap.NewNop())

	subject, err := service.Create(context.Background(), CreateSubjectRequest{Name: "Compilers", Department: "CS", Semester: 1})
	require.NoError(t, err)
	assert.Equal(t, "CS101", subject.SubjectCode)
}

func TestSubjectServiceCreateRetriesOnCodeCollision(t *testing.T) {
	repo := &mockSubjectRepo{createFails: 2}
	service := NewSubjectService(repo, validator.New(), zap.NewNop())

	subject, err := service.Create(context.Background(), CreateSubjectRequest{Name: "Compilers", Department: "CS", Semester: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, subject.SubjectCode)
	assert.Len(t, repo.items, 1)
}

func TestSubjectServiceCreateGivesUpAfterRetries(t *testing.T) {
	repo := &mockSubjectRepo{createFails: subjectCodeAttempts}
	service := NewSubjectService(repo, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateSubjectRequest{Name: "Compilers", Department: "CS", Semester: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceCreateDuplicateName(t *testing.T) {
	repo := &mockSubjectRepo{
		items: map[string]*models.Subject{
			"s1": {ID: "s1", Name: "Data Structures", SubjectCode: "CS101", Department: "CS", Semester: 1},
		},
	}
	service := NewSubjectService(repo, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateSubjectRequest{Name: "Data Structures", Department: "CS", Semester: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceCreateInvalidPair(t *testing.T) {
	service := NewSubjectService(&mockSubjectRepo{}, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateSubjectRequest{Name: "X", Department: "NOPE", Semester: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = service.Create(context.Background(), CreateSubjectRequest{Name: "X", Department: "CS", Semester: models.MaxSemester + 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceUpdateKeepsCode(t *testing.T) {
	repo := &mockSubjectRepo{
		items: map[string]*models.Subject{
			"s1": {ID: "s1", Name: "Data Structures", SubjectCode: "CS101", Department: "CS", Semester: 1},
		},
	}
	service := NewSubjectService(repo, validator.New(), zap.NewNop())

	dept := "IT"
	sem := 3
	updated, err := service.Update(context.Background(), "s1", UpdateSubjectRequest{Department: &dept, Semester: &sem})
	require.NoError(t, err)
	assert.Equal(t, "IT", updated.Department)
	assert.Equal(t, 3, updated.Semester)
	assert.Equal(t, "CS101", updated.SubjectCode)
}

func TestSubjectServiceDelete(t *testing.T) {
	repo := &mockSubjectRepo{
		items: map[string]*models.Subject{
			"s1": {ID: "s1", Name: "Data Structures", SubjectCode: "CS101", Department: "CS", Semester: 1},
		},
	}
	service := NewSubjectService(repo, validator.New(), zap.NewNop())

	require.NoError(t, service.Delete(context.Background(), "s1"))
	assert.Equal(t, []string{"s1"}, repo.deleted)

	err := service.Delete(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceDepartments(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{}, validator.New(), zap.NewNop())

	departments := svc.Departments()
	require.Len(t, departments, len(models.CatalogDepartments))
	assert.Equal(t, "CIVIL", departments[0].Code)
	assert.Equal(t, "Computer Science & Engineering", departments[1].Name)
}
