package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type mockHODRepo struct {
	items      map[string]*models.HODDetail
	appointErr error
	appointed  []models.HeadOfDepartment
	retired    []string
	transfers  []string
}

func (m *mockHODRepo) FindByID(ctx context.Context, id string) (*models.HODDetail, error) {
	if d, ok := m.items[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockHODRepo) CurrentByDepartment(ctx context.Context, department string) (*models.HODDetail, error) {
	for _, d := range m.items {
		if d.Department == department && d.IsActive() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockHODRepo) ActiveByStaff(ctx context.Context, staffUserID string) (*models.HODDetail, error) {
	for _, d := range m.items {
		if d.StaffID == staffUserID && d.IsActive() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockHODRepo) List(ctx context.Context, filter models.HODFilter) ([]models.HODDetail, int, error) {
	var out []models.HODDetail
	for _, d := range m.items {
		if filter.Department != "" && d.Department != filter.Department {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *mockHODRepo) Appoint(ctx context.Context, hod *models.HeadOfDepartment) error {
	if m.appointErr != nil {
		return m.appointErr
	}
	if m.items == nil {
		m.items = make(map[string]*models.HODDetail)
	}
	if hod.ID == "" {
		hod.ID = "generated"
	}
	hod.Status = models.AppointmentActive
	m.appointed = append(m.appointed, *hod)
	m.items[hod.ID] = &models.HODDetail{HeadOfDepartment: *hod, StaffCode: "STF001", StaffFirstName: "Ada", StaffLastName: "Lovelace"}
	return nil
}

func (m *mockHODRepo) Update(ctx context.Context, hod *models.HeadOfDepartment) error {
	if d, ok := m.items[hod.ID]; ok {
		d.HeadOfDepartment = *hod
	}
	return nil
}

func (m *mockHODRepo) Retire(ctx context.Context, id string) error {
	m.retired = append(m.retired, id)
	if d, ok := m.items[id]; ok {
		now := time.Now()
		d.Status = models.AppointmentRetired
		d.EndDate = &now
	}
	return nil
}

func (m *mockHODRepo) Transfer(ctx context.Context, oldID string, replacement *models.HeadOfDepartment) error {
	if err := m.Retire(ctx, oldID); err != nil {
		return err
	}
	m.transfers = append(m.transfers, oldID)
	replacement.ID = "transferred"
	replacement.Status = models.AppointmentActive
	m.items[replacement.ID] = &models.HODDetail{HeadOfDepartment: *replacement, StaffCode: "STF001", StaffFirstName: "Ada", StaffLastName: "Lovelace"}
	return nil
}

type mockHODStaffReader struct {
	items map[string]*models.StaffDetail
}

func (m *mockHODStaffReader) FindByStaffID(ctx context.Context, staffID string) (*models.StaffDetail, error) {
	if s, ok := m.items[staffID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockHODCache struct {
	store       map[string]interface{}
	invalidated []string
}

func (m *mockHODCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	v, ok := m.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dest.(*models.HODDetail); ok {
		*d = *(v.(*models.HODDetail))
	}
	return true, nil
}

func (m *mockHODCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.store == nil {
		m.store = make(map[string]interface{})
	}
	if d, ok := value.(*models.HODDetail); ok {
		cp := *d
		m.store[key] = &cp
	}
	return nil
}

func (m *mockHODCache) Invalidate(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	m.store = map[string]interface{}{}
	return nil
}

func activeStaff(userID, staffID string) *models.StaffDetail {
	dept := "CS"
	return &models.StaffDetail{
		Staff: models.Staff{
			UserID:     userID,
			StaffID:    staffID,
			Department: &dept,
		},
		FirstName: "Ada",
		LastName:  "Lovelace",
		IsActive:  true,
	}
}

func TestHODServiceAppoint(t *testing.T) {
	repo := &mockHODRepo{}
	staffReader := &mockHODStaffReader{items: map[string]*models.StaffDetail{"STF001": activeStaff("u1", "STF001")}}
	cache := &mockHODCache{}
	service := NewHODService(repo, staffReader, cache, nil, time.Minute, validator.New(), zap.NewNop())

	detail, err := service.Appoint(context.Background(), AppointHODRequest{
		StaffID:    "STF001",
		Department: "CS",
	}, "admin", "127.0.0.1", "test")
	require.NoError(t, err)
	assert.Equal(t, "CS", detail.Department)
	assert.Equal(t, models.AppointmentActive, detail.Status)
	assert.Equal(t, []string{hodCachePrefix + "*"}, cache.invalidated)
}

func TestHODServiceAppointRejectsIncumbent(t *testing.T) {
	repo := &mockHODRepo{
		items: map[string]*models.HODDetail{
			"h1": {
				HeadOfDepartment: models.HeadOfDepartment{ID: "h1", StaffID: "u0", Department: "CS", Status: models.AppointmentActive},
				StaffCode:        "STF000",
				StaffFirstName:   "Grace",
				StaffLastName:    "Hopper",
			},
		},
	}
	staffReader := &mockHODStaffReader{items: map[string]*models.StaffDetail{"STF001": activeStaff("u1", "STF001")}}
	service := NewHODService(repo, staffReader, nil, nil, time.Minute, validator.New(), zap.NewNop())

	_, err := service.Appoint(context.Background(), AppointHODRequest{StaffID: "STF001", Department: "CS"}, "admin", "", "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Grace Hopper")
	assert.Contains(t, appErr.Message, "STF000")
}

func TestHODServiceAppointRejectsInactiveStaff(t *testing.T) {
	inactive := activeStaff("u1", "STF001")
	inactive.IsActive = false
	repo := &mockHODRepo{}
	staffReader := &mockHODStaffReader{items: map[string]*models.StaffDetail{"STF001": inactive}}
	service := NewHODService(repo, staffReader, nil, nil, time.Minute, validator.New(), zap.NewNop())

	_, err := service.Appoint(context.Background(), AppointHODRequest{StaffID: "STF001", Department: "CS"}, "admin", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestHODServiceAppointRejectsSecondHeadship(t *testing.T) {
	repo := &mockHODRepo{
		items: map[string]*models.HODDetail{
			"h1": {HeadOfDepartment: models.HeadOfDepartment{ID: "h1", StaffID: "u1", Department: "IT", Status: models.AppointmentActive}},
		},
	}
	staffReader := &mockHODStaffReader{items: map[string]*models.StaffDetail{"STF001": activeStaff("u1", "STF001")}}
	service := NewHODService(repo, staffReader, nil, nil, time.Minute, validator.New(), zap.NewNop())

	_, err := service.Appoint(context.Background(), AppointHODRequest{StaffID: "STF001", Department: "CS"}, "admin", "", "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "IT")
}

func TestHODServiceAppointUnknownDepartment(t *testing.T) {
	service := NewHODService(&mockHODRepo{}, &mockHODStaffReader{}, nil, nil, time.Minute, validator.New(), zap.NewNop())

	_, err := service.Appoint(context.Background(), AppointHODRequest{StaffID: "STF001", Department: "NOPE"}, "admin", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestHODServiceAppointConcurrentConflict(t *testing.T) {
	repo := &mockHODRepo{appointErr: &pq.Error{Code: "23505", Constraint: "uq_hod_active_department"}}
	staffReader := &mockHODStaffReader{items: map[string]*models.StaffDetail{"STF001": activeStaff("u1", "STF001")}}
	service := NewHODService(repo, staffReader, nil, nil, time.Minute, validator.New(), zap.NewNop())

	_, err := service.Appoint(context.Background(), AppointHODRequest{StaffID: "STF001", Department: "CS"}, "admin", "", "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "retry")
}

func TestHODServiceCurrentHODCaches(t *testing.T) {
	repo := &mockHODRepo{
		items: map[string]*models.HODDetail{
			"h1": {HeadOfDepartment: models.HeadOfDepartment{ID: "h1", StaffID: "u1", Department: "CS", Status: models.AppointmentActive}, StaffCode: "STF001"},
		},
	}
	cache := &mockHODCache{}
	service := NewHODService(repo, &mockHODStaffReader{}, cache, nil, time.Minute, validator.New(), zap.NewNop())

	first, err := service.CurrentHOD(context.Background(), "CS")
	require.NoError(t, err)
	assert.Equal(t, "h1", first.ID)
	assert.Contains(t, cache.store, hodCachePrefix+"CS")

	// Second read is served from the cache even after the row disappears.
	delete(repo.items, "h1")
	second, err := service.CurrentHOD(context.Background(), "CS")
	require.NoError(t, err)
	assert.Equal(t, "h1", second.ID)
}

func TestHODServiceCurrentHODNoActiveHead(t *testing.T) {
	service := NewHODService(&mockHODRepo{}, &mockHODStaffReader{}, nil, nil, time.Minute, validator.New(), zap.NewNop())

	_, err := service.CurrentHOD(context.Background(), "CS")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestHODServiceUpdateTransfersDepartment(t *testing.T) {
	repo := &mockHODRepo{
		items: map[string]*models.HODDetail{
			"h1": {HeadOfDepartment: models.HeadOfDepartment{ID: "h1", StaffID: "u1", Department: "CS", Status: models.AppointmentActive}},
		},
	}
	cache := &mockHODCache{}
	service := NewHODService(repo, &mockHODStaffReader{}, cache, nil, time.Minute, validator.New(), zap.NewNop())

	target := "IT"
	detail, err := service.Update(context.Background(), "h1", UpdateHODRequest{Department: &target}, "admin", "", "")
	require.NoError(t, err)
	assert.Equal(t, "IT", detail.Department)
	assert.Equal(t, models.AppointmentActive, detail.Status)
	assert.Equal(t, []string{"h1"}, repo.transfers)

	// Original row is preserved as retired history.
	old, err := service.GetByID(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentRetired, old.Status)
	assert.NotEmpty(t, cache.invalidated)
}

func TestHODServiceUpdateRetiredRowCannotMove(t *testing.T) {
	repo := &mockHODRepo{
		items: map[string]*models.HODDetail{
			"h1": {HeadOfDepartment: models.HeadOfDepartment{ID: "h1", StaffID: "u1", Department: "CS", Status: models.AppointmentRetired}},
		},
	}
	service := NewHODService(repo, &mockHODStaffReader{}, nil, nil, time.Minute, validator.New(), zap.NewNop())

	target := "IT"
	_, err := service.Update(context.Background(), "h1", UpdateHODRequest{Department: &target}, "admin", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestHODServiceUpdateTransferTargetOccupied(t *testing.T) {
	repo := &mockHODRepo{
		items: map[string]*models.HODDetail{
			"h1": {HeadOfDepartment: models.HeadOfDepartment{ID: "h1", StaffID: "u1", Department: "CS", Status: models.AppointmentActive}},
			"h2": {HeadOfDepartment: models.HeadOfDepartment{ID: "h2", StaffID: "u2", Department: "IT", Status: models.AppointmentActive}},
		},
	}
	service := NewHODService(repo, &mockHODStaffReader{}, nil, nil, time.Minute, validator.New(), zap.NewNop())

	target := "IT"
	_, err := service.Update(context.Background(), "h1", UpdateHODRequest{Department: &target}, "admin", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestHODServiceRetire(t *testing.T) {
	repo := &mockHODRepo{
		items: map[string]*models.HODDetail{
			"h1": {HeadOfDepartment: models.HeadOfDepartment{ID: "h1", StaffID: "u1", Department: "CS", Status: models.AppointmentActive}},
		},
	}
	cache := &mockHODCache{}
	service := NewHODService(repo, &mockHODStaffReader{}, cache, nil, time.Minute, validator.New(), zap.NewNop())

	detail, err := service.Retire(context.Background(), "h1", "admin", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentRetired, detail.Status)
	assert.NotNil(t, detail.EndDate)
	assert.Equal(t, []string{"h1"}, repo.retired)

	// Retiring again is a no-op.
	again, err := service.Retire(context.Background(), "h1", "admin", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentRetired, again.Status)
	assert.Equal(t, []string{"h1"}, repo.retired)
}

func TestHODServiceListRejectsBadStatus(t *testing.T) {
	service := NewHODService(&mockHODRepo{}, &mockHODStaffReader{}, nil, nil, time.Minute, validator.New(), zap.NewNop())

	_, _, err := service.List(context.Background(), models.HODFilter{Status: "PENDING"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
