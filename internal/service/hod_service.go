package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/internal/repository"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

const hodCachePrefix = "hod:current:"

type hodRepository interface {
	FindByID(ctx context.Context, id string) (*models.HODDetail, error)
	CurrentByDepartment(ctx context.Context, department string) (*models.HODDetail, error)
	ActiveByStaff(ctx context.Context, staffUserID string) (*models.HODDetail, error)
	List(ctx context.Context, filter models.HODFilter) ([]models.HODDetail, int, error)
	Appoint(ctx context.Context, hod *models.HeadOfDepartment) error
	Update(ctx context.Context, hod *models.HeadOfDepartment) error
	Retire(ctx context.Context, id string) error
	Transfer(ctx context.Context, oldID string, replacement *models.HeadOfDepartment) error
}

type hodStaffReader interface {
	FindByStaffID(ctx context.Context, staffID string) (*models.StaffDetail, error)
}

type hodCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type hodAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AppointHODRequest captures fields for appointing a department head. The
// staff member is referenced by their public staff identifier.
type AppointHODRequest struct {
	StaffID    string     `json:"staff_id" validate:"required"`
	Department string     `json:"department" validate:"required"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// UpdateHODRequest captures mutable appointment fields. Changing the
// department transfers the headship: the current row is retired and a fresh
// active row is created for the target department.
type UpdateHODRequest struct {
	Department *string    `json:"department,omitempty"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// HODService manages Head-of-Department succession.
type HODService struct {
	repo      hodRepository
	staff     hodStaffReader
	cache     hodCache
	audit     hodAuditor
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHODService constructs an HODService instance. The cache is optional.
func NewHODService(repo hodRepository, staff hodStaffReader, cache hodCache, audit hodAuditor, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *HODService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &HODService{repo: repo, staff: staff, cache: cache, audit: audit, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Appoint makes the given staff member the active head of a department.
// The request is rejected when the department already has an active head or
// when the staff member already heads another department.
func (s *HODService) Appoint(ctx context.Context, req AppointHODRequest, actorID, ip, userAgent string) (*models.HODDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	if _, ok := models.StaffDepartments[req.Department]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department code")
	}

	staff, err := s.staff.FindByStaffID(ctx, req.StaffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch staff member")
	}
	if !staff.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot appoint an inactive staff member")
	}

	if incumbent, err := s.repo.CurrentByDepartment(ctx, req.Department); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("%s already has an active head: %s (%s)", req.Department, incumbent.StaffName(), incumbent.StaffCode))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check current head")
	}

	if elsewhere, err := s.repo.ActiveByStaff(ctx, staff.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("staff member already heads %s", elsewhere.Department))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing headship")
	}

	hod := &models.HeadOfDepartment{
		StaffID:    staff.UserID,
		Department: req.Department,
		Notes:      req.Notes,
	}
	if req.StartDate != nil {
		hod.StartDate = *req.StartDate
	}

	if err := s.repo.Appoint(ctx, hod); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department head changed concurrently, retry the appointment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to appoint head")
	}

	s.invalidateCache(ctx)
	s.recordAudit(ctx, models.AuditActionHODAppoint, hod.ID, actorID, ip, userAgent,
		[]byte(fmt.Sprintf(`{"department":%q,"staff_id":%q}`, req.Department, req.StaffID)))

	return s.GetByID(ctx, hod.ID)
}

// GetByID returns a single appointment.
func (s *HODService) GetByID(ctx context.Context, id string) (*models.HODDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch appointment")
	}
	return detail, nil
}

// CurrentHOD returns the active head of the given department, served from
// cache when possible.
func (s *HODService) CurrentHOD(ctx context.Context, department string) (*models.HODDetail, error) {
	if _, ok := models.StaffDepartments[department]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department code")
	}

	key := hodCachePrefix + department
	if s.cache != nil {
		var cached models.HODDetail
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	detail, err := s.repo.CurrentByDepartment(ctx, department)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department has no active head")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch current head")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, detail, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache current head", zap.Error(err))
		}
	}
	return detail, nil
}

// List returns appointments matching the filter, including retired rows, so
// callers can read a department's full succession history.
func (s *HODService) List(ctx context.Context, filter models.HODFilter) ([]models.HODDetail, int, error) {
	if filter.Status != "" && filter.Status != models.AppointmentActive && filter.Status != models.AppointmentRetired {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "invalid appointment status filter")
	}
	appointments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	return appointments, total, nil
}

// Update modifies an appointment. A department change on an active row is a
// transfer: the current row is retired and a fresh active row is created,
// preserving succession history. Retired rows only accept note edits.
func (s *HODService) Update(ctx context.Context, id string, req UpdateHODRequest, actorID, ip, userAgent string) (*models.HODDetail, error) {
	detail, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Department != nil && *req.Department != detail.Department {
		if !detail.IsActive() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "cannot move a retired appointment to another department")
		}
		if _, ok := models.StaffDepartments[*req.Department]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department code")
		}
		if incumbent, err := s.repo.CurrentByDepartment(ctx, *req.Department); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("%s already has an active head: %s (%s)", *req.Department, incumbent.StaffName(), incumbent.StaffCode))
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check target department")
		}

		replacement := &models.HeadOfDepartment{
			StaffID:    detail.StaffID,
			Department: *req.Department,
			Notes:      detail.Notes,
		}
		if req.StartDate != nil {
			replacement.StartDate = *req.StartDate
		}
		if req.Notes != nil {
			replacement.Notes = req.Notes
		}

		if err := s.repo.Transfer(ctx, id, replacement); err != nil {
			if repository.IsUniqueViolation(err, "") {
				return nil, appErrors.Clone(appErrors.ErrConflict, "department head changed concurrently, retry the transfer")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transfer headship")
		}

		s.invalidateCache(ctx)
		s.recordAudit(ctx, models.AuditActionHODUpdate, replacement.ID, actorID, ip, userAgent,
			[]byte(fmt.Sprintf(`{"transfer_to":%q}`, *req.Department)))
		return s.GetByID(ctx, replacement.ID)
	}

	hod := detail.HeadOfDepartment
	if req.StartDate != nil {
		hod.StartDate = *req.StartDate
	}
	if req.Notes != nil {
		hod.Notes = req.Notes
	}

	if err := s.repo.Update(ctx, &hod); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}

	s.invalidateCache(ctx)
	s.recordAudit(ctx, models.AuditActionHODUpdate, id, actorID, ip, userAgent, nil)
	return s.GetByID(ctx, id)
}

// Retire ends an active appointment. The row is kept as history and the
// operation is idempotent on already-retired rows.
func (s *HODService) Retire(ctx context.Context, id string, actorID, ip, userAgent string) (*models.HODDetail, error) {
	detail, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if detail.IsActive() {
		if err := s.repo.Retire(ctx, id); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire appointment")
		}
		s.invalidateCache(ctx)
		s.recordAudit(ctx, models.AuditActionHODRetire, id, actorID, ip, userAgent,
			[]byte(fmt.Sprintf(`{"department":%q}`, detail.Department)))
	}

	return s.GetByID(ctx, id)
}

func (s *HODService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, hodCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate head cache", zap.Error(err))
	}
}

func (s *HODService) recordAudit(ctx context.Context, action, resourceID, actorID, ip, userAgent string, newValues []byte) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "hod",
		ResourceID: &resourceID,
		NewValues:  newValues,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record appointment audit log", zap.Error(err))
	}
}
