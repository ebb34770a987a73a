package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/pkg/config"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type staffRepository interface {
	CreateWithUser(ctx context.Context, user *models.User, staff *models.Staff) error
	FindByStaffID(ctx context.Context, staffID string) (*models.StaffDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StaffDetail, error)
	ExistsByStaffID(ctx context.Context, staffID string) (bool, error)
	List(ctx context.Context, filter models.StaffFilter) ([]models.StaffDetail, int, error)
	Update(ctx context.Context, staff *models.Staff) error
	DeleteWithUser(ctx context.Context, userID string, retireAppointments bool) error
}

type staffAppointmentChecker interface {
	ActiveByStaff(ctx context.Context, staffUserID string) (*models.HODDetail, error)
}

// CreateStaffRequest captures fields for onboarding a staff member.
type CreateStaffRequest struct {
	Email         string     `json:"email" validate:"required,email"`
	FirstName     string     `json:"first_name" validate:"required"`
	LastName      string     `json:"last_name" validate:"required"`
	Password      string     `json:"password" validate:"required,min=6"`
	StaffID       string     `json:"staff_id" validate:"required,alphanum,uppercase"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	Gender        *string    `json:"gender,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	Address       *string    `json:"address,omitempty"`
	Department    *string    `json:"department,omitempty"`
	Designation   *string    `json:"designation,omitempty"`
	Qualification *string    `json:"qualification,omitempty"`
	Salary        *float64   `json:"salary,omitempty"`
	JoiningDate   *time.Time `json:"joining_date,omitempty"`
}

// UpdateStaffRequest captures the mutable profile fields. The public
// identifier and joining date never change after creation.
type UpdateStaffRequest struct {
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	Gender        *string    `json:"gender,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	Address       *string    `json:"address,omitempty"`
	Department    *string    `json:"department,omitempty"`
	Designation   *string    `json:"designation,omitempty"`
	Qualification *string    `json:"qualification,omitempty"`
	Salary        *float64   `json:"salary,omitempty"`
}

// StaffService manages staff profiles and their owning accounts.
type StaffService struct {
	repo           staffRepository
	users          studentAuditor
	appointments   staffAppointmentChecker
	deletionPolicy string
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewStaffService constructs a StaffService instance.
func NewStaffService(repo staffRepository, users studentAuditor, appointments staffAppointmentChecker, deletionPolicy string, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if deletionPolicy == "" {
		deletionPolicy = config.HODDeletionBlock
	}
	return &StaffService{repo: repo, users: users, appointments: appointments, deletionPolicy: deletionPolicy, validator: validate, logger: logger}
}

// Create onboards a new staff member, creating the owning user account in
// the same transaction.
func (s *StaffService) Create(ctx context.Context, req CreateStaffRequest, actorID, ip, userAgent string) (*models.StaffDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	if err := validateProfileDepartment(req.Department); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	emailTaken, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if emailTaken {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a user with this email already exists")
	}

	idTaken, err := s.repo.ExistsByStaffID(ctx, req.StaffID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check staff id")
	}
	if idTaken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "staff id already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleStaff,
		IsActive:     true,
		IsStaff:      true,
	}
	staff := &models.Staff{
		StaffID:       req.StaffID,
		DateOfBirth:   req.DateOfBirth,
		Gender:        req.Gender,
		Phone:         req.Phone,
		Address:       req.Address,
		Department:    req.Department,
		Designation:   req.Designation,
		Qualification: req.Qualification,
		Salary:        req.Salary,
	}
	if req.JoiningDate != nil {
		staff.JoiningDate = *req.JoiningDate
	}

	if err := s.repo.CreateWithUser(ctx, user, staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff member")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStaffCreate,
		Resource:   "staff",
		ResourceID: &staff.StaffID,
		NewValues:  []byte(`{"staff_id":"` + staff.StaffID + `"}`),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record staff creation audit log", zap.Error(err))
	}

	return s.GetByStaffID(ctx, req.StaffID)
}

// GetByStaffID returns a staff member by the public identifier.
func (s *StaffService) GetByStaffID(ctx context.Context, staffID string) (*models.StaffDetail, error) {
	detail, err := s.repo.FindByStaffID(ctx, staffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch staff member")
	}
	return detail, nil
}

// List returns staff profiles matching the filter.
func (s *StaffService) List(ctx context.Context, filter models.StaffFilter) ([]models.StaffDetail, int, error) {
	staff, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}
	return staff, total, nil
}

// Update modifies the mutable profile fields of a staff member.
func (s *StaffService) Update(ctx context.Context, staffID string, req UpdateStaffRequest, actorID, ip, userAgent string) (*models.StaffDetail, error) {
	if err := validateProfileDepartment(req.Department); err != nil {
		return nil, err
	}

	detail, err := s.GetByStaffID(ctx, staffID)
	if err != nil {
		return nil, err
	}

	staff := detail.Staff
	if req.DateOfBirth != nil {
		staff.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != nil {
		staff.Gender = req.Gender
	}
	if req.Phone != nil {
		staff.Phone = req.Phone
	}
	if req.Address != nil {
		staff.Address = req.Address
	}
	if req.Department != nil {
		staff.Department = req.Department
	}
	if req.Designation != nil {
		staff.Designation = req.Designation
	}
	if req.Qualification != nil {
		staff.Qualification = req.Qualification
	}
	if req.Salary != nil {
		staff.Salary = req.Salary
	}

	if err := s.repo.Update(ctx, &staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update staff member")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStaffUpdate,
		Resource:   "staff",
		ResourceID: &staffID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record staff update audit log", zap.Error(err))
	}

	return s.GetByStaffID(ctx, staffID)
}

// Delete removes the staff profile together with its owning user. When the
// member currently heads a department the configured deletion policy
// decides between rejecting the request and retiring the appointment first.
func (s *StaffService) Delete(ctx context.Context, staffID string, actorID, ip, userAgent string) error {
	detail, err := s.GetByStaffID(ctx, staffID)
	if err != nil {
		return err
	}

	active, err := s.appointments.ActiveByStaff(ctx, detail.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check appointments")
	}

	retire := false
	if active != nil {
		switch s.deletionPolicy {
		case config.HODDeletionCascadeRetire:
			retire = true
		default:
			return appErrors.Clone(appErrors.ErrConflict, "staff member is the active head of "+active.Department+"; retire the appointment first")
		}
	}

	if err := s.repo.DeleteWithUser(ctx, detail.UserID, retire); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete staff member")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStaffDelete,
		Resource:   "staff",
		ResourceID: &staffID,
		OldValues:  []byte(`{"staff_id":"` + staffID + `"}`),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record staff deletion audit log", zap.Error(err))
	}
	return nil
}
