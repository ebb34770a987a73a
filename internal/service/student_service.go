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
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type studentRepository interface {
	CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error
	FindByStudentID(ctx context.Context, studentID string) (*models.StudentDetail, error)
	ExistsByStudentID(ctx context.Context, studentID string) (bool, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	Update(ctx context.Context, student *models.Student) error
	DeleteWithUser(ctx context.Context, userID string) error
}

type studentAuditor interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateStudentRequest captures fields for enrolling a new student.
type CreateStudentRequest struct {
	Email          string     `json:"email" validate:"required,email"`
	FirstName      string     `json:"first_name" validate:"required"`
	LastName       string     `json:"last_name" validate:"required"`
	Password       string     `json:"password" validate:"required,min=6"`
	StudentID      string     `json:"student_id" validate:"required,alphanum,uppercase"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	Gender         *string    `json:"gender,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	Address        *string    `json:"address,omitempty"`
	Department     *string    `json:"department,omitempty"`
	EnrollmentDate *time.Time `json:"enrollment_date,omitempty"`
}

// UpdateStudentRequest captures the mutable profile fields. The public
// identifier and enrollment date never change after creation.
type UpdateStudentRequest struct {
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      *string    `json:"gender,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Address     *string    `json:"address,omitempty"`
	Department  *string    `json:"department,omitempty"`
}

// StudentService manages student profiles and their owning accounts.
type StudentService struct {
	repo      studentRepository
	users     studentAuditor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(repo studentRepository, users studentAuditor, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, users: users, validator: validate, logger: logger}
}

func validateProfileDepartment(department *string) error {
	if department == nil || *department == "" {
		return nil
	}
	if _, ok := models.StaffDepartments[*department]; !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown department code")
	}
	return nil
}

// Create enrolls a new student, creating the owning user account in the
// same transaction.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest, actorID, ip, userAgent string) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
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

	idTaken, err := s.repo.ExistsByStudentID(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student id")
	}
	if idTaken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student id already in use")
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
		Role:         models.RoleStudent,
		IsActive:     true,
	}
	student := &models.Student{
		StudentID:   req.StudentID,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		Phone:       req.Phone,
		Address:     req.Address,
		Department:  req.Department,
	}
	if req.EnrollmentDate != nil {
		student.EnrollmentDate = *req.EnrollmentDate
	}

	if err := s.repo.CreateWithUser(ctx, user, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStudentCreate,
		Resource:   "student",
		ResourceID: &student.StudentID,
		NewValues:  []byte(`{"student_id":"` + student.StudentID + `"}`),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record student creation audit log", zap.Error(err))
	}

	return s.GetByStudentID(ctx, req.StudentID)
}

// GetByStudentID returns a student by the public identifier.
func (s *StudentService) GetByStudentID(ctx context.Context, studentID string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindByStudentID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	return detail, nil
}

// List returns student profiles matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, total, nil
}

// Update modifies the mutable profile fields of a student.
func (s *StudentService) Update(ctx context.Context, studentID string, req UpdateStudentRequest, actorID, ip, userAgent string) (*models.StudentDetail, error) {
	if err := validateProfileDepartment(req.Department); err != nil {
		return nil, err
	}

	detail, err := s.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	student := detail.Student
	if req.DateOfBirth != nil {
		student.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != nil {
		student.Gender = req.Gender
	}
	if req.Phone != nil {
		student.Phone = req.Phone
	}
	if req.Address != nil {
		student.Address = req.Address
	}
	if req.Department != nil {
		student.Department = req.Department
	}

	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStudentUpdate,
		Resource:   "student",
		ResourceID: &studentID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record student update audit log", zap.Error(err))
	}

	return s.GetByStudentID(ctx, studentID)
}

// Delete removes the student profile together with its owning user.
func (s *StudentService) Delete(ctx context.Context, studentID string, actorID, ip, userAgent string) error {
	detail, err := s.GetByStudentID(ctx, studentID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteWithUser(ctx, detail.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStudentDelete,
		Resource:   "student",
		ResourceID: &studentID,
		OldValues:  []byte(`{"student_id":"` + studentID + `"}`),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record student deletion audit log", zap.Error(err))
	}
	return nil
}
