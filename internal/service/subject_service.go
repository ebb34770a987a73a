package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/internal/repository"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

// subjectCodeAttempts bounds the retries when concurrent creates race for
// the same generated code.
const subjectCodeAttempts = 3

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	LastCodeForPair(ctx context.Context, department string, semester int) (string, error)
	ExistsByName(ctx context.Context, name, department string, semester int, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

// CreateSubjectRequest captures fields for adding a catalog entry. The
// subject code is never supplied by the caller.
type CreateSubjectRequest struct {
	Name       string `json:"name" validate:"required"`
	Department string `json:"department" validate:"required"`
	Semester   int    `json:"semester" validate:"required"`
}

// UpdateSubjectRequest captures mutable catalog fields. The generated code
// is permanent and never recomputed, even when department or semester move.
type UpdateSubjectRequest struct {
	Name       *string `json:"name,omitempty"`
	Department *string `json:"department,omitempty"`
	Semester   *int    `json:"semester,omitempty"`
}

// SubjectService manages the subject catalog.
type SubjectService struct {
	repo      subjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService instance.
func NewSubjectService(repo subjectRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubjectService{repo: repo, validator: validate, logger: logger}
}

// Departments lists the catalog department codes with display names.
func (s *SubjectService) Departments() []models.Department {
	return models.DepartmentList(models.CatalogDepartments)
}

func validateCatalogPair(department string, semester int) error {
	if _, ok := models.CatalogDepartments[department]; !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown department code")
	}
	if semester < models.MinSemester || semester > models.MaxSemester {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("semester must be between %d and %d", models.MinSemester, models.MaxSemester))
	}
	return nil
}

// nextCode derives the next subject code for a department and semester. The
// code is the department prefix, the semester digit, and a two digit
// sequence number that widens past 99. An unparsable stored suffix restarts
// the sequence at 1; the unique index on subject_code catches collisions.
func (s *SubjectService) nextCode(ctx context.Context, department string, semester int) (string, error) {
	prefix := fmt.Sprintf("%s%d", department, semester)

	last, err := s.repo.LastCodeForPair(ctx, department, semester)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Sprintf("%s%02d", prefix, 1), nil
		}
		return "", fmt.Errorf("read last subject code: %w", err)
	}

	seq := 0
	if len(last) > len(prefix) {
		if parsed, perr := strconv.Atoi(last[len(prefix):]); perr == nil {
			seq = parsed
		} else {
			s.logger.Warn("unparsable subject code suffix, restarting sequence",
				zap.String("code", last), zap.String("prefix", prefix))
		}
	}

	return fmt.Sprintf("%s%02d", prefix, seq+1), nil
}

// Create adds a catalog entry with a freshly generated subject code. The
// generation is retried when a concurrent create claims the same code.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if err := validateCatalogPair(req.Department, req.Semester); err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByName(ctx, req.Name, req.Department, req.Semester, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject already exists for this department and semester")
	}

	var lastErr error
	for attempt := 0; attempt < subjectCodeAttempts; attempt++ {
		code, err := s.nextCode(ctx, req.Department, req.Semester)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate subject code")
		}

		subject := &models.Subject{
			Name:        req.Name,
			SubjectCode: code,
			Department:  req.Department,
			Semester:    req.Semester,
		}
		if err := s.repo.Create(ctx, subject); err != nil {
			if repository.IsUniqueViolation(err, "") {
				lastErr = err
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
		}
		return subject, nil
	}

	return nil, appErrors.Wrap(lastErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "could not allocate a unique subject code, retry the request")
}

// GetByID returns a single catalog entry.
func (s *SubjectService) GetByID(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch subject")
	}
	return subject, nil
}

// List returns catalog entries matching the filter.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	if filter.Semester != 0 {
		if filter.Semester < models.MinSemester || filter.Semester > models.MaxSemester {
			return nil, 0, appErrors.Clone(appErrors.ErrValidation, "invalid semester filter")
		}
	}
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, total, nil
}

// Update modifies a catalog entry. The stored subject code is kept even when
// department or semester change, so codes stay stable for references.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*models.Subject, error) {
	subject, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		subject.Name = *req.Name
	}
	if req.Department != nil {
		subject.Department = *req.Department
	}
	if req.Semester != nil {
		subject.Semester = *req.Semester
	}

	if err := validateCatalogPair(subject.Department, subject.Semester); err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByName(ctx, subject.Name, subject.Department, subject.Semester, subject.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject already exists for this department and semester")
	}

	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// Delete removes a catalog entry together with its syllabus, which cascades
// at the database level.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}
