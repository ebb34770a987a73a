package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
	"github.com/noah-isme/college-portal-api/pkg/export"
)

// Export formats for roster downloads.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// exportPageSize is the batch size used when paging rosters out of the
// repositories.
const exportPageSize = 100

type exportStudentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
}

type exportStaffLister interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.StaffDetail, int, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
}

type exportSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// ExportResult describes a rendered roster export.
type ExportResult struct {
	Filename  string    `json:"filename"`
	Format    string    `json:"format"`
	Rows      int       `json:"rows"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders student and staff rosters as CSV or PDF downloads.
type ExportService struct {
	students exportStudentLister
	staff    exportStaffLister
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	storage  exportStorage
	signer   exportSigner
	logger   *zap.Logger
}

// NewExportService constructs an ExportService instance.
func NewExportService(students exportStudentLister, staff exportStaffLister, store exportStorage, signer exportSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		students: students,
		staff:    staff,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		storage:  store,
		signer:   signer,
		logger:   logger,
	}
}

// StudentRoster renders the student roster for an optional department.
func (s *ExportService) StudentRoster(ctx context.Context, department, format string) (*ExportResult, error) {
	if err := validFormat(format); err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Student ID", "Name", "Email", "Department", "Enrollment Date"},
	}
	for page := 1; ; page++ {
		batch, _, err := s.students.List(ctx, models.StudentFilter{
			Department: department,
			Page:       page,
			PageSize:   exportPageSize,
			SortBy:     "student_id",
			SortOrder:  "ASC",
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
		}
		for i := range batch {
			st := &batch[i]
			dept := ""
			if st.Department != nil {
				dept = models.DepartmentName(models.StaffDepartments, *st.Department)
			}
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Student ID":      st.StudentID,
				"Name":            st.FirstName + " " + st.LastName,
				"Email":           st.Email,
				"Department":      dept,
				"Enrollment Date": st.EnrollmentDate.Format("2006-01-02"),
			})
		}
		if len(batch) < exportPageSize {
			break
		}
	}

	return s.render(dataset, "student roster", "students", format)
}

// StaffRoster renders the staff roster for an optional department.
func (s *ExportService) StaffRoster(ctx context.Context, department, format string) (*ExportResult, error) {
	if err := validFormat(format); err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Staff ID", "Name", "Email", "Department", "Designation", "Joining Date"},
	}
	for page := 1; ; page++ {
		batch, _, err := s.staff.List(ctx, models.StaffFilter{
			Department: department,
			Page:       page,
			PageSize:   exportPageSize,
			SortBy:     "staff_id",
			SortOrder:  "ASC",
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
		}
		for i := range batch {
			st := &batch[i]
			dept := ""
			if st.Department != nil {
				dept = models.DepartmentName(models.StaffDepartments, *st.Department)
			}
			designation := ""
			if st.Designation != nil {
				designation = *st.Designation
			}
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Staff ID":     st.StaffID,
				"Name":         st.FullName(),
				"Email":        st.Email,
				"Department":   dept,
				"Designation":  designation,
				"Joining Date": st.JoiningDate.Format("2006-01-02"),
			})
		}
		if len(batch) < exportPageSize {
			break
		}
	}

	return s.render(dataset, "staff roster", "staff", format)
}

// ResolveDownload validates a signed token and returns the stored file path.
func (s *ExportService) ResolveDownload(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link")
	}
	return relPath, nil
}

func (s *ExportService) render(dataset export.Dataset, title, kind, format string) (*ExportResult, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case ExportFormatCSV:
		data, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		data, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("rosters/%s-%s.%s", kind, time.Now().UTC().Format("20060102-150405"), format)
	stored, err := s.storage.Save(filename, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(kind, stored)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	s.logger.Info("rendered roster export",
		zap.String("kind", kind), zap.String("format", format), zap.Int("rows", len(dataset.Rows)))

	return &ExportResult{
		Filename:  stored,
		Format:    format,
		Rows:      len(dataset.Rows),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func validFormat(format string) error {
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	return nil
}
