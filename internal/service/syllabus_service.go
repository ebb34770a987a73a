package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

// maxSyllabusSize caps uploaded PDFs at 10 MiB.
const maxSyllabusSize = 10 << 20

var pdfMagic = []byte("%PDF-")

type syllabusRepository interface {
	FindByID(ctx context.Context, id string) (*models.SyllabusDetail, error)
	FindBySubject(ctx context.Context, subjectID string) (*models.SyllabusDetail, error)
	List(ctx context.Context, filter models.SyllabusFilter) ([]models.SyllabusDetail, int, error)
	UpsertBySubject(ctx context.Context, syllabus *models.Syllabus) error
	Delete(ctx context.Context, id string) error
}

type syllabusSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type syllabusStorage interface {
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
}

type syllabusSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// SyllabusService manages syllabus documents attached to subjects.
type SyllabusService struct {
	repo     syllabusRepository
	subjects syllabusSubjectReader
	storage  syllabusStorage
	signer   syllabusSigner
	logger   *zap.Logger
}

// NewSyllabusService constructs a SyllabusService instance.
func NewSyllabusService(repo syllabusRepository, subjects syllabusSubjectReader, store syllabusStorage, signer syllabusSigner, logger *zap.Logger) *SyllabusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyllabusService{repo: repo, subjects: subjects, storage: store, signer: signer, logger: logger}
}

// Upload stores the PDF and upserts the subject's syllabus row. A subject
// holds at most one syllabus; re-uploading replaces the previous document.
func (s *SyllabusService) Upload(ctx context.Context, subjectID string, data []byte) (*models.SyllabusDetail, error) {
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty upload")
	}
	if len(data) > maxSyllabusSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, "syllabus exceeds the 10 MiB limit")
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "syllabus must be a PDF document")
	}

	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch subject")
	}

	filename := fmt.Sprintf("syllabi/%s.pdf", subject.ID)
	stored, err := s.storage.Save(filename, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store syllabus")
	}

	syllabus := &models.Syllabus{
		SubjectID:  subject.ID,
		PDFURL:     stored,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.repo.UpsertBySubject(ctx, syllabus); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save syllabus record")
	}

	return s.GetBySubject(ctx, subject.ID)
}

// GetBySubject returns the syllabus attached to a subject.
func (s *SyllabusService) GetBySubject(ctx context.Context, subjectID string) (*models.SyllabusDetail, error) {
	detail, err := s.repo.FindBySubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject has no syllabus")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch syllabus")
	}
	return detail, nil
}

// List returns syllabi matching the filter.
func (s *SyllabusService) List(ctx context.Context, filter models.SyllabusFilter) ([]models.SyllabusDetail, int, error) {
	syllabi, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list syllabi")
	}
	return syllabi, total, nil
}

// DownloadURL returns a signed token for fetching the stored PDF.
func (s *SyllabusService) DownloadURL(ctx context.Context, subjectID string) (string, time.Time, error) {
	detail, err := s.GetBySubject(ctx, subjectID)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Generate(detail.ID, detail.PDFURL)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return token, expiresAt, nil
}

// ResolveDownload validates a signed token and returns the file path it
// references.
func (s *SyllabusService) ResolveDownload(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link")
	}
	return relPath, nil
}

// Delete removes the syllabus row and its stored file.
func (s *SyllabusService) Delete(ctx context.Context, id string) error {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "syllabus not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch syllabus")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete syllabus")
	}

	if err := s.storage.Delete(detail.PDFURL); err != nil {
		s.logger.Warn("failed to remove syllabus file", zap.String("path", detail.PDFURL), zap.Error(err))
	}
	return nil
}
