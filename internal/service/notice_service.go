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
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

const noticeListCachePrefix = "notices:list:"

type noticeRepository interface {
	FindByID(ctx context.Context, id string) (*models.Notice, error)
	List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error)
	Create(ctx context.Context, notice *models.Notice) error
	Update(ctx context.Context, notice *models.Notice) error
	Delete(ctx context.Context, id string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type noticeCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// noticeListPage is the cached shape of one listing page.
type noticeListPage struct {
	Notices []models.Notice `json:"notices"`
	Total   int             `json:"total"`
}

// CreateNoticeRequest captures fields for posting a notice. An explicit
// audience wins; otherwise it is derived from the category. At least one of
// title and content must be non-empty.
type CreateNoticeRequest struct {
	Category string                `json:"category" validate:"required"`
	Audience models.NoticeAudience `json:"audience,omitempty"`
	Title    string                `json:"title,omitempty"`
	Content  string                `json:"content,omitempty"`
	Date     *time.Time            `json:"date,omitempty"`
	DateTime *time.Time            `json:"datetime,omitempty"`
	Priority models.NoticePriority `json:"priority,omitempty"`
	Expiry   *time.Time            `json:"expiry_date,omitempty"`
}

// UpdateNoticeRequest captures mutable notice fields. A category change
// re-derives the audience unless the caller sets one explicitly.
type UpdateNoticeRequest struct {
	Category *string                `json:"category,omitempty"`
	Audience *models.NoticeAudience `json:"audience,omitempty"`
	Title    *string                `json:"title,omitempty"`
	Content  *string                `json:"content,omitempty"`
	Date     *time.Time             `json:"date,omitempty"`
	DateTime *time.Time             `json:"datetime,omitempty"`
	Priority *models.NoticePriority `json:"priority,omitempty"`
	Expiry   *time.Time             `json:"expiry_date,omitempty"`
}

// NoticeService manages the notice board.
type NoticeService struct {
	repo      noticeRepository
	audiences map[string]models.NoticeAudience
	maxAge    time.Duration
	cache     noticeCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNoticeService constructs a NoticeService. The audiences map is the
// category to audience table used for derivation; maxAge bounds how long
// notices are kept before the sweep removes them.
func NewNoticeService(repo noticeRepository, audiences map[string]models.NoticeAudience, maxAge time.Duration, validate *validator.Validate, logger *zap.Logger) *NoticeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if audiences == nil {
		audiences = models.DefaultCategoryAudiences()
	}
	return &NoticeService{repo: repo, audiences: audiences, maxAge: maxAge, validator: validate, logger: logger}
}

// UseCache enables caching of listing pages. Cached pages are invalidated
// on every notice mutation and after a sweep removes rows.
func (s *NoticeService) UseCache(cache noticeCache, ttl time.Duration) {
	s.cache = cache
	s.cacheTTL = ttl
}

// deriveAudience maps a category to its audience. Unknown categories leave
// the audience unset, which reads as staff-only.
func (s *NoticeService) deriveAudience(category string) models.NoticeAudience {
	if audience, ok := s.audiences[category]; ok {
		return audience
	}
	return models.AudienceUnset
}

// Create posts a notice. The audience is derived from the category unless
// the caller supplies one.
func (s *NoticeService) Create(ctx context.Context, req CreateNoticeRequest, postedBy string) (*models.Notice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notice payload")
	}
	if req.Title == "" && req.Content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either title or content is required")
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !priority.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid priority")
	}
	audience := req.Audience
	if audience == models.AudienceUnset {
		audience = s.deriveAudience(req.Category)
	} else if !audience.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid audience")
	}

	notice := &models.Notice{
		Category:   req.Category,
		Audience:   audience,
		Title:      req.Title,
		Content:    req.Content,
		Date:       req.Date,
		DateTime:   req.DateTime,
		Priority:   priority,
		ExpiryDate: req.Expiry,
	}
	if postedBy != "" {
		notice.PostedBy = &postedBy
	}

	if err := s.repo.Create(ctx, notice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notice")
	}
	s.invalidateListCache(ctx)
	return notice, nil
}

// GetByID returns a notice, enforcing audience visibility for the reader.
func (s *NoticeService) GetByID(ctx context.Context, id string, readerRole models.UserRole) (*models.Notice, error) {
	notice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch notice")
	}
	if !notice.VisibleTo(readerRole) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "notice is not visible to your role")
	}
	return notice, nil
}

// List returns notices visible to the reader's role. Students only receive
// rows whose audience is all.
func (s *NoticeService) List(ctx context.Context, filter models.NoticeFilter, readerRole models.UserRole) ([]models.Notice, int, error) {
	if !readerRole.HasStaffPrivilege() {
		filter.AudienceAll = true
	}
	key := fmt.Sprintf("%s%t:%s:%d:%d", noticeListCachePrefix, filter.AudienceAll, filter.Category, filter.Page, filter.PageSize)
	if s.cache != nil {
		var page noticeListPage
		if hit, err := s.cache.Get(ctx, key, &page); err == nil && hit {
			return page.Notices, page.Total, nil
		}
	}
	notices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notices")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, noticeListPage{Notices: notices, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache notice listing", zap.Error(err))
		}
	}
	return notices, total, nil
}

func (s *NoticeService) invalidateListCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, noticeListCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate notice listing cache", zap.Error(err))
	}
}

// Update modifies a notice. A category change re-derives the audience; an
// explicit audience in the request overrides the derivation.
func (s *NoticeService) Update(ctx context.Context, id string, req UpdateNoticeRequest) (*models.Notice, error) {
	notice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch notice")
	}

	if req.Category != nil && *req.Category != notice.Category {
		notice.Category = *req.Category
		notice.Audience = s.deriveAudience(*req.Category)
	}
	if req.Audience != nil {
		if !req.Audience.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid audience")
		}
		notice.Audience = *req.Audience
	}
	if req.Title != nil {
		notice.Title = *req.Title
	}
	if req.Content != nil {
		notice.Content = *req.Content
	}
	if notice.Title == "" && notice.Content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either title or content is required")
	}
	if req.Date != nil {
		notice.Date = req.Date
	}
	if req.DateTime != nil {
		notice.DateTime = req.DateTime
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid priority")
		}
		notice.Priority = *req.Priority
	}
	if req.Expiry != nil {
		notice.ExpiryDate = req.Expiry
	}

	if err := s.repo.Update(ctx, notice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notice")
	}
	s.invalidateListCache(ctx)
	return notice, nil
}

// Delete removes a notice.
func (s *NoticeService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch notice")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notice")
	}
	s.invalidateListCache(ctx)
	return nil
}

// SweepExpired removes notices older than the configured retention window
// and returns how many were deleted. Invoked by the background sweep job.
func (s *NoticeService) SweepExpired(ctx context.Context) (int64, error) {
	if s.maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-s.maxAge)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep notices")
	}
	if deleted > 0 {
		s.invalidateListCache(ctx)
		s.logger.Info("swept expired notices", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}
