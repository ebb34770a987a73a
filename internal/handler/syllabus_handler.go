package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/internal/service"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
	"github.com/noah-isme/college-portal-api/pkg/response"
	"github.com/noah-isme/college-portal-api/pkg/storage"
)

// SyllabusHandler exposes syllabus endpoints.
type SyllabusHandler struct {
	syllabi *service.SyllabusService
	files   *storage.LocalStorage
}

// NewSyllabusHandler constructs SyllabusHandler.
func NewSyllabusHandler(syllabi *service.SyllabusService, files *storage.LocalStorage) *SyllabusHandler {
	return &SyllabusHandler{syllabi: syllabi, files: files}
}

// List godoc
// @Summary List syllabi
// @Tags Syllabi
// @Produce json
// @Param department query string false "Filter by department"
// @Param semester query int false "Filter by semester"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /syllabi [get]
func (h *SyllabusHandler) List(c *gin.Context) {
	var filter models.SyllabusFilter
	filter.Department = c.Query("department")
	if semester, err := strconv.Atoi(c.DefaultQuery("semester", "0")); err == nil {
		filter.Semester = semester
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	syllabi, total, err := h.syllabi.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, syllabi, paginate(filter.Page, filter.PageSize, total))
}

// GetBySubject godoc
// @Summary Get the syllabus of a subject
// @Tags Syllabi
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/syllabus [get]
func (h *SyllabusHandler) GetBySubject(c *gin.Context) {
	syllabus, err := h.syllabi.GetBySubject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, syllabus, nil)
}

// Upload godoc
// @Summary Upload the syllabus PDF for a subject
// @Description Re-uploading replaces the subject's previous document
// @Tags Syllabi
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Subject ID"
// @Param file formData file true "PDF document"
// @Success 201 {object} response.Envelope
// @Router /subjects/{id}/syllabus [put]
func (h *SyllabusHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file required"))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	data, err := io.ReadAll(src)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not read upload"))
		return
	}

	syllabus, err := h.syllabi.Upload(c.Request.Context(), c.Param("id"), data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, syllabus)
}

// DownloadURL godoc
// @Summary Get a signed download link for a subject's syllabus
// @Tags Syllabi
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/syllabus/download [get]
func (h *SyllabusHandler) DownloadURL(c *gin.Context) {
	token, expiresAt, err := h.syllabi.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expires_at": expiresAt}, nil)
}

// Download godoc
// @Summary Download a syllabus by signed token
// @Tags Syllabi
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200
// @Failure 401 {object} response.Envelope
// @Router /syllabi/download [get]
func (h *SyllabusHandler) Download(c *gin.Context) {
	relPath, err := h.syllabi.ResolveDownload(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Type", "application/pdf")
	c.File(h.files.Path(relPath))
}

// Delete godoc
// @Summary Delete a syllabus
// @Tags Syllabi
// @Produce json
// @Param id path string true "Syllabus ID"
// @Success 204
// @Router /syllabi/{id} [delete]
func (h *SyllabusHandler) Delete(c *gin.Context) {
	if err := h.syllabi.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
