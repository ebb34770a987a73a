package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-portal-api/internal/service"
	"github.com/noah-isme/college-portal-api/pkg/response"
	"github.com/noah-isme/college-portal-api/pkg/storage"
)

// ExportHandler exposes roster export endpoints.
type ExportHandler struct {
	exports *service.ExportService
	files   *storage.LocalStorage
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService, files *storage.LocalStorage) *ExportHandler {
	return &ExportHandler{exports: exports, files: files}
}

// Students godoc
// @Summary Export the student roster
// @Tags Exports
// @Produce json
// @Param department query string false "Filter by department"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {object} response.Envelope
// @Router /exports/students [post]
func (h *ExportHandler) Students(c *gin.Context) {
	result, err := h.exports.StudentRoster(c.Request.Context(), c.Query("department"), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Staff godoc
// @Summary Export the staff roster
// @Tags Exports
// @Produce json
// @Param department query string false "Filter by department"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {object} response.Envelope
// @Router /exports/staff [post]
func (h *ExportHandler) Staff(c *gin.Context) {
	result, err := h.exports.StaffRoster(c.Request.Context(), c.Query("department"), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download an export by signed token
// @Tags Exports
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200
// @Failure 401 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	relPath, err := h.exports.ResolveDownload(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(h.files.Path(relPath), relPath)
}
