package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/internal/service"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
	"github.com/noah-isme/college-portal-api/pkg/response"
)

// HODHandler exposes Head-of-Department endpoints.
type HODHandler struct {
	hods *service.HODService
}

// NewHODHandler constructs HODHandler.
func NewHODHandler(hods *service.HODService) *HODHandler {
	return &HODHandler{hods: hods}
}

// List godoc
// @Summary List appointments
// @Description Lists appointments including retired rows, giving the
// succession history per department
// @Tags HeadOfDepartment
// @Produce json
// @Param department query string false "Filter by department"
// @Param status query string false "Filter by status (ACTIVE or RETIRED)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /hods [get]
func (h *HODHandler) List(c *gin.Context) {
	var filter models.HODFilter
	filter.Department = c.Query("department")
	filter.Status = models.AppointmentStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	appointments, total, err := h.hods.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointments, paginate(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get appointment detail
// @Tags HeadOfDepartment
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /hods/{id} [get]
func (h *HODHandler) Get(c *gin.Context) {
	appointment, err := h.hods.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Current godoc
// @Summary Get the active head of a department
// @Tags HeadOfDepartment
// @Produce json
// @Param department path string true "Department code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /hods/current/{department} [get]
func (h *HODHandler) Current(c *gin.Context) {
	appointment, err := h.hods.CurrentHOD(c.Request.Context(), c.Param("department"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Appoint godoc
// @Summary Appoint a department head
// @Description Fails with 409 when the department already has an active
// head or the staff member heads another department
// @Tags HeadOfDepartment
// @Accept json
// @Produce json
// @Param payload body service.AppointHODRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /hods [post]
func (h *HODHandler) Appoint(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AppointHODRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appointment, err := h.hods.Appoint(c.Request.Context(), req, claims.UserID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appointment)
}

// Update godoc
// @Summary Update an appointment
// @Description A department change transfers the headship: the current row
// is retired and a fresh active row is created
// @Tags HeadOfDepartment
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body service.UpdateHODRequest true "Appointment payload"
// @Success 200 {object} response.Envelope
// @Router /hods/{id} [put]
func (h *HODHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateHODRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appointment, err := h.hods.Update(c.Request.Context(), c.Param("id"), req, claims.UserID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Retire godoc
// @Summary Retire an appointment
// @Description Ends an active appointment while keeping the row as history;
// idempotent on already retired rows
// @Tags HeadOfDepartment
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /hods/{id}/retire [post]
func (h *HODHandler) Retire(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	appointment, err := h.hods.Retire(c.Request.Context(), c.Param("id"), claims.UserID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}
