package schedule

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListOpenDates godoc
// @Summary      List open calendar dates
// @Description  Active dates from today onward, with their time slots.
// @Tags         schedule
// @Produce      json
// @Success      200  {array}   AvailableDate
// @Failure      500  {object}  gin.H
// @Router       /dates [get]
func (h *Handler) ListOpenDates(c *gin.Context) {
	dates, err := h.service.ListOpenDates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch dates"})
		return
	}

	c.JSON(http.StatusOK, dates)
}

// DateAvailability godoc
// @Summary      Slot availability for a date
// @Tags         schedule
// @Produce      json
// @Param        date  path      string  true  "Date (YYYY-MM-DD)"
// @Success      200   {array}   SlotAvailability
// @Failure      400   {object}  gin.H
// @Failure      404   {object}  gin.H
// @Router       /dates/{date}/availability [get]
func (h *Handler) DateAvailability(c *gin.Context) {
	availability, err := h.service.DateAvailability(c.Request.Context(), c.Param("date"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
		case errors.Is(err, ErrDateUnavailable):
			c.JSON(http.StatusNotFound, gin.H{"error": "date is not open for booking"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute availability"})
		}
		return
	}

	c.JSON(http.StatusOK, availability)
}

// CreateDate godoc
// @Summary      Open a calendar date
// @Tags         schedule
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        date  body      CreateDateRequest  true  "Date to open"
// @Success      201   {object}  AvailableDate
// @Failure      400   {object}  gin.H
// @Failure      409   {object}  gin.H
// @Router       /admin/dates [post]
func (h *Handler) CreateDate(c *gin.Context) {
	var req CreateDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.service.CreateDate(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
		case errors.Is(err, ErrDuplicateDate):
			c.JSON(http.StatusConflict, gin.H{"error": "date already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create date"})
		}
		return
	}

	c.JSON(http.StatusCreated, d)
}

// GenerateRecurring godoc
// @Summary      Generate recurring dates
// @Description  Expands a weekday set over a date range. Existing dates are skipped.
// @Tags         schedule
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        recurrence  body      GenerateRecurringRequest  true  "Recurrence to expand"
// @Success      201         {object}  GenerateRecurringResponse
// @Failure      400         {object}  gin.H
// @Router       /admin/dates/recurring [post]
func (h *Handler) GenerateRecurring(c *gin.Context) {
	var req GenerateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.service.GenerateRecurring(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date, use YYYY-MM-DD"})
		case errors.Is(err, ErrInvalidWeekday):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid weekday name"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate dates"})
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// UpdateDate godoc
// @Summary      Update a calendar date
// @Tags         schedule
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        dateID  path      int                true  "Date ID"
// @Param        patch   body      UpdateDateRequest  true  "Fields to change"
// @Success      200     {object}  AvailableDate
// @Failure      400     {object}  gin.H
// @Failure      404     {object}  gin.H
// @Router       /admin/dates/{dateID} [patch]
func (h *Handler) UpdateDate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("dateID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date ID"})
		return
	}

	var req UpdateDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.service.UpdateDate(c.Request.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDateNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "date not found"})
		case errors.Is(err, ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_bookings must be at least 1"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update date"})
		}
		return
	}

	c.JSON(http.StatusOK, d)
}

// DeleteDate godoc
// @Summary      Delete a calendar date
// @Tags         schedule
// @Security     BearerAuth
// @Produce      json
// @Param        dateID  path      int  true  "Date ID"
// @Success      200     {object}  gin.H
// @Failure      404     {object}  gin.H
// @Router       /admin/dates/{dateID} [delete]
func (h *Handler) DeleteDate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("dateID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date ID"})
		return
	}

	if err := h.service.DeleteDate(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrDateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "date not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete date"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "date deleted"})
}

// ListAllDates godoc
// @Summary      List all calendar dates
// @Tags         schedule
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   AvailableDate
// @Failure      500  {object}  gin.H
// @Router       /admin/dates [get]
func (h *Handler) ListAllDates(c *gin.Context) {
	dates, err := h.service.ListAllDates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch dates"})
		return
	}

	c.JSON(http.StatusOK, dates)
}
