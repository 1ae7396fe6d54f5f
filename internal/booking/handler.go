package booking

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"studiopass/internal/api"
	"studiopass/internal/auth"
	"studiopass/internal/pass"
	"studiopass/internal/schedule"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	schedule schedule.Service
	ledger   pass.Service
}

func NewHandler(service Service, scheduleService schedule.Service, ledger pass.Service) *Handler {
	return &Handler{
		service:  service,
		schedule: scheduleService,
		ledger:   ledger,
	}
}

// ListCategories godoc
// @Summary      List appointment categories
// @Tags         bookings
// @Produce      json
// @Success      200  {array}  Category
// @Router       /booking/categories [get]
func (h *Handler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, Categories())
}

// Book godoc
// @Summary      Book a slot
// @Description  Runs the booking flow end to end: category guard, availability
// @Description  check, reservation, and pass deduction when the category needs one.
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Param        booking  body      BookRequest  true  "Booking to create"
// @Success      201      {object}  BookResponse
// @Success      200      {object}  Advice  "Flow held with a remediation hint"
// @Failure      400      {object}  gin.H
// @Failure      409      {object}  gin.H
// @Failure      500      {object}  gin.H
// @Router       /bookings [post]
func (h *Handler) Book(c *gin.Context) {
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			var details []api.ValidationError
			for _, fe := range verrs {
				details = append(details, api.ValidationError{
					Field:   fe.Field(),
					Tag:     fe.Tag(),
					Message: fe.Field() + " is invalid",
				})
			}
			api.RespondWithValidationErrors(c, details)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var userID *int
	if id, ok := auth.GetUserID(c); ok {
		userID = &id
	}

	ctx := c.Request.Context()
	wf := NewWorkflow(h.schedule, h.ledger)

	advice, err := wf.SelectType(ctx, req.AppointmentType, userID)
	if err != nil {
		if errors.Is(err, ErrUnknownCategory) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown appointment type"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start booking"})
		return
	}
	if advice != nil {
		// The flow did not advance: external category or missing
		// prerequisite. Not an error; the client gets a next step.
		c.JSON(http.StatusOK, advice)
		return
	}

	if req.PassID != 0 {
		if err := wf.ChoosePass(req.PassID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "selected pass is not eligible"})
			return
		}
	}

	if err := wf.SelectSlot(ctx, req.Date, req.TimeSlot); err != nil {
		switch {
		case errors.Is(err, ErrSlotFull):
			c.JSON(http.StatusConflict, gin.H{"error": "time slot is full"})
		case errors.Is(err, schedule.ErrDateUnavailable):
			c.JSON(http.StatusConflict, gin.H{"error": "date is not open for booking"})
		case errors.Is(err, schedule.ErrUnknownSlot):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown time slot for date"})
		case errors.Is(err, schedule.ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check availability"})
		}
		return
	}

	if err := wf.EnterDetails(req.Name, req.Email, req.Phone); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and email are required"})
		return
	}

	resp, err := wf.Confirm(ctx, h.service)
	if err != nil {
		var declined *DeductionDeclinedError
		switch {
		case errors.As(err, &declined):
			c.JSON(http.StatusConflict, gin.H{"error": declined.Message})
		case errors.Is(err, ErrSlotFull):
			c.JSON(http.StatusConflict, gin.H{"error": "time slot is full"})
		case errors.Is(err, ErrPassNotSelected), errors.Is(err, ErrPassRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "a pass must be selected for this appointment type"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create booking"})
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListMyBookings godoc
// @Summary      List my bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Booking
// @Failure      500  {object}  gin.H
// @Router       /bookings [get]
func (h *Handler) ListMyBookings(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	bookings, err := h.service.ListMy(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// CancelBooking godoc
// @Summary      Cancel my booking
// @Description  Refunds the consumed session, if any, then cancels.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  CancelResponse
// @Failure      403        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Failure      500        {object}  gin.H
// @Router       /bookings/{bookingID}/cancel [post]
func (h *Handler) CancelBooking(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking ID"})
		return
	}

	resp, err := h.service.Cancel(c.Request.Context(), userID, bookingID)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "you can only cancel your own bookings"})
		case errors.Is(err, ErrBookingNotFoundOrAlreadyCancelled):
			c.JSON(http.StatusBadRequest, gin.H{"error": "booking already cancelled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel booking"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// AdminCancelBooking godoc
// @Summary      Cancel any booking
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  CancelResponse
// @Failure      404        {object}  gin.H
// @Router       /admin/bookings/{bookingID}/cancel [post]
func (h *Handler) AdminCancelBooking(c *gin.Context) {
	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking ID"})
		return
	}

	resp, err := h.service.AdminCancel(c.Request.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, ErrBookingNotFoundOrAlreadyCancelled):
			c.JSON(http.StatusBadRequest, gin.H{"error": "booking already cancelled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel booking"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ConfirmBooking godoc
// @Summary      Confirm a pending booking
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Router       /admin/bookings/{bookingID}/confirm [post]
func (h *Handler) ConfirmBooking(c *gin.Context) {
	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking ID"})
		return
	}

	if err := h.service.Confirm(c.Request.Context(), bookingID); err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found or not pending"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to confirm booking"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "booking confirmed"})
}

// ListBookings godoc
// @Summary      List bookings by date and optional slot
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        date  query     string  true   "Date (YYYY-MM-DD)"
// @Param        slot  query     string  false  "Time slot label"
// @Success      200   {array}   BookingWithClient
// @Failure      400   {object}  gin.H
// @Router       /admin/bookings [get]
func (h *Handler) ListBookings(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query param is required"})
		return
	}

	var (
		bookings []BookingWithClient
		err      error
	)
	if slot := c.Query("slot"); slot != "" {
		bookings, err = h.service.ListBySlot(c.Request.Context(), date, slot)
	} else {
		bookings, err = h.service.ListByDate(c.Request.Context(), date)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// Reconcile godoc
// @Summary      Roll back orphaned pass bookings
// @Description  Cancels pass bookings whose deduction never landed.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  gin.H
// @Failure      500  {object}  gin.H
// @Router       /admin/reconcile [post]
func (h *Handler) Reconcile(c *gin.Context) {
	// Floor keeps the manual sweep from touching bookings still mid-flow.
	reconciled, err := h.service.ReconcileOrphans(c.Request.Context(), 5*time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reconciled": reconciled})
}
