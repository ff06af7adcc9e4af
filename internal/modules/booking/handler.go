package booking

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campusnest/internal/domain"
	"campusnest/internal/middleware"
	"campusnest/internal/modules/money"
	jwtpkg "campusnest/internal/pkg/jwt"
	"campusnest/internal/pkg/response"
	"campusnest/internal/pkg/validator"
	"campusnest/internal/repository"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
	rates   *SettingsRateSource
	loggerf func(format string, args ...interface{})
}

func NewHandler(service *Service, rates *SettingsRateSource, loggerf func(format string, args ...interface{})) *Handler {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Handler{service: service, rates: rates, loggerf: loggerf}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/properties/:id/bookings/count", h.ActiveCount)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/bookings", middleware.RequireRole(jwtpkg.RoleStudent), h.Create)
	rg.GET("/bookings/my", middleware.RequireRole(jwtpkg.RoleStudent), h.ListMine)
	rg.GET("/landlord/bookings", middleware.RequireRole(jwtpkg.RoleLandlord), h.ListForLandlord)
	rg.GET("/bookings/reference/:reference", h.GetByReference)
	rg.GET("/bookings/:id", h.Get)
	rg.GET("/bookings/:id/history", h.History)
	rg.POST("/bookings/:id/approve", middleware.RequireRole(jwtpkg.RoleLandlord, jwtpkg.RoleAdmin), h.Approve)
	rg.POST("/bookings/:id/reject", middleware.RequireRole(jwtpkg.RoleLandlord, jwtpkg.RoleAdmin), h.Reject)
	rg.POST("/bookings/:id/cancel", h.Cancel)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/bookings", h.ListAll)
	rg.POST("/bookings/:id/complete", h.Complete)
	rg.GET("/settings/commission-rate", h.GetCommissionRate)
	rg.PUT("/settings/commission-rate", h.SetCommissionRate)
}

// Create godoc
// @Summary      Request a booking
// @Description  Snapshots property pricing and the current commission rate into a pending booking
// @Tags         Bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body body CreateBookingBody true "Booking request"
// @Success      201 {object} BookingView
// @Failure      400 {object} map[string]interface{}
// @Failure      409 {object} map[string]interface{}
// @Failure      422 {object} map[string]interface{}
// @Router       /bookings [post]
func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(body); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking request", errs)
		return
	}
	moveIn, err := time.Parse("2006-01-02", body.MoveInDate)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "move_in_date must be YYYY-MM-DD")
		return
	}

	rate, err := h.rates.CommissionRate(c.Request.Context())
	if err != nil {
		h.loggerf("level=error msg=commission rate lookup failed err=%v", err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create booking")
		return
	}

	b, err := h.service.Create(c.Request.Context(), CreateBookingRequest{
		StudentID:           c.GetInt64("user_id"),
		PropertyID:          body.PropertyID,
		LandlordID:          body.LandlordID,
		MoveInDate:          moveIn,
		LeaseDurationMonths: body.LeaseDurationMonths,
		CommissionRate:      rate,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, NewBookingView(b))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.service.Get(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, NewBookingView(b))
}

func (h *Handler) GetByReference(c *gin.Context) {
	b, err := h.service.GetByReference(c.Request.Context(), strings.ToUpper(c.Param("reference")), actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, NewBookingView(b))
}

func (h *Handler) History(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rows, err := h.service.History(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"transitions": rows})
}

// Approve godoc
// @Summary      Approve a pending booking
// @Tags         Bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id path int true "Booking ID"
// @Success      200 {object} BookingView
// @Failure      409 {object} map[string]interface{} "current_status in error.details"
// @Router       /bookings/{id}/approve [post]
func (h *Handler) Approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.service.Approve(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, NewBookingView(b))
}

func (h *Handler) Reject(c *gin.Context) {
	id, body, ok := parseReason(c)
	if !ok {
		return
	}
	b, err := h.service.Reject(c.Request.Context(), id, actorFrom(c), body.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, NewBookingView(b))
}

// Cancel godoc
// @Summary      Cancel a booking
// @Description  A paid booking gets a refund queued in the same write
// @Tags         Bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path int true "Booking ID"
// @Param        body body ReasonBody true "Cancellation reason"
// @Success      200 {object} BookingView
// @Failure      409 {object} map[string]interface{}
// @Router       /bookings/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	id, body, ok := parseReason(c)
	if !ok {
		return
	}
	b, err := h.service.Cancel(c.Request.Context(), id, actorFrom(c), body.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, NewBookingView(b))
}

func (h *Handler) Complete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.service.Complete(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, NewBookingView(b))
}

func (h *Handler) ListMine(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	rows, total, err := h.service.ListForStudent(c.Request.Context(), c.GetInt64("user_id"), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Paginated(c, http.StatusOK, rows, total, f.Limit, f.Offset)
}

func (h *Handler) ListForLandlord(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	rows, total, err := h.service.ListForLandlord(c.Request.Context(), c.GetInt64("user_id"), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Paginated(c, http.StatusOK, rows, total, f.Limit, f.Offset)
}

func (h *Handler) ListAll(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	if v := c.Query("landlord_id"); v != "" {
		f.LandlordID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := c.Query("student_id"); v != "" {
		f.StudentID, _ = strconv.ParseInt(v, 10, 64)
	}
	rows, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Paginated(c, http.StatusOK, rows, total, f.Limit, f.Offset)
}

func (h *Handler) ActiveCount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	n, err := h.service.ActiveBookingCount(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"property_id": id, "active_bookings": n})
}

func (h *Handler) GetCommissionRate(c *gin.Context) {
	rate, err := h.rates.CommissionRate(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rate": rate.String(), "rate_bps": rate.Bps()})
}

// SetCommissionRate changes the rate for bookings created from now on.
// Existing bookings keep their snapshot.
func (h *Handler) SetCommissionRate(c *gin.Context) {
	var body CommissionRateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	rate, err := money.ParseRate(body.Rate)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_TERMS", err.Error())
		return
	}
	if err := h.rates.SetCommissionRate(c.Request.Context(), rate, c.GetInt64("user_id")); err != nil {
		h.writeError(c, err)
		return
	}
	h.loggerf("level=info msg=commission rate changed rate_bps=%d actor_id=%d", rate.Bps(), c.GetInt64("user_id"))
	response.Success(c, http.StatusOK, gin.H{"rate": rate.String(), "rate_bps": rate.Bps()})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		invalid    *InvalidTransitionError
		concurrent *ConcurrentModificationError
		duplicate  *DuplicateActiveBookingError
		property   *PropertyUnavailableError
		mismatch   *PaymentMismatchError
		terms      *money.InvalidTermsError
	)
	switch {
	case errors.As(err, &invalid):
		response.ErrorWithDetails(c, http.StatusConflict, "INVALID_TRANSITION", err.Error(), gin.H{
			"current_status":         invalid.Current,
			"current_payment_status": invalid.PaymentStatus,
			"attempted":              invalid.Attempted,
		})
	case errors.As(err, &concurrent):
		response.Error(c, http.StatusConflict, "CONCURRENT_MODIFICATION", err.Error())
	case errors.As(err, &duplicate):
		response.ErrorWithDetails(c, http.StatusConflict, "DUPLICATE_ACTIVE_BOOKING", err.Error(), gin.H{
			"existing_reference": duplicate.ExistingReference,
		})
	case errors.As(err, &property):
		response.Error(c, http.StatusUnprocessableEntity, "PROPERTY_UNAVAILABLE", err.Error())
	case errors.As(err, &mismatch):
		response.Error(c, http.StatusUnprocessableEntity, "PAYMENT_MISMATCH", err.Error())
	case errors.As(err, &terms):
		response.ErrorWithDetails(c, http.StatusBadRequest, "INVALID_TERMS", err.Error(), gin.H{"field": terms.Field})
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrRefundRequired):
		response.Error(c, http.StatusServiceUnavailable, "REFUND_UNAVAILABLE", err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
	default:
		h.loggerf("level=error msg=booking request failed path=%s err=%v", c.FullPath(), err)
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func actorFrom(c *gin.Context) Actor {
	return Actor{ID: c.GetInt64("user_id"), Role: c.GetString("role")}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid id")
		return 0, false
	}
	return id, true
}

func parseReason(c *gin.Context) (int64, ReasonBody, bool) {
	var body ReasonBody
	id, ok := parseID(c)
	if !ok {
		return 0, body, false
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return 0, body, false
	}
	body.Reason = strings.TrimSpace(body.Reason)
	if errs := validator.Validate(body); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "A reason is required", errs)
		return 0, body, false
	}
	return id, body, true
}

func parseFilter(c *gin.Context) (repository.BookingFilter, bool) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query")
		return repository.BookingFilter{}, false
	}
	f := repository.BookingFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Limit <= 0 || q.Limit > 100 {
		f.Limit = 20
	}
	if q.Status != "" {
		st, err := domain.ParseBookingStatus(q.Status)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return f, false
		}
		f.Status = st
	}
	if q.PaymentStatus != "" {
		ps := domain.PaymentStatus(q.PaymentStatus)
		if !ps.IsValid() {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payment status")
			return f, false
		}
		f.PaymentStatus = ps
	}
	for _, p := range []struct {
		raw string
		dst **time.Time
	}{{q.From, &f.CreatedFrom}, {q.To, &f.CreatedTo}} {
		if p.raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", p.raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "dates must be YYYY-MM-DD")
			return f, false
		}
		*p.dst = &t
	}
	return f, true
}
