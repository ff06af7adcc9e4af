package payment

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campusnest/internal/gateway"
	"campusnest/internal/middleware"
	"campusnest/internal/modules/booking"
	jwtpkg "campusnest/internal/pkg/jwt"
	"campusnest/internal/pkg/response"
	"campusnest/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service        *Service
	signer         *gateway.Signer
	reconcileAfter time.Duration
	loggerf        func(format string, args ...interface{})
}

func NewHandler(service *Service, signer *gateway.Signer, reconcileAfter time.Duration, loggerf func(format string, args ...interface{})) *Handler {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Handler{service: service, signer: signer, reconcileAfter: reconcileAfter, loggerf: loggerf}
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/bookings/:id/payments", middleware.RequireRole(jwtpkg.RoleStudent, jwtpkg.RoleAdmin), h.InitiateCharge)
	rg.GET("/bookings/:id/payments", h.List)
	rg.POST("/bookings/:id/refund", middleware.RequireRole(jwtpkg.RoleLandlord, jwtpkg.RoleAdmin), h.Refund)
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/gateway/result", h.ResultCallback)
	rg.POST("/payments/gateway/refund", h.ResultCallback)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/reconcile", h.Reconcile)
}

// InitiateCharge godoc
// @Summary      Start paying for a booking
// @Description  Opens a gateway charge for the booking total and returns the payment link
// @Tags         Payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path int true "Booking ID"
// @Param        body body InitiateChargeBody false "Payer contact"
// @Success      200 {object} ChargeHandle
// @Success      202 {object} map[string]interface{} "outcome unknown, retry shortly"
// @Failure      409 {object} map[string]interface{}
// @Failure      503 {object} map[string]interface{}
// @Router       /bookings/{id}/payments [post]
func (h *Handler) InitiateCharge(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body InitiateChargeBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}
	if errs := validator.Validate(body); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid payer contact", errs)
		return
	}

	handle, err := h.service.InitiateCharge(c.Request.Context(), id, actorFrom(c), strings.TrimSpace(body.PayerContact))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, handle)
}

func (h *Handler) List(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	actor := actorFrom(c)
	b, err := h.service.bookings.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if actor.Role != jwtpkg.RoleAdmin && actor.ID != b.StudentID && actor.ID != b.LandlordID {
		h.writeError(c, booking.ErrForbidden)
		return
	}
	rows, err := h.service.ListPayments(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payments": rows})
}

// Refund godoc
// @Summary      Refund a paid booking
// @Description  Moves the booking to refund_pending and sends the refund to the gateway
// @Tags         Payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path int true "Booking ID"
// @Param        body body RefundBody true "Refund reason"
// @Success      200 {object} booking.BookingView
// @Failure      409 {object} map[string]interface{}
// @Router       /bookings/{id}/refund [post]
func (h *Handler) Refund(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body RefundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	body.Reason = strings.TrimSpace(body.Reason)
	if errs := validator.Validate(body); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "A reason is required", errs)
		return
	}
	b, err := h.service.InitiateRefund(c.Request.Context(), id, actorFrom(c), body.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, booking.NewBookingView(b))
}

// ResultCallback godoc
// @Summary      Gateway result callback
// @Description  Verifies the signature and applies the charge or refund outcome (idempotent)
// @Tags         Payments
// @Produce      plain
// @Param        OutSum formData string true "Amount"
// @Param        InvId formData string true "Gateway reference"
// @Param        Status formData string false "success or fail"
// @Param        SignatureValue formData string true "MD5 signature"
// @Success      200 {string} string "OK{InvId}"
// @Failure      400 {string} string "bad request"
// @Failure      403 {string} string "forbidden"
// @Failure      500 {string} string "internal error"
// @Router       /payments/gateway/result [post]
func (h *Handler) ResultCallback(c *gin.Context) {
	rawBody, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(strings.NewReader(string(rawBody)))
	_ = c.Request.ParseForm()
	h.loggerf("level=info msg=gateway callback path=%s raw_body=%s", c.FullPath(), string(rawBody))

	cb, err := h.signer.Verify(c.Request.PostForm, string(rawBody))
	if err != nil {
		h.loggerf("level=warn msg=gateway callback rejected err=%v", err)
		if errors.Is(err, gateway.ErrInvalidSignature) {
			c.String(http.StatusForbidden, "forbidden")
			return
		}
		c.String(http.StatusBadRequest, "bad request")
		return
	}

	ack, err := h.service.OnCallback(c.Request.Context(), cb)
	if err != nil {
		h.loggerf("level=error msg=gateway callback failed reference=%s err=%v", cb.Reference, err)
		switch {
		case errors.Is(err, ErrAmountMismatch):
			c.String(http.StatusForbidden, "forbidden")
		case errors.Is(err, ErrUnknownReference):
			c.String(http.StatusBadRequest, "bad request")
		default:
			c.String(http.StatusInternalServerError, "internal error")
		}
		return
	}
	h.loggerf("level=info msg=gateway callback handled reference=%s status=%s ack=%s", cb.Reference, cb.Status, ack)
	c.String(http.StatusOK, ack)
}

// Reconcile polls the gateway for charges and refunds without a final answer.
func (h *Handler) Reconcile(c *gin.Context) {
	after := h.reconcileAfter
	if v := c.Query("older_than_minutes"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 0 {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "older_than_minutes must be a non-negative integer")
			return
		}
		after = time.Duration(m) * time.Minute
	}
	report, err := h.service.ReconcilePending(c.Request.Context(), h.service.now().Add(-after))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		notPayable  *BookingNotPayableError
		unavailable *GatewayUnavailableError
		invalid     *booking.InvalidTransitionError
		concurrent  *booking.ConcurrentModificationError
	)
	switch {
	case errors.As(err, &notPayable):
		response.ErrorWithDetails(c, http.StatusConflict, "BOOKING_NOT_PAYABLE", err.Error(), gin.H{
			"current_status":         notPayable.Status,
			"current_payment_status": notPayable.PaymentStatus,
		})
	case errors.As(err, &unavailable):
		if unavailable.OutcomeUnknown {
			response.ErrorWithDetails(c, http.StatusAccepted, "PAYMENT_PENDING", "Payment pending, retry shortly", gin.H{
				"reference": unavailable.Reference,
			})
			return
		}
		response.Error(c, http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", "Payment gateway unavailable")
	case errors.As(err, &invalid):
		response.ErrorWithDetails(c, http.StatusConflict, "INVALID_TRANSITION", err.Error(), gin.H{
			"current_status":         invalid.Current,
			"current_payment_status": invalid.PaymentStatus,
			"attempted":              invalid.Attempted,
		})
	case errors.As(err, &concurrent):
		response.Error(c, http.StatusConflict, "CONCURRENT_MODIFICATION", err.Error())
	case errors.Is(err, booking.ErrRefundRequired):
		response.Error(c, http.StatusServiceUnavailable, "REFUND_UNAVAILABLE", err.Error())
	case errors.Is(err, booking.ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, booking.ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
	case errors.Is(err, booking.ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
	default:
		h.loggerf("level=error msg=payment request failed path=%s err=%v", c.FullPath(), err)
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func actorFrom(c *gin.Context) booking.Actor {
	return booking.Actor{ID: c.GetInt64("user_id"), Role: c.GetString("role")}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid id")
		return 0, false
	}
	return id, true
}
