package settlement

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"campusnest/internal/pkg/response"
	"campusnest/internal/repository"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
	loggerf func(format string, args ...interface{})
}

func NewHandler(service *Service, loggerf func(format string, args ...interface{})) *Handler {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Handler{service: service, loggerf: loggerf}
}

func (h *Handler) RegisterLandlordRoutes(rg *gin.RouterGroup) {
	rg.GET("/landlord/payouts", h.LandlordPayouts)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/settlements", h.List)
	rg.GET("/settlements/report", h.Report)
	rg.GET("/settlements/:reference", h.Get)
	rg.POST("/settlements/backfill", h.Backfill)
}

func (h *Handler) List(c *gin.Context) {
	f, ok := parsePeriod(c)
	if !ok {
		return
	}
	rows, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Paginated(c, http.StatusOK, rows, total, f.Limit, f.Offset)
}

// Report godoc
// @Summary      Platform revenue for a period
// @Description  Sums the settlement ledger; to is exclusive
// @Tags         Settlements
// @Security     BearerAuth
// @Produce      json
// @Param        from query string false "YYYY-MM-DD"
// @Param        to query string false "YYYY-MM-DD"
// @Success      200 {object} Report
// @Router       /admin/settlements/report [get]
func (h *Handler) Report(c *gin.Context) {
	f, ok := parsePeriod(c)
	if !ok {
		return
	}
	r, err := h.service.Report(c.Request.Context(), f.From, f.To)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, r)
}

func (h *Handler) Get(c *gin.Context) {
	e, err := h.service.Get(c.Request.Context(), strings.ToUpper(c.Param("reference")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, e)
}

func (h *Handler) Backfill(c *gin.Context) {
	n, err := h.service.Backfill(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"recorded": n})
}

func (h *Handler) LandlordPayouts(c *gin.Context) {
	f, ok := parsePeriod(c)
	if !ok {
		return
	}
	rows, total, totals, err := h.service.LandlordPayouts(c.Request.Context(), c.GetInt64("user_id"), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"items":  rows,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
		"totals": totals,
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidPeriod):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "from must be before to")
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Settlement entry not found")
	default:
		h.loggerf("level=error msg=settlement request failed path=%s err=%v", c.FullPath(), err)
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func parsePeriod(c *gin.Context) (repository.SettlementFilter, bool) {
	var q PeriodQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query")
		return repository.SettlementFilter{}, false
	}
	f := repository.SettlementFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Limit <= 0 || q.Limit > 100 {
		f.Limit = 20
	}
	if q.Offset < 0 {
		f.Offset = 0
	}
	for _, p := range []struct {
		raw string
		dst **time.Time
	}{{q.From, &f.From}, {q.To, &f.To}} {
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
