package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cart-recovery/internal/audit"
	"cart-recovery/internal/auth"
	"cart-recovery/internal/calls"
	"cart-recovery/internal/carts"
	"cart-recovery/internal/reporting"
	"cart-recovery/internal/rules"

	"github.com/gin-gonic/gin"
)

// Handlers groups the operator dashboard API. Keep these thin: parse and
// validate input, call internal services, return JSON.

type Handlers struct {
	Auth    *auth.Manager
	Calls   calls.Repo
	Carts   carts.Repo
	Rules   rules.Repo
	Reports *reporting.Service
	Audit   *audit.Service

	Now func() time.Time
	Log *slog.Logger
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handlers) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

func (h Handlers) operator(c *gin.Context) string {
	return c.GetString("operator")
}

// --- Auth ---

type loginRequest struct {
	Password string `json:"password"`
}

// Login exchanges the dashboard password for a token pair.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	pair, err := h.Auth.Login(h.now(), req.Password)
	if errors.Is(err, auth.ErrBadPassword) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	if err := h.Audit.LogLogin(c.Request.Context(), auth.OperatorName, c.ClientIP()); err != nil {
		h.log().Warn("audit append failed", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(h.now(), req.RefreshToken)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

// ListCalls returns the call log, optionally filtered by outcome and a
// date range (YYYY-MM-DD, inclusive).
func (h Handlers) ListCalls(c *gin.Context) {
	var f calls.ListFilter
	f.Outcome = calls.Outcome(c.Query("outcome"))
	if v := c.Query("dateFrom"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "dateFrom must be YYYY-MM-DD"})
			return
		}
		f.DateFrom = d
	}
	if v := c.Query("dateTo"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "dateTo must be YYYY-MM-DD"})
			return
		}
		// Inclusive end of day.
		f.DateTo = d.Add(24*time.Hour - time.Nanosecond)
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	recs, err := h.Calls.List(c.Request.Context(), f)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": recs, "count": len(recs)})
}

func (h Handlers) GetCall(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}
	rec, err := h.Calls.GetByID(c.Request.Context(), id)
	if errors.Is(err, calls.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DashboardStats returns the recovery overview.
func (h Handlers) DashboardStats(c *gin.Context) {
	ov, err := h.Reports.Overview(c.Request.Context(), h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, ov)
}

// --- Carts ---

func (h Handlers) ListCarts(c *gin.Context) {
	cs, err := h.Carts.List(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "cart lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"carts": cs, "count": len(cs)})
}

func (h Handlers) CartStats(c *gin.Context) {
	st, err := h.Reports.CartFollowUp(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// PatchCartCall updates the operator-tracked call fields of one cart.
func (h Handlers) PatchCartCall(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}
	var patch carts.StatusPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if patch.CallStatus == nil && patch.CallNotes == nil && patch.CallDuration == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	cart, err := h.Carts.UpdateCallStatus(c.Request.Context(), id, patch)
	if errors.Is(err, carts.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "cart update failed"})
		return
	}

	if meta, err := json.Marshal(patch); err == nil {
		if err := h.Audit.LogCartUpdate(c.Request.Context(), h.operator(c), c.ClientIP(), id, string(meta)); err != nil {
			h.log().Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cart": cart})
}

// --- Rules ---

func (h Handlers) GetRules(c *gin.Context) {
	vals, err := h.Rules.GetAll(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rules lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": vals})
}

// SetRules upserts recovery rules. Only known keys are accepted.
func (h Handlers) SetRules(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil || len(req) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "expected a non-empty object of rules"})
		return
	}
	for k := range req {
		switch k {
		case rules.KeyOutboundCalls, rules.KeyMaxDiscountPercent:
		default:
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown rule: " + k})
			return
		}
	}

	if err := h.Rules.Set(c.Request.Context(), req); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rules update failed"})
		return
	}

	if meta, err := json.Marshal(req); err == nil {
		if err := h.Audit.LogRuleChange(c.Request.Context(), h.operator(c), c.ClientIP(), string(meta)); err != nil {
			h.log().Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rules": req})
}
