package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/credits"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/reporting"
	"dialer-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CreditLedger is the subset of credits.Service the dashboard uses.
type CreditLedger interface {
	GetBalance(ctx context.Context, userID string) (credits.Balance, error)
	TopUp(ctx context.Context, userID string, req credits.TopUpRequest) (credits.LedgerEntry, credits.Balance, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Credits CreditLedger
	Reports *reporting.Service
	Audit   *audit.Service

	Now func() time.Time
}

const defaultReportWindow = 30 * 24 * time.Hour

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: skeleton-only endpoint. Credentials are validated upstream.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), claims.UserID, claims.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}

// --- Reports ---

func (h Handlers) CallsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	uid, _ := auth.UserID(c.Request.Context())
	rng, err := h.parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		UserID:     uid,
		Range:      rng,
		CampaignID: c.Query("campaign_id"),
	})
	if err != nil {
		writeReportError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ConversionsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	uid, _ := auth.UserID(c.Request.Context())
	rng, err := h.parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reports.ConversionMetrics(c.Request.Context(), reporting.ConversionMetricsRequest{
		UserID:     uid,
		Range:      rng,
		CampaignID: c.Query("campaign_id"),
	})
	if err != nil {
		writeReportError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// parseRange reads RFC3339 from/to query params. Missing bounds default to
// the last 30 days ending now.
func (h Handlers) parseRange(c *gin.Context) (reporting.TimeRange, error) {
	to := h.now().UTC()
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return reporting.TimeRange{}, errors.New("to must be RFC3339")
		}
		to = t
	}
	from := to.Add(-defaultReportWindow)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return reporting.TimeRange{}, errors.New("from must be RFC3339")
		}
		from = t
	}
	return reporting.TimeRange{From: from, To: to}, nil
}

func writeReportError(c *gin.Context, err error) {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid report request"})
		return
	}
	logger.FromGin(c).Error("report failed", "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
}

// --- Credits ---

func (h Handlers) GetCreditBalance(c *gin.Context) {
	if h.Credits == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "credits not configured"})
		return
	}
	uid, _ := auth.UserID(c.Request.Context())
	bal, err := h.Credits.GetBalance(c.Request.Context(), uid)
	if err != nil {
		logger.FromGin(c).Error("balance lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
		return
	}
	c.JSON(http.StatusOK, bal)
}

type adminCreditRequest struct {
	// UserID is honored for super_admin only; others credit their own account.
	UserID string `json:"user_id,omitempty"`

	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
	ExternalRef    string `json:"external_ref,omitempty"`
}

// AdminCredit performs an admin credit top-up.
// RBAC: owner or super_admin.
func (h Handlers) AdminCredit(c *gin.Context) {
	if h.Credits == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "credits not configured"})
		return
	}
	ctx := c.Request.Context()
	adminUserID, _ := auth.UserID(ctx)
	adminRole, _ := auth.Role(ctx)

	var req adminCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	target := adminUserID
	if rbac.IsSuperAdmin(adminRole) && strings.TrimSpace(req.UserID) != "" {
		target = strings.TrimSpace(req.UserID)
	}

	entry, bal, err := h.Credits.TopUp(ctx, target, credits.TopUpRequest{
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		ExternalRef:    req.ExternalRef,
		Reason:         req.Reason,
		AdminUserID:    adminUserID,
		AdminRole:      adminRole,
	})
	if err != nil {
		if errors.Is(err, credits.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "amount, reason, idempotency_key required"})
			return
		}
		logger.FromGin(c).Error("admin credit failed", "err", err, "target_user_id", target)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "credit failed"})
		return
	}

	if h.Audit != nil {
		if err := h.Audit.LogCreditTopUp(ctx, target, adminUserID, adminRole, c.ClientIP(), entry.ID, req.Reason); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry, "balance": bal})
}

// Convenience middleware bundles.

func RequireUserAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireUser(), rbac.RequireAnyRole(roles...)}
}
