// Package handler contains the Gin handlers and middleware of the audit API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/extperm/internal/audit"
	"github.com/jmerrifield20/extperm/internal/inventory"
	"github.com/jmerrifield20/extperm/internal/risk"
	"go.uber.org/zap"
)

// EvaluateRequest is the body of POST /api/v1/evaluate.
type EvaluateRequest struct {
	Name            string   `json:"name" binding:"required"`
	Version         string   `json:"version,omitempty"`
	Permissions     []string `json:"permissions"`
	HostPermissions []string `json:"host_permissions"`
}

// WeightsResponse is the body of GET /api/v1/weights.
type WeightsResponse struct {
	DefaultWeight int               `json:"default_weight"`
	Weights       map[string]int    `json:"weights"`
	Annotations   []risk.Annotation `json:"annotations"`
	Thresholds    map[string]int    `json:"thresholds"`
}

// AuditHandler handles HTTP requests for audit reports and ad-hoc evaluation.
type AuditHandler struct {
	svc    *audit.Service
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(svc *audit.Service, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, logger: logger}
}

// Register registers all audit routes on the given router group.
func (h *AuditHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/report", h.GetReport)
	rg.POST("/evaluate", h.Evaluate)
	rg.GET("/permissions/:name", h.ExplainPermission)
	rg.GET("/weights", h.GetWeights)
}

// GetReport handles GET /api/v1/report?min_tier=.
// An unavailable inventory yields 503 with the empty report as the body.
func (h *AuditHandler) GetReport(c *gin.Context) {
	min := risk.TierLow
	if q := c.Query("min_tier"); q != "" {
		t, err := risk.ParseTier(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		min = t
	}

	report := h.svc.Run(c.Request.Context())
	if min > risk.TierLow {
		report = report.Filter(min)
	}
	if report.Error != "" {
		c.JSON(http.StatusServiceUnavailable, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Evaluate handles POST /api/v1/evaluate.
func (h *AuditHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.EvaluateRecord(inventory.Record{
		Name:            req.Name,
		Version:         req.Version,
		Permissions:     req.Permissions,
		HostPermissions: req.HostPermissions,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExplainPermission handles GET /api/v1/permissions/:name.
// Unknown permissions are not an error: they report the default weight.
func (h *AuditHandler) ExplainPermission(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Explain(c.Param("name")))
}

// GetWeights handles GET /api/v1/weights.
func (h *AuditHandler) GetWeights(c *gin.Context) {
	t := h.svc.Table()
	c.JSON(http.StatusOK, WeightsResponse{
		DefaultWeight: t.DefaultWeight(),
		Weights:       t.Weights(),
		Annotations:   t.Annotations(),
		Thresholds: map[string]int{
			"medium":   risk.MediumThreshold,
			"high":     risk.HighThreshold,
			"critical": risk.CriticalThreshold,
		},
	})
}

func (h *AuditHandler) handleError(c *gin.Context, err error) {
	var valErr *audit.ErrValidation
	if errors.As(err, &valErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Msg})
		return
	}
	h.logger.Error("audit handler error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
