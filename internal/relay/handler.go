package relay

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/extperm/internal/inventory"
	"go.uber.org/zap"
)

// InventoryHandler serves the local extension inventory to remote auditors.
type InventoryHandler struct {
	collector *inventory.Collector
	tokens    *TokenIssuer
	logger    *zap.Logger
}

// NewInventoryHandler creates an InventoryHandler. A nil tokens issuer or one
// without a secret disables authentication.
func NewInventoryHandler(collector *inventory.Collector, tokens *TokenIssuer, logger *zap.Logger) *InventoryHandler {
	if tokens == nil {
		tokens = NewTokenIssuer("", 0)
	}
	return &InventoryHandler{collector: collector, tokens: tokens, logger: logger}
}

// Register registers the inventory routes on the given router group.
func (h *InventoryHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/inventory", RequireToken(h.tokens), h.GetInventory)
}

// GetInventory handles GET /api/v1/inventory.
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	resp, err := h.collector.Collect(c.Request.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, inventory.ErrCapabilityUnavailable) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
		return
	}

	subject := ""
	if claims := ClaimsFromCtx(c); claims != nil {
		subject = claims.Subject
	}
	h.logger.Info("relay: inventory served",
		zap.String("subject", subject),
		zap.String("client_ip", c.ClientIP()),
		zap.Int("extensions", len(resp.Extensions)),
	)
	c.JSON(http.StatusOK, resp)
}

// NewRouter builds the inventory host's Gin engine.
func NewRouter(h *InventoryHandler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h.Register(r.Group("/api/v1"))
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
