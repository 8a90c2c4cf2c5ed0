// extperm-server serves extension audit reports over HTTP.
//
// Configuration comes from configs/extperm.yaml (or $EXTPERM_CONFIG) and
// EXTPERM_* environment variables. In remote inventory mode the server also
// probes the inventory host and reports readiness on /readyz.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/extperm/internal/api/handler"
	"github.com/jmerrifield20/extperm/internal/config"
	"github.com/jmerrifield20/extperm/internal/health"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("extperm-server exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	v := viper.GetViper()
	if err := config.Load(v, "extperm", os.Getenv("EXTPERM_CONFIG")); err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Audit service ────────────────────────────────────────────────────────
	svc, err := config.NewAuditService(v, logger)
	if err != nil {
		return fmt.Errorf("build audit service: %w", err)
	}
	svc.SetReportHook(handler.RecordReport)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Upstream health (remote inventory only) ──────────────────────────────
	var ready handler.Readiness
	if v.GetString("inventory.mode") == config.ModeRemote {
		checker := health.New([]health.Target{
			{Name: "inventory", URL: v.GetString("inventory.remote_url")},
		}, health.Config{
			CheckInterval: config.Duration(v, "health.interval", 30*time.Second),
			FailThreshold: v.GetInt("health.fail_threshold"),
		}, logger)
		checker.SetMetricsRecord(handler.RecordUpstreamProbe)
		checker.SetTransition(func(t health.Target, healthy bool) {
			if !healthy {
				logger.Warn("inventory host degraded; /readyz now failing", zap.String("url", t.URL))
			}
		})
		go checker.Start(ctx)
		ready = checker
		logger.Info("upstream health checker started", zap.String("inventory", v.GetString("inventory.remote_url")))
	}

	// ── HTTP router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(ctx, handler.RouterConfig{
		CORSOrigins:  v.GetStringSlice("server.cors_origins"),
		RateLimitRPS: v.GetInt("server.rate_limit_rps"),
	}, handler.NewAuditHandler(svc, logger), ready, logger)

	port := v.GetInt("server.port")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("extperm-server HTTP listening",
			zap.Int("port", port),
			zap.String("inventory_mode", v.GetString("inventory.mode")),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutting down extperm-server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("extperm-server stopped")
	return nil
}
