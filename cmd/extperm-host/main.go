// extperm-host runs on the machine whose browser is being audited and serves
// its extension inventory to auditors holding a relay token.
//
// It is the only component that reads browser profiles directly. Set
// relay.secret (EXTPERM_RELAY_SECRET) to require tokens; leave it empty only
// for local development.
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
	"github.com/jmerrifield20/extperm/internal/config"
	"github.com/jmerrifield20/extperm/internal/inventory"
	"github.com/jmerrifield20/extperm/internal/relay"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("extperm-host exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	v := viper.GetViper()
	if err := config.Load(v, "extperm", os.Getenv("EXTPERM_CONFIG")); err != nil {
		return err
	}

	// A host always reads local profiles; relaying a relay is not supported.
	profiles := v.GetStringSlice("inventory.profiles")
	if len(profiles) == 0 {
		profiles = config.DefaultProfiles()
	}
	src := inventory.NewProfileSource(profiles, logger)
	collector := inventory.NewCollector(src, logger)

	tokens := relay.NewTokenIssuer(v.GetString("relay.secret"), config.Duration(v, "relay.token_ttl", time.Hour))
	if !tokens.Enabled() {
		logger.Warn("relay.secret is empty: inventory is served without authentication")
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := relay.NewRouter(relay.NewInventoryHandler(collector, tokens, logger), logger)

	port := v.GetInt("relay.port")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("extperm-host HTTP listening",
			zap.Int("port", port),
			zap.Strings("profiles", src.Profiles),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down extperm-host...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("extperm-host stopped")
	return nil
}
