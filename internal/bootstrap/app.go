package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/export"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/mapper"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/storefront"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/config"
)

// App bundles the wired services used by the CLI commands and the admin server.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Export     export.Service
	Storefront storefront.Service
	Mapper     mapper.Service

	server *http.Server
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, exporter export.Service, store storefront.Service, mapperSvc mapper.Service) *App {
	return &App{
		Config:     cfg,
		Logger:     logger,
		Export:     exporter,
		Storefront: store,
		Mapper:     mapperSvc,
		server:     server,
	}
}

// Run starts the admin HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	logger := a.Logger.With("component", "bootstrap")
	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", "address", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
