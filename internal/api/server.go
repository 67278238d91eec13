// Package api serves the coordinator's state and operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrz1836/krypt/internal/coordinator"
	"github.com/mrz1836/krypt/internal/metrics"
)

// shutdownTimeout bounds graceful shutdown. An in-flight submission that
// outlives it is cut off with the server.
const shutdownTimeout = 30 * time.Second

// Coordinator is the surface the API exposes.
type Coordinator interface {
	Snapshot() coordinator.Snapshot
	Connect(ctx context.Context) (string, error)
	Form() coordinator.TransferRequest
	UpdateField(name, value string) error
	ResetForm()
	Submit(ctx context.Context) (*coordinator.SubmitResult, error)
	SubmitRequest(ctx context.Context, req *coordinator.TransferRequest) (*coordinator.SubmitResult, error)
	Transactions() []coordinator.TransferRecord
	RefreshHistory(ctx context.Context) error
	HasTransactions(ctx context.Context) (bool, error)
}

// Config holds dependencies for the router.
type Config struct {
	Coordinator Coordinator
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	// AllowRemote disables the loopback-only guard.
	AllowRemote bool
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(cfg *Config) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	// ClientIP must come from the socket, not forwarded headers.
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery(), requestLogger(logger), metricsMiddleware(cfg.Metrics))
	if !cfg.AllowRemote {
		r.Use(localOnly())
	}

	h := &handler{coord: cfg.Coordinator, logger: logger}

	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/state", h.state)
	v1.POST("/connect", h.connect)
	v1.GET("/form", h.getForm)
	v1.PATCH("/form", h.patchForm)
	v1.DELETE("/form", h.resetForm)
	v1.POST("/submit", h.submit)
	v1.GET("/transactions", h.transactions)
	v1.POST("/transactions/refresh", h.refresh)

	return r
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("api shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
