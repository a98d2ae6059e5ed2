package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/config"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// OrderService serves the storefront, checkout and dashboard API.
type OrderService struct {
	server *http.Server
	logger *logger.Logger
}

var _ ports.ServiceInterface = (*OrderService)(nil)

func NewOrderService(handler http.Handler, port int, cfg config.ServerConfig, logger *logger.Logger) *OrderService {
	return &OrderService{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (o *OrderService) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		o.logger.Info("", "service_started", "Order Service started on port "+o.server.Addr, nil)
		if err := o.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("cannot start server: %w", err)
	case <-ctx.Done():
	}
	return o.Stop()
}

func (o *OrderService) Stop() error {
	o.logger.Info("", "graceful_shutdown", "Shutting down order service", nil)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := o.server.Shutdown(ctx); err != nil {
		o.logger.Error("", "shutdown_failed", "Server shutdown failed", err, nil)
		return err
	}
	o.logger.Info("", "service_stopped", "Order service stopped", nil)
	return nil
}
