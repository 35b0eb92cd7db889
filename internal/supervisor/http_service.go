package supervisor

import (
	"context"
	"fmt"
	"time"
)

// Listener is the part of the HTTP server the supervisor drives.
type Listener interface {
	Listen(addr string) error
	Shutdown(ctx context.Context) error
}

// HTTPService adapts a Listener to suture.Service.
type HTTPService struct {
	server          Listener
	addr            string
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server so it listens on addr until the supervisor stops it.
func NewHTTPService(server Listener, addr string, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, addr: addr, shutdownTimeout: shutdownTimeout}
}

func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.server.Listen(h.addr)
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return fmt.Errorf("http server stopped unexpectedly")

	case <-ctx.Done():
		// ctx is already canceled, so shutdown gets a fresh deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}

		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string {
	return "http-server"
}
