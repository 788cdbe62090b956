package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/squeakhq/squeakd/internal/logutil"
)

// Serve runs an HTTP server on bind until ctx is cancelled, then shuts it
// down gracefully. The timeouts are tight on purpose: every route this server
// hosts is a small form post or JSON exchange, and a slow client holding a
// connection open should not hold a KDF slot hostage with it.
func Serve(ctx context.Context, bind string, handler http.Handler) error {
	server := http.Server{
		Handler:           handler,
		Addr:              bind,
		ReadTimeout:       time.Second * 30,
		WriteTimeout:      time.Second * 30,
		ReadHeaderTimeout: time.Second * 10,
		IdleTimeout:       time.Minute * 2,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", bind).Logger()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msg("Accepting connections")
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Initiating shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info().Msg("Shutdown completed")
		return <-errCh
	}
}
