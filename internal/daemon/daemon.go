package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/dwell/internal/tracker"
)

const shutdownTimeout = 5 * time.Second

// Runner runs one long-lived daemon task until ctx is done.
type Runner func(ctx context.Context) error

// Serve listens on ln and runs the HTTP server, the tracker loop and any
// extra tasks (e.g. the config watcher) in one errgroup. The first task to
// fail cancels the rest. On shutdown the tracker flushes its open session.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, tr *tracker.Tracker, log zerolog.Logger, extra ...Runner) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Msg("listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		log.Info().Msg("http server stopped")
		return nil
	})

	g.Go(func() error {
		// Handlers dispatch directly; the loop only owns the ticker.
		return tr.Run(gctx, nil)
	})

	for _, run := range extra {
		run := run
		g.Go(func() error { return run(gctx) })
	}

	return g.Wait()
}

// ListenAndServe binds addr and calls Serve.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, tr *tracker.Tracker, log zerolog.Logger, extra ...Runner) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return Serve(ctx, ln, handler, tr, log, extra...)
}
