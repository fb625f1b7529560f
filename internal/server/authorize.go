package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plx/internal/services"
	"github.com/desertthunder/plx/internal/shared"
	"golang.org/x/oauth2"
)

// AuthorizeOpts configures [Authorize].
type AuthorizeOpts struct {
	Addr     string       // host:port to listen on, ignored when Listener is set
	Listener net.Listener // optional pre-bound listener
	Timeout  time.Duration
	// Open shows the consent page to the user. Defaults to [shared.OpenBrowser].
	Open func(string) error
	// OnURL receives the consent url before Open runs.
	OnURL  func(string)
	Logger *log.Logger
}

// Authorize runs the authorization code flow against srv and returns the issued token.
func Authorize(ctx context.Context, srv services.OAuthService, opts AuthorizeOpts) (*oauth2.Token, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Open == nil {
		opts.Open = shared.OpenBrowser
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	ln := opts.Listener
	if ln == nil {
		if ln, err = net.Listen("tcp", opts.Addr); err != nil {
			return nil, fmt.Errorf("failed to bind callback server on %s: %w", opts.Addr, err)
		}
	}

	handler := NewOAuthHandler(srv.GetOAuthConfig(), state)
	router := NewBasicRouter()
	router.Use(LogRequests(opts.Logger))
	router.Handler(handler)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			opts.Logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	opts.Logger.Info("waiting for oauth callback", "addr", ln.Addr().String(), "service", srv.Name())

	authURL := srv.GetAuthURL(state)
	if opts.OnURL != nil {
		opts.OnURL(authURL)
	}
	if err := opts.Open(authURL); err != nil {
		opts.Logger.Warn("failed to open browser automatically", "error", err)
	}

	timeout := time.NewTimer(opts.Timeout)
	defer timeout.Stop()

	select {
	case result := <-handler.Result():
		if result.Err != nil {
			return nil, result.Err
		}
		if result.Token == nil {
			return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
		}
		return result.Token, nil
	case err := <-serverErrors:
		return nil, fmt.Errorf("callback server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, opts.Timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
