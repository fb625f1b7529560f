package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/desertthunder/plx/internal/server"
	"github.com/desertthunder/plx/internal/services"
	"github.com/desertthunder/plx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Auth runs the authorization code flow through the local callback server and stores the token.
//
// With --status it reports the signed-in user instead.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("status") {
		return r.authStatus(ctx)
	}

	svc, err := r.requireOAuth()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	r.logger.Info("starting OAuth callback server", "addr", addr)

	token, err := server.Authorize(ctx, svc, server.AuthorizeOpts{
		Addr:    addr,
		Timeout: cmd.Duration("timeout"),
		Logger:  r.logger,
		OnURL: func(u string) {
			r.writePlain("Opening browser for Spotify authorization...\nIf it does not open, visit:\n%s\n", u)
		},
	})
	if err != nil {
		return handleSpotifyAuthError(err)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return err
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	r.logger.Info("authentication successful", "name", svc.Name())
	return r.writePlain("✓ Authentication successful, token saved to %s\n", r.configPath)
}

func (r *Runner) authStatus(ctx context.Context) error {
	catalog, err := r.requireCatalog(ctx)
	if err != nil {
		return err
	}

	spotify, ok := catalog.(*services.SpotifyService)
	if !ok {
		return r.writePlain("✓ Authenticated\n")
	}

	user, err := spotify.UserProfile(ctx)
	if err != nil {
		return handleSpotifyAuthError(err)
	}
	return r.writePlain("✓ Authenticated as %s (%s)\n", user.DisplayName, user.ID)
}

func handleSpotifyAuthError(err error) error {
	switch {
	case errors.Is(err, shared.ErrAuthFailed), errors.Is(err, shared.ErrTimeout), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, shared.ErrTokenExpired):
		return fmt.Errorf("%w: run 'plx auth' again", err)
	default:
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
}
