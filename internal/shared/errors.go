package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired or revoked")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Catalog errors
	ErrAPIRequest        = fmt.Errorf("API request failed")
	ErrRateLimited       = fmt.Errorf("rate limited")
	ErrTransientNetwork  = fmt.Errorf("transient network failure")
	ErrPlaylistNotFound  = fmt.Errorf("playlist not found")
	ErrServiceNotReady   = fmt.Errorf("catalog client not initialized")
	ErrLocalTrackSkipped = fmt.Errorf("local track cannot be written")

	// Pipeline and run errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrConcurrentRun   = fmt.Errorf("run already in progress for config")
	ErrNotFound        = fmt.Errorf("record not found")
	ErrChangeSetClosed = fmt.Errorf("change set is no longer awaiting approval")
	ErrPlaylistChanged = fmt.Errorf("playlist changed since the change set was computed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
