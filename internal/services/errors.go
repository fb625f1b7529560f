package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/plx/internal/shared"
)

// APIError is a non-2xx response from the Spotify Web API.
type APIError struct {
	Status  int
	Message string
	Body    string
}

func newAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	e := &APIError{Status: resp.StatusCode, Body: string(raw)}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		e.Message = payload.Error.Message
	}
	return e
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("spotify API error: status %d", e.Status)
}

// Unwrap maps the status onto the shared error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case e.Status == http.StatusNotFound:
		return shared.ErrPlaylistNotFound
	case e.Status == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case e.Status >= 500:
		return shared.ErrTransientNetwork
	default:
		return shared.ErrAPIRequest
	}
}
