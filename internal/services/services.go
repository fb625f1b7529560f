// package services defines the catalog client contract and its Spotify implementation
package services

import (
	"context"

	"github.com/desertthunder/plx/internal/models"
	"golang.org/x/oauth2"
)

// Catalog is the remote music catalog the reconciliation engine reads from and writes to.
type Catalog interface {
	// ListPlaylistTracks returns every track of a playlist in playlist order, local files included.
	ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// ListLikedSongs returns the user's saved tracks, most recently saved first.
	ListLikedSongs(ctx context.Context) ([]models.Track, error)

	// SearchAlternateVersions runs a track search for the version stage.
	SearchAlternateVersions(ctx context.Context, query string, scope models.VersionScope) ([]models.Track, error)

	// WritePlaylistTracks replaces a playlist's contents with uris, in order.
	WritePlaylistTracks(ctx context.Context, playlistID string, uris []string) error

	// RemoveTrack removes every occurrence of uri from a playlist.
	RemoveTrack(ctx context.Context, playlistID, uri string) error

	// AudioFeatures fetches numeric attributes for track ids. Unknown ids are absent from the result.
	AudioFeatures(ctx context.Context, trackIDs []string) (map[string]models.Attributes, error)

	// GetPlaylist returns playlist metadata.
	GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error)

	// GetPlaylists lists the current user's playlists.
	GetPlaylists(ctx context.Context) ([]Playlist, error)
}

// Service is an authenticated remote provider.
type Service interface {
	// Authenticate performs OAuth or API key authentication with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// Name returns the name of the service
	Name() string
}

// OAuthService extends [Service] for providers that authenticate with the authorization code flow.
type OAuthService interface {
	Service
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
	// Token returns the current, possibly refreshed, token so it can be persisted.
	Token() (*oauth2.Token, error)
}

// Playlist represents a playlist's metadata
type Playlist struct {
	ID          string
	Name        string
	Description string
	Owner       string
	TrackCount  int
	Public      bool
	SnapshotID  string
}
