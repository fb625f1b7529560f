// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plx/internal/governor"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
	"github.com/sv4u/spotigo"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	writeBatchSize    = 100
	featuresBatchSize = 100
	searchLimit       = 10
	globalSearchLimit = 20
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	IsLocal    bool            `json:"is_local"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AlbumType   string `json:"album_type"`
	ReleaseDate string `json:"release_date"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is nil for removed
// episodes and unavailable items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

type page[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	SnapshotID  string              `json:"snapshot_id"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	URI         string              `json:"uri"`
}

type audioFeatures struct {
	ID           string  `json:"id"`
	Tempo        float64 `json:"tempo"`
	Energy       float64 `json:"energy"`
	Danceability float64 `json:"danceability"`
	Valence      float64 `json:"valence"`
}

// SpotifyService implements [Catalog] and [OAuthService] for the Spotify Web API.
type SpotifyService struct {
	config      *oauth2.Config
	token       *oauth2.Token
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	baseURL     string
	gate        *governor.Gate
	logger      *log.Logger
}

// Option customizes a [SpotifyService].
type Option func(*SpotifyService)

// WithGovernor routes every request through g. Services sharing a process should share one gate.
func WithGovernor(g *governor.Gate) Option {
	return func(s *SpotifyService) { s.gate = g }
}

// WithBaseURL points the service at another API root.
func WithBaseURL(u string) Option {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *SpotifyService) { s.logger = l }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...Option) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
			"user-library-read",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = shared.NewLogger(nil)
	}
	if s.gate == nil {
		s.gate = governor.New(governor.Options{Logger: s.logger})
	}
	return s, nil
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		token := &oauth2.Token{AccessToken: accessToken, RefreshToken: credentials["refresh_token"]}
		if exp, err := time.Parse(time.RFC3339, credentials["token_expiry"]); err == nil {
			token.Expiry = exp
		}
		return s.OAuthenticate(ctx, token)
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code in credentials", shared.ErrMissingCredentials)
}

// OAuthenticate installs token, refreshing it transparently when it expires.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrMissingCredentials)
	}
	s.token = token
	s.tokenSource = s.config.TokenSource(ctx, token)
	s.httpClient = oauth2.NewClient(ctx, s.tokenSource)
	return nil
}

// Token returns the current token, refreshing it first if it has expired.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.tokenSource == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return s.tokenSource.Token()
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 configuration for the callback handler.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// Gate returns the governor guarding this service.
func (s *SpotifyService) Gate() *governor.Gate {
	return s.gate
}

// doRequest performs an authenticated HTTP request to the Spotify API behind the governor.
//
// endpoint is either a path below the API root or an absolute "next" URL from a paged response.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	return s.gate.Do(ctx, func(ctx context.Context) error {
		return s.send(ctx, method, apiURL, payload, result)
	})
}

func (s *SpotifyService) send(ctx context.Context, method, apiURL string, payload []byte, result any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	s.logger.Debug("spotify request", "method", method, "url", apiURL)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &governor.RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Original:   newAPIError(resp),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}
	return nil
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date. Zero means the
// header was missing or unusable.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// PlaylistID extracts a playlist id from a bare id, a spotify: uri or an open.spotify.com URL.
func PlaylistID(idOrURL string) (string, error) {
	idOrURL = strings.TrimSpace(idOrURL)
	if idOrURL != "" && !strings.ContainsAny(idOrURL, ":/?") {
		return idOrURL, nil
	}
	id, err := spotigo.GetID(idOrURL, "playlist")
	if err != nil || id == "" {
		return "", fmt.Errorf("%w: invalid playlist id or url %q", shared.ErrInvalidArgument, idOrURL)
	}
	return id, nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]Playlist, error) {
	var all []Playlist
	next := "/me/playlists?limit=50"
	for next != "" {
		var resp page[SpotifySimplePlaylist]
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &resp); err != nil {
			return nil, err
		}
		for _, sp := range resp.Items {
			all = append(all, toPlaylist(sp))
		}
		next = nextURL(resp.Next)
	}
	return all, nil
}

// GetPlaylist retrieves a specific playlist by ID.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	id, err := PlaylistID(playlistID)
	if err != nil {
		return nil, err
	}

	var sp SpotifySimplePlaylist
	endpoint := fmt.Sprintf("/playlists/%s?fields=%s", id, url.QueryEscape("id,name,description,owner,public,snapshot_id,tracks.total,uri"))
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &sp); err != nil {
		return nil, notFound(err, id)
	}
	p := toPlaylist(sp)
	return &p, nil
}

// ListPlaylistTracks pages through a playlist. Unavailable items without a track are skipped.
func (s *SpotifyService) ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	id, err := PlaylistID(playlistID)
	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	next := fmt.Sprintf("/playlists/%s/tracks?limit=100", id)
	for next != "" {
		var resp page[SpotifyPlaylistTrack]
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &resp); err != nil {
			return nil, notFound(err, id)
		}
		for _, item := range resp.Items {
			if item.Track == nil || item.Track.URI == "" {
				continue
			}
			tracks = append(tracks, toTrack(*item.Track, id))
		}
		next = nextURL(resp.Next)
	}
	s.logger.Debug("listed playlist tracks", "playlist", id, "count", len(tracks))
	return tracks, nil
}

// ListLikedSongs pages through the user's saved tracks.
func (s *SpotifyService) ListLikedSongs(ctx context.Context) ([]models.Track, error) {
	var tracks []models.Track
	next := "/me/tracks?limit=50"
	for next != "" {
		var resp page[SpotifyPlaylistTrack]
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			if item.Track == nil || item.Track.URI == "" {
				continue
			}
			tracks = append(tracks, toTrack(*item.Track, string(models.SourceLiked)))
		}
		next = nextURL(resp.Next)
	}
	return tracks, nil
}

// SearchAlternateVersions runs a track search. Global scope asks for a wider result page.
func (s *SpotifyService) SearchAlternateVersions(ctx context.Context, query string, scope models.VersionScope) ([]models.Track, error) {
	limit := searchLimit
	if scope == models.ScopeGlobal {
		limit = globalSearchLimit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Tracks page[SpotifyTrack] `json:"tracks"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(resp.Tracks.Items))
	for _, st := range resp.Tracks.Items {
		tracks = append(tracks, toTrack(st, ""))
	}
	return tracks, nil
}

// WritePlaylistTracks replaces the playlist contents: the first batch of 100 with PUT, the rest
// appended with POST. An empty list clears the playlist. Local file uris are rejected.
func (s *SpotifyService) WritePlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	id, err := PlaylistID(playlistID)
	if err != nil {
		return err
	}
	for _, u := range uris {
		if strings.HasPrefix(u, models.LocalURIPrefix) {
			return fmt.Errorf("%w: %s", shared.ErrLocalTrackSkipped, u)
		}
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", id)
	first := append([]string{}, uris[:min(len(uris), writeBatchSize)]...)
	if err := s.doRequest(ctx, http.MethodPut, endpoint, map[string][]string{"uris": first}, nil); err != nil {
		return notFound(err, id)
	}

	for start := writeBatchSize; start < len(uris); start += writeBatchSize {
		batch := uris[start:min(start+writeBatchSize, len(uris))]
		if err := s.doRequest(ctx, http.MethodPost, endpoint, map[string][]string{"uris": batch}, nil); err != nil {
			return notFound(err, id)
		}
	}
	s.logger.Info("wrote playlist", "playlist", id, "tracks", len(uris))
	return nil
}

// RemoveTrack removes every occurrence of uri from the playlist.
func (s *SpotifyService) RemoveTrack(ctx context.Context, playlistID, uri string) error {
	id, err := PlaylistID(playlistID)
	if err != nil {
		return err
	}
	body := map[string][]map[string]string{"tracks": {{"uri": uri}}}
	if err := s.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/playlists/%s/tracks", id), body, nil); err != nil {
		return notFound(err, id)
	}
	return nil
}

// AudioFeatures fetches tempo, energy, danceability and valence in batches of 100.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]models.Attributes, error) {
	out := make(map[string]models.Attributes, len(trackIDs))
	for start := 0; start < len(trackIDs); start += featuresBatchSize {
		batch := trackIDs[start:min(start+featuresBatchSize, len(trackIDs))]

		var resp struct {
			AudioFeatures []*audioFeatures `json:"audio_features"`
		}
		endpoint := "/audio-features?ids=" + url.QueryEscape(strings.Join(batch, ","))
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return out, err
		}
		for _, f := range resp.AudioFeatures {
			if f == nil || f.ID == "" {
				continue
			}
			out[f.ID] = models.Attributes{
				Tempo:        &f.Tempo,
				Energy:       &f.Energy,
				Danceability: &f.Danceability,
				Valence:      &f.Valence,
			}
		}
	}
	return out, nil
}

func toTrack(st SpotifyTrack, source string) models.Track {
	artists := make([]string, 0, len(st.Artists))
	for _, a := range st.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}
	return models.Track{
		ID:          st.ID,
		URI:         st.URI,
		Title:       st.Name,
		Artists:     artists,
		Album:       st.Album.Name,
		AlbumType:   st.Album.AlbumType,
		ReleaseDate: models.ParseReleaseDate(st.Album.ReleaseDate),
		DurationMS:  st.DurationMS,
		Source:      source,
	}
}

func toPlaylist(sp SpotifySimplePlaylist) Playlist {
	owner := sp.Owner.DisplayName
	if owner == "" {
		owner = sp.Owner.ID
	}
	return Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		Owner:       owner,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
		SnapshotID:  sp.SnapshotID,
	}
}

func nextURL(next *string) string {
	if next == nil {
		return ""
	}
	return *next
}

// notFound names the playlist in not-found errors.
func notFound(err error, playlistID string) error {
	if errors.Is(err, shared.ErrPlaylistNotFound) {
		return fmt.Errorf("%w (playlist %s)", err, playlistID)
	}
	return err
}
