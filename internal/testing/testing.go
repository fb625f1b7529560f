// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/services"
	"github.com/desertthunder/plx/internal/shared"
)

// WriteCall records one [MockCatalog.WritePlaylistTracks] call
type WriteCall struct {
	PlaylistID string
	URIs       []string
}

// RemoveCall records one [MockCatalog.RemoveTrack] call
type RemoveCall struct {
	PlaylistID string
	URI        string
}

// MockCatalog is an in-memory [services.Catalog].
//
// Writes mutate Playlists so a later read sees them. Tracks written by uri are resolved against
// every track the mock has been seeded with.
type MockCatalog struct {
	mu sync.Mutex

	Playlists map[string][]models.Track
	Names     map[string]string
	Liked     []models.Track
	Results   map[string][]models.Track // search results keyed by query
	Features  map[string]models.Attributes

	ListErr     map[string]error // per playlist id
	LikedErr    error
	SearchErr   error
	WriteErr    error
	RemoveErr   error
	FeaturesErr error

	Writes        []WriteCall
	Removals      []RemoveCall
	Queries       []string
	FeatureCalls  int
	ListCalls     map[string]int
	OnListStarted func(playlistID string) // called before each playlist read
}

// NewMockCatalog creates a catalog seeded with playlists
func NewMockCatalog(playlists map[string][]models.Track) *MockCatalog {
	if playlists == nil {
		playlists = make(map[string][]models.Track)
	}
	return &MockCatalog{
		Playlists: playlists,
		Names:     make(map[string]string),
		Results:   make(map[string][]models.Track),
		Features:  make(map[string]models.Attributes),
		ListErr:   make(map[string]error),
		ListCalls: make(map[string]int),
	}
}

func (m *MockCatalog) ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if m.OnListStarted != nil {
		m.OnListStarted(playlistID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls[playlistID]++
	if err := m.ListErr[playlistID]; err != nil {
		return nil, err
	}
	tracks, ok := m.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return slices.Clone(tracks), nil
}

func (m *MockCatalog) ListLikedSongs(ctx context.Context) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LikedErr != nil {
		return nil, m.LikedErr
	}
	return slices.Clone(m.Liked), nil
}

func (m *MockCatalog) SearchAlternateVersions(ctx context.Context, query string, scope models.VersionScope) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return slices.Clone(m.Results[query]), nil
}

func (m *MockCatalog) WritePlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	for _, uri := range uris {
		if strings.HasPrefix(uri, models.LocalURIPrefix) {
			return fmt.Errorf("%w: %s", shared.ErrLocalTrackSkipped, uri)
		}
	}
	m.Writes = append(m.Writes, WriteCall{PlaylistID: playlistID, URIs: slices.Clone(uris)})

	index := m.index()
	tracks := make([]models.Track, 0, len(uris))
	for _, uri := range uris {
		if t, ok := index[uri]; ok {
			tracks = append(tracks, t)
		} else {
			tracks = append(tracks, models.Track{URI: uri})
		}
	}
	m.Playlists[playlistID] = tracks
	return nil
}

func (m *MockCatalog) RemoveTrack(ctx context.Context, playlistID, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	m.Removals = append(m.Removals, RemoveCall{PlaylistID: playlistID, URI: uri})
	m.Playlists[playlistID] = slices.DeleteFunc(m.Playlists[playlistID], func(t models.Track) bool {
		return t.URI == uri
	})
	return nil
}

func (m *MockCatalog) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]models.Attributes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeatureCalls++
	if m.FeaturesErr != nil {
		return nil, m.FeaturesErr
	}
	out := make(map[string]models.Attributes, len(trackIDs))
	for _, id := range trackIDs {
		if a, ok := m.Features[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (m *MockCatalog) GetPlaylist(ctx context.Context, playlistID string) (*services.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tracks, ok := m.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	name := m.Names[playlistID]
	if name == "" {
		name = playlistID
	}
	return &services.Playlist{ID: playlistID, Name: name, TrackCount: len(tracks)}, nil
}

func (m *MockCatalog) GetPlaylists(ctx context.Context) ([]services.Playlist, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.Playlists))
	for id := range m.Playlists {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	slices.Sort(ids)

	out := make([]services.Playlist, 0, len(ids))
	for _, id := range ids {
		p, err := m.GetPlaylist(context.Background(), id)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// URIs returns the current uri sequence of a playlist
func (m *MockCatalog) URIs(playlistID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.URIs(m.Playlists[playlistID])
}

func (m *MockCatalog) index() map[string]models.Track {
	index := make(map[string]models.Track)
	add := func(tracks []models.Track) {
		for _, t := range tracks {
			if _, ok := index[t.URI]; !ok {
				index[t.URI] = t
			}
		}
	}
	for _, tracks := range m.Playlists {
		add(tracks)
	}
	add(m.Liked)
	for _, tracks := range m.Results {
		add(tracks)
	}
	return index
}

// NewTestDB opens an in-memory database with foreign keys on and migrations applied.
// The database is closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
