package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// LocalURIPrefix marks tracks stored only on the user's device.
const LocalURIPrefix = "spotify:local:"

// DatePrecision records how much of a release date the catalog reported.
type DatePrecision int

const (
	PrecisionUnknown DatePrecision = iota
	PrecisionYear
	PrecisionMonth
	PrecisionDay
)

// ReleaseDate is a calendar date whose month and day may be missing.
//
// Missing parts are treated as the first month/day for ordering, so "2020" sorts with 2020-01-01.
type ReleaseDate struct {
	Year      int
	Month     int
	Day       int
	Precision DatePrecision
}

// ParseReleaseDate accepts "YYYY", "YYYY-MM" and "YYYY-MM-DD". Anything else yields an unknown date.
func ParseReleaseDate(s string) ReleaseDate {
	s = strings.TrimSpace(s)
	if s == "" {
		return ReleaseDate{}
	}

	parts := strings.Split(s, "-")
	if len(parts) > 3 {
		return ReleaseDate{}
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return ReleaseDate{}
		}
		nums[i] = n
	}

	rd := ReleaseDate{Year: nums[0], Month: 1, Day: 1, Precision: PrecisionYear}
	if rd.Year == 0 {
		return ReleaseDate{}
	}
	if len(nums) > 1 {
		if nums[1] < 1 || nums[1] > 12 {
			return ReleaseDate{}
		}
		rd.Month, rd.Precision = nums[1], PrecisionMonth
	}
	if len(nums) > 2 {
		if nums[2] < 1 || nums[2] > 31 {
			return ReleaseDate{}
		}
		rd.Day, rd.Precision = nums[2], PrecisionDay
	}
	return rd
}

// Known reports whether the date carries at least a year.
func (d ReleaseDate) Known() bool {
	return d.Precision != PrecisionUnknown
}

// Time returns the padded date at midnight UTC. Unknown dates return the zero time.
func (d ReleaseDate) Time() time.Time {
	if !d.Known() {
		return time.Time{}
	}
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// Compare orders two known dates; callers handle unknown dates themselves.
func (d ReleaseDate) Compare(o ReleaseDate) int {
	return d.Time().Compare(o.Time())
}

// Equal compares the padded dates.
func (d ReleaseDate) Equal(o ReleaseDate) bool {
	if d.Known() != o.Known() {
		return false
	}
	return d.Compare(o) == 0
}

// String renders the date at its original precision.
func (d ReleaseDate) String() string {
	switch d.Precision {
	case PrecisionYear:
		return fmt.Sprintf("%04d", d.Year)
	case PrecisionMonth:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	case PrecisionDay:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	default:
		return ""
	}
}

func (d ReleaseDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *ReleaseDate) UnmarshalText(b []byte) error {
	*d = ParseReleaseDate(string(b))
	return nil
}

// Attributes holds externally supplied audio features. Nil means the value was never fetched.
type Attributes struct {
	Tempo        *float64 `json:"tempo,omitempty" yaml:"tempo,omitempty"`
	Energy       *float64 `json:"energy,omitempty" yaml:"energy,omitempty"`
	Danceability *float64 `json:"danceability,omitempty" yaml:"danceability,omitempty"`
	Valence      *float64 `json:"valence,omitempty" yaml:"valence,omitempty"`
}

// Track is an immutable snapshot of a catalog track as seen in a playlist or search result.
type Track struct {
	ID          string      `json:"id"`
	URI         string      `json:"uri"`
	Title       string      `json:"title"`
	Artists     []string    `json:"artists"`
	Album       string      `json:"album"`
	AlbumType   string      `json:"album_type,omitempty"`
	ReleaseDate ReleaseDate `json:"release_date"`
	DurationMS  int         `json:"duration_ms"`
	Attributes  Attributes  `json:"attributes"`
	Source      string      `json:"source,omitempty"` // playlist id the track was read from, or "liked"
}

// PrimaryArtist returns the first credited artist. Joined credits ("A, B") are split on commas.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	first, _, _ := strings.Cut(t.Artists[0], ",")
	return strings.TrimSpace(first)
}

// Artist joins every credited artist for display.
func (t Track) Artist() string {
	return strings.Join(t.Artists, ", ")
}

// IsLocal reports whether the track is a device-local file that the Web API cannot add to playlists.
func (t Track) IsLocal() bool {
	return strings.HasPrefix(t.URI, LocalURIPrefix)
}

// Key is shorthand for [Normalize].
func (t Track) Key() NormalizedKey {
	return Normalize(t)
}

func (t Track) String() string {
	return fmt.Sprintf("%s - %s", t.Artist(), t.Title)
}

// NormalizedKey identifies "the same song" across releases and re-uploads.
type NormalizedKey struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

func (k NormalizedKey) String() string {
	return k.Title + "|" + k.Artist
}

// Normalize derives the key from the title and primary artist. It is total over any Track value.
//
// The title is lowercased with everything except letters, digits and whitespace removed and runs of
// whitespace collapsed. The artist is lowercased and trimmed.
func Normalize(t Track) NormalizedKey {
	return NormalizedKey{
		Title:  normalizeTitle(t.Title),
		Artist: strings.ToLower(t.PrimaryArtist()),
	}
}

func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// URIs returns the uri sequence of tracks.
func URIs(tracks []Track) []string {
	uris := make([]string, len(tracks))
	for i, t := range tracks {
		uris[i] = t.URI
	}
	return uris
}
