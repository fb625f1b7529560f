package shared

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestHelpers(t *testing.T) {
	t.Run("GenerateID is unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 100 {
			id := GenerateID()
			if seen[id] {
				t.Fatalf("duplicate id %s", id)
			}
			seen[id] = true
		}
	})

	t.Run("GenerateState", func(t *testing.T) {
		a, err := GenerateState()
		if err != nil {
			t.Fatalf("GenerateState failed: %v", err)
		}
		b, _ := GenerateState()
		if a == b || len(a) < 16 {
			t.Errorf("expected distinct, non-trivial states, got %q and %q", a, b)
		}
	})

	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.DebugLevel)

		WithLogger(logger, "config", "abc").Debug("hello")

		if !strings.Contains(buf.String(), "config=abc") {
			t.Errorf("expected field in output, got %q", buf.String())
		}
	})

	t.Run("browserCommand", func(t *testing.T) {
		tests := []struct {
			goos, override string
			want           []string
			wantErr        bool
		}{
			{"darwin", "", []string{"open"}, false},
			{"linux", "", []string{"xdg-open"}, false},
			{"windows", "", []string{"rundll32", "url.dll,FileProtocolHandler"}, false},
			{"linux", "firefox --new-tab", []string{"firefox", "--new-tab"}, false},
			{"plan9", "", nil, true},
		}
		for _, tt := range tests {
			got, err := browserCommand(tt.goos, tt.override)
			if (err != nil) != tt.wantErr {
				t.Fatalf("%s: unexpected error %v", tt.goos, err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("%s %q: expected %v, got %v", tt.goos, tt.override, tt.want, got)
			}
		}
	})
}
