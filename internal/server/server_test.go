package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/plx/internal/shared"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"access","refresh_token":"refresh","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func oauthConfig(tokenURL, redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  redirect,
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example.com/authorize", TokenURL: tokenURL},
	}
}

func TestOAuthHandler(t *testing.T) {
	tokens := tokenServer(t)

	tests := []struct {
		name    string
		query   string
		status  int
		wantErr bool
	}{
		{name: "success", query: "state=s1&code=good-code", status: http.StatusOK},
		{name: "state mismatch", query: "state=other&code=good-code", status: http.StatusBadRequest, wantErr: true},
		{name: "denied", query: "state=s1&error=access_denied", status: http.StatusBadRequest, wantErr: true},
		{name: "exchange failure", query: "state=s1&code=bad-code", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOAuthHandler(oauthConfig(tokens.URL, "http://127.0.0.1:3000/callback"), "s1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+tt.query, nil))

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}

			result := <-h.Result()
			if tt.wantErr {
				if !errors.Is(result.Err, shared.ErrAuthFailed) {
					t.Errorf("expected ErrAuthFailed, got %v", result.Err)
				}
				return
			}
			if result.Err != nil || result.Token == nil || result.Token.AccessToken != "access" {
				t.Errorf("unexpected result %+v", result)
			}
		})
	}

	t.Run("second callback rejected", func(t *testing.T) {
		h := NewOAuthHandler(oauthConfig(tokens.URL, ""), "s1")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=good-code", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=good-code", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected replay to be rejected, got %d", rec.Code)
		}
	})
}

func TestCallbackPath(t *testing.T) {
	tests := map[string]string{
		"http://127.0.0.1:3000/callback":      "/callback",
		"http://localhost:8888/auth/spotify": "/auth/spotify",
		"http://localhost:8888":              "/callback",
		"":                                   "/callback",
	}
	for in, want := range tests {
		if got := CallbackPath(in); got != want {
			t.Errorf("CallbackPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("outer"), mw("inner"))
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			order = append(order, "handler")
		}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
		if strings.Join(order, ",") != "outer,inner,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

type fakeOAuth struct {
	config *oauth2.Config
}

func (f *fakeOAuth) Authenticate(context.Context, map[string]string) error { return nil }
func (f *fakeOAuth) Name() string { return "fake" }
func (f *fakeOAuth) GetAuthURL(state string) string { return f.config.AuthCodeURL(state) }
func (f *fakeOAuth) GetOAuthConfig() *oauth2.Config { return f.config }
func (f *fakeOAuth) OAuthenticate(context.Context, *oauth2.Token) error { return nil }
func (f *fakeOAuth) Token() (*oauth2.Token, error) { return nil, nil }

func TestAuthorize(t *testing.T) {
	tokens := tokenServer(t)
	logger := shared.NewLogger(io.Discard)

	listen := func(t *testing.T) net.Listener {
		t.Helper()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		return ln
	}

	t.Run("completes on callback", func(t *testing.T) {
		ln := listen(t)
		srv := &fakeOAuth{config: oauthConfig(tokens.URL, "http://"+ln.Addr().String()+"/callback")}

		open := func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			state := u.Query().Get("state")
			go func() {
				resp, err := http.Get("http://" + ln.Addr().String() + "/callback?code=good-code&state=" + url.QueryEscape(state))
				if err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		}

		var shown string
		token, err := Authorize(context.Background(), srv, AuthorizeOpts{
			Listener: ln, Open: open, OnURL: func(u string) { shown = u }, Logger: logger, Timeout: 5 * time.Second,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", token)
		}
		if !strings.HasPrefix(shown, "https://accounts.example.com/authorize") {
			t.Errorf("consent url not reported: %q", shown)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		ln := listen(t)
		srv := &fakeOAuth{config: oauthConfig(tokens.URL, "")}
		_, err := Authorize(context.Background(), srv, AuthorizeOpts{
			Listener: ln, Open: func(string) error { return nil }, Logger: logger, Timeout: 20 * time.Millisecond,
		})
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ln := listen(t)
		srv := &fakeOAuth{config: oauthConfig(tokens.URL, "")}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Authorize(ctx, srv, AuthorizeOpts{Listener: ln, Open: func(string) error { return nil }, Logger: logger})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
