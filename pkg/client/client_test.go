package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestSaveToken_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	if err := SaveToken(path, want); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token permissions: got %o, want 600", perm)
	}

	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("token: got %+v, want %+v", got, want)
	}
}

func TestLoadToken_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadToken(path); err == nil {
		t.Error("expected decode error, got nil")
	}
}

func TestAuthorize(t *testing.T) {
	dir := t.TempDir()
	cfg := &oauth2.Config{ClientID: "id"}

	t.Run("no token non-interactive", func(t *testing.T) {
		_, err := Authorize(context.Background(), cfg, filepath.Join(dir, "absent.json"), false)
		if !errors.Is(err, ErrNoToken) {
			t.Errorf("got %v, want ErrNoToken", err)
		}
	})

	t.Run("cached token", func(t *testing.T) {
		path := filepath.Join(dir, "token.json")
		if err := SaveToken(path, &oauth2.Token{AccessToken: "cached"}); err != nil {
			t.Fatal(err)
		}
		tok, err := Authorize(context.Background(), cfg, path, false)
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if tok.AccessToken != "cached" {
			t.Errorf("access token: got %q", tok.AccessToken)
		}
	})
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  bool
	}{
		{name: "success", query: "?state=s1&code=abc", wantCode: "abc"},
		{name: "wrong state", query: "?state=other&code=abc", wantErr: true},
		{name: "provider error", query: "?state=s1&error=access_denied", wantErr: true},
		{name: "missing code", query: "?state=s1", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			codeChan := make(chan string, 1)
			errChan := make(chan error, 1)
			handler := callbackHandler("s1", codeChan, errChan)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callbackPath+tc.query, nil))

			if tc.wantErr {
				if rec.Code != http.StatusBadRequest {
					t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
				}
				select {
				case <-errChan:
				default:
					t.Error("expected an error on errChan")
				}
				return
			}

			if rec.Code != http.StatusOK {
				t.Errorf("status: got %d, want %d", rec.Code, http.StatusOK)
			}
			select {
			case code := <-codeChan:
				if code != tc.wantCode {
					t.Errorf("code: got %q, want %q", code, tc.wantCode)
				}
			default:
				t.Error("expected a code on codeChan")
			}
		})
	}
}
