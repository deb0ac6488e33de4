package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func fakeGitHub(t *testing.T, userStatus int, userBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(userStatus)
		w.Write([]byte(userBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testProvider(srv *httptest.Server) *GitHubProvider {
	return newGitHubProvider("id", "secret", "http://localhost/auth/github/callback", oauth2.Endpoint{
		AuthURL:  srv.URL + "/login/oauth/authorize",
		TokenURL: srv.URL + "/login/oauth/access_token",
	}, srv.URL+"/user")
}

func TestAuthURL(t *testing.T) {
	p := NewGitHubProvider("my-client", "secret", "http://localhost/cb")
	u, err := url.Parse(p.AuthURL("state-123"))
	if err != nil {
		t.Fatalf("AuthURL() not a URL: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "my-client" || q.Get("state") != "state-123" {
		t.Errorf("AuthURL() query = %v", q)
	}
	if !strings.Contains(q.Get("scope"), "read:user") {
		t.Errorf("AuthURL() scope = %q", q.Get("scope"))
	}
}

func TestExchange(t *testing.T) {
	srv := fakeGitHub(t, http.StatusOK, `{"id":42,"login":"octo","email":"o@example.com","avatar_url":"https://a/x.png"}`)
	user, err := testProvider(srv).Exchange(context.Background(), "code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if user.ID != 42 || user.Login != "octo" || user.AvatarURL != "https://a/x.png" {
		t.Errorf("Exchange() = %+v", user)
	}
}

func TestExchange_Errors(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
	}{
		"api error":    {http.StatusInternalServerError, ``},
		"bad json":     {http.StatusOK, `{`},
		"zero user id": {http.StatusOK, `{"login":"ghost"}`},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := fakeGitHub(t, tt.status, tt.body)
			if _, err := testProvider(srv).Exchange(context.Background(), "code"); err == nil {
				t.Error("Exchange() should fail")
			}
		})
	}
}
