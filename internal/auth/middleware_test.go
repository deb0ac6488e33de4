package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func echoSubject() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := SubjectFromContext(r.Context())
		u, _ := UserIDFromContext(r.Context())
		w.Write([]byte(s + "|" + u))
	})
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	userToken, _ := ts.Generate("user-1")
	clientToken, _ := ts.Generate(ClientSubject("c1"))

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: userToken})
		}, http.StatusOK, "user-1|user-1"},
		{"bearer", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+userToken)
		}, http.StatusOK, "user-1|user-1"},
		{"client bearer has no user", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+clientToken)
		}, http.StatusOK, "client:c1|"},
		{"malformed header", func(r *http.Request) {
			r.Header.Set("Authorization", "Token "+userToken)
		}, http.StatusUnauthorized, ""},
		{"bad cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: "junk"})
		}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			RequireAuth(ts)(echoSubject()).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate("user-1")

	rec := httptest.NewRecorder()
	OptionalAuth(ts)(echoSubject()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "|" {
		t.Errorf("anonymous: %d %q", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	OptionalAuth(ts)(echoSubject()).ServeHTTP(rec, req)
	if rec.Body.String() != "user-1|user-1" {
		t.Errorf("authenticated: %q", rec.Body.String())
	}
}
