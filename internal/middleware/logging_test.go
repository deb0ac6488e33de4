package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(Logger(logger))
	r.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/hello", nil))
	line := buf.String()
	assert.Contains(t, line, "level=INFO")
	assert.Contains(t, line, "status=418")
	assert.Contains(t, line, "bytes=15")
	assert.Contains(t, line, "path=/hello")
	assert.NotContains(t, line, `requestID=""`)

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Contains(t, buf.String(), "level=ERROR")
}

type fakeHTTPRecorder struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakeHTTPRecorder) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, method+" "+route+" "+http.StatusText(status))
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	rec := &fakeHTTPRecorder{}
	r := chi.NewRouter()
	r.Use(Metrics(rec))
	r.Get("/api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chi.URLParam(r, "id")))
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/runs/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Len(t, rec.seen, 3)
	assert.Equal(t, "GET /api/runs/{id} OK", rec.seen[0])
	assert.Equal(t, rec.seen[0], rec.seen[1])
	assert.True(t, strings.HasSuffix(rec.seen[2], "Not Found"), rec.seen[2])
}
