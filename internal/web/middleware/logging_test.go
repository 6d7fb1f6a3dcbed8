package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/JonMunkholm/tidy/internal/logging"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&buf, "debug", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantLevel string
	}{
		{"ok", http.StatusOK, "hello", "level=INFO"},
		{"client error", http.StatusTooManyRequests, "", "level=WARN"},
		{"server error", http.StatusInternalServerError, "boom", "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)

			h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/normalize", nil))

			out := buf.String()
			for _, want := range []string{
				tt.wantLevel,
				"msg=request",
				"path=/api/normalize",
				"status=" + strconv.Itoa(tt.status),
				"bytes=" + strconv.Itoa(len(tt.body)),
			} {
				if !strings.Contains(out, want) {
					t.Errorf("log %q missing %q", out, want)
				}
			}
		})
	}
}

func TestResponseWriter_ImplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	ww.Write([]byte("abc"))
	ww.WriteHeader(http.StatusTeapot)

	if ww.status != http.StatusOK {
		t.Errorf("status = %d, want 200 after implicit header", ww.status)
	}
	if ww.bytes != 3 {
		t.Errorf("bytes = %d, want 3", ww.bytes)
	}
}
