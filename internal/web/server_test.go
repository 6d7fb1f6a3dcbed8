package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/tidy/internal/history"
	"github.com/JonMunkholm/tidy/internal/tabular"
)

const sample = "ID Client;Nom;Age;Actif\n1;Dupont;34;Oui\n2;Martin;n/a;non\n3;Bad\n;;;\n"

func newTestServer(t *testing.T, store RunStore, maxBody int64) *Server {
	t.Helper()
	n, err := tabular.NewNormalizer(tabular.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if maxBody == 0 {
		maxBody = 1 << 20
	}
	return NewServer(Options{
		Normalizer:    n,
		History:       store,
		MaxBody:       maxBody,
		MaxConcurrent: 2,
		MaxWait:       50 * time.Millisecond,
	})
}

func openHistory(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestHandleNormalize(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := do(s, http.MethodPost, "/api/normalize", sample)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}

	headers := map[string]string{
		"X-Rows-Read":      "4",
		"X-Rows-Malformed": "1",
		"X-Rows-Dropped":   "1",
		"X-Rows-Written":   "2",
	}
	for name, want := range headers {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if rec.Header().Get("X-Run-ID") == "" {
		t.Error("X-Run-ID header missing")
	}

	want := "id_client;nom;age;actif\n1;Dupont;34;true\n2;Martin;;false\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestHandleNormalize_DelimiterOverride(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := do(s, http.MethodPost, "/api/normalize?in_delim=,&out_delim=tab", "A,B\n1,x\n")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got, want := rec.Body.String(), "a\tb\n1\tx\n"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestHandleNormalize_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		maxBody    int64
		wantStatus int
		wantCode   string
	}{
		{"duplicate columns", "/api/normalize", "Nom;nom\na;b\n", 0, http.StatusUnprocessableEntity, "SCH001"},
		{"empty body", "/api/normalize", "", 0, http.StatusBadRequest, "CSV001"},
		{"bad delimiter", "/api/normalize?in_delim=ab", "a\n", 0, http.StatusBadRequest, "CFG001"},
		{"bad encoding", "/api/normalize?encoding=klingon", "a\n", 0, http.StatusBadRequest, "CFG001"},
		{"too large", "/api/normalize", sample, 16, http.StatusRequestEntityTooLarge, "REQ001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil, tt.maxBody)
			rec := do(s, http.MethodPost, tt.target, tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			resp := decodeError(t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if resp.Message == "" || resp.Action == "" {
				t.Errorf("error body missing message or action: %+v", resp)
			}
		})
	}
}

func TestHandleNormalize_Busy(t *testing.T) {
	s := newTestServer(t, nil, 0)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := s.limiter.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
	}
	defer func() {
		s.limiter.Release()
		s.limiter.Release()
	}()

	rec := do(s, http.MethodPost, "/api/normalize", sample)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if resp := decodeError(t, rec); resp.Code != "REQ002" {
		t.Errorf("code = %q, want REQ002", resp.Code)
	}
}

func TestHandleHistory(t *testing.T) {
	store := openHistory(t)
	s := newTestServer(t, store, 0)

	for i := 0; i < 3; i++ {
		if rec := do(s, http.MethodPost, "/api/normalize", sample); rec.Code != http.StatusOK {
			t.Fatalf("normalize status = %d", rec.Code)
		}
	}

	rec := do(s, http.MethodGet, "/api/history?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		Runs []history.Run `json:"runs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(resp.Runs))
	}
	run := resp.Runs[0]
	if run.Kind != history.KindNormalize || run.RowsIn != 4 || run.RowsOut != 2 || run.RowsMalformed != 1 {
		t.Errorf("run = %+v", run)
	}
}

func TestHandleHistory_Disabled(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := do(s, http.MethodGet, "/api/history", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "REQ004" {
		t.Errorf("code = %q, want REQ004", resp.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := do(s, http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status  string        `json:"status"`
		Limiter LimiterStatus `json:"limiter"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Limiter.MaxConcurrent != 2 {
		t.Errorf("health = %+v", resp)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestShutdown_NotStarted(t *testing.T) {
	s := newTestServer(t, nil, 0)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
