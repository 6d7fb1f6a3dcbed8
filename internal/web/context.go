package web

import (
	"net/http"

	"github.com/JonMunkholm/tidy/internal/logging"
)

// withRequestMetadata tags the request context with a fresh run ID. The ID
// is returned for response headers and the history ledger.
func withRequestMetadata(r *http.Request) (*http.Request, string) {
	runID := logging.NewRunID()
	return r.WithContext(logging.WithRunID(r.Context(), runID)), runID
}

// requestSource labels a run recorded from an HTTP request.
func requestSource(r *http.Request) string {
	return "http:" + r.RemoteAddr // Already processed by chi middleware.RealIP
}
