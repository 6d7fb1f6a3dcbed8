package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/tidy/internal/apperr"
	"github.com/JonMunkholm/tidy/internal/config"
	"github.com/JonMunkholm/tidy/internal/history"
	"github.com/JonMunkholm/tidy/internal/logging"
	"github.com/JonMunkholm/tidy/internal/tabular"
)

// maxHistoryLimit caps the limit query parameter of the history endpoint.
const maxHistoryLimit = 500

// handleHealth reports liveness and limiter usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"limiter": s.limiter.Status(),
		"history": s.opts.History != nil,
	})
}

// handleNormalize cleans the CSV request body and returns the result.
//
// Query parameters in_delim, out_delim and encoding override the server's
// defaults for this request.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	r, runID := withRequestMetadata(r)
	ctx := r.Context()

	n, err := s.requestNormalizer(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, apperr.ErrBusy) {
			w.Header().Set("Retry-After", "5")
			respondError(w, r, err, http.StatusTooManyRequests)
			return
		}
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	defer s.limiter.Release()

	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBody)
	var out bytes.Buffer
	stats, err := n.Run(ctx, body, &out)
	if err != nil {
		status, err := classifyNormalizeError(err)
		respondError(w, r, err, status)
		return
	}

	if s.opts.History != nil {
		run := history.NormalizeRun(requestSource(r), "response", started, stats)
		run.ID = runID
		if _, err := s.opts.History.Record(ctx, run); err != nil {
			logging.FromContext(ctx).Warn("failed to record run", "error", err)
		}
	}

	h := w.Header()
	h.Set("Content-Type", "text/csv; charset=utf-8")
	h.Set("X-Run-ID", runID)
	h.Set("X-Rows-Read", strconv.Itoa(stats.RowsRead))
	h.Set("X-Rows-Malformed", strconv.Itoa(stats.RowsMalformed))
	h.Set("X-Rows-Dropped", strconv.Itoa(stats.RowsDropped))
	h.Set("X-Rows-Written", strconv.Itoa(stats.RowsWritten))
	w.WriteHeader(http.StatusOK)
	if _, err := out.WriteTo(w); err != nil {
		logging.FromContext(ctx).Warn("failed to write response", "error", err)
	}
}

// requestNormalizer applies the request's overrides to the server's options.
func (s *Server) requestNormalizer(r *http.Request) (*tabular.Normalizer, error) {
	q := r.URL.Query()
	if q.Get("in_delim") == "" && q.Get("out_delim") == "" && q.Get("encoding") == "" {
		return s.opts.Normalizer, nil
	}

	opts := s.opts.Normalizer.Options()
	if v := q.Get("in_delim"); v != "" {
		d, err := config.ParseDelimiter(v)
		if err != nil {
			return nil, fmt.Errorf("%w: in_delim: %v", apperr.ErrInvalidConfig, err)
		}
		opts.InputDelimiter = d
	}
	if v := q.Get("out_delim"); v != "" {
		d, err := config.ParseDelimiter(v)
		if err != nil {
			return nil, fmt.Errorf("%w: out_delim: %v", apperr.ErrInvalidConfig, err)
		}
		opts.OutputDelimiter = d
	}
	if v := q.Get("encoding"); v != "" {
		opts.Encoding = v
	}

	n, err := tabular.NewNormalizer(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidConfig, err)
	}
	return n, nil
}

// classifyNormalizeError picks the response status for a failed
// normalization. Oversized bodies are reported as apperr.ErrTooLarge.
func classifyNormalizeError(err error) (int, error) {
	var maxBytesErr *http.MaxBytesError
	var schemaErr *tabular.SchemaError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, fmt.Errorf("%w: limit is %d bytes", apperr.ErrTooLarge, maxBytesErr.Limit)
	case errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity, err
	case errors.Is(err, tabular.ErrNoHeader):
		return http.StatusBadRequest, err
	default:
		return http.StatusInternalServerError, err
	}
}

// handleHistory lists recorded runs, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		respondError(w, r, apperr.ErrHistoryDisabled, http.StatusNotFound)
		return
	}

	limit := parseIntParam(r, "limit", history.DefaultListLimit)
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	runs, err := s.opts.History.List(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
