// Package httpapi exposes the analysis pipeline over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"ecg-quality/internal/analysis"
	"ecg-quality/internal/metrics"
	"ecg-quality/internal/version"
)

const (
	requestIDHeader = "X-Request-ID"
	// formOverhead is the multipart slack allowed on top of the file limit.
	formOverhead = 1 << 20
)

// Options configure the HTTP surface.
type Options struct {
	AnalyzeTimeout time.Duration
	CORSOrigins    []string
	// MaxUploadBytes caps the file part; zero disables the body limit.
	MaxUploadBytes int64
}

// Server routes API requests to an Analyzer.
type Server struct {
	analyzer *analysis.Analyzer
	metrics  *metrics.Metrics
	opts     Options
	logger   zerolog.Logger
}

// New constructs a Server. m may be nil.
func New(analyzer *analysis.Analyzer, m *metrics.Metrics, opts Options, logger zerolog.Logger) *Server {
	return &Server{
		analyzer: analyzer,
		metrics:  m,
		opts:     opts,
		logger:   logger.With().Str("component", "httpapi").Logger(),
	}
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/api/health", s.metrics.WrapHandler("/api/health", http.HandlerFunc(s.health))).Methods(http.MethodGet)
	r.Handle("/api/analyze", s.metrics.WrapHandler("/api/analyze", http.HandlerFunc(s.analyze))).Methods(http.MethodPost)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.Use(requestID)

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.opts.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
		handlers.AllowCredentials(),
	)
	return handlers.LoggingHandler(s.logger, cors(r))
}

type ctxKey struct{}

// requestID tags every request with an id, reusing the caller's when given.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "ecgqa",
		"version": version.Version,
	})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With().Str("request_id", requestIDFrom(r.Context())).Logger()

	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+formOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("file too large, maximum size: %dMB", s.opts.MaxUploadBytes>>20))
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "expected multipart/form-data with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	params, err := parseParams(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if s.opts.AnalyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.AnalyzeTimeout)
		defer cancel()
	}

	rep, err := s.analyzer.AnalyzeUpload(ctx, file, header.Filename, params)
	if err != nil {
		status, detail := errorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("file", header.Filename).Msg("analysis failed")
		} else {
			logger.Info().Err(err).Str("file", header.Filename).Msg("analysis rejected")
		}
		s.writeError(w, r, status, detail)
		return
	}

	s.writeJSON(w, r, http.StatusOK, rep)
}

// parseParams reads the optional analysis fields of the form.
func parseParams(r *http.Request) (analysis.Params, error) {
	var p analysis.Params
	p.Channel = strings.TrimSpace(r.FormValue("channel"))

	if v := strings.TrimSpace(r.FormValue("duration")); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
			return p, fmt.Errorf("invalid duration %q", v)
		}
		p.Duration = &d
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"sampling_rate", &p.SamplingRate},
		{"window_seconds", &p.WindowSeconds},
		{"msqi_good", &p.MSQIGood},
	}
	for _, f := range floats {
		v := strings.TrimSpace(r.FormValue(f.name))
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return p, fmt.Errorf("invalid %s %q", f.name, v)
		}
		if parsed <= 0 {
			return p, fmt.Errorf("%s must be positive, got %s", f.name, v)
		}
		*f.dst = parsed
	}

	if v := strings.TrimSpace(r.FormValue("include_signals")); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("invalid include_signals %q", v)
		}
		p.IncludeSignals = include
	}
	return p, nil
}

func errorStatus(err error) (int, string) {
	switch kind := analysis.KindOf(err); {
	case kind == analysis.KindTooLarge:
		return http.StatusRequestEntityTooLarge, err.Error()
	case kind != 0:
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "analysis timed out"
	default:
		return http.StatusInternalServerError, "internal error while analysing the recording"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.logger.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Int("status", status).Msg("encode response")
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"detail":"internal error while encoding the response"}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	s.writeJSON(w, r, status, map[string]string{"detail": detail})
}
