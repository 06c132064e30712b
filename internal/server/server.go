// Package server exposes the insight API over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/datalitbang/fenomena-insight/internal/resilience"
	"github.com/datalitbang/fenomena-insight/internal/service"
)

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins []string
	RateLimit      float64 // requests per second; 0 disables limiting
	RateBurst      int
}

// Server routes insight requests to the orchestrator.
type Server struct {
	orch    *service.Orchestrator
	limiter *rate.Limiter
	opts    Options
}

// New creates a Server.
func New(orch *service.Orchestrator, opts Options) *Server {
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = int(opts.RateLimit)
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Server{orch: orch, limiter: limiter, opts: opts}
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-Role", "X-User-Id", "X-Region-Id"},
		MaxAge:         300,
	}))
	r.Use(s.rateLimit)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/insights", s.handleInsights)
	})

	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "Kurangi frekuensi permintaan.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	caller, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller identity", "Sertakan identitas pengguna pada permintaan.")
		return
	}

	params, err := paramsFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "Periksa kembali parameter permintaan.")
		return
	}

	res, err := s.orch.GetInsights(r.Context(), caller, params)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if res.Partial {
		status = http.StatusPartialContent
	}
	writeJSON(w, status, res)
}

// principalFrom reads the already-authenticated identity forwarded by the
// gateway. Authentication itself happens upstream.
func principalFrom(r *http.Request) (service.Principal, bool) {
	role := r.Header.Get("X-User-Role")
	if role == "" {
		return service.Principal{}, false
	}
	return service.Principal{
		Role:     role,
		UserID:   r.Header.Get("X-User-Id"),
		RegionID: r.Header.Get("X-Region-Id"),
	}, true
}

func paramsFrom(r *http.Request) (service.Params, error) {
	q := r.URL.Query()
	params := service.Params{
		CategoryID:   q.Get("categoryId"),
		PeriodID:     q.Get("periodId"),
		RegionID:     q.Get("regionId"),
		PhenomenonID: q.Get("phenomenonId"),
		Page:         1,
		Limit:        0,
	}

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return params, errors.New("page must be an integer")
		}
		params.Page = page
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return params, errors.New("limit must be an integer")
		}
		params.Limit = limit
	}
	return params, nil
}

// writeServiceError maps orchestrator errors onto the response taxonomy.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidParam):
		writeError(w, http.StatusBadRequest, "invalid identifier parameter", "Periksa kembali parameter permintaan.")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "access denied", "Akun Anda tidak memiliki akses ke data yang diminta.")
	case errors.Is(err, service.ErrCountTimeout), errors.Is(err, service.ErrFetchTimeout):
		writeError(w, http.StatusGatewayTimeout, "analysis timed out", "Gunakan filter yang lebih spesifik atau kurangi jumlah fenomena.")
	case resilience.IsTransient(err):
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable", "Coba lagi beberapa saat.")
	default:
		correlationID := uuid.NewString()
		zap.L().Error("server: unclassified error",
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error", "Hubungi dukungan dengan kode: "+correlationID)
	}
}

type errorResponse struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, suggestion string) {
	writeJSON(w, status, errorResponse{Error: msg, Suggestion: suggestion})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}
