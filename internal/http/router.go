package httpapi

import (
	"net/http"
	"strings"
	"time"

	"wisefido-discharge-board/internal/telemetry"

	"go.uber.org/zap"
)

const apiPrefix = "/discharge/api/v1"

// Router 使用标准库 http.ServeMux; every route is timed under its registered pattern.
type Router struct {
	mux     *http.ServeMux
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

func NewRouter(metrics *telemetry.Metrics, logger *zap.Logger) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		metrics: metrics,
		logger:  logger,
	}
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok("up"))
	})
	return r
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, r.instrument(pattern, h))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (r *Router) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, req)
		r.metrics.RecordHTTPRequest(req.Context(), req.Method, route, rec.status, time.Since(start))
	})
}

func methodIs(w http.ResponseWriter, req *http.Request, method string) bool {
	if req.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// RegisterBoardRoutes board and indicators
func (r *Router) RegisterBoardRoutes(h *BoardHandler) {
	r.Handle(apiPrefix+"/board", func(w http.ResponseWriter, req *http.Request) {
		if !methodIs(w, req, http.MethodGet) {
			return
		}
		h.GetBoard(w, req)
	})
	r.Handle(apiPrefix+"/indicators", func(w http.ResponseWriter, req *http.Request) {
		if !methodIs(w, req, http.MethodGet) {
			return
		}
		h.GetIndicators(w, req)
	})
	r.Handle(apiPrefix+"/indicators/history", func(w http.ResponseWriter, req *http.Request) {
		if !methodIs(w, req, http.MethodGet) {
			return
		}
		h.GetHistory(w, req)
	})
}

// RegisterRequestRoutes discharge requests and patient forecasts
func (r *Router) RegisterRequestRoutes(h *RequestHandler) {
	r.Handle(apiPrefix+"/requests", func(w http.ResponseWriter, req *http.Request) {
		if !methodIs(w, req, http.MethodPost) {
			return
		}
		h.Create(w, req)
	})
	r.Handle(apiPrefix+"/requests/pending", func(w http.ResponseWriter, req *http.Request) {
		if !methodIs(w, req, http.MethodGet) {
			return
		}
		h.ListPending(w, req)
	})

	// requests/{id}/complete, requests/{id}/cancel
	r.Handle(apiPrefix+"/requests/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, apiPrefix+"/requests/")
		id, action, ok := strings.Cut(rest, "/")
		if !ok || id == "" || strings.Contains(action, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch action {
		case "complete":
			if methodIs(w, req, http.MethodPost) {
				h.Complete(w, req, id)
			}
		case "cancel":
			if methodIs(w, req, http.MethodPost) {
				h.Cancel(w, req, id)
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	// patients/{id}/expected-discharge
	r.Handle(apiPrefix+"/patients/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, apiPrefix+"/patients/")
		id, action, ok := strings.Cut(rest, "/")
		if !ok || id == "" || action != "expected-discharge" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if methodIs(w, req, http.MethodPut) {
			h.SetExpectedDischarge(w, req, id)
		}
	})
}
