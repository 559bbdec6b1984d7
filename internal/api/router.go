package api

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/middleware"
)

// NewRouter builds the service's HTTP handler.
//
// Route table:
//
//	GET    /ai/            → list results
//	POST   /ai/            → create result
//	GET    /ai/{id}        → get result
//	GET    /health         → process health
//	GET    /health/live    → liveness probe
//	GET    /health/ready   → readiness probe
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → CORS → Timeout → mux
//
// m may be nil, which drops the Metrics middleware.
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux.HandleFunc("GET /ai/{$}", h.List)
	mux.HandleFunc("GET /ai", h.List)
	mux.HandleFunc("POST /ai/{$}", h.Create)
	mux.HandleFunc("POST /ai", h.Create)
	mux.HandleFunc("GET /ai/{id}", h.Get)

	var chain http.Handler = mux
	if requestTimeout > 0 {
		chain = middleware.Timeout(requestTimeout)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}
