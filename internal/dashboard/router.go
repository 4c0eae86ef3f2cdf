package dashboard

import (
	"net/http"
	"time"

	"github.com/siyabendoezdemir/m323/pkg/health"
	"github.com/siyabendoezdemir/m323/pkg/metrics"
	"github.com/siyabendoezdemir/m323/pkg/middleware"
	"github.com/siyabendoezdemir/m323/pkg/ratelimit"
)

// RouterOptions configures the middleware around the dashboard routes.
// Zero values disable the corresponding layer.
type RouterOptions struct {
	AllowOrigins    []string
	RequestTimeout  time.Duration
	Limiter         ratelimit.Limiter
	RateLimitWindow time.Duration
	Metrics         *metrics.Metrics
}

// NewRouter builds the dashboard HTTP handler with health probes and the
// full middleware chain.
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → RateLimit → Compress → Timeout → Metrics → mux
//
// Metrics sits directly on the mux so it sees the matched route pattern.
func NewRouter(h *Handler, checker *health.Checker, opts RouterOptions) (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", checker.ReadyHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	h.Register(mux)

	compress, err := middleware.Compress()
	if err != nil {
		return nil, err
	}

	var chain http.Handler = mux
	if opts.Metrics != nil {
		chain = middleware.Metrics(opts.Metrics)(chain)
	}
	if opts.RequestTimeout > 0 {
		chain = middleware.Timeout(opts.RequestTimeout)(chain)
	}
	chain = compress(chain)
	if opts.Limiter != nil {
		var onLimited func()
		if opts.Metrics != nil {
			onLimited = opts.Metrics.RateLimitedTotal.Inc
		}
		chain = middleware.RateLimit(opts.Limiter, opts.RateLimitWindow, onLimited)(chain)
	}
	if len(opts.AllowOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(opts.AllowOrigins))(chain)
	}
	chain = middleware.RequestID(chain)

	return chain, nil
}
