package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to make cross-origin requests. Empty
	// or the single entry "*" allows every origin.
	AllowOrigins []string

	// AllowMethods lists the HTTP methods clients may use in actual requests.
	// Defaults to "GET, POST, PUT, DELETE, OPTIONS" when empty.
	AllowMethods []string

	// AllowHeaders lists the request headers clients may send. The storefront
	// wiring must include its api_key auth header here. When empty, the
	// middleware echoes back Access-Control-Request-Headers from the
	// preflight.
	AllowHeaders []string

	// ExposeHeaders lists response headers the browser may read. Defaults to
	// RequestIDHeader so storefront clients can quote the correlation ID in
	// support requests.
	ExposeHeaders []string

	// AllowCredentials exposes responses to credentialed requests. When true,
	// the wildcard origin "*" must not be used — the middleware echoes the
	// specific origin.
	AllowCredentials bool

	// MaxAge is how long (seconds) preflight results may be cached. Zero
	// omits the header; negative sends "0".
	MaxAge int
}

// corsHeaders is the precomputed header material shared by every request.
type corsHeaders struct {
	allowAll bool
	allowed  map[string]string // lowercase origin -> original-case value
	methods  string
	headers  string
	expose   string
	maxAge   string
	creds    bool
}

func newCORSHeaders(cfg CORSConfig) corsHeaders {
	h := corsHeaders{
		allowAll: len(cfg.AllowOrigins) == 0,
		allowed:  make(map[string]string, len(cfg.AllowOrigins)),
		methods:  strings.Join(cfg.AllowMethods, ", "),
		headers:  strings.Join(cfg.AllowHeaders, ", "),
		expose:   strings.Join(cfg.ExposeHeaders, ", "),
		creds:    cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			h.allowAll = true
			break
		}
		h.allowed[strings.ToLower(o)] = o
	}
	if h.creds && h.allowAll {
		// Credentials + wildcard is forbidden by the spec.
		// Fall back to echoing the specific origin.
		h.allowAll = false
	}

	if h.methods == "" {
		h.methods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	if h.expose == "" {
		h.expose = RequestIDHeader
	}
	switch {
	case cfg.MaxAge > 0:
		h.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		h.maxAge = "0"
	}
	return h
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// when the origin is not allowed. Matching is case-insensitive but the
// original-case value from the config is echoed.
func (h corsHeaders) allowOrigin(origin string) string {
	if h.allowAll {
		return "*"
	}
	return h.allowed[strings.ToLower(origin)]
}

// CORS returns a middleware handling Cross-Origin Resource Sharing for the
// storefront's browser clients: case-insensitive origin matching, Vary
// handling to keep CDN caches honest, preflight detection via
// Access-Control-Request-Method, credentials and expose-headers support.
func CORS(cfg CORSConfig) Middleware {
	hdrs := newCORSHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// No Origin header means the request is outside CORS scope, but
			// caches still need Vary so a later CORS request is not served a
			// stale header-less response.
			if origin == "" {
				if !hdrs.allowAll {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := hdrs.allowOrigin(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				hdrs.preflight(w, r, allowOrigin)
				return
			}

			// Simple / actual CORS request.
			if !hdrs.allowAll {
				w.Header().Add("Vary", "Origin")
			}
			if allowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				if hdrs.creds {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				w.Header().Set("Access-Control-Expose-Headers", hdrs.expose)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// preflight answers an OPTIONS preflight and ends the request.
func (h corsHeaders) preflight(w http.ResponseWriter, r *http.Request, allowOrigin string) {
	// Vary on every preflight input to prevent cache poisoning.
	w.Header().Add("Vary", "Origin")
	w.Header().Add("Vary", "Access-Control-Request-Method")
	w.Header().Add("Vary", "Access-Control-Request-Headers")

	if allowOrigin == "" {
		// Origin not allowed: 204 with no CORS headers.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
	w.Header().Set("Access-Control-Allow-Methods", h.methods)

	if h.headers != "" {
		w.Header().Set("Access-Control-Allow-Headers", h.headers)
	} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
		w.Header().Set("Access-Control-Allow-Headers", rh)
	}

	if h.creds {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	if h.maxAge != "" {
		w.Header().Set("Access-Control-Max-Age", h.maxAge)
	}

	w.WriteHeader(http.StatusNoContent)
}
