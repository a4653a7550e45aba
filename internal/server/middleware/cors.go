package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/agentstation/shelf/internal/matcher"
)

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	AllowAll       bool
}

// DefaultCORSConfig returns the default CORS configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
	}
}

// ValidateOrigins checks that every allowed origin is a valid pattern.
func ValidateOrigins(origins []string) error {
	_, err := matcher.NewMultiMatcher(origins, matcher.Auto)
	return err
}

// CORS adds CORS headers and answers preflight requests. Allowed origins may
// be exact origins, globs such as "https://*.example.org", or regular
// expressions wrapped in ^...$. A "*" entry allows every origin.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	allowAll := config.AllowAll || len(config.AllowedOrigins) == 0 || slices.Contains(config.AllowedOrigins, "*")
	origins := compileOrigins(config.AllowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && origins.Match(origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// compileOrigins skips patterns that do not compile; ValidateOrigins reports them.
func compileOrigins(origins []string) *matcher.MultiMatcher {
	valid := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, err := matcher.New(matcher.Auto, o); err == nil {
			valid = append(valid, o)
		}
	}
	mm, _ := matcher.NewMultiMatcher(valid, matcher.Auto)
	return mm
}
