package web

import (
	"net/http"

	"github.com/charmbracelet/log"
)

// preventCSRF is Alex Edwards's examplar implementation of Go's 1.25 CSRF middleware.
func preventCSRF(next http.Handler) http.Handler {
	cop := http.NewCrossOriginProtection()
	cop.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("CSRF check failed"))
	}))
	return cop.Handler(next)
}

// enforceCSRF wraps preventCSRF and ensures that any browser or agent that does not
// send the Sec-Fetch-Site or Origin headers is rejected for the sync POST.
func enforceCSRF(logger *log.Logger, next http.Handler) http.Handler {

	standardCSRF := preventCSRF(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		// Ignore non-data changing methods.
		if r.Method == "GET" || r.Method == "HEAD" || r.Method == "OPTIONS" || r.Method == "TRACE" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("Sec-Fetch-Site") == "" && r.Header.Get("Origin") == "" {
			logger.Warn("rejected request without Sec-Fetch-Site or Origin headers", "remote", r.RemoteAddr, "uri", r.URL.RequestURI())
			http.Error(w, "Agent or browser not supported.", http.StatusForbidden)
			return
		}

		standardCSRF.ServeHTTP(w, r)
	})
}
