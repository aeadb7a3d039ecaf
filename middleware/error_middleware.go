package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
	"photohunter/utils/errors"
)

// ErrorMiddleware turns panics into a 500 JSON response.
func ErrorMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					glog.Errorf("Panic recovered on %s %s: %v", r.Method, r.URL.Path, rec)
					WriteError(w, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as an APIError JSON response. Errors that are not
// APIErrors become a 500.
func WriteError(w http.ResponseWriter, err error) {
	apiErr, ok := errors.As(err)
	if !ok {
		apiErr = errors.Wrap(err, "UNKNOWN_ERROR", "Unexpected error", errors.ErrInternal.Status)
	}
	if apiErr.Status >= 500 {
		glog.Errorf("Server error %s (Details: %s)", apiErr.Error(), apiErr.Details)
		// Internal details stay in the log.
		apiErr = errors.NewAPIError(apiErr.Code, apiErr.Message, apiErr.Status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		glog.Warningf("Failed to write error response: %v", err)
	}
}
