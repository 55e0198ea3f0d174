package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

type routeKey struct{}

// routeSlot is filled by CaptureRoute once the mux has matched the request.
type routeSlot struct {
	pattern string
}

// HTTPMetricsMiddleware instruments requests with Prometheus metrics.
// Place it outside CORS and input checks so every response is counted; the route
// label comes from CaptureRoute around the mux and is "unmatched" for responses
// written before routing.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		slot := &routeSlot{}
		r = r.WithContext(context.WithValue(r.Context(), routeKey{}, slot))
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		ObserveHTTPRequest(r.Method, routeLabel(slot, r), strconv.Itoa(ww.status), time.Since(start))
	})
}

// CaptureRoute wraps the ServeMux and reports the matched pattern to HTTPMetricsMiddleware.
func CaptureRoute(mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		if slot, ok := r.Context().Value(routeKey{}).(*routeSlot); ok {
			slot.pattern = r.Pattern
		}
	})
}

// routeLabel keeps label cardinality bounded: ids in paths are replaced by the route pattern.
func routeLabel(slot *routeSlot, r *http.Request) string {
	switch {
	case slot.pattern != "":
		return slot.pattern
	case r.Pattern != "":
		return r.Pattern
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
