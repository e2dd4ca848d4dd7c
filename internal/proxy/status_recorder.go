package proxy

import "net/http"

// statusRecorder captures the response status for the request metrics.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) getStatusCode() int {
	if r.statusCode == 0 {
		// WriteHeader was never called explicitly.
		return http.StatusOK
	}
	return r.statusCode
}
