package request

import "net/http"

// ClientWriter wraps a http.ResponseWriter and records the status code
// written to it, so middleware can label metrics after the handler ran.
type ClientWriter struct {
	http.ResponseWriter

	// statusCode is the last status code written. Defaults to 200, matching
	// net/http behaviour when WriteHeader is never called.
	statusCode int
}

// NewClientWriter creates a new ClientWriter wrapping w.
func NewClientWriter(w http.ResponseWriter) *ClientWriter {
	return &ClientWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (w *ClientWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// StatusCode returns the status code written to the response.
func (w *ClientWriter) StatusCode() int {
	return w.statusCode
}
