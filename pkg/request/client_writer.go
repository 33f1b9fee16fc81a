package request

import "net/http"

// ClientWriter is a http.ResponseWriter that records the status code written.
type ClientWriter struct {
	http.ResponseWriter
	statusCode int
}

// NewClientWriter wraps w.
func NewClientWriter(w http.ResponseWriter) *ClientWriter {
	return &ClientWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (c *ClientWriter) WriteHeader(code int) {
	c.statusCode = code
	c.ResponseWriter.WriteHeader(code)
}

// StatusCode is the status code written, or 200 if none was written explicitly.
func (c *ClientWriter) StatusCode() int {
	return c.statusCode
}
