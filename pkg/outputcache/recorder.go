package outputcache

import (
	"bytes"
	"net/http"
)

// responseRecorder captures the wrapped handler's response so it can be
// stored and replayed to the client.
type responseRecorder struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newRecorder() *responseRecorder {
	return &responseRecorder{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(p)
}

// copyTo replays the captured response to the real writer.
func (r *responseRecorder) copyTo(w http.ResponseWriter, cacheStatus string) {
	for name, values := range r.header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set(StatusHeader, cacheStatus)
	w.WriteHeader(r.status)
	_, _ = w.Write(r.body.Bytes())
}
