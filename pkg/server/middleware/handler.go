package middleware

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// Handler is an http handler that reports failure instead of writing it.
type Handler interface {
	Serve(w http.ResponseWriter, r *http.Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

func (f HandlerFunc) Serve(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// FromHTTP adapts an http.Handler that never fails.
func FromHTTP(h http.Handler) Handler {
	return HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		h.ServeHTTP(w, r)
		return nil
	})
}

// bufferedWriter holds the handler's response until the identity has been
// committed, so that the policy can still add headers and cookies.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header)}
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// flushTo writes the buffered response out to w.
func (b *bufferedWriter) flushTo(w http.ResponseWriter) error {
	dst := w.Header()
	for k, v := range b.header {
		dst[k] = v
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(b.body.Bytes())
	return err
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	response, _ := json.Marshal(map[string]interface{}{"error": message})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// ClientIP returns the address of the client that sent r. The first
// X-Forwarded-For entry is used only when the direct peer is trusted.
func ClientIP(r *http.Request, trusted func(ip string) bool) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if trusted == nil || !trusted(peer) {
		return peer
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	return peer
}
