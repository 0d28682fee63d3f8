// Package apitest provides a fake WeightHabit API server for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server is an httptest server with a chi router that tests register
// endpoint handlers on.
type Server struct {
	*httptest.Server
	Router chi.Router
}

// NewServer starts a fake API server, closed automatically when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()
	r := chi.NewRouter()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &Server{Server: srv, Router: r}
}

type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WriteSuccess writes a 200 success envelope wrapping data.
func WriteSuccess(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, envelope{
		Success:   true,
		Message:   "ok",
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteFailure writes an error envelope with the given status.
func WriteFailure(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, envelope{
		Success:   false,
		Message:   msg,
		Error:     msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// DecodeBody unmarshals the request body into v, failing the test on error.
func DecodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Fatalf("decoding request body: %v", err)
	}
}
