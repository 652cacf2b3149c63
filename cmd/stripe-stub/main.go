// Command stripe-stub is a minimal stand-in for the Stripe Checkout API used
// by the integration tests. It implements just enough of the sessions surface
// for the order flow: session creation, session retrieval, and a test-only
// hook that marks a session as paid.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type session struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	PaymentStatus string `json:"payment_status"`
}

type store struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func (s *store) create() *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := "cs_test_" + uuid.NewString()
	sess := &session{
		ID:            id,
		URL:           "https://checkout.stripe.test/pay/" + id,
		PaymentStatus: "unpaid",
	}
	s.sessions[id] = sess
	return sess
}

func (s *store) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *store) complete(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.PaymentStatus = "paid"
	if sess.PaymentIntent == "" {
		sess.PaymentIntent = "pi_test_" + uuid.NewString()
	}
	return sess, true
}

func main() {
	var addr string
	flag.StringVar(&addr, "addr", ":12111", "listen address")
	flag.Parse()

	st := &store{sessions: make(map[string]*session)}
	r := chi.NewRouter()

	r.Post("/v1/checkout/sessions", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "malformed form body")
			return
		}
		if r.PostForm.Get("mode") != "payment" {
			writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "mode must be payment")
			return
		}
		sess := st.create()
		slog.Info("session created", slog.String("id", sess.ID))
		writeJSON(w, http.StatusOK, sess)
	})

	r.Get("/v1/checkout/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sess, ok := st.get(chi.URLParam(r, "id"))
		if !ok {
			writeStripeError(w, http.StatusNotFound, "invalid_request_error", "no such checkout session")
			return
		}
		writeJSON(w, http.StatusOK, sess)
	})

	// Test hook, not part of the real API.
	r.Post("/test/sessions/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
		sess, ok := st.complete(chi.URLParam(r, "id"))
		if !ok {
			writeStripeError(w, http.StatusNotFound, "invalid_request_error", "no such checkout session")
			return
		}
		slog.Info("session completed", slog.String("id", sess.ID))
		writeJSON(w, http.StatusOK, sess)
	})

	slog.Info("stripe stub listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStripeError(w http.ResponseWriter, code int, typ, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"type":%q,"message":%q}}`, typ, msg)
}
