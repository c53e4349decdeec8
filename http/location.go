package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/rafimuhammad01/dispatch-app/dispatch"
)

// Sender will be the contract to forward a driver fix to the dispatch service.
type Sender interface {
	Send(ctx context.Context, l dispatch.LocationReport) error
}

// LocationHandler receives fixes from driver devices over plain HTTP.
type LocationHandler struct {
	sender Sender
	auth   Authenticator
	router *chi.Mux
}

// NewLocationHandler creates the gateway routes. When auth is not nil, a driver
// may only report fixes for its own id.
func NewLocationHandler(sender Sender, auth Authenticator) *LocationHandler {
	h := &LocationHandler{
		sender: sender,
		auth:   auth,
		router: chi.NewRouter(),
	}

	h.router.Use(middleware.Recoverer)
	h.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	h.router.Post("/location", h.SendLocation)

	return h
}

func (h *LocationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *LocationHandler) SendLocation(w http.ResponseWriter, r *http.Request) {
	var l dispatch.LocationReport
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if l.DriverID == "" {
		http.Error(w, "missing driverId", http.StatusBadRequest)
		return
	}

	if h.auth != nil {
		p, err := h.auth.Authenticate(bearerToken(r))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if p.Role != dispatch.RoleDriver || p.Subject != l.DriverID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	if err := h.sender.Send(r.Context(), l); err != nil {
		log.Error().Err(err).Str("driver", l.DriverID).Msg("failed to send location")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
