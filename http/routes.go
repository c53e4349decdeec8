package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/rafimuhammad01/dispatch-app/dispatch"
)

// Handler serves the dispatch service: the client socket, the fire-call endpoints used by
// the order services after they commit a change, health and metrics.
type Handler struct {
	hub     *dispatch.Hub
	socket  http.Handler
	metrics http.Handler
	router  *chi.Mux
}

// NewHandler wires the routes. metrics may be nil.
func NewHandler(hub *dispatch.Hub, socket http.Handler, metrics http.Handler) *Handler {
	h := &Handler{
		hub:     hub,
		socket:  socket,
		metrics: metrics,
		router:  chi.NewRouter(),
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	h.router.Use(middleware.Recoverer)

	h.router.Get("/health", h.handleHealth)
	h.router.Get("/ws", h.socket.ServeHTTP)
	if h.metrics != nil {
		h.router.Get("/metrics", h.metrics.ServeHTTP)
	}

	h.router.Route("/internal", func(r chi.Router) {
		r.Post("/orders/new", h.handleOrderEvent(dispatch.EventOrderNew))
		r.Post("/orders/assigned", h.handleOrderEvent(dispatch.EventOrderAssigned))
		r.Post("/orders/status", h.handleOrderEvent(dispatch.EventOrderStatusUpdate))
		r.Post("/orders/available", h.handleOrderEvent(dispatch.EventOrderAvailable))
		r.Get("/drivers/{driverID}/location", h.handleDriverLocation)
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleOrderEvent accepts a fire call. Delivery is best effort, so the response
// only says the event was understood, not that anyone received it.
func (h *Handler) handleOrderEvent(eventType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev dispatch.OrderEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		ev.Type = eventType

		if err := h.hub.ApplyOrderEvent(ev); err != nil {
			log.Debug().Err(err).Msg("order event rejected")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (h *Handler) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.hub.DriverLocation(chi.URLParam(r, "driverID"))
	if !ok {
		http.Error(w, "driver location unknown", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"driverId":  loc.DriverID,
		"orderId":   loc.OrderID,
		"lat":       loc.Lat,
		"lng":       loc.Lng,
		"updatedAt": loc.UpdatedAt,
	})
}
