package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/rafimuhammad01/dispatch-app/dispatch"
)

// Reader is the part of *kafka.Reader the handler needs.
type Reader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
}

type LocationReceiver interface {
	ReportLocation(driverID, orderID string, lat, lng float64)
}

type OrderReceiver interface {
	ApplyOrderEvent(ev dispatch.OrderEvent) error
}

// Handler consumes driver fixes and order fire calls and hands them to the hub.
type Handler struct {
	locations LocationReceiver
	orders    OrderReceiver
	backoff   time.Duration
}

func NewHandler(l LocationReceiver, o OrderReceiver) *Handler {
	return &Handler{
		locations: l,
		orders:    o,
		backoff:   time.Second,
	}
}

// ListenLocations blocks until ctx is done or the reader is closed.
func (h *Handler) ListenLocations(ctx context.Context, r Reader) {
	h.listen(ctx, r, h.handleLocation)
}

// ListenOrders blocks until ctx is done or the reader is closed.
func (h *Handler) ListenOrders(ctx context.Context, r Reader) {
	h.listen(ctx, r, h.handleOrder)
}

func (h *Handler) listen(ctx context.Context, r Reader, handle func(kafkago.Message) error) {
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			log.Error().Err(err).Msg("failed to read kafka message")

			select {
			case <-ctx.Done():
				return
			case <-time.After(h.backoff):
			}
			continue
		}

		if err := handle(m); err != nil {
			// Every message is advisory; a bad one is skipped, never retried.
			log.Warn().Err(err).Str("topic", m.Topic).Int64("offset", m.Offset).Msg("kafka message skipped")
		}
	}
}

func (h *Handler) handleLocation(m kafkago.Message) error {
	var l dispatch.LocationReport
	if err := json.Unmarshal(m.Value, &l); err != nil {
		return fmt.Errorf("decode location: %w", err)
	}
	if l.DriverID == "" {
		return errors.New("decode location: missing driverId")
	}

	h.locations.ReportLocation(l.DriverID, l.OrderID, l.Lat, l.Lng)
	return nil
}

func (h *Handler) handleOrder(m kafkago.Message) error {
	var ev dispatch.OrderEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return fmt.Errorf("decode order event: %w", err)
	}

	return h.orders.ApplyOrderEvent(ev)
}
