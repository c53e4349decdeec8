package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

var (
	errJoinDenied     = errors.New("not allowed to join this room")
	errPublishDenied  = errors.New("not allowed to publish to this room")
	errMissingID      = errors.New("missing id")
	errUnknownEvent   = errors.New("unknown event")
	errMissingOrderID = errors.New("missing orderId")
)

// HandleEvent applies one frame received from a client. Bad frames never stop the connection:
// the client gets an error event back and the frame is otherwise ignored.
func (h *Hub) HandleEvent(c *Conn, env Envelope) {
	if err := h.handle(c, env); err != nil {
		log.Debug().Err(err).Str("conn", c.ID).Str("event", env.Event).Msg("client event rejected")
		h.router.Send(c, EventError, ErrorReply{Event: env.Event, Message: err.Error()})
	}
}

func (h *Hub) handle(c *Conn, env Envelope) error {
	switch env.Event {
	case EventOrderTrack:
		var req TrackRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.trackOrder(c, req)

	case EventCustomerJoin:
		return h.joinByID(c, env.Data, CustomerRoom)

	case EventVendorJoin:
		return h.joinByID(c, env.Data, VendorRoom)

	case EventDriverJoin:
		if err := h.joinByID(c, env.Data, DriverRoom); err != nil {
			return err
		}
		return h.join(c, AllDriversRoom)

	case EventAdminJoin:
		return h.join(c, AdminRoom)

	case EventOrderNew, EventOrderAssigned, EventOrderStatusUpdate:
		var ev OrderEvent
		if err := decode(env.Data, &ev); err != nil {
			return err
		}
		ev.Type = env.Event
		// A client may only notify a room it would be allowed to listen in.
		if !h.authorizer.AuthorizeJoin(c.Principal, orderEventRoom(ev)) {
			return errPublishDenied
		}
		return h.ApplyOrderEvent(ev)

	case EventDriverLocation, EventDriverLocationAlias:
		var rep LocationReport
		if err := decode(env.Data, &rep); err != nil {
			return err
		}
		if rep.DriverID == "" {
			return errMissingID
		}
		// Reporting for a driver requires the same right as listening as that driver.
		if !h.authorizer.AuthorizeJoin(c.Principal, DriverRoom(rep.DriverID)) {
			return errJoinDenied
		}
		h.ReportLocation(rep.DriverID, rep.OrderID, rep.Lat, rep.Lng)
		return nil

	case EventCartJoin:
		return h.joinByID(c, env.Data, CartRoom)

	case EventCartUpdate:
		return h.relayCart(c, env.Data, EventCartUpdated)

	case EventCartCheckoutStarted:
		return h.relayCart(c, env.Data, EventCartCheckoutStarted)

	default:
		return errUnknownEvent
	}
}

func (h *Hub) trackOrder(c *Conn, req TrackRequest) error {
	if req.OrderID == "" {
		return errMissingOrderID
	}
	if err := h.join(c, OrderRoom(req.OrderID)); err != nil {
		return err
	}
	if req.CustomerID != "" {
		if err := h.join(c, CustomerRoom(req.CustomerID)); err != nil {
			return err
		}
	}
	h.tracker.Track(c.ID, req)
	log.Debug().Str("conn", c.ID).Str("order", req.OrderID).Msg("order tracked")
	return nil
}

func (h *Hub) relayCart(c *Conn, data json.RawMessage, event string) error {
	var cart struct {
		CartID string `json:"cartId"`
	}
	if err := decode(data, &cart); err != nil {
		return err
	}
	if cart.CartID == "" {
		return errMissingID
	}
	if !h.authorizer.AuthorizeJoin(c.Principal, CartRoom(cart.CartID)) {
		return errPublishDenied
	}
	h.router.PublishExcept(CartRoom(cart.CartID), c, event, data)
	return nil
}

// orderEventRoom is the room a client-sent fire call notifies first.
func orderEventRoom(ev OrderEvent) Room {
	switch ev.Type {
	case EventOrderNew:
		return VendorRoom(ev.VendorID)
	case EventOrderAssigned:
		return DriverRoom(ev.DriverID)
	default:
		return OrderRoom(ev.OrderID)
	}
}

func (h *Hub) joinByID(c *Conn, data json.RawMessage, room func(string) Room) error {
	var id string
	if err := decode(data, &id); err != nil {
		return err
	}
	if id == "" {
		return errMissingID
	}
	return h.join(c, room(id))
}

func (h *Hub) join(c *Conn, room Room) error {
	if !h.Join(c, room) {
		return errJoinDenied
	}
	return nil
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
