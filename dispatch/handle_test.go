package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, event string, data any) Envelope {
	t.Helper()
	if data == nil {
		return Envelope{Event: event}
	}
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return Envelope{Event: event, Data: raw}
}

func TestHandleJoinEvents(t *testing.T) {
	h := NewHub()
	c := NewConn("c", Principal{}, 8)

	h.HandleEvent(c, envelope(t, EventVendorJoin, "V1"))
	h.HandleEvent(c, envelope(t, EventDriverJoin, "D1"))
	h.HandleEvent(c, envelope(t, EventAdminJoin, nil))
	h.HandleEvent(c, envelope(t, EventCustomerJoin, "C1"))
	h.HandleEvent(c, envelope(t, EventCartJoin, "K1"))

	assert.ElementsMatch(t, []Room{
		VendorRoom("V1"),
		DriverRoom("D1"),
		AllDriversRoom,
		AdminRoom,
		CustomerRoom("C1"),
		CartRoom("K1"),
	}, h.Router().Rooms(c))
	assert.Empty(t, drain(c))
}

func TestHandleRejectsBadFrames(t *testing.T) {
	h := NewHub()
	c := NewConn("c", Principal{}, 8)

	frames := []Envelope{
		{Event: EventVendorJoin},
		{Event: EventVendorJoin, Data: json.RawMessage(`42`)},
		{Event: EventVendorJoin, Data: json.RawMessage(`""`)},
		{Event: EventOrderTrack, Data: json.RawMessage(`{"customerId":"C1"}`)},
		{Event: EventDriverLocation, Data: json.RawMessage(`{"lat":1}`)},
		{Event: EventOrderNew, Data: json.RawMessage(`{"vendorId":"V1"}`)},
		{Event: EventCartUpdate, Data: json.RawMessage(`{"items":[]}`)},
		{Event: "order:explode", Data: json.RawMessage(`{}`)},
	}
	for _, f := range frames {
		assert.NotPanics(t, func() { h.HandleEvent(c, f) })
	}

	msgs := drain(c)
	require.Len(t, msgs, len(frames))
	for i, m := range msgs {
		assert.Equal(t, EventError, m.Event)
		assert.Equal(t, frames[i].Event, m.Data.(ErrorReply).Event)
	}
	assert.Empty(t, h.Router().Rooms(c))
}

func TestHandleJoinDenied(t *testing.T) {
	onlyOwnVendorRoom := AuthorizerFunc(func(p Principal, room Room) bool {
		return room == VendorRoom(p.Subject)
	})
	h := NewHub(WithAuthorizer(onlyOwnVendorRoom))
	c := NewConn("c", Principal{Subject: "V1", Role: RoleVendor}, 8)

	h.HandleEvent(c, envelope(t, EventVendorJoin, "V2"))
	h.HandleEvent(c, envelope(t, EventVendorJoin, "V1"))
	h.HandleEvent(c, envelope(t, EventDriverLocation, LocationReport{DriverID: "D1", Lat: 1, Lng: 1}))

	assert.Equal(t, []Room{VendorRoom("V1")}, h.Router().Rooms(c))
	assert.Equal(t, []string{EventError, EventError}, events(drain(c)))
	_, ok := h.DriverLocation("D1")
	assert.False(t, ok)
}

func TestHandleTrackDeniedDoesNotTrack(t *testing.T) {
	noOrders := AuthorizerFunc(func(_ Principal, room Room) bool {
		return room.Role != RoleOrder
	})
	h := NewHub(WithAuthorizer(noOrders))
	c := NewConn("c", Principal{}, 8)
	watcher := NewConn("watcher", Principal{}, 8)
	h.Router().Join(watcher, OrderRoom("O1"))

	h.HandleEvent(c, envelope(t, EventOrderTrack, TrackRequest{OrderID: "O1", DeliveryLat: coord(1), DeliveryLng: coord(1)}))
	h.ReportLocation("D1", "O1", 1, 1)

	assert.Equal(t, []string{EventError}, events(drain(c)))
	assert.Equal(t, []string{EventDriverLocation}, events(drain(watcher)))
}

func TestHandleLocationAliases(t *testing.T) {
	h := NewHub()
	driver := NewConn("driver", Principal{}, 8)

	h.HandleEvent(driver, envelope(t, EventDriverLocation, LocationReport{DriverID: "D1", Lat: 1, Lng: 2}))
	h.HandleEvent(driver, envelope(t, EventDriverLocationAlias, LocationReport{DriverID: "D2", Lat: 3, Lng: 4}))

	for _, id := range []string{"D1", "D2"} {
		_, ok := h.DriverLocation(id)
		assert.True(t, ok, id)
	}
	assert.Empty(t, drain(driver))
}

func TestHandleOrderEventsFromClient(t *testing.T) {
	h := NewHub()
	vendor := NewConn("vendor", Principal{}, 8)
	customer := NewConn("customer", Principal{}, 8)
	h.Join(vendor, VendorRoom("V1"))
	h.Join(customer, OrderRoom("O1"))

	h.HandleEvent(vendor, envelope(t, EventOrderNew, map[string]any{
		"orderId":      "O1",
		"vendorId":     "V1",
		"orderDetails": map[string]any{"total": 12},
	}))
	h.HandleEvent(vendor, envelope(t, EventOrderStatusUpdate, map[string]any{
		"orderId":   "O1",
		"status":    "accepted",
		"updatedBy": "V1",
	}))

	vendorMsgs := drain(vendor)
	require.Equal(t, []string{EventNewOrderNotification}, events(vendorMsgs))
	n := vendorMsgs[0].Data.(OrderNotification)
	assert.Equal(t, "O1", n.OrderID)
	assert.JSONEq(t, `{"total":12}`, string(n.OrderDetails.(json.RawMessage)))

	assert.Equal(t, []Message{{
		Event: EventOrderStatusChanged,
		Data:  StatusChanged{OrderID: "O1", Status: "accepted", UpdatedBy: "V1", Message: "Order status updated to accepted"},
	}}, drain(customer))
}

func TestHandleFireCallsNeedTargetRoom(t *testing.T) {
	customersOnly := AuthorizerFunc(func(p Principal, room Room) bool {
		switch room.Role {
		case RoleOrder:
			return true
		case RoleCart:
			return room.ID == "K1"
		default:
			return room == CustomerRoom(p.Subject)
		}
	})
	h := NewHub(WithAuthorizer(customersOnly))
	customer := NewConn("customer", Principal{Subject: "C9", Role: RoleCustomer}, 8)
	vendor := NewConn("vendor", Principal{}, 8)
	driver := NewConn("driver", Principal{}, 8)
	order := NewConn("order", Principal{}, 8)
	cart := NewConn("cart", Principal{}, 8)
	h.Router().Join(vendor, VendorRoom("V1"))
	h.Router().Join(driver, DriverRoom("D1"))
	h.Router().Join(order, OrderRoom("O1"))
	h.Router().Join(cart, CartRoom("K2"))

	h.HandleEvent(customer, envelope(t, EventOrderNew, OrderEvent{OrderID: "FAKE", VendorID: "V1"}))
	h.HandleEvent(customer, envelope(t, EventOrderAssigned, OrderEvent{OrderID: "FAKE", DriverID: "D1"}))
	h.HandleEvent(customer, envelope(t, EventCartUpdate, map[string]any{"cartId": "K2"}))
	h.HandleEvent(customer, envelope(t, EventOrderStatusUpdate, OrderEvent{OrderID: "O1", Status: "cancelled"}))

	replies := drain(customer)
	require.Equal(t, []string{EventError, EventError, EventError}, events(replies))
	for _, m := range replies {
		assert.Equal(t, errPublishDenied.Error(), m.Data.(ErrorReply).Message)
	}
	assert.Empty(t, drain(vendor))
	assert.Empty(t, drain(driver))
	assert.Empty(t, drain(cart))
	assert.Equal(t, []string{EventOrderStatusChanged}, events(drain(order)))
}

func TestHandleCartRelay(t *testing.T) {
	h := NewHub()
	owner := NewConn("owner", Principal{}, 8)
	friend := NewConn("friend", Principal{}, 8)
	h.HandleEvent(owner, envelope(t, EventCartJoin, "K1"))
	h.HandleEvent(friend, envelope(t, EventCartJoin, "K1"))

	update := json.RawMessage(`{"cartId":"K1","items":[{"sku":"naan","qty":2}]}`)
	h.HandleEvent(owner, Envelope{Event: EventCartUpdate, Data: update})
	h.HandleEvent(friend, envelope(t, EventCartCheckoutStarted, map[string]any{"cartId": "K1"}))

	assert.Equal(t, []Message{{Event: EventCartUpdated, Data: update}}, drain(friend))
	ownerMsgs := drain(owner)
	require.Equal(t, []string{EventCartCheckoutStarted}, events(ownerMsgs))
}

// Two customers track, a vendor and an admin listen; a driver reports its position
// while approaching and the order moves on.
func TestOrderLifecycle(t *testing.T) {
	h := NewHub()
	customer := NewConn("customer", Principal{}, 16)
	vendor := NewConn("vendor", Principal{}, 16)
	driver := NewConn("driver", Principal{}, 16)
	admin := NewConn("admin", Principal{}, 16)
	bystander := NewConn("bystander", Principal{}, 16)

	h.HandleEvent(vendor, envelope(t, EventVendorJoin, "V1"))
	h.HandleEvent(driver, envelope(t, EventDriverJoin, "D1"))
	h.HandleEvent(admin, envelope(t, EventAdminJoin, nil))
	h.HandleEvent(bystander, envelope(t, EventOrderTrack, TrackRequest{OrderID: "O2", DeliveryLat: coord(0), DeliveryLng: coord(0)}))

	h.PublishNewOrder("V1", "O1", nil)
	h.HandleEvent(customer, envelope(t, EventOrderTrack, TrackRequest{
		OrderID: "O1", CustomerID: "C1", DeliveryLat: coord(28.70), DeliveryLng: coord(77.10),
	}))
	h.PublishOrderAvailable(AvailableOrder{OrderID: "O1", RestaurantName: "Saffron"})
	h.PublishOrderAssigned("D1", "O1", nil)
	h.HandleEvent(driver, envelope(t, EventDriverLocation, LocationReport{DriverID: "D1", OrderID: "O1", Lat: 28.7041, Lng: 77.1025}))
	h.HandleEvent(driver, envelope(t, EventDriverLocation, LocationReport{DriverID: "D1", OrderID: "O1", Lat: 28.7005, Lng: 77.1004}))
	h.PublishStatusUpdate("O1", "delivered", "D1")

	assert.Equal(t, []string{
		EventDriverLocation,
		EventDriverLocation, EventDriverNearby,
		EventOrderStatusChanged,
	}, events(drain(customer)))
	assert.Equal(t, []string{EventNewOrderNotification}, events(drain(vendor)))
	assert.Equal(t, []string{EventOrderAvailable, EventAssignedOrderNotification}, events(drain(driver)))
	assert.Equal(t, []string{
		EventNewOrderNotification,
		EventOrderAvailable,
		EventAssignedOrderNotification,
		EventDriverLocation,
		EventDriverLocation,
		EventOrderStatusChanged,
	}, events(drain(admin)))
	assert.Empty(t, drain(bystander))
}
