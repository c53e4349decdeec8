package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishNewOrderReachesVendorAndAdminOnly(t *testing.T) {
	clock := newFakeClock()
	h := NewHub(WithClock(clock.Now))
	vendor := NewConn("vendor", Principal{}, 8)
	admin := NewConn("admin", Principal{}, 8)
	otherVendor := NewConn("other-vendor", Principal{}, 8)
	customer := NewConn("customer", Principal{}, 8)

	h.Join(vendor, VendorRoom("V"))
	h.Join(admin, AdminRoom)
	h.Join(otherVendor, VendorRoom("W"))
	h.Join(customer, OrderRoom("O2"))

	h.PublishNewOrder("V", "O2", map[string]any{"items": 3})

	expected := Message{
		Event: EventNewOrderNotification,
		Data: OrderNotification{
			OrderID:      "O2",
			OrderDetails: map[string]any{"items": 3},
			Timestamp:    clock.Now(),
			Message:      "New order received",
		},
	}
	assert.Equal(t, []Message{expected}, drain(vendor))
	assert.Equal(t, []Message{expected}, drain(admin))
	assert.Empty(t, drain(otherVendor))
	assert.Empty(t, drain(customer))
}

func TestPublishersReachPrimaryRoomBeforeAdmin(t *testing.T) {
	rec := &recorder{}
	h := NewHub(WithObserver(rec))

	h.PublishNewOrder("V", "O1", nil)
	h.PublishOrderAssigned("D", "O1", nil)
	h.PublishStatusUpdate("O1", "preparing", "V")
	h.PublishOrderAvailable(AvailableOrder{OrderID: "O1"})

	assert.Equal(t, []Room{VendorRoom("V"), AdminRoom}, rec.rooms(EventNewOrderNotification))
	assert.Equal(t, []Room{DriverRoom("D"), AdminRoom}, rec.rooms(EventAssignedOrderNotification))
	assert.Equal(t, []Room{OrderRoom("O1"), AdminRoom}, rec.rooms(EventOrderStatusChanged))
	assert.Equal(t, []Room{AllDriversRoom, AdminRoom}, rec.rooms(EventOrderAvailable))
}

func TestPublishStatusUpdate(t *testing.T) {
	h := NewHub()
	customer := NewConn("customer", Principal{}, 8)
	h.Join(customer, OrderRoom("O1"))

	h.PublishStatusUpdate("O1", "out_for_delivery", "driver-1")

	assert.Equal(t, []Message{{
		Event: EventOrderStatusChanged,
		Data: StatusChanged{
			OrderID:   "O1",
			Status:    "out_for_delivery",
			UpdatedBy: "driver-1",
			Message:   "Order status updated to out_for_delivery",
		},
	}}, drain(customer))
}

func TestApplyOrderEvent(t *testing.T) {
	h := NewHub()
	driver := NewConn("driver", Principal{}, 8)
	h.Join(driver, DriverRoom("D1"))
	h.Join(driver, AllDriversRoom)

	err := h.ApplyOrderEvent(OrderEvent{Type: EventOrderAssigned, OrderID: "O1", DriverID: "D1"})
	require.NoError(t, err)

	err = h.ApplyOrderEvent(OrderEvent{
		Type:         EventOrderAvailable,
		OrderID:      "O2",
		OrderDetails: json.RawMessage(`{"restaurantName":"Saffron","totalAmount":24.5,"earnings":4}`),
	})
	require.NoError(t, err)

	msgs := drain(driver)
	require.Len(t, msgs, 2)
	assert.Equal(t, EventAssignedOrderNotification, msgs[0].Event)
	assert.Equal(t, Message{
		Event: EventOrderAvailable,
		Data:  AvailableOrder{OrderID: "O2", RestaurantName: "Saffron", TotalAmount: 24.5, Earnings: 4},
	}, msgs[1])
}

func TestApplyOrderEventRejects(t *testing.T) {
	h := NewHub()

	assert.Error(t, h.ApplyOrderEvent(OrderEvent{Type: EventOrderNew}))
	assert.Error(t, h.ApplyOrderEvent(OrderEvent{Type: "order:deleted", OrderID: "O1"}))
	assert.Error(t, h.ApplyOrderEvent(OrderEvent{
		Type:         EventOrderAvailable,
		OrderID:      "O1",
		OrderDetails: json.RawMessage(`[1,2]`),
	}))
}
