package dispatch

import (
	"encoding/json"
	"time"
)

// Client to server events.
const (
	EventOrderTrack          = "order:track"
	EventCustomerJoin        = "customer:join"
	EventVendorJoin          = "vendor:join"
	EventDriverJoin          = "driver:join"
	EventAdminJoin           = "admin:join"
	EventOrderNew            = "order:new"
	EventOrderAssigned       = "order:assigned"
	EventOrderStatusUpdate   = "order:status_update"
	EventDriverLocationAlias = "driver:location_update"
	EventCartJoin            = "cart:join"
	EventCartUpdate          = "cart:update"
)

// Server to client events.
const (
	EventNewOrderNotification      = "order:new_notification"
	EventAssignedOrderNotification = "order:assigned_notification"
	EventOrderStatusChanged        = "order:status_changed"
	EventDriverNearby              = "driver:nearby"
	EventOrderAvailable            = "driver:order_available"
	EventCartUpdated               = "cart:updated"
	EventError                     = "error"
)

// Used in both directions.
const (
	EventDriverLocation      = "driver:location"
	EventCartCheckoutStarted = "cart:checkout_started"
)

// Message is what a connection receives: one named event and its payload.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Envelope is a frame read from a client before its payload is decoded.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TrackRequest registers a customer's intent to follow an order.
type TrackRequest struct {
	OrderID     string  `json:"orderId"`
	CustomerID  string  `json:"customerId"`
	DeliveryLat *float64 `json:"deliveryLat,omitempty"`
	DeliveryLng *float64 `json:"deliveryLng,omitempty"`
}

// LocationReport is a single GPS fix pushed by a driver.
type LocationReport struct {
	DriverID string  `json:"driverId"`
	OrderID  string  `json:"orderId,omitempty"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// OrderEvent is a fire call from the services that own the order record.
// Type is one of EventOrderNew, EventOrderAssigned, EventOrderStatusUpdate or EventOrderAvailable.
type OrderEvent struct {
	Type         string          `json:"type"`
	OrderID      string          `json:"orderId"`
	VendorID     string          `json:"vendorId,omitempty"`
	DriverID     string          `json:"driverId,omitempty"`
	Status       string          `json:"status,omitempty"`
	UpdatedBy    string          `json:"updatedBy,omitempty"`
	OrderDetails json.RawMessage `json:"orderDetails,omitempty"`
}

// OrderNotification is sent to vendors, drivers and admins.
type OrderNotification struct {
	OrderID      string    `json:"orderId"`
	OrderDetails any       `json:"orderDetails,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message"`
}

type StatusChanged struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	UpdatedBy string `json:"updatedBy,omitempty"`
	Message   string `json:"message,omitempty"`
}

type DriverPosition struct {
	DriverID string  `json:"driverId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	OrderID  string  `json:"orderId,omitempty"`
}

type Nearby struct {
	OrderID  string `json:"orderId"`
	Distance int    `json:"distance"`
	Message  string `json:"message"`
}

// AvailableOrder is broadcast to every driver when an order needs pickup.
type AvailableOrder struct {
	OrderID           string  `json:"orderId"`
	RestaurantName    string  `json:"restaurantName"`
	RestaurantAddress string  `json:"restaurantAddress"`
	TotalAmount       float64 `json:"totalAmount"`
	Earnings          float64 `json:"earnings"`
}

type ErrorReply struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
