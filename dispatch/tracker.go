package dispatch

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DriverLocation is the last known fix of a driver.
type DriverLocation struct {
	DriverID  string
	OrderID   string
	Lat       float64
	Lng       float64
	UpdatedAt time.Time
}

// orderTracking caches the delivery address of an order a customer is following.
// It is only a cache for proximity checks; the order record lives elsewhere.
type orderTracking struct {
	customerID string
	lat        float64
	lng        float64
	hasCoords  bool
	connID     string
}

// Tracker holds driver positions and tracked orders in memory,
// re-broadcasts every position and raises proximity alerts.
type Tracker struct {
	mu        sync.Mutex
	locations map[string]DriverLocation
	orders    map[string]orderTracking

	router   *Router
	observer Observer
	now      func() time.Time
	radius   float64
}

func newTracker(r *Router, o Observer, now func() time.Time, radius float64) *Tracker {
	return &Tracker{
		locations: make(map[string]DriverLocation),
		orders:    make(map[string]orderTracking),
		router:    r,
		observer:  o,
		now:       now,
		radius:    radius,
	}
}

// Track stores the delivery coordinates of an order for the connection that asked to follow it.
// A later request for the same order replaces the earlier one.
func (t *Tracker) Track(connID string, req TrackRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o := orderTracking{
		customerID: req.CustomerID,
		connID:     connID,
	}
	if req.DeliveryLat != nil && req.DeliveryLng != nil {
		o.lat, o.lng, o.hasCoords = *req.DeliveryLat, *req.DeliveryLng, true
	}
	t.orders[req.OrderID] = o
}

// Forget drops every tracked order registered by the connection and returns how many were dropped.
func (t *Tracker) Forget(connID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for orderID, o := range t.orders {
		if o.connID == connID {
			delete(t.orders, orderID)
			n++
		}
	}
	return n
}

// ReportLocation applies a driver fix and notifies the order and admin rooms.
// The latest call always wins, so a delayed fix can replace a fresher one.
func (t *Tracker) ReportLocation(driverID, orderID string, lat, lng float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.locations[driverID] = DriverLocation{
		DriverID:  driverID,
		OrderID:   orderID,
		Lat:       lat,
		Lng:       lng,
		UpdatedAt: t.now(),
	}
	t.observer.TrackedDrivers(len(t.locations))

	pos := DriverPosition{DriverID: driverID, Lat: lat, Lng: lng, OrderID: orderID}
	if orderID != "" {
		t.router.Publish(OrderRoom(orderID), EventDriverLocation, pos)
	}
	t.router.Publish(AdminRoom, EventDriverLocation, pos)

	if orderID == "" {
		return
	}
	// Without a delivery address there is nothing to measure against.
	o, ok := t.orders[orderID]
	if !ok || !o.hasCoords {
		return
	}

	distance := Distance(lat, lng, o.lat, o.lng)
	if !t.nearby(distance) {
		return
	}
	meters := int(math.Round(distance))
	t.router.Publish(OrderRoom(orderID), EventDriverNearby, Nearby{
		OrderID:  orderID,
		Distance: meters,
		Message:  fmt.Sprintf("Your driver is %dm away", meters),
	})
}

// nearby reports whether a distance is inside the alert radius. The boundary is inclusive.
func (t *Tracker) nearby(distance float64) bool {
	return distance <= t.radius
}

// Location returns the last known fix of the driver.
func (t *Tracker) Location(driverID string) (DriverLocation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.locations[driverID]
	return l, ok
}

// Sweep deletes every fix older than staleAfter and returns how many were deleted.
func (t *Tracker) Sweep(staleAfter time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	n := 0
	for id, l := range t.locations {
		if now.Sub(l.UpdatedAt) > staleAfter {
			delete(t.locations, id)
			n++
		}
	}
	if n > 0 {
		t.observer.Evicted(n)
		t.observer.TrackedDrivers(len(t.locations))
	}
	return n
}
