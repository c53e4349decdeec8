package dispatch

import (
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultStaleAfter    = 2 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultNearbyRadius  = 500.0
)

// Hub owns the room router, the driver location tracker and the reaper that evicts stale fixes.
// Every piece of state it holds is advisory and is lost when the process stops.
type Hub struct {
	router     *Router
	tracker    *Tracker
	reaper     *reaper
	authorizer Authorizer
	observer   Observer
	now        func() time.Time

	staleAfter    time.Duration
	sweepInterval time.Duration
	radius        float64
}

type Option func(*Hub)

// WithAuthorizer sets the check run before a connection joins a room. By default every join is allowed.
func WithAuthorizer(a Authorizer) Option {
	return func(h *Hub) {
		h.authorizer = a
	}
}

// WithObserver reports hub activity to o.
func WithObserver(o Observer) Option {
	return func(h *Hub) {
		h.observer = o
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

// WithStaleAfter sets the age after which a driver fix is evicted.
func WithStaleAfter(d time.Duration) Option {
	return func(h *Hub) {
		h.staleAfter = d
	}
}

// WithSweepInterval sets how often stale fixes are looked for.
func WithSweepInterval(d time.Duration) Option {
	return func(h *Hub) {
		h.sweepInterval = d
	}
}

// WithNearbyRadius sets the distance in meters under which driver:nearby fires.
func WithNearbyRadius(meters float64) Option {
	return func(h *Hub) {
		h.radius = meters
	}
}

// NewHub creates a hub. Call Start to begin evicting stale driver fixes.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		authorizer:    AllowAll,
		observer:      nopObserver{},
		now:           time.Now,
		staleAfter:    DefaultStaleAfter,
		sweepInterval: DefaultSweepInterval,
		radius:        DefaultNearbyRadius,
	}

	for _, opt := range opts {
		opt(h)
	}

	h.router = NewRouter(h.observer)
	h.tracker = newTracker(h.router, h.observer, h.now, h.radius)
	h.reaper = newReaper(h.tracker, h.sweepInterval, h.staleAfter)

	return h
}

// Start runs the reaper in the background.
func (h *Hub) Start() {
	h.reaper.start()
	log.Info().Dur("interval", h.sweepInterval).Dur("stale_after", h.staleAfter).Msg("dispatch hub started")
}

// Stop halts the reaper and disconnects every connection.
func (h *Hub) Stop() {
	h.reaper.halt()
	h.router.Close()
	log.Info().Msg("dispatch hub stopped")
}

func (h *Hub) Router() *Router {
	return h.router
}

func (h *Hub) Tracker() *Tracker {
	return h.tracker
}

// Connect registers a freshly opened connection.
func (h *Hub) Connect(c *Conn) {
	h.router.Attach(c)
	h.observer.Connected()
}

// Disconnect releases everything the connection owned: its room memberships,
// its send queue and the orders it asked to track.
func (h *Hub) Disconnect(c *Conn) {
	if !h.router.Disconnect(c) {
		return
	}
	forgotten := h.tracker.Forget(c.ID)
	h.observer.Disconnected()
	log.Debug().Str("conn", c.ID).Int("tracked_orders", forgotten).Msg("connection released")
}

// Join adds the connection to the room if the authorizer allows it.
func (h *Hub) Join(c *Conn, room Room) bool {
	if !h.authorizer.AuthorizeJoin(c.Principal, room) {
		log.Debug().Str("conn", c.ID).Str("subject", c.Principal.Subject).Stringer("room", room).Msg("join denied")
		return false
	}
	h.router.Join(c, room)
	return true
}

// Publish relays an event to a room. See Router.Publish.
func (h *Hub) Publish(room Room, event string, payload any) int {
	return h.router.Publish(room, event, payload)
}

// ReportLocation feeds a driver fix to the tracker.
func (h *Hub) ReportLocation(driverID, orderID string, lat, lng float64) {
	h.tracker.ReportLocation(driverID, orderID, lat, lng)
}

// DriverLocation returns the last known fix of the driver.
func (h *Hub) DriverLocation(driverID string) (DriverLocation, bool) {
	return h.tracker.Location(driverID)
}

// Sweep runs one eviction pass immediately.
func (h *Hub) Sweep() int {
	return h.reaper.sweep()
}
