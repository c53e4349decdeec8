package dispatch

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Router keeps room membership and relays named events to rooms.
// A room exists only while it has members: it is created by the first join
// and removed when its last member leaves.
type Router struct {
	mu       sync.RWMutex
	rooms    map[Room]map[*Conn]struct{}
	conns    map[*Conn]map[Room]struct{}
	observer Observer
}

// NewRouter will initiate Router property.
func NewRouter(o Observer) *Router {
	if o == nil {
		o = nopObserver{}
	}
	return &Router{
		rooms:    make(map[Room]map[*Conn]struct{}),
		conns:    make(map[*Conn]map[Room]struct{}),
		observer: o,
	}
}

// Attach makes the router aware of a connection that has not joined any room yet,
// so that Close can release it.
func (r *Router) Attach(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.closed {
		return
	}
	if _, ok := r.conns[c]; !ok {
		r.conns[c] = make(map[Room]struct{})
	}
}

// Join adds the connection to the room. Joining a room twice is a no-op.
// It reports whether the membership is new.
func (r *Router) Join(c *Conn, room Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.closed {
		return false
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		r.rooms[room] = members
	}
	if _, ok := members[c]; ok {
		return false
	}
	members[c] = struct{}{}

	joined, ok := r.conns[c]
	if !ok {
		joined = make(map[Room]struct{})
		r.conns[c] = joined
	}
	joined[room] = struct{}{}

	log.Debug().Str("conn", c.ID).Stringer("room", room).Msg("joined room")
	return true
}

// Leave removes the connection from the room.
func (r *Router) Leave(c *Conn, room Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leave(c, room)
}

func (r *Router) leave(c *Conn, room Room) {
	if members, ok := r.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if joined, ok := r.conns[c]; ok {
		delete(joined, room)
	}
}

// Disconnect removes the connection from every room it joined and closes its send queue.
// Calling it more than once is safe; only the call that closed the connection returns true.
func (r *Router) Disconnect(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.disconnect(c)
}

func (r *Router) disconnect(c *Conn) bool {
	if c.closed {
		return false
	}
	for room := range r.conns[c] {
		r.leave(c, room)
	}
	delete(r.conns, c)

	c.closed = true
	close(c.send)
	return true
}

// Close disconnects every connection the router knows about.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.conns {
		r.disconnect(c)
	}
}

// Publish queues the event on every connection currently in the room and returns
// how many connections received it. Publishing to an empty room does nothing.
// The payload is forwarded as is.
func (r *Router) Publish(room Room, event string, payload any) int {
	return r.PublishExcept(room, nil, event, payload)
}

// PublishExcept is Publish without delivering to the except connection.
func (r *Router) PublishExcept(room Room, except *Conn, event string, payload any) int {
	// Holding the read lock for the whole fan-out keeps joins out until every
	// current member has the message queued.
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg := Message{Event: event, Data: payload}
	delivered := 0
	for c := range r.rooms[room] {
		if c == except {
			continue
		}
		select {
		case c.send <- msg:
			delivered++
		default:
			log.Debug().Str("conn", c.ID).Stringer("room", room).Str("event", event).Msg("send queue full, message dropped")
			r.observer.Dropped(event, room)
		}
	}

	r.observer.Published(event, room, delivered)
	return delivered
}

// Send queues an event for a single connection. It reports false when the
// connection is gone or its queue is full.
func (r *Router) Send(c *Conn, event string, payload any) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- Message{Event: event, Data: payload}:
		return true
	default:
		return false
	}
}

// Members returns the number of connections in the room.
func (r *Router) Members(room Room) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[room])
}

// Rooms returns the rooms the connection has joined.
func (r *Router) Rooms(c *Conn) []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]Room, 0, len(r.conns[c]))
	for room := range r.conns[c] {
		rooms = append(rooms, room)
	}
	return rooms
}
