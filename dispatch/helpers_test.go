package dispatch

import (
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type publish struct {
	event      string
	room       Room
	recipients int
}

// recorder is an Observer that remembers what happened, in order.
type recorder struct {
	mu        sync.Mutex
	publishes []publish
	dropped   int
	evicted   int
	conns     int
}

func (r *recorder) Published(event string, room Room, recipients int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishes = append(r.publishes, publish{event, room, recipients})
}

func (r *recorder) Dropped(string, Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

func (r *recorder) Connected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns++
}

func (r *recorder) Disconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns--
}

func (r *recorder) Evicted(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted += n
}

func (r *recorder) TrackedDrivers(int) {}

func (r *recorder) rooms(event string) []Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rooms []Room
	for _, p := range r.publishes {
		if p.event == event {
			rooms = append(rooms, p.room)
		}
	}
	return rooms
}

// drain returns every message already queued on the connection.
func drain(c *Conn) []Message {
	var msgs []Message
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return msgs
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func events(msgs []Message) []string {
	names := make([]string, 0, len(msgs))
	for _, m := range msgs {
		names = append(names, m.Event)
	}
	return names
}

func coord(v float64) *float64 {
	return &v
}
