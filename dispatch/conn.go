package dispatch

// Principal is the identity a connection proved when it was opened.
// An anonymous principal has an empty Subject.
type Principal struct {
	Subject string
	Role    Role
}

// Conn is the hub side of one client socket.
// Everything published to a room the connection joined is queued on its send channel;
// the transport drains it with Messages.
type Conn struct {
	ID        string
	Principal Principal

	send chan Message
	// closed is guarded by the router lock.
	closed bool
}

// NewConn creates a connection whose send queue holds up to buffer messages.
// When the queue is full further messages for this connection are dropped.
func NewConn(id string, p Principal, buffer int) *Conn {
	if buffer < 1 {
		buffer = 1
	}
	return &Conn{
		ID:        id,
		Principal: p,
		send:      make(chan Message, buffer),
	}
}

// Messages returns the queue of outgoing messages.
// It is closed once the connection is disconnected from the hub.
func (c *Conn) Messages() <-chan Message {
	return c.send
}
