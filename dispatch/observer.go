package dispatch

// Observer is notified of hub activity so that dropped notifications are visible
// somewhere outside the hub. Implementations must be cheap and must not call back into the hub.
type Observer interface {
	Published(event string, room Room, recipients int)
	Dropped(event string, room Room)
	Connected()
	Disconnected()
	Evicted(n int)
	TrackedDrivers(n int)
}

type nopObserver struct{}

func (nopObserver) Published(string, Room, int) {}
func (nopObserver) Dropped(string, Room)        {}
func (nopObserver) Connected()                  {}
func (nopObserver) Disconnected()               {}
func (nopObserver) Evicted(int)                 {}
func (nopObserver) TrackedDrivers(int)          {}

// Authorizer decides whether a principal may join a room.
type Authorizer interface {
	AuthorizeJoin(p Principal, room Room) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(p Principal, room Room) bool

func (f AuthorizerFunc) AuthorizeJoin(p Principal, room Room) bool {
	return f(p, room)
}

// AllowAll lets any connection join any room.
var AllowAll = AuthorizerFunc(func(Principal, Room) bool { return true })
