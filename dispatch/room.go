package dispatch

// Role denotes the scope of a room.
type Role string

const (
	RoleOrder    Role = "order"
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
	RoleDrivers  Role = "drivers"
	RoleCart     Role = "cart"
)

// Room is the key of a broadcast group.
// Two rooms are the same room only when both the role and the entity id are equal,
// so keys built from distinct (role, id) pairs never collide.
type Room struct {
	Role Role
	ID   string
}

// AdminRoom is the single room every admin dashboard joins.
var AdminRoom = Room{Role: RoleAdmin}

// AllDriversRoom receives orders waiting for pickup.
var AllDriversRoom = Room{Role: RoleDrivers}

func OrderRoom(orderID string) Room       { return Room{Role: RoleOrder, ID: orderID} }
func CustomerRoom(customerID string) Room { return Room{Role: RoleCustomer, ID: customerID} }
func VendorRoom(vendorID string) Room     { return Room{Role: RoleVendor, ID: vendorID} }
func DriverRoom(driverID string) Room     { return Room{Role: RoleDriver, ID: driverID} }
func CartRoom(cartID string) Room         { return Room{Role: RoleCart, ID: cartID} }

// String renders the room for logs, e.g. "order:O1" or "admin".
func (r Room) String() string {
	if r.ID == "" {
		return string(r.Role)
	}
	return string(r.Role) + ":" + r.ID
}
