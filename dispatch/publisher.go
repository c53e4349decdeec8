package dispatch

import (
	"encoding/json"
	"fmt"
)

// PublishNewOrder tells the vendor, then the admins, that an order was placed.
func (h *Hub) PublishNewOrder(vendorID, orderID string, details any) {
	n := OrderNotification{
		OrderID:      orderID,
		OrderDetails: details,
		Timestamp:    h.now(),
		Message:      "New order received",
	}
	h.router.Publish(VendorRoom(vendorID), EventNewOrderNotification, n)
	h.router.Publish(AdminRoom, EventNewOrderNotification, n)
}

// PublishOrderAssigned tells the driver, then the admins, that an order was assigned.
func (h *Hub) PublishOrderAssigned(driverID, orderID string, details any) {
	n := OrderNotification{
		OrderID:      orderID,
		OrderDetails: details,
		Timestamp:    h.now(),
		Message:      "New order assigned to you",
	}
	h.router.Publish(DriverRoom(driverID), EventAssignedOrderNotification, n)
	h.router.Publish(AdminRoom, EventAssignedOrderNotification, n)
}

// PublishStatusUpdate tells everyone following the order, then the admins, about a status change.
func (h *Hub) PublishStatusUpdate(orderID, status, updatedBy string) {
	s := StatusChanged{
		OrderID:   orderID,
		Status:    status,
		UpdatedBy: updatedBy,
		Message:   fmt.Sprintf("Order status updated to %s", status),
	}
	h.router.Publish(OrderRoom(orderID), EventOrderStatusChanged, s)
	h.router.Publish(AdminRoom, EventOrderStatusChanged, s)
}

// PublishOrderAvailable offers an order to every connected driver.
func (h *Hub) PublishOrderAvailable(o AvailableOrder) {
	h.router.Publish(AllDriversRoom, EventOrderAvailable, o)
	h.router.Publish(AdminRoom, EventOrderAvailable, o)
}

// ApplyOrderEvent routes a fire call received from a feed to the matching publisher.
func (h *Hub) ApplyOrderEvent(ev OrderEvent) error {
	if ev.OrderID == "" {
		return fmt.Errorf("order event %q: missing orderId", ev.Type)
	}

	switch ev.Type {
	case EventOrderNew:
		h.PublishNewOrder(ev.VendorID, ev.OrderID, ev.OrderDetails)
	case EventOrderAssigned:
		h.PublishOrderAssigned(ev.DriverID, ev.OrderID, ev.OrderDetails)
	case EventOrderStatusUpdate:
		h.PublishStatusUpdate(ev.OrderID, ev.Status, ev.UpdatedBy)
	case EventOrderAvailable:
		var o AvailableOrder
		if len(ev.OrderDetails) > 0 {
			if err := json.Unmarshal(ev.OrderDetails, &o); err != nil {
				return fmt.Errorf("order event %q: decode details: %w", ev.Type, err)
			}
		}
		o.OrderID = ev.OrderID
		h.PublishOrderAvailable(o)
	default:
		return fmt.Errorf("order event %q: unknown type", ev.Type)
	}
	return nil
}
