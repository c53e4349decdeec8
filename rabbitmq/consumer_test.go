package rabbitmq

import (
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafimuhammad01/dispatch-app/dispatch"
)

type acks struct {
	acked    []uint64
	rejected []uint64
}

func (a *acks) Ack(tag uint64, multiple bool) error {
	a.acked = append(a.acked, tag)
	return nil
}

func (a *acks) Nack(tag uint64, multiple bool, requeue bool) error {
	return nil
}

func (a *acks) Reject(tag uint64, requeue bool) error {
	a.rejected = append(a.rejected, tag)
	return nil
}

func TestHandleDeliveries(t *testing.T) {
	hub := dispatch.NewHub()
	customer := dispatch.NewConn("customer", dispatch.Principal{}, 8)
	hub.Join(customer, dispatch.OrderRoom("O1"))

	c := &Consumer{orders: hub}
	a := &acks{}

	bodies := []string{
		`{"type":"order:status_update","orderId":"O1","status":"preparing","updatedBy":"V1"}`,
		`{"type":"order:status_update"}`,
		`{{`,
		`{"type":"order:status_update","orderId":"O1","status":"ready"}`,
	}
	for i, body := range bodies {
		c.handle(amqp091.Delivery{Acknowledger: a, DeliveryTag: uint64(i + 1), Body: []byte(body)})
	}

	assert.Equal(t, []uint64{1, 4}, a.acked)
	assert.Equal(t, []uint64{2, 3}, a.rejected)

	var statuses []string
	for {
		select {
		case m := <-customer.Messages():
			statuses = append(statuses, m.Data.(dispatch.StatusChanged).Status)
			continue
		default:
		}
		break
	}
	assert.Equal(t, []string{"preparing", "ready"}, statuses)
}

type declared struct {
	exchange, kind string
	durable        bool
	exclusive      bool
	autoDelete     bool
	bound          [2]string
	bindErr        error
}

func (d *declared) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	d.exchange, d.kind, d.durable = name, kind, durable
	return nil
}

func (d *declared) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	d.exclusive, d.autoDelete = exclusive, autoDelete
	return amqp091.Queue{Name: "amq.gen-instance"}, nil
}

func (d *declared) QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error {
	d.bound = [2]string{name, exchange}
	return d.bindErr
}

func TestDeclareBindsInstanceQueueToFanout(t *testing.T) {
	d := &declared{}

	queue, err := declare(d, "order-events")
	require.NoError(t, err)

	assert.Equal(t, "amq.gen-instance", queue)
	assert.Equal(t, "order-events", d.exchange)
	assert.Equal(t, amqp091.ExchangeFanout, d.kind)
	assert.True(t, d.durable)
	assert.True(t, d.exclusive)
	assert.True(t, d.autoDelete)
	assert.Equal(t, [2]string{"amq.gen-instance", "order-events"}, d.bound)
}

func TestDeclareBindError(t *testing.T) {
	d := &declared{bindErr: errors.New("access refused")}

	_, err := declare(d, "order-events")

	assert.ErrorIs(t, err, d.bindErr)
}
