package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/rafimuhammad01/dispatch-app/dispatch"
)

// Writer is the part of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Publisher forwards driver fixes to the location topic.
type Publisher struct {
	w Writer
}

type opts func(*Publisher)

// NewPublisher will create new Publisher
func NewPublisher(opts ...opts) *Publisher {
	p := Publisher{}

	for _, opt := range opts {
		opt(&p)
	}

	return &p
}

// WithWriter will assign the writer the publisher sends through
func WithWriter(w Writer) opts {
	return func(p *Publisher) {
		p.w = w
	}
}

// Send publishes the fix keyed by driver id, so one driver's fixes stay on one partition
// and are consumed in the order they were sent.
func (p *Publisher) Send(ctx context.Context, l dispatch.LocationReport) error {
	value, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}

	err = p.w.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(l.DriverID),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("write location: %w", err)
	}
	return nil
}

// NewDialer builds a dialer authenticating with SCRAM-SHA-256 when a username is set.
func NewDialer(username, password string, useTLS bool) (*kafkago.Dialer, error) {
	d := &kafkago.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	if username != "" {
		mechanism, err := scram.Mechanism(scram.SHA256, username, password)
		if err != nil {
			return nil, fmt.Errorf("scram mechanism: %w", err)
		}
		d.SASLMechanism = mechanism
	}
	if useTLS {
		d.TLS = &tls.Config{}
	}

	return d, nil
}
