package messaging

import "github.com/nats-io/nats.go"

// Delivery is a decoded message whose broker acknowledgement is deferred
// until the receiver has finished with the payload
type Delivery[T any] struct {
	Payload T
	ack     func() error
	nak     func() error
}

// NewDelivery wraps payload with its settle functions. Nil functions are no-ops.
func NewDelivery[T any](payload T, ack, nak func() error) *Delivery[T] {
	return &Delivery[T]{Payload: payload, ack: ack, nak: nak}
}

// Ack confirms the message so the broker does not redeliver it
func (d *Delivery[T]) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nak asks the broker to redeliver the message
func (d *Delivery[T]) Nak() error {
	if d.nak == nil {
		return nil
	}
	return d.nak()
}

func deliveryFor[T any](payload T, msg *nats.Msg) *Delivery[T] {
	// Core NATS messages without a reply subject have nothing to settle
	if msg.Reply == "" {
		return NewDelivery(payload, nil, nil)
	}
	return NewDelivery(payload, func() error { return msg.Ack() }, func() error { return msg.Nak() })
}
