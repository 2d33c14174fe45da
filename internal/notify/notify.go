// Package notify delivers user notifications over email and WhatsApp.
// Delivery is best effort and never fails the request that triggered it.
package notify

import "context"

// Message is one notification to a user. Channels skip messages lacking their address.
type Message struct {
	To      string // email address
	Phone   string // E.164 or national number
	Subject string
	Body    string
}

// Sender delivers a message over one channel.
type Sender interface {
	Channel() string
	Accepts(msg Message) bool
	Send(ctx context.Context, msg Message) error
}

// Notifier is what services depend on.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) {}
