package port

import "context"

// Email is a fully composed message ready for delivery.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// NotificationSender delivers composed emails to the outbound channel.
type NotificationSender interface {
	Send(ctx context.Context, email Email) error
}
