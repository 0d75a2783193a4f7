package email

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const sendTimeout = 5 * time.Second

// Notify sends a message to a single recipient asynchronously. Delivery
// failures are logged, never surfaced to the caller; a nil sender makes
// this a no-op so email stays optional.
func Notify(sender Sender, recipient string, msg Message, logger *zerolog.Logger) {
	if sender == nil {
		return
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || msg.Subject == "" || msg.Body == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := sender.Send(ctx, recipient, msg.Subject, msg.Body); err != nil && logger != nil {
			logger.Error().Err(err).Str("recipient", recipient).Msg("Failed to send notification email")
		}
	}()
}

// NotifyAll fans a message out to every recipient.
func NotifyAll(sender Sender, recipients []string, msg Message, logger *zerolog.Logger) {
	for _, recipient := range recipients {
		Notify(sender, recipient, msg, logger)
	}
}
