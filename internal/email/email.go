package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/parking/internal/kafka"
)

// Sender turns reservation events into user notifications. Delivery is a log
// line until a mail provider is wired in.
type Sender struct {
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.ReservationEvent) error {
	subject, ok := Subject(event)
	if !ok {
		return nil
	}
	s.logger.InfoContext(ctx, "send notification",
		"user_id", event.UserID,
		"reference", event.Reference,
		"subject", subject,
	)
	return nil
}

// Subject returns the notification subject for an event type, or false when
// the event does not warrant a notification.
func Subject(event kafka.ReservationEvent) (string, bool) {
	switch event.Type {
	case kafka.EventReservationCreated:
		return fmt.Sprintf("Reservation %s is held until %s, amount due %d.%02d",
			event.Reference, event.HoldExpiresAt.Format("15:04"), event.AmountCents/100, event.AmountCents%100), true
	case kafka.EventReservationConfirmed:
		return fmt.Sprintf("Reservation %s is confirmed", event.Reference), true
	case kafka.EventReservationCancelled:
		return fmt.Sprintf("Reservation %s was cancelled", event.Reference), true
	case kafka.EventReservationExpired:
		return fmt.Sprintf("Reservation %s expired before confirmation", event.Reference), true
	default:
		return "", false
	}
}
