package worker

import (
	"context"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/events"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/notifier"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/mq"
)

// Consumer turns marketplace state-change events into notifications. It is
// the "external notification subsystem" from the escrow core's point of
// view: the core only publishes triggers.
type Consumer struct {
	cons *mq.Consumer
	n    notifier.Notifier
}

func NewConsumer(cons *mq.Consumer, n notifier.Notifier) *Consumer {
	return &Consumer{cons: cons, n: n}
}

func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.cons.Deliveries(ctx)
	if err != nil {
		return fmt.Errorf("consume failed: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := c.handle(d); err != nil {
				// No requeue: the queue's dead-letter exchange parks the
				// delivery for inspection instead of spinning it in place.
				log.Printf("[notify] handle key=%s err=%v -> dead-letter", d.RoutingKey, err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(d amqp.Delivery) error {
	ev, err := events.Unmarshal[events.StateChanged](d.Body)
	if err != nil {
		return err
	}

	switch d.RoutingKey {
	case events.RKBookingCreated:
		return c.n.Notify("Booking requested",
			fmt.Sprintf("Booking %s is waiting for the provider to accept.", ev.BookingID))
	case events.RKBookingAccepted:
		return c.n.Notify("Booking accepted",
			fmt.Sprintf("Booking %s was accepted; payment can now be made.", ev.BookingID))
	case events.RKBookingCancelled:
		return c.n.Notify("Booking cancelled",
			fmt.Sprintf("Booking %s has been cancelled.", ev.BookingID))
	case events.RKBookingDisputed:
		return c.n.Notify("Booking disputed",
			fmt.Sprintf("Booking %s was disputed; funds stay in escrow pending review.", ev.BookingID))
	case events.RKPaymentEscrowed:
		return c.n.Notify("Payment received",
			fmt.Sprintf("Booking %s: %d %s captured and held in escrow.", ev.BookingID, ev.Amount, ev.Currency))
	case events.RKPaymentFailed:
		msg := fmt.Sprintf("Payment failed for booking %s.", ev.BookingID)
		if ev.Reason != "" {
			msg = fmt.Sprintf("%s Reason: %s", msg, ev.Reason)
		}
		return c.n.Notify("Payment failed", msg)
	case events.RKPaymentReleased:
		return c.n.Notify("Funds released",
			fmt.Sprintf("Booking %s: %d %s paid out to the provider.", ev.BookingID, ev.Amount, ev.Currency))
	case events.RKPaymentRefunded:
		return c.n.Notify("Payment refunded",
			fmt.Sprintf("Booking %s: %d %s refunded to the client.", ev.BookingID, ev.Amount, ev.Currency))
	case events.RKPayoutFailed:
		msg := fmt.Sprintf("Payout failed for booking %s; funds are back in escrow.", ev.BookingID)
		if ev.Reason != "" {
			msg = fmt.Sprintf("%s Reason: %s", msg, ev.Reason)
		}
		return c.n.Notify("Payout failed", msg)
	default:
		log.Printf("[notify] skip unknown key=%s", d.RoutingKey)
	}
	return nil
}
