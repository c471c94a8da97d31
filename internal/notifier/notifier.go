package notifier

import "log"

// Notifier is the delivery seam; swap console for email/push/SMS without
// touching the worker.
type Notifier interface {
	Notify(subject, message string) error
}

type ConsoleNotifier struct{}

func NewConsole() *ConsoleNotifier { return &ConsoleNotifier{} }

func (c *ConsoleNotifier) Notify(subject, message string) error {
	log.Printf("[notify] %s :: %s", subject, message)
	return nil
}
