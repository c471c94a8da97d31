package mq

import "testing"

func TestQueueArgs(t *testing.T) {
	t.Run("no dlx means no arguments", func(t *testing.T) {
		if args := queueArgs(ConsumerConfig{Queue: "q"}); args != nil {
			t.Fatalf("args %v", args)
		}
	})

	t.Run("dlx sets the dead-letter exchange", func(t *testing.T) {
		args := queueArgs(ConsumerConfig{Queue: "q", DLX: "marketplace.dlx"})
		if got := args["x-dead-letter-exchange"]; got != "marketplace.dlx" {
			t.Fatalf("x-dead-letter-exchange = %v", got)
		}
	})
}
