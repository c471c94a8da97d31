package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/notifier"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/worker"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/config"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/mq"
)

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	_ = godotenv.Load()
	cfg := must(config.Load())

	cons := must(mq.NewConsumer(mq.ConsumerConfig{
		URL:      cfg.RabbitURL,
		Exchange: cfg.PaymentExchange,
		Queue:    cfg.NotifyQueue,
		Keys:     []string{"booking.*", "payment.*", "payout.*"},
		Prefetch: cfg.NotifyPrefetch,
		DLX:      cfg.NotifyDLX,
		DLXQueue: cfg.NotifyDLXQueue,
	}))
	defer cons.Close()

	w := worker.NewConsumer(cons, notifier.NewConsole())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := w.Run(ctx); err != nil {
			log.Printf("[notify] run error: %v", err)
		}
	}()
	log.Printf("[notify] started queue=%s", cfg.NotifyQueue)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	cancel()
	log.Println("[notify] stopped")
}
