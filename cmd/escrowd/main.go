package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/httpx"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/reconciler"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/repository"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/service"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/config"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/db"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/mq"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/obs"
	"github.com/Molemo21/ConnectSA-k9-sub007/pkg/retry"
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

	shutdownTracer := obs.InitTracer("escrowd")
	defer func() { _ = shutdownTracer(context.Background()) }()

	// DB + ledger
	gdb := db.Open(cfg.PGLedgerDSN)
	repo := repository.NewLedgerRepo(gdb)
	must(0, repo.Migrate())

	// Gateway
	gw := must(gateway.NewOmiseClient(cfg.OmisePublicKey, cfg.OmiseSecretKey, cfg.WebhookSecret))

	// Notification triggers
	pub := must(mq.NewPublisher(cfg.RabbitURL, cfg.PaymentExchange))
	defer pub.Close()

	// Services
	bookings := service.NewBookingSvc(repo, gw, pub)
	escrow := service.NewEscrowSvc(repo, gw, pub, retry.Default)
	webhooks := service.NewWebhookSvc(repo, pub, cfg.PlatformFeeBps)
	providers := service.NewProviderSvc(repo)

	// Reconciler loop
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := reconciler.New(repo, gw, webhooks, cfg.StaleWindow, cfg.ReconcileInterval, cfg.ReconcileMaxTries)
	go rec.Run(ctx)
	log.Printf("[escrowd] reconciler running window=%s interval=%s", cfg.StaleWindow, cfg.ReconcileInterval)

	// HTTP
	r := httpx.NewRouter(
		httpx.NewBookingHandler(bookings, escrow),
		httpx.NewProviderHandler(providers),
		httpx.NewWebhookHandler(gw, webhooks),
	)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Printf("[escrowd] http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Println("[escrowd] stopped")
}
