package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// HTTP
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// DB
	PGLedgerDSN string `envconfig:"PG_LEDGER_DSN" required:"true"`

	// Payment gateway
	OmisePublicKey string `envconfig:"OMISE_PUBLIC_KEY" required:"true"`
	OmiseSecretKey string `envconfig:"OMISE_SECRET_KEY" required:"true"`
	WebhookSecret  string `envconfig:"GATEWAY_WEBHOOK_SECRET" required:"true"`

	// Escrow
	PlatformFeeBps int64 `envconfig:"PLATFORM_FEE_BPS" default:"1000"` // 10%

	// Reconciler
	StaleWindow       time.Duration `envconfig:"RECONCILE_STALE_WINDOW" default:"15m"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"5m"`
	ReconcileMaxTries int           `envconfig:"RECONCILE_MAX_ATTEMPTS" default:"5"`

	// RabbitMQ (notification triggers)
	RabbitURL       string `envconfig:"RABBIT_URL" required:"true"`
	PaymentExchange string `envconfig:"PAYMENT_EXCHANGE" default:"marketplace.exchange"`
	NotifyQueue     string `envconfig:"NOTIFY_QUEUE" default:"notification.q"`
	NotifyDLX       string `envconfig:"NOTIFY_DLX" default:"marketplace.dlx"`
	NotifyDLXQueue  string `envconfig:"NOTIFY_DLX_QUEUE" default:"notification.dlq"`
	NotifyPrefetch  int    `envconfig:"NOTIFY_PREFETCH" default:"8"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
