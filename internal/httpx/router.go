package httpx

import "github.com/gin-gonic/gin"

// NewRouter wires the action API and the webhook ingress onto one engine.
func NewRouter(bh *BookingHandler, ph *ProviderHandler, wh *WebhookHandler) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	r.POST("/webhooks/gateway", wh.Handle)

	v1 := r.Group("/v1")
	{
		v1.POST("/bookings", bh.Create)
		v1.GET("/bookings/:id", bh.Get)
		v1.POST("/bookings/:id/accept", bh.Accept)
		v1.POST("/bookings/:id/pay", bh.Pay)
		v1.POST("/bookings/:id/start", bh.Start)
		v1.POST("/bookings/:id/complete", bh.Complete)
		v1.POST("/bookings/:id/confirm", bh.Confirm)
		v1.POST("/bookings/:id/cancel", bh.Cancel)
		v1.POST("/bookings/:id/dispute", bh.Dispute)
		v1.POST("/bookings/:id/refund", bh.Refund)

		v1.GET("/providers/:id", ph.Get)
		v1.PUT("/providers/:id/payout-details", ph.UpsertPayoutDetails)
	}
	return r
}
