package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/domain"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/service"
)

type BookingHandler struct {
	bookings *service.BookingSvc
	escrow   *service.EscrowSvc
}

func NewBookingHandler(b *service.BookingSvc, e *service.EscrowSvc) *BookingHandler {
	return &BookingHandler{bookings: b, escrow: e}
}

// POST /v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	var in struct {
		ClientID    string `json:"client_id" binding:"required"`
		ProviderID  string `json:"provider_id" binding:"required"`
		ServiceID   string `json:"service_id" binding:"required"`
		ScheduledAt string `json:"scheduled_at" binding:"required"` // RFC3339
		DurationMin int    `json:"duration_min" binding:"required"`
		Amount      int64  `json:"amount" binding:"required"`
		Currency    string `json:"currency" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	at, err := time.Parse(time.RFC3339, in.ScheduledAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_at must be RFC3339"})
		return
	}
	b, err := h.bookings.Create(c.Request.Context(), service.CreateBookingInput{
		ClientID:    in.ClientID,
		ProviderID:  in.ProviderID,
		ServiceID:   in.ServiceID,
		ScheduledAt: at,
		DurationMin: in.DurationMin,
		Amount:      in.Amount,
		Currency:    in.Currency,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// GET /v1/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	b, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	out := gin.H{"booking": b}
	if p, err := h.bookings.PaymentFor(c.Request.Context(), b.ID); err == nil {
		out["payment"] = p
		if pos, err := h.bookings.PayoutsFor(c.Request.Context(), p.ID); err == nil && len(pos) > 0 {
			out["payouts"] = pos
		}
	}
	c.JSON(http.StatusOK, out)
}

// POST /v1/bookings/:id/accept (provider)
func (h *BookingHandler) Accept(c *gin.Context) {
	h.action(c, h.bookings.Accept)
}

// POST /v1/bookings/:id/start (provider)
func (h *BookingHandler) Start(c *gin.Context) {
	h.action(c, h.bookings.StartWork)
}

// POST /v1/bookings/:id/complete (provider)
func (h *BookingHandler) Complete(c *gin.Context) {
	h.action(c, h.bookings.CompleteWork)
}

// POST /v1/bookings/:id/cancel (client, only before escrow)
func (h *BookingHandler) Cancel(c *gin.Context) {
	h.action(c, h.bookings.Cancel)
}

// POST /v1/bookings/:id/dispute (client)
func (h *BookingHandler) Dispute(c *gin.Context) {
	h.action(c, h.bookings.Dispute)
}

// POST /v1/bookings/:id/pay (client)
func (h *BookingHandler) Pay(c *gin.Context) {
	var in struct {
		CardToken string `json:"card_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.bookings.Pay(c.Request.Context(), service.PayInput{
		BookingID: c.Param("id"),
		CardToken: in.CardToken,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_id":    res.Payment.ID,
		"gateway_ref":   res.Payment.GatewayRef,
		"status":        res.Payment.Status,
		"authorize_uri": res.AuthorizeURI,
	})
}

// POST /v1/bookings/:id/confirm (client confirms completed work -> release)
func (h *BookingHandler) Confirm(c *gin.Context) {
	po, err := h.escrow.Release(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payout_id": po.ID,
		"status":    po.Status,
		"amount":    po.Amount,
	})
}

// POST /v1/bookings/:id/refund (admin)
func (h *BookingHandler) Refund(c *gin.Context) {
	p, err := h.bookings.Refund(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_id": p.ID, "status": p.Status})
}

func (h *BookingHandler) action(c *gin.Context, fn func(ctx context.Context, id string) (*domain.Booking, error)) {
	b, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// fail maps service errors onto the API contract so callers always get a
// specific, actionable message instead of money in an undefined state behind
// a generic 500.
func fail(c *gin.Context, err error) {
	var rerr *service.ReleaseError
	switch {
	case errors.As(err, &rerr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":           rerr.Error(),
			"stage":           rerr.Stage,
			"action_required": rerr.ActionRequired,
		})
	case errors.Is(err, service.ErrReleasePending):
		c.JSON(http.StatusAccepted, gin.H{
			"status": "pending_reconciliation",
			"detail": "transfer outcome unknown; it will be resolved automatically",
		})
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, service.ErrCancellationLocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPayoutDetailsMissing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":           err.Error(),
			"action_required": "provider must complete payout bank details",
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, gateway.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gateway.ErrGatewayUnavailable), errors.Is(err, gateway.ErrAmbiguousOutcome):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
