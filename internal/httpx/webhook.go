package httpx

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/service"
)

const signatureHeader = "X-Gateway-Signature"

// WebhookHandler is the single gateway ingress. Contract with the gateway:
// 401 only for a bad signature; 200 for everything authenticated, including
// events we cannot use, since returning errors for those would make the
// gateway retry a permanently-unprocessable delivery forever. 500 only when our own
// storage failed and a retry can succeed.
type WebhookHandler struct {
	gw  gateway.Client
	svc *service.WebhookSvc
}

func NewWebhookHandler(gw gateway.Client, svc *service.WebhookSvc) *WebhookHandler {
	return &WebhookHandler{gw: gw, svc: svc}
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !h.gw.VerifySignature(body, c.GetHeader(signatureHeader)) {
		// Security event: drop before touching any state.
		log.Printf("[webhook] invalid signature from %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	ev, err := gateway.ParseEvent(body)
	if err != nil {
		// Authenticated but permanently unprocessable. Ack it; an error
		// status would make the gateway redeliver it forever.
		log.Printf("[webhook] unparseable event acknowledged: %v", err)
		c.Status(http.StatusOK)
		return
	}

	if err := h.svc.Process(c.Request.Context(), ev); err != nil {
		log.Printf("[webhook] process event=%s: %v", ev.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	c.Status(http.StatusOK)
}
