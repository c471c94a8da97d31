package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/service"
)

type ProviderHandler struct {
	providers *service.ProviderSvc
}

func NewProviderHandler(p *service.ProviderSvc) *ProviderHandler {
	return &ProviderHandler{providers: p}
}

// PUT /v1/providers/:id/payout-details
func (h *ProviderHandler) UpsertPayoutDetails(c *gin.Context) {
	var in struct {
		Name          string `json:"name" binding:"required"`
		BankName      string `json:"bank_name" binding:"required"`
		BankBranch    string `json:"bank_branch"`
		AccountName   string `json:"account_name" binding:"required"`
		AccountNumber string `json:"account_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.providers.UpsertPayoutDetails(c.Request.Context(), c.Param("id"), service.PayoutDetailsInput{
		Name:          in.Name,
		BankName:      in.BankName,
		BankBranch:    in.BankBranch,
		AccountName:   in.AccountName,
		AccountNumber: in.AccountNumber,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /v1/providers/:id
func (h *ProviderHandler) Get(c *gin.Context) {
	p, err := h.providers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
