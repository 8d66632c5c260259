package handler

import (
	"errors"
	"log"
	"net/http"

	"refbook/internal/middleware"
	"refbook/internal/requestid"
	"refbook/internal/service"

	"github.com/gin-gonic/gin"
)

type PurchaseHandler struct {
	engine *service.CreditingEngine
}

func NewPurchaseHandler(engine *service.CreditingEngine) *PurchaseHandler {
	return &PurchaseHandler{engine: engine}
}

type PurchaseRequest struct {
	ProductName string   `json:"product_name" binding:"required"`
	Amount      *float64 `json:"amount" binding:"required,gte=0"`
}

// Create records a purchase and reports whether it triggered referral credit.
// POST /purchases
func (h *PurchaseHandler) Create(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}
	accountID := middleware.GetAccountID(c)
	res, err := h.engine.SubmitPurchase(c.Request.Context(), accountID, req.ProductName, *req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			validationFailed(c, err)
		case errors.Is(err, service.ErrPurchaseRecord):
			fail(c, http.StatusInternalServerError, "Purchase failed while creating purchase record")
		default:
			log.Printf("[purchase] submission failed: req=%s account=%s err=%v", requestid.FromContext(c.Request.Context()), accountID, err)
			fail(c, http.StatusInternalServerError, "Purchase failed")
		}
		return
	}

	message := "Purchase successful!"
	if res.IsFirstPurchase {
		if res.CreditsAwardedThisCall {
			message = "Purchase successful! Credits awarded."
		} else {
			message = "Purchase successful! Credits pending or not available."
		}
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": message,
		"data": gin.H{
			"purchase": gin.H{
				"id":                res.Purchase.ID,
				"product_name":      res.Purchase.ProductName,
				"amount":            res.Purchase.Amount,
				"is_first_purchase": res.IsFirstPurchase,
				"created_at":        res.Purchase.CreatedAt,
			},
			"credits_awarded": res.CreditsAwardedThisCall,
			"current_credits": res.CurrentCredits,
		},
	})
}

// List returns the caller's purchases, newest first.
// GET /purchases
func (h *PurchaseHandler) List(c *gin.Context) {
	list, err := h.engine.ListPurchases(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch purchases")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"purchases": list, "count": len(list)},
	})
}
