package handler

import (
	"errors"
	"net/http"
	"strconv"

	"refbook/internal/middleware"
	"refbook/internal/service"

	"github.com/gin-gonic/gin"
)

type ReferralHandler struct {
	dashboard *service.DashboardService
	accounts  *service.AccountService
}

func NewReferralHandler(dashboard *service.DashboardService, accounts *service.AccountService) *ReferralHandler {
	return &ReferralHandler{dashboard: dashboard, accounts: accounts}
}

// GetDashboard returns referral totals and the caller's credit balance.
// GET /referrals/dashboard
func (h *ReferralHandler) GetDashboard(c *gin.Context) {
	stats, err := h.dashboard.Dashboard(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to fetch dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// GetMyReferrals returns the accounts the caller has referred.
// GET /referrals
func (h *ReferralHandler) GetMyReferrals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	links, err := h.dashboard.Referrals(c.Request.Context(), middleware.GetAccountID(c), limit, offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch referrals")
		return
	}
	out := make([]gin.H, 0, len(links))
	for _, l := range links {
		item := gin.H{
			"id":              l.ID,
			"status":          l.Status,
			"credits_awarded": l.CreditsAwarded,
			"created_at":      l.CreatedAt,
		}
		if l.Referred != nil {
			item["referred"] = gin.H{
				"id":            l.Referred.ID,
				"name":          l.Referred.Name,
				"email":         l.Referred.Email,
				"has_purchased": l.Referred.HasPurchased,
				"created_at":    l.Referred.CreatedAt,
			}
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"referrals": out, "count": len(out)}})
}

// ValidateCode reports whether a referral code exists, and whose it is.
// GET /referrals/validate/:code
func (h *ReferralHandler) ValidateCode(c *gin.Context) {
	a, err := h.accounts.ValidateReferralCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidReferralCode) {
			fail(c, http.StatusNotFound, "Invalid referral code")
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to validate referral code")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Valid referral code",
		"data":    gin.H{"referrer_name": a.Name},
	})
}
