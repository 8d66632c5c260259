package handler

import (
	"errors"
	"log"
	"net/http"

	"refbook/internal/middleware"
	"refbook/internal/models"
	"refbook/internal/requestid"
	"refbook/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc *service.AccountService
}

func NewAuthHandler(svc *service.AccountService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	Name         string `json:"name" binding:"required,min=2,max=50"`
	ReferralCode string `json:"referral_code" binding:"max=20"` // optional: referrer's code
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func accountJSON(a *models.Account) gin.H {
	return gin.H{
		"id":            a.ID,
		"email":         a.Email,
		"name":          a.Name,
		"referral_code": a.ReferralCode,
		"credits":       a.Credits,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}
	a, err := h.svc.CreateAccountWithReferral(c.Request.Context(), req.Email, req.Password, req.Name, req.ReferralCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			validationFailed(c, err)
		case errors.Is(err, service.ErrInvalidReferralCode):
			fail(c, http.StatusBadRequest, "Invalid referral code")
		case errors.Is(err, service.ErrDuplicateAccount):
			fail(c, http.StatusConflict, "User already exists with this email")
		case errors.Is(err, service.ErrReferralLinkConflict):
			fail(c, http.StatusInternalServerError, "Registration failed while creating referral")
		default:
			log.Printf("[auth] register failed: req=%s email=%s err=%v", requestid.FromContext(c.Request.Context()), req.Email, err)
			fail(c, http.StatusInternalServerError, "Registration failed")
		}
		return
	}
	token, err := h.svc.IssueToken(a)
	if err != nil {
		log.Printf("[auth] token issue failed: req=%s account=%s err=%v", requestid.FromContext(c.Request.Context()), a.ID, err)
		fail(c, http.StatusInternalServerError, "Registration failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Registration successful",
		"data": gin.H{
			"user":  accountJSON(a),
			"token": token,
		},
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}
	a, token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCreds) {
			fail(c, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		log.Printf("[auth] login failed: req=%s err=%v", requestid.FromContext(c.Request.Context()), err)
		fail(c, http.StatusInternalServerError, "Login failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"data": gin.H{
			"user":  accountJSON(a),
			"token": token,
		},
	})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	a, err := h.svc.Profile(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}
	user := accountJSON(a)
	user["has_purchased"] = a.HasPurchased
	user["created_at"] = a.CreatedAt
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"user": user}})
}
