package router

import (
	"net/http"
	"time"

	"refbook/config"
	"refbook/internal/handler"
	"refbook/internal/middleware"
	"refbook/internal/repository"
	"refbook/internal/service"
	"refbook/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services is the wired application graph, exposed so the CLI can reuse it.
type Services struct {
	Accounts  *service.AccountService
	Engine    *service.CreditingEngine
	Dashboard *service.DashboardService
	Audit     *service.AuditService
	Notify    *service.NotificationService
	Hub       *ws.Hub
	Limiter   *middleware.InMemoryRateLimiter
}

func NewServices(cfg *config.Config, db *gorm.DB) *Services {
	// Repositories
	accountRepo := repository.NewAccountRepository(db).WithCodeAttempts(cfg.Referral.CodeAttempts)
	referralRepo := repository.NewReferralRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	hub := ws.NewHub()
	notify := service.NewNotificationService(notificationRepo, hub)

	return &Services{
		Accounts:  service.NewAccountService(cfg, accountRepo, referralRepo),
		Engine:    service.NewCreditingEngine(&cfg.Referral, accountRepo, referralRepo, purchaseRepo, settingRepo, notify),
		Dashboard: service.NewDashboardService(accountRepo, referralRepo),
		Audit:     service.NewAuditService(cfg.Audit, referralRepo),
		Notify:    notify,
		Hub:       hub,
		Limiter:   middleware.NewInMemoryRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window),
	}
}

func Setup(cfg *config.Config, svcs *Services) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Server.RequestLog {
		r.Use(gin.Logger())
	}
	r.Use(middleware.RequestID())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Server is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Handlers
	authHandler := handler.NewAuthHandler(svcs.Accounts)
	purchaseHandler := handler.NewPurchaseHandler(svcs.Engine)
	referralHandler := handler.NewReferralHandler(svcs.Dashboard, svcs.Accounts)
	notificationHandler := handler.NewNotificationHandler(svcs.Notify)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(svcs.Limiter))
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/profile", authMw, authHandler.Profile)
		}

		purchases := api.Group("/purchases")
		purchases.Use(authMw)
		{
			purchases.POST("", purchaseHandler.Create)
			purchases.GET("", purchaseHandler.List)
		}

		referrals := api.Group("/referrals")
		{
			referrals.GET("", authMw, referralHandler.GetMyReferrals)
			referrals.GET("/dashboard", authMw, referralHandler.GetDashboard)
			referrals.GET("/validate/:code", referralHandler.ValidateCode)
		}

		notifications := api.Group("/notifications")
		notifications.Use(authMw)
		{
			notifications.GET("", notificationHandler.List)
			notifications.PATCH("/:id/read", notificationHandler.MarkRead)
		}
	}

	r.GET("/ws/credits", ws.UpgradeCreditsWS(&cfg.JWT, svcs.Hub))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
	})
	return r
}
