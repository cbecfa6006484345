package router

import (
	"log/slog"
	"time"

	"balancestudio/config"
	"balancestudio/internal/handler"
	"balancestudio/internal/ledger"
	"balancestudio/internal/middleware"
	"balancestudio/internal/repository"
	"balancestudio/internal/service"
	"balancestudio/internal/ws"
	"balancestudio/pkg/mailer"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, log *slog.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics())

	// Repositories
	userRepo := repository.NewUserRepository(db)
	friendshipRepo := repository.NewFriendshipRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	otpRepo := repository.NewOTPRepository(db)
	resetRepo := repository.NewResetRepository(db)

	hub := ws.NewHub()
	events := ws.NewEvents(hub)

	// Services
	mailSvc := service.NewMailService(mailer.New(&cfg.SMTP, log), cfg.Frontend.BaseURL)
	if cfg.SMTP.Host == "" {
		log.Info("email disabled: set SMTP_HOST to enable")
	}
	fcmSvc := service.NewFCMService(cfg.Firebase.CredentialsFile, log)
	if fcmSvc != nil {
		log.Info("push notifications enabled")
	} else {
		log.Info("push notifications disabled: set FIREBASE_CREDENTIALS_FILE to enable")
	}
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, fcmSvc, events, log)
	authSvc := service.NewAuthService(cfg, userRepo, otpRepo, resetRepo, inviteRepo, mailSvc, log)
	engine := ledger.NewEngine(friendshipRepo, expenseRepo, settlementRepo, notifSvc, mailSvc, log)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, userRepo)
	googleOAuthHandler := handler.NewGoogleOAuthHandler(cfg, authSvc)
	friendHandler := handler.NewFriendHandler(engine, friendshipRepo, settlementRepo, userRepo, log)
	inviteHandler := handler.NewInviteHandler(engine, inviteRepo, friendshipRepo, userRepo, mailSvc, notifSvc, events, log)
	expenseHandler := handler.NewExpenseHandler(engine, expenseRepo, activityRepo, userRepo, notifSvc, events, log)
	notificationHandler := handler.NewNotificationHandler(notificationRepo, events)

	authMw := middleware.AuthRequired(&cfg.JWT)
	authLimiter := middleware.RateLimitByIP(middleware.NewRateLimiter(20, time.Minute))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authGroup.Use(authLimiter)
		{
			authGroup.POST("/signup/start", authHandler.StartSignup)
			authGroup.POST("/signup/complete", authHandler.CompleteSignup)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/forgot-password", authHandler.ForgotPassword)
			authGroup.POST("/reset-password", authHandler.ResetPassword)
			authGroup.GET("/google", googleOAuthHandler.Redirect)
			authGroup.GET("/google/callback", googleOAuthHandler.Callback)
			authGroup.POST("/google/token", googleOAuthHandler.Token)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("", authHandler.Me)
			me.PATCH("", authHandler.UpdateProfile)
			me.PATCH("/password", authHandler.ChangePassword)
			me.POST("/fcm-token", authHandler.UpdateFCMToken)
			me.GET("/activity", expenseHandler.Activity)
			me.GET("/notifications", notificationHandler.List)
			me.GET("/notifications/unread-count", notificationHandler.UnreadCount)
			me.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.DELETE("/notifications/:id", notificationHandler.Delete)
		}

		friends := api.Group("/friends")
		friends.Use(authMw)
		{
			friends.GET("", friendHandler.List)
			friends.GET("/:id/breakdown", friendHandler.Breakdown)
			friends.GET("/:id/settlements", friendHandler.Settlements)
			friends.POST("/:id/settle", friendHandler.Settle)
			friends.POST("/:id/settle-all", friendHandler.SettleAll)
		}

		invites := api.Group("/invites")
		invites.Use(authMw)
		{
			invites.POST("", inviteHandler.Create)
			invites.GET("/incoming", inviteHandler.Incoming)
			invites.GET("/outgoing", inviteHandler.Outgoing)
			invites.POST("/:id/accept", inviteHandler.Accept)
			invites.POST("/:id/reject", inviteHandler.Reject)
		}

		expenses := api.Group("/expenses")
		expenses.Use(authMw)
		{
			expenses.POST("", expenseHandler.Create)
			expenses.GET("", expenseHandler.List)
			expenses.GET("/:id", expenseHandler.Get)
		}

		api.GET("/users/search", authMw, friendHandler.Search)
	}

	r.GET("/ws/events", ws.UpgradeEvents(&cfg.JWT, hub))
	r.GET("/metrics", middleware.MetricsHandler())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
