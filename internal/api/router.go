package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"voyago/backend/internal/api/handlers"
	"voyago/backend/internal/api/middleware"
	"voyago/backend/internal/config"
	"voyago/backend/internal/logger"
	"voyago/backend/internal/metrics"
	"voyago/backend/internal/models"
	"voyago/backend/internal/services"
	"voyago/backend/internal/storage"
	"voyago/backend/internal/tasks"
)

// Services bundles what the HTTP layer depends on.
type Services struct {
	Config         services.IConfigService
	User           services.IUserService
	Listing        services.IListingService
	Booking        services.IBookingService
	Chat           services.IChatService
	Recommendation services.IRecommendationService
	Wallet         services.IWalletService
	Favorite       services.IFavoriteService
	Review         services.IReviewService
	Storage        storage.IS3Storage
	TaskClient     handlers.IAsynqClient
}

// SetupRouter configures and returns the main Gin engine. Background
// goroutines owned by the router stop when ctx is done.
func SetupRouter(ctx context.Context, cfg *config.Config, svc Services, m *metrics.Metrics, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logger.Recovery(log), logger.GinMiddleware(log), m.GinMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowOrigin))

	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg, svc.Config, log)

	restConfigHandler := handlers.NewRestConfigHandler(svc.Config)
	restListingHandler := handlers.NewRestListingHandler(svc.Listing, svc.Review, svc.Storage)
	restBookingHandler := handlers.NewRestBookingHandler(svc.Booking, svc.TaskClient)
	restRecommendationHandler := handlers.NewRestRecommendationHandler(svc.Recommendation)
	restChatHandler := handlers.NewRestChatHandler(svc.Chat)
	restWalletHandler := handlers.NewRestWalletHandler(svc.Wallet)
	restHostHandler := handlers.NewRestHostHandler(svc.User, svc.Storage)
	restFavoriteHandler := handlers.NewRestFavoriteHandler(svc.Favorite)
	restReviewHandler := handlers.NewRestReviewHandler(svc.Review)
	restAdminHandler := handlers.NewRestAdminHandler(svc.Wallet, svc.TaskClient)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		// Public routes, limited per IP
		public := v1.Group("/")
		public.Use(rateLimiter.Limit())
		{
			public.GET("/ping", func(c *gin.Context) {
				c.String(http.StatusOK, "pong")
			})
			public.GET("/config", restConfigHandler.GetPublicConfig)
			public.GET("/listings", restListingHandler.SearchListings)
			public.GET("/listings/:id", restListingHandler.GetListingByID)
			public.GET("/listings/:id/rating", restListingHandler.GetListingRating)
		}

		// Authenticated routes, limited per user
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.UserMiddleware(svc.User), rateLimiter.Limit())
		{
			authRequired.GET("/recommendations", restRecommendationHandler.GetRecommendations)

			authRequired.GET("/bookings", restBookingHandler.ListBookings)
			authRequired.POST("/bookings", restBookingHandler.CreateBooking)
			authRequired.POST("/reviews", restReviewHandler.AddReview)

			authRequired.GET("/favorites", restFavoriteHandler.ListFavorites)
			authRequired.PUT("/favorites/:listingId", restFavoriteHandler.AddFavorite)
			authRequired.DELETE("/favorites/:listingId", restFavoriteHandler.RemoveFavorite)

			authRequired.GET("/conversations", restChatHandler.ListConversations)
			conv := authRequired.Group("/conversations/:otherUserId")
			{
				conv.GET("/messages", restChatHandler.GetMessages)
				conv.POST("/messages", restChatHandler.SendMessage)
				conv.POST("/read", restChatHandler.MarkRead)
				conv.POST("/typing", restChatHandler.SetTyping)
				conv.GET("/typing", restChatHandler.GetTyping)
				conv.GET("/stream", restChatHandler.Stream)
			}

			authRequired.GET("/wallet", restWalletHandler.GetWallet)
			authRequired.POST("/wallet/cash-in", restWalletHandler.CashIn)

			// Onboarding is how a guest becomes a host, so it only needs a login.
			authRequired.POST("/host/onboarding", restHostHandler.CompleteOnboarding)
			authRequired.POST("/host/onboarding/photo-url", restHostHandler.PresignOnboardingPhoto)

			host := authRequired.Group("/")
			host.Use(middleware.RequireRole(models.RoleHost))
			{
				host.PUT("/host/payout-email", restHostHandler.SetPayoutEmail)
				host.POST("/host/listings", restListingHandler.CreateListing)
				host.PUT("/host/listings/:id/status", restListingHandler.SetListingStatus)
				host.POST("/host/listings/:id/image-url", restListingHandler.PresignListingImage)
				host.POST("/host/bookings/:id/confirm", restBookingHandler.ConfirmBooking)
				host.POST("/host/bookings/:id/complete", restBookingHandler.CompleteBooking)
				host.POST("/wallet/withdrawals", restWalletHandler.RequestWithdrawal)
				host.GET("/wallet/withdrawals", restWalletHandler.ListWithdrawals)
			}
		}

		// Admin routes
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware(), rateLimiter.Limit())
		{
			adminRequired.GET("/withdrawals", restAdminHandler.ListPendingWithdrawals)
			adminRequired.POST("/withdrawals/:id/process", restAdminHandler.ProcessWithdrawal)
			adminRequired.POST("/sweeps/:name", restAdminHandler.RunSweep)
			adminRequired.PUT("/config", restConfigHandler.SetConfigValue)
		}
	}

	return r
}

// SetupServiceRouter configures the internal service API, reachable only
// from the deployment network.
func SetupServiceRouter(taskClient handlers.IAsynqClient, shutdownChan chan<- struct{}, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logger.Recovery(log), logger.GinMiddleware(log))

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Info("Received shutdown command via service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Warn("Shutdown channel already signaled")
			}
		case "enqueueTask":
			var args []string // ["task_type", optional "json_payload"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) == 0 || len(args) > 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [taskType, payload?]"})
				return
			}
			switch args[0] {
			case tasks.TypeBookingCompleteDue, tasks.TypeWithdrawalPendingSweep, tasks.TypeRecommendationRefresh:
			default:
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("Unknown task type: %s", args[0])})
				return
			}
			var payload []byte
			if len(args) == 2 {
				payload = []byte(args[1])
			}
			info, err := taskClient.EnqueueContext(c.Request.Context(), asynq.NewTask(args[0], payload))
			if err != nil {
				log.Error("Service API enqueue failed", zap.String("type", args[0]), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to enqueue task"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "result": info.ID})
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
