package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"laundrylink-backend/config"
	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/model"
	"laundrylink-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. ctx bounds the
// background goroutine that flushes the response cache on machine changes.
func NewRouter(ctx context.Context, h *Handler, cfg config.ServerConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(log))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, mw.KeyByIP)
	userRateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, mw.KeyByUser)

	responses := mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	if h.feed != nil {
		responses.WatchTables(ctx, h.feed, changefeed.TableMachines)
	}
	caching := responses.Middleware()

	authenticate := mw.Authenticate(h.tokens)
	adminOnly := mw.RequireRole(model.RoleAdmin)

	// API group
	api := r.Group("/api")
	{
		public := api.Group("", rateLimiter)
		public.POST("/auth/signup", h.SignUp)
		public.POST("/auth/signin", h.SignIn)
		public.GET("/machines", caching, h.ListMachines)
		public.GET("/services", caching, h.ListServices)
		public.GET("/slots", h.ListSlots)
		public.GET("/vapid_public_key", h.PushConfig)

		user := api.Group("", authenticate, userRateLimiter)
		user.GET("/auth/me", h.Me)
		user.GET("/machines/:id/availability", h.MachineAvailability)

		user.GET("/bookings", h.ListBookings)
		user.POST("/bookings", h.CreateBooking)
		user.DELETE("/bookings/:id", h.CancelBooking)

		user.GET("/orders/current", h.CurrentOrder)
		user.GET("/orders/recent", h.RecentOrders)
		user.POST("/orders/scan", h.ScanMachine)
		user.POST("/orders", h.StartOrder)

		user.GET("/wallet", h.GetWallet)
		user.GET("/wallet/transactions", h.ListTransactions)
		user.POST("/wallet/topup", h.TopUp)

		user.GET("/notifications", h.ListNotifications)
		user.POST("/notifications/:id/read", h.MarkNotificationRead)

		user.GET("/subscriptions", h.GetSubscription)
		user.PUT("/subscriptions", h.PutSubscription)
		user.DELETE("/subscriptions", h.DeleteSubscription)

		// Long-lived stream, kept out of the per-request limiters.
		api.GET("/changes", authenticate, h.Changes)

		admin := api.Group("/admin", authenticate, adminOnly, userRateLimiter)
		admin.GET("/analytics", h.Analytics)
		admin.GET("/bookings", h.AdminBookings)
		admin.GET("/orders", h.AdminOrders)
		admin.PATCH("/orders/:id/status", h.UpdateOrderStatus)
		admin.GET("/users", h.ListUsers)
		admin.PUT("/machines/:id", h.UpsertMachine)
		admin.PATCH("/machines/:id/status", h.SetMachineStatus)
	}

	return r
}
