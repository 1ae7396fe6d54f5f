package server

import (
	"context"
	"net/http"

	"studiopass/internal/auth"
	"studiopass/internal/booking"
	"studiopass/internal/config"
	"studiopass/internal/pass"
	"studiopass/internal/schedule"
	"studiopass/internal/user"

	"github.com/gin-gonic/gin"
)

type Server struct {
	router *gin.Engine
	config *config.Config
	http   *http.Server
}

type Handlers struct {
	User     *user.Handler
	Pass     *pass.Handler
	Schedule *schedule.Handler
	Booking  *booking.Handler
}

func New(cfg *config.Config, h Handlers) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())

	authRoutes := router.Group("/auth")
	authRoutes.Use(RateLimitMiddleware(5, 10))
	{
		authRoutes.POST("/register", h.User.Register)
		authRoutes.POST("/login", h.User.Login)
		authRoutes.POST("/refresh", h.User.RefreshToken)
	}

	// Booking entry points serve guests and members alike. Identity,
	// when present, unlocks pass payment.
	router.GET("/booking/categories", h.Booking.ListCategories)
	router.GET("/dates", h.Schedule.ListOpenDates)
	router.GET("/dates/:date/availability", h.Schedule.DateAvailability)
	router.POST("/bookings", auth.OptionalAuthMiddleware(cfg.JWTSecret), h.Booking.Book)

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", h.User.GetMe)
		protected.GET("/passes", h.Pass.ListMyPasses)
		protected.POST("/passes/trial", h.Pass.GrantTrial)
		protected.GET("/bookings", h.Booking.ListMyBookings)
		protected.POST("/bookings/:bookingID/cancel", h.Booking.CancelBooking)
	}

	adminMiddleware := auth.RequireRole("admin")
	admin := router.Group("/admin")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.GET("/dates", h.Schedule.ListAllDates)
		admin.POST("/dates", h.Schedule.CreateDate)
		admin.POST("/dates/recurring", h.Schedule.GenerateRecurring)
		admin.PATCH("/dates/:dateID", h.Schedule.UpdateDate)
		admin.DELETE("/dates/:dateID", h.Schedule.DeleteDate)

		admin.POST("/users/:userID/passes", h.Pass.GrantPass)
		admin.PATCH("/passes/:passID", h.Pass.AdjustPass)
		admin.DELETE("/passes/:passID", h.Pass.DeletePass)
		admin.GET("/passes/:passID/deductions", h.Pass.ListDeductions)

		admin.GET("/bookings", h.Booking.ListBookings)
		admin.POST("/bookings/:bookingID/confirm", h.Booking.ConfirmBooking)
		admin.POST("/bookings/:bookingID/cancel", h.Booking.AdminCancelBooking)
		admin.POST("/reconcile", h.Booking.Reconcile)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	return &Server{
		router: router,
		config: cfg,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
