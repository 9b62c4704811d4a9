package routes

import (
	"net/http"
	"time"

	"flexify/handlers"
	"flexify/middleware"
	"flexify/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// APIPrefix is the versioned API base path.
const APIPrefix = "/api/v1"

// Options tune the router.
type Options struct {
	// RequestsPerSecond and Burst bound each client IP. Zero disables the
	// limiter.
	RequestsPerSecond float64
	Burst             int
}

// NewRouter builds the sandbox engine.
func NewRouter(hb *handlers.HandlerBundle, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(hb.Logger))
	RegisterRoutes(r, hb, opts)
	return r
}

// RegisterAuthRoutes registers registration, login, refresh and logout.
func RegisterAuthRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", hb.Register)
		auth.POST("/login", hb.Login)
		auth.POST("/refresh", hb.RefreshToken)
		auth.POST("/logout", hb.Logout)
	}
}

// RegisterProviderRoutes registers the public provider lookups.
func RegisterProviderRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	providers := api.Group("/providers")
	{
		providers.GET("/search/nearby", hb.SearchNearby)
		providers.GET("/:id", hb.GetProvider)
	}
}

// RegisterBookingRoutes registers the booking endpoints. All of them require
// authentication.
func RegisterBookingRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	bookings := api.Group("/bookings")
	bookings.Use(middleware.JWTAuthMiddleware(hb.Secret, hb.Repo))
	{
		bookings.POST("/create", middleware.RequireRole(models.RoleUser), hb.CreateBooking)
		bookings.GET("/me", hb.MyBookings)
		bookings.GET("/provider/me", middleware.RequireRole(models.RoleProvider), hb.ProviderBookings)
		bookings.GET("/:id", hb.GetBooking)
		bookings.PUT("/:id/status", middleware.RequireRole(models.RoleProvider, models.RoleAdmin), hb.UpdateBookingStatus)
		bookings.PATCH("/:id/cancel", hb.CancelBooking)
		bookings.PATCH("/:id/payment-accepted", middleware.RequireRole(models.RoleProvider), hb.AcceptPayment)
	}
}

// RegisterAdminRoutes registers the moderation endpoints, admins only.
func RegisterAdminRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	admin := api.Group("/admin")
	admin.Use(middleware.JWTAuthMiddleware(hb.Secret, hb.Repo), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/users", hb.AdminUsers)
		admin.PATCH("/users/:id", hb.AdminUpdateUser)
		admin.GET("/providers", hb.AdminProviders)
		admin.GET("/providers/pending", hb.AdminPendingProviders)
		admin.POST("/providers/:id/verify", hb.AdminVerifyProvider)
		admin.POST("/providers/:id/reject", hb.AdminRejectProvider)
		admin.GET("/bookings", hb.AdminBookings)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Hi, I'm the Flexify sandbox"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, opts Options) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", handlers.IdempotencyHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	if opts.RequestsPerSecond > 0 {
		r.Use(middleware.RateLimitMiddleware(opts.RequestsPerSecond, opts.Burst))
	}

	RegisterHealthRoute(r)
	r.GET("/ws", middleware.JWTAuthMiddleware(hb.Secret, hb.Repo), hb.PushSocket)

	api := r.Group(APIPrefix)
	RegisterAuthRoutes(api, hb)
	RegisterProviderRoutes(api, hb)
	RegisterBookingRoutes(api, hb)
	RegisterAdminRoutes(api, hb)
}
