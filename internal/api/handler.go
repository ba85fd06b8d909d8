package api

import (
	"context"
	"net/http"
	"time"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/ratelimit"
	"github.com/yugal82/sports-screening-server/internal/reconcile"
	"github.com/yugal82/sports-screening-server/internal/service"
	"github.com/yugal82/sports-screening-server/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Bookings is implemented by *service.ReservationService
type Bookings interface {
	CreateBooking(ctx context.Context, actor *models.Actor, req service.CreateBookingRequest) (*models.Booking, error)
	CancelBooking(ctx context.Context, actor *models.Actor, bookingID string) (*service.CancelResult, error)
	GetBooking(ctx context.Context, actor *models.Actor, bookingID string) (*models.Booking, error)
	ListMyBookings(ctx context.Context, actor *models.Actor) ([]models.Booking, error)
	OnPaymentSucceeded(ctx context.Context, handle, bookingID string) error
	OnPaymentFailed(ctx context.Context, handle, bookingID string) error
}

// Events is implemented by *service.EventService
type Events interface {
	CreateEvent(ctx context.Context, actor *models.Actor, req service.CreateEventRequest) (*models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListUpcoming(ctx context.Context, category models.Category, limit int) ([]models.Event, error)
}

// Profiles is implemented by *service.ProfileService
type Profiles interface {
	GetProfile(ctx context.Context, actor *models.Actor) (*models.User, error)
	UpdateProfile(ctx context.Context, actor *models.Actor, req service.UpdateProfileRequest) (*models.User, error)
}

// Reconciliations is implemented by *service.ReconciliationService
type Reconciliations interface {
	List(ctx context.Context, actor *models.Actor, includeResolved bool) ([]reconcile.Record, error)
	Resolve(ctx context.Context, actor *models.Actor, id string) (*reconcile.Record, error)
}

// Limiter is implemented by *ratelimit.Governor
type Limiter interface {
	Allow(ctx context.Context, class ratelimit.ActionClass, actorKey string) ratelimit.Decision
}

// Authenticator is implemented by *auth.JWTService
type Authenticator interface {
	ResolveActor(token string) (*models.Actor, error)
}

// SeatStreamer is implemented by *live.Streamer
type SeatStreamer interface {
	Stream(w http.ResponseWriter, r *http.Request, eventID string, initial int) error
}

// Dependencies groups everything the handler serves. Seats may be nil.
type Dependencies struct {
	Bookings        Bookings
	Events          Events
	Profiles        Profiles
	Reconciliations Reconciliations
	Limiter         Limiter
	Auth            Authenticator
	Seats           SeatStreamer
	WebhookSecret   string
	// Readiness checks by dependency name
	Checks map[string]func(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		deps:   deps,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(accessLogMiddleware(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ws/events/:id/seats", h.streamSeats)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/events", h.listEvents)
		v1.GET("/events/:id", h.getEvent)
		v1.POST("/payments/callback", h.paymentCallback)

		authed := v1.Group("", h.authMiddleware())
		{
			authed.POST("/events", h.rateLimit(ratelimit.ActionEventCreate), h.createEvent)

			authed.POST("/bookings", h.rateLimit(ratelimit.ActionBookingCreate), h.createBooking)
			authed.GET("/bookings", h.listBookings)
			authed.GET("/bookings/:id", h.getBooking)
			authed.POST("/bookings/:id/cancel", h.cancelBooking)

			authed.GET("/me", h.getProfile)
			authed.PATCH("/me", h.updateProfile)

			authed.GET("/admin/reconciliations", h.listReconciliations)
			authed.POST("/admin/reconciliations/:id/resolve", h.resolveReconciliation)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.deps.Checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}
