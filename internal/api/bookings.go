package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const webhookSecretHeader = "X-Webhook-Secret"

// createBooking handles seat reservation
func (h *Handler) createBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	booking, err := h.deps.Bookings.CreateBooking(c.Request.Context(), currentActor(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// cancelBooking releases the seats of a booking
func (h *Handler) cancelBooking(c *gin.Context) {
	result, err := h.deps.Bookings.CancelBooking(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := gin.H{
		"booking":       result.Booking,
		"seatsReleased": result.SeatsReleased,
		"refunded":      result.Refunded,
	}
	if msg := result.RefundError(); msg != "" {
		resp["refundError"] = msg
	}
	c.JSON(http.StatusOK, resp)
}

// getBooking handles get booking by ID
func (h *Handler) getBooking(c *gin.Context) {
	booking, err := h.deps.Bookings.GetBooking(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// listBookings returns the caller's bookings
func (h *Handler) listBookings(c *gin.Context) {
	bookings, err := h.deps.Bookings.ListMyBookings(c.Request.Context(), currentActor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

type paymentCallbackRequest struct {
	Handle    string `json:"handle" binding:"required"`
	Status    string `json:"status" binding:"required,oneof=succeeded failed"`
	BookingID string `json:"bookingId"`
}

// paymentCallback receives settlement notifications from the payment provider
func (h *Handler) paymentCallback(c *gin.Context) {
	secret := c.GetHeader(webhookSecretHeader)
	if h.deps.WebhookSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.deps.WebhookSecret)) != 1 {
		h.logger.Warn("Rejected payment callback", zap.String("client_ip", c.ClientIP()))
		h.writeError(c, models.ErrUnauthorized)
		return
	}

	var req paymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	var err error
	if req.Status == models.PaymentStatusSucceeded {
		err = h.deps.Bookings.OnPaymentSucceeded(c.Request.Context(), req.Handle, req.BookingID)
	} else {
		err = h.deps.Bookings.OnPaymentFailed(c.Request.Context(), req.Handle, req.BookingID)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
