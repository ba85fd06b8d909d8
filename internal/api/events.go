package api

import (
	"net/http"
	"strconv"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// createEvent publishes a new screening
func (h *Handler) createEvent(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	event, err := h.deps.Events.CreateEvent(c.Request.Context(), currentActor(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// getEvent handles get event by ID
func (h *Handler) getEvent(c *gin.Context) {
	event, err := h.deps.Events.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// listEvents returns upcoming screenings, optionally filtered by category
func (h *Handler) listEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(c, models.Validationf("limit must be a number"))
			return
		}
		limit = n
	}

	events, err := h.deps.Events.ListUpcoming(c.Request.Context(), models.Category(c.Query("category")), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// streamSeats upgrades to a websocket that follows the event's seat counter
func (h *Handler) streamSeats(c *gin.Context) {
	if h.deps.Seats == nil {
		h.writeError(c, models.ErrUpstreamUnavailable)
		return
	}

	event, err := h.deps.Events.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.deps.Seats.Stream(c.Writer, c.Request, event.ID, event.AvailableSeats); err != nil {
		h.logger.Warn("Seat stream ended with error",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

// getProfile returns the caller's profile
func (h *Handler) getProfile(c *gin.Context) {
	user, err := h.deps.Profiles.GetProfile(c.Request.Context(), currentActor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// updateProfile changes the caller's name, phone or city
func (h *Handler) updateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	user, err := h.deps.Profiles.UpdateProfile(c.Request.Context(), currentActor(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// listReconciliations returns journaled releases awaiting an operator
func (h *Handler) listReconciliations(c *gin.Context) {
	records, err := h.deps.Reconciliations.List(c.Request.Context(), currentActor(c), c.Query("all") == "true")
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

// resolveReconciliation re-issues the release of one record
func (h *Handler) resolveReconciliation(c *gin.Context) {
	record, err := h.deps.Reconciliations.Resolve(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
