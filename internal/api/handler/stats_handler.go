package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parking_reservation/internal/service"
)

type StatsHandler struct {
	parkingService *service.ParkingService
}

func NewStatsHandler(ps *service.ParkingService) *StatsHandler {
	return &StatsHandler{parkingService: ps}
}

// GET /stats: per-lot occupancy for admins, daily bookings for users.
func (h *StatsHandler) GetStats(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	if actor.IsAdmin() {
		stats, err := h.parkingService.OccupancyStats(c.Request.Context(), actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
		return
	}

	stats, err := h.parkingService.UserBookingStats(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /admin/summary
func (h *StatsHandler) GetAdminSummary(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	summary, err := h.parkingService.AdminSummary(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
