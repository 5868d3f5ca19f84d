package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"parking_reservation/internal/service"
)

type ReservationHandler struct {
	parkingService *service.ParkingService
}

func NewReservationHandler(ps *service.ParkingService) *ReservationHandler {
	return &ReservationHandler{parkingService: ps}
}

// POST /parking-lots/:id/reservations
func (h *ReservationHandler) Book(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	lotID, ok := pathID(c, "id")
	if !ok {
		return
	}

	reservation, err := h.parkingService.Book(c.Request.Context(), actor, lotID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservation)
}

// POST /reservations/:id/release
func (h *ReservationHandler) Release(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	reservation, err := h.parkingService.Release(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// GET /reservations/:id
func (h *ReservationHandler) GetByID(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	reservation, err := h.parkingService.GetReservation(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// GET /reservations/active
func (h *ReservationHandler) GetActive(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	reservations, err := h.parkingService.UserActiveReservations(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

// GET /reservations/history?limit=
func (h *ReservationHandler) GetHistory(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	reservations, err := h.parkingService.UserHistory(c.Request.Context(), actor, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}
