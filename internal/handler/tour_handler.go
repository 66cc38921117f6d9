package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/tour-geocompare/internal/models"
	"github.com/jengzang/tour-geocompare/internal/service"
	"github.com/jengzang/tour-geocompare/pkg/response"
)

// TourHandler handles HTTP requests for tours
type TourHandler struct {
	tourService *service.TourService
}

// NewTourHandler creates a new tour handler
func NewTourHandler(tourService *service.TourService) *TourHandler {
	return &TourHandler{
		tourService: tourService,
	}
}

// CreateTour handles POST /api/v1/tours
func (h *TourHandler) CreateTour(c *gin.Context) {
	var tour models.Tour
	if err := c.ShouldBindJSON(&tour); err != nil {
		response.BadRequest(c, "Invalid tour body")
		return
	}
	tour.ID = 0

	if err := h.tourService.CreateTour(c.Request.Context(), &tour); err != nil {
		if errors.Is(err, service.ErrInvalidTour) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"id":      tour.ID,
		"samples": len(tour.Samples),
	})
}

// GetTour handles GET /api/v1/tours/:id
func (h *TourHandler) GetTour(c *gin.Context) {
	id, ok := parseTourID(c)
	if !ok {
		return
	}

	tour, err := h.tourService.GetTour(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTourNotFound) {
			response.NotFound(c, "Tour not found")
			return
		}
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, tour)
}

// DeleteTour handles DELETE /api/v1/tours/:id
func (h *TourHandler) DeleteTour(c *gin.Context) {
	id, ok := parseTourID(c)
	if !ok {
		return
	}

	if err := h.tourService.DeleteTour(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrTourNotFound) {
			response.NotFound(c, "Tour not found")
			return
		}
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"id": id})
}

func parseTourID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid tour ID")
		return 0, false
	}
	return id, true
}
