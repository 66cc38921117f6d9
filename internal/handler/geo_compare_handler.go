package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/tour-geocompare/internal/geocompare"
	"github.com/jengzang/tour-geocompare/internal/models"
	"github.com/jengzang/tour-geocompare/internal/service"
	"github.com/jengzang/tour-geocompare/pkg/response"
)

// GeoCompareHandler handles HTTP requests for geo compare sessions
type GeoCompareHandler struct {
	compareService *service.GeoCompareService
}

// NewGeoCompareHandler creates a new geo compare handler
func NewGeoCompareHandler(compareService *service.GeoCompareService) *GeoCompareHandler {
	return &GeoCompareHandler{
		compareService: compareService,
	}
}

// Start handles POST /api/v1/geocompare
func (h *GeoCompareHandler) Start(c *gin.Context) {
	var in models.GeoCompareStartRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid geo compare request: "+err.Error())
		return
	}

	status, err := h.compareService.Start(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTourNotFound):
			response.NotFound(c, "Reference tour not found")
		case errors.Is(err, geocompare.ErrInvalidSegment):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err.Error())
		}
		return
	}

	response.Accepted(c, status)
}

// Status handles GET /api/v1/geocompare/:id
func (h *GeoCompareHandler) Status(c *gin.Context) {
	status, err := h.compareService.Status(c.Param("id"))
	if err != nil {
		sessionError(c, err)
		return
	}
	response.Success(c, status)
}

// Results handles GET /api/v1/geocompare/:id/results
func (h *GeoCompareHandler) Results(c *gin.Context) {
	var filter models.GeoCompareResultFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	view, err := h.compareService.Results(c.Param("id"), filter)
	if err != nil {
		sessionError(c, err)
		return
	}
	response.Success(c, view)
}

// Cancel handles POST /api/v1/geocompare/:id/cancel
func (h *GeoCompareHandler) Cancel(c *gin.Context) {
	status, err := h.compareService.Cancel(c.Param("id"))
	if err != nil {
		sessionError(c, err)
		return
	}
	response.Success(c, status)
}

// Close handles DELETE /api/v1/geocompare/:id
func (h *GeoCompareHandler) Close(c *gin.Context) {
	id := c.Param("id")
	if err := h.compareService.Close(id); err != nil {
		sessionError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

func sessionError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrSessionNotFound) {
		response.NotFound(c, "Geo compare session not found")
		return
	}
	response.InternalError(c, err.Error())
}
