package controllers

import (
	"net/http"
	"strconv"

	"github.com/bloodlink/bloodlink_backend/coordinator"
	"github.com/bloodlink/bloodlink_backend/directory"
	"github.com/bloodlink/bloodlink_backend/matching"
	"github.com/gin-gonic/gin"
)

// DonorController serves the donor side: discovering nearby requests,
// accepting or declining them, and listing open conversations.
type DonorController struct {
	coordinator *coordinator.Coordinator
	matching    *matching.Service
	users       directory.Directory
}

func NewDonorController(co *coordinator.Coordinator, m *matching.Service, users directory.Directory) *DonorController {
	return &DonorController{coordinator: co, matching: m, users: users}
}

type AcceptRequestInput struct {
	RequestID string `json:"request_id" binding:"required"`
	Note      string `json:"note"`
}

type DeclineRequestInput struct {
	RequestID string `json:"request_id" binding:"required"`
}

type AvailabilityInput struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

// GetNearbyRequests godoc
// @Summary List active requests near the donor
// @Description Uses the donor's stored coordinates; donors without
// @Description coordinates get the blood-group match list instead.
// @Tags donor
// @Produce json
// @Security BearerAuth
// @Param max_distance query number false "Max distance in meters (default 50000)"
// @Success 200 {object} map[string]interface{} "Nearby requests"
// @Router /api/donor/requests/nearby [get]
func (dc *DonorController) GetNearbyRequests(c *gin.Context) {
	donorID := c.MustGet("userID").(uint)

	maxDistance := float64(0)
	if raw := c.Query("max_distance"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid max_distance"})
			return
		}
		maxDistance = parsed
	}

	reqs, err := dc.matching.NearbyRequests(c.Request.Context(), donorID, maxDistance)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// AcceptRequest godoc
// @Summary Accept a blood request
// @Description Adds the donor to the request's accepted list and updates
// @Description the donor's donation stats. On failure nothing happened
// @Description and the call is safe to retry.
// @Tags donor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body AcceptRequestInput true "Request to accept"
// @Success 200 {object} map[string]interface{} "Acceptance result"
// @Failure 404 {object} map[string]string "Unknown request"
// @Failure 409 {object} map[string]string "Already accepted or request not active"
// @Router /api/donor/requests/accept [post]
func (dc *DonorController) AcceptRequest(c *gin.Context) {
	donorID := c.MustGet("userID").(uint)

	var input AcceptRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	note := input.Note
	if note == "" {
		note = "Accepted via donor dashboard"
	}

	result, err := dc.coordinator.Accept(c.Request.Context(), donorID, input.RequestID, note)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Request accepted! Your donation count has been updated.",
		"request": result.Request,
		"new_stats": gin.H{
			"total_donations":  result.TotalDonations,
			"last_donation_at": result.LastDonationAt,
		},
	})
}

// DeclineRequest godoc
// @Summary Decline a blood request
// @Description Removes the donor from the accepted list if present.
// @Description Declining a request never accepted is a no-op.
// @Tags donor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body DeclineRequestInput true "Request to decline"
// @Success 200 {object} map[string]string "Declined"
// @Router /api/donor/requests/decline [post]
func (dc *DonorController) DeclineRequest(c *gin.Context) {
	donorID := c.MustGet("userID").(uint)

	var input DeclineRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := dc.coordinator.Decline(c.Request.Context(), donorID, input.RequestID); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Request declined"})
}

// GetAcceptedRequests godoc
// @Summary List the donor's accepted requests with chat room ids
// @Tags donor
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "Accepted requests"
// @Router /api/donor/requests/accepted [get]
func (dc *DonorController) GetAcceptedRequests(c *gin.Context) {
	donorID := c.MustGet("userID").(uint)

	contacts, err := dc.coordinator.AcceptedRequests(c.Request.Context(), donorID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accepted_requests": contacts})
}

// UpdateAvailability godoc
// @Summary Toggle the donor's availability flag
// @Tags donor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body AvailabilityInput true "Availability"
// @Success 200 {object} map[string]interface{} "Updated"
// @Router /api/donor/availability [put]
func (dc *DonorController) UpdateAvailability(c *gin.Context) {
	donorID := c.MustGet("userID").(uint)

	var input AvailabilityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := dc.users.SetAvailability(c.Request.Context(), donorID, *input.IsAvailable); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_available": *input.IsAvailable})
}
