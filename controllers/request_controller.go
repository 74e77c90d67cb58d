package controllers

import (
	"net/http"

	"github.com/bloodlink/bloodlink_backend/directory"
	"github.com/bloodlink/bloodlink_backend/matching"
	"github.com/bloodlink/bloodlink_backend/models"
	"github.com/bloodlink/bloodlink_backend/store"
	"github.com/gin-gonic/gin"
)

// RequestController serves the patient side of the request lifecycle.
type RequestController struct {
	store    store.RequestStore
	matching *matching.Service
	users    directory.Directory
}

func NewRequestController(s store.RequestStore, m *matching.Service, users directory.Directory) *RequestController {
	return &RequestController{store: s, matching: m, users: users}
}

type CreateRequestInput struct {
	BloodGroup       string   `json:"blood_group" binding:"required" example:"O-"`
	UnitsNeeded      int      `json:"units_needed" binding:"required" example:"2"`
	Urgency          string   `json:"urgency" binding:"required" example:"critical"`
	HospitalName     string   `json:"hospital_name" binding:"required" example:"City General"`
	HospitalAddress  string   `json:"hospital_address" binding:"required"`
	HospitalContact  string   `json:"hospital_contact"`
	City             string   `json:"city"`
	State            string   `json:"state"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	Notes            string   `json:"notes"`
	MedicalCondition string   `json:"medical_condition"`
	DoctorName       string   `json:"doctor_name"`
}

type CancelRequestInput struct {
	Reason string `json:"reason" example:"no longer needed"`
}

// CreateRequest godoc
// @Summary Create a blood request
// @Tags patient
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRequestInput true "Blood request"
// @Success 201 {object} map[string]interface{} "Created request"
// @Failure 400 {object} map[string]string "Invalid input"
// @Router /api/patient/requests [post]
func (rc *RequestController) CreateRequest(c *gin.Context) {
	patientID := c.MustGet("userID").(uint)

	var input CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patient, err := rc.users.UserByID(c.Request.Context(), patientID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": "Patient not found"})
		return
	}

	req, err := rc.store.Create(c.Request.Context(), store.CreateRequestInput{
		PatientID:        patientID,
		PatientName:      patient.Name,
		BloodGroup:       input.BloodGroup,
		UnitsNeeded:      input.UnitsNeeded,
		Urgency:          input.Urgency,
		HospitalName:     input.HospitalName,
		HospitalAddress:  input.HospitalAddress,
		HospitalContact:  input.HospitalContact,
		City:             input.City,
		State:            input.State,
		Latitude:         input.Latitude,
		Longitude:        input.Longitude,
		Notes:            input.Notes,
		MedicalCondition: input.MedicalCondition,
		DoctorName:       input.DoctorName,
	})
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"request": req})
}

// GetActiveRequests godoc
// @Summary List the patient's active requests
// @Tags patient
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "Active requests"
// @Router /api/patient/requests/active [get]
func (rc *RequestController) GetActiveRequests(c *gin.Context) {
	patientID := c.MustGet("userID").(uint)

	reqs, err := rc.store.FindByPatient(c.Request.Context(), patientID, []string{models.StatusActive})
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// GetRequestHistory godoc
// @Summary List the patient's fulfilled, cancelled and expired requests
// @Tags patient
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "Request history"
// @Router /api/patient/requests/history [get]
func (rc *RequestController) GetRequestHistory(c *gin.Context) {
	patientID := c.MustGet("userID").(uint)

	reqs, err := rc.store.FindByPatient(c.Request.Context(), patientID,
		[]string{models.StatusFulfilled, models.StatusCancelled, models.StatusExpired})
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// CancelRequest godoc
// @Summary Cancel an active request
// @Tags patient
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param body body CancelRequestInput false "Cancellation reason"
// @Success 200 {object} map[string]string "Cancelled"
// @Failure 404 {object} map[string]string "Unknown request"
// @Failure 409 {object} map[string]string "Request not active"
// @Router /api/patient/requests/{id} [delete]
func (rc *RequestController) CancelRequest(c *gin.Context) {
	patientID := c.MustGet("userID").(uint)
	requestID := c.Param("id")

	var input CancelRequestInput
	_ = c.ShouldBindJSON(&input)
	reason := input.Reason
	if reason == "" {
		reason = "Cancelled by patient"
	}

	req, err := rc.store.Get(c.Request.Context(), requestID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	if req.PatientID != patientID {
		c.JSON(http.StatusForbidden, gin.H{"error": "This request belongs to another patient"})
		return
	}

	if err := rc.store.Cancel(c.Request.Context(), requestID, patientID, reason); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Request cancelled successfully"})
}

// FulfillRequest godoc
// @Summary Mark an active request as fulfilled
// @Tags patient
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} map[string]string "Fulfilled"
// @Failure 409 {object} map[string]string "Request not active"
// @Router /api/patient/requests/{id}/fulfill [put]
func (rc *RequestController) FulfillRequest(c *gin.Context) {
	patientID := c.MustGet("userID").(uint)
	requestID := c.Param("id")

	req, err := rc.store.Get(c.Request.Context(), requestID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	if req.PatientID != patientID {
		c.JSON(http.StatusForbidden, gin.H{"error": "This request belongs to another patient"})
		return
	}

	if err := rc.store.MarkFulfilled(c.Request.Context(), requestID); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Request marked as fulfilled"})
}

// GetMatchingDonors godoc
// @Summary List available donors matching a blood group
// @Tags patient
// @Produce json
// @Security BearerAuth
// @Param blood_group query string false "Blood group (defaults to the patient's own)"
// @Success 200 {object} map[string]interface{} "Matching donors"
// @Router /api/patient/matching-donors [get]
func (rc *RequestController) GetMatchingDonors(c *gin.Context) {
	patientID := c.MustGet("userID").(uint)

	group := c.Query("blood_group")
	if group == "" {
		patient, err := rc.users.UserByID(c.Request.Context(), patientID)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		group = patient.BloodGroup
	}
	if group == "" {
		c.JSON(http.StatusOK, gin.H{"donors": []matching.DonorSummary{}})
		return
	}

	donors, err := rc.matching.MatchingDonors(c.Request.Context(), group)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"donors": donors})
}
