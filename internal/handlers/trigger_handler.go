package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/wellwatchhq/wellwatch/internal/errors"
	"github.com/wellwatchhq/wellwatch/internal/middleware"
	"github.com/wellwatchhq/wellwatch/internal/models"
	"github.com/wellwatchhq/wellwatch/internal/pipeline"
	"github.com/wellwatchhq/wellwatch/internal/plss"
)

// TriggerHandler exposes the diagnostic manual-trigger surface: a synthetic
// activity event pushed through the full live pipeline without waiting for
// the next scheduled feed.
type TriggerHandler struct {
	pipe *pipeline.Pipeline
}

// NewTriggerHandler creates a new TriggerHandler instance.
func NewTriggerHandler(pipe *pipeline.Pipeline) *TriggerHandler {
	return &TriggerHandler{pipe: pipe}
}

// CoordinateRequest is a raw feed-form location in a trigger request.
type CoordinateRequest struct {
	Section  string `json:"section" binding:"required"`
	Township string `json:"township" binding:"required"`
	Range    string `json:"range" binding:"required"`
	Meridian string `json:"meridian,omitempty"`
}

// TriggerRequest is the synthetic event accepted by the trigger endpoint.
type TriggerRequest struct {
	EventID         string             `json:"event_id" binding:"required"`
	WellID          string             `json:"well_id" binding:"required"`
	ActivityType    string             `json:"activity_type" binding:"required,oneof=NEW_PERMIT COMPLETION OPERATOR_TRANSFER STATUS_CHANGE DOCKET_FILING"`
	SurfaceLocation CoordinateRequest  `json:"surface_location" binding:"required"`
	BottomHole      *CoordinateRequest `json:"bottom_hole,omitempty"`
	Operator        string             `json:"operator,omitempty"`
	County          string             `json:"county,omitempty"`
	PermitExpiresAt *time.Time         `json:"permit_expires_at,omitempty"`
}

// Trigger handles POST /api/v1/activity/trigger.
// It normalizes the synthetic event's locations, runs the matching pipeline
// against the live registries, and returns the run report.
func (h *TriggerHandler) Trigger(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	surface, err := normalizeCoordinate(req.SurfaceLocation, req.County)
	if err != nil {
		apierrors.InvalidCoordinate(c, err.Error())
		return
	}

	var bottomHole *models.Coordinate
	if req.BottomHole != nil {
		bh, err := normalizeCoordinate(*req.BottomHole, req.County)
		if err != nil {
			apierrors.InvalidCoordinate(c, err.Error())
			return
		}
		bottomHole = &bh
	}

	event := models.ActivityEvent{
		ID:              req.EventID,
		WellID:          models.WellID(req.WellID),
		ActivityType:    models.ActivityType(req.ActivityType),
		SurfaceLocation: surface,
		BottomHole:      bottomHole,
		Operator:        req.Operator,
		County:          req.County,
		DetectedAt:      time.Now(),
		PermitExpiresAt: req.PermitExpiresAt,
	}

	if log != nil {
		log.Info("Processing manual trigger", map[string]interface{}{
			"event_id": event.ID,
			"well_id":  req.WellID,
			"activity": req.ActivityType,
			"location": surface.Key(),
		})
	}

	report, err := h.pipe.Run(c.Request.Context(), []models.ActivityEvent{event})
	if err != nil {
		apierrors.InternalServerError(c, "Failed to run matching pipeline", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// normalizeCoordinate converts a request location to canonical form.
func normalizeCoordinate(req CoordinateRequest, county string) (models.Coordinate, error) {
	return plss.Normalize(plss.Raw{
		Section:  req.Section,
		Township: req.Township,
		Range:    req.Range,
		Meridian: req.Meridian,
		County:   county,
	})
}
