package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"farmlab_twin/internal/models"
	"farmlab_twin/internal/service"
)

// Request DTO for the combined settings save.
type settingsRequest struct {
	LightSchedule     lightScheduleDTO         `json:"lightSchedule" binding:"required"`
	WarningThresholds models.WarningThresholds `json:"warningThresholds" binding:"required"`
}

type lightScheduleDTO struct {
	StartHour   int `json:"startHour"`
	StartMinute int `json:"startMinute"`
	EndHour     int `json:"endHour"`
	EndMinute   int `json:"endMinute"`
}

type pumpScheduleRequest struct {
	FirstHour       int `json:"firstHour"`
	FirstMinute     int `json:"firstMinute"`
	SecondHour      int `json:"secondHour"`
	SecondMinute    int `json:"secondMinute"`
	DurationSeconds int `json:"durationSeconds" binding:"required"`
}

// @Summary      Current settings
// @Description  Warning thresholds, light schedule and irrigation schedule.
// @Tags         settings
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/settings [get]
// @Security     BearerAuth
func (h *Handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"warningThresholds": h.services.Thresholds(),
		"lightSchedule":     h.services.LightSchedule(),
		"pumpSchedule":      h.services.PumpSchedule(),
	})
}

// @Summary      Save settings
// @Description  Saves the light schedule and thresholds together. Refused with 423 while automation is enabled.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      423  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/settings [put]
// @Security     BearerAuth
func (h *Handler) saveSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	light := models.LightSchedule{
		Start: models.ClockTime{Hours: req.LightSchedule.StartHour, Minutes: req.LightSchedule.StartMinute},
		End:   models.ClockTime{Hours: req.LightSchedule.EndHour, Minutes: req.LightSchedule.EndMinute},
	}
	err := h.services.Save(c.Request.Context(), light, req.WarningThresholds)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": statusOK})
	case errors.Is(err, service.ErrSettingsLocked):
		c.JSON(http.StatusLocked, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidSchedule):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusBadGateway, "failed to save settings", "settings_save_failed", err)
	}
}

// @Summary      Save irrigation schedule
// @Tags         settings
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      423  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/settings/pump-schedule [put]
// @Security     BearerAuth
func (h *Handler) savePumpSchedule(c *gin.Context) {
	var req pumpScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sched := models.IrrigationSchedule{
		First:           models.ClockTime{Hours: req.FirstHour, Minutes: req.FirstMinute},
		Second:          models.ClockTime{Hours: req.SecondHour, Minutes: req.SecondMinute},
		DurationSeconds: req.DurationSeconds,
	}
	err := h.services.SavePumpSchedule(c.Request.Context(), sched)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": statusOK})
	case errors.Is(err, service.ErrSettingsLocked):
		c.JSON(http.StatusLocked, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidSchedule):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusBadGateway, "failed to save pump schedule", "pump_schedule_save_failed", err)
	}
}
