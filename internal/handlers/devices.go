package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"farmlab_twin/internal/models"
	"farmlab_twin/internal/service"
)

const (
	statusOK = "ok"

	errToggleDevice = "failed to toggle device"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Device states
// @Description  Local device mirror; reconciled with the server every few seconds.
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) getDeviceStates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": h.services.States()})
}

// @Summary      Toggle a device
// @Description  Flips fan, plantLight or pump optimistically; flips autobot through the server and starts or stops automation.
// @Tags         devices
// @Produce      json
// @Param        device  path  string  true  "Device name"  Enums(fan,plantLight,pump,autobot)
// @Success      200  {object}  map[string]interface{}  "device, state"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/devices/{device}/toggle [post]
// @Security     BearerAuth
func (h *Handler) toggleDevice(c *gin.Context) {
	ctx := c.Request.Context()
	device := models.Device(c.Param("device"))

	var (
		state models.DeviceState
		err   error
	)
	if device == models.DeviceAutobot {
		state, err = h.services.ToggleAutobot(ctx)
	} else {
		state, err = h.services.Toggle(ctx, device)
	}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"device": device, "state": state})
	case errors.Is(err, service.ErrUnknownDevice):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrScheduleNotConfigured):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		// The server write failed. For manual toggles the mirror has
		// already been reverted; report the restored state.
		if h.log != nil {
			h.log.Errorw("device_toggle_failed", "err", err, "device", device)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": errToggleDevice, "device": device, "state": state})
	}
}

// @Summary      Weather passthrough
// @Tags         weather
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/weather [get]
// @Security     BearerAuth
func (h *Handler) getWeather(c *gin.Context) {
	raw, err := h.services.Weather.Weather(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, "failed to fetch weather", "weather_fetch_failed", err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
