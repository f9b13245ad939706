package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"farmlab_twin/internal/models"
	"farmlab_twin/internal/service"
)

// @Summary      Telemetry snapshot
// @Description  Latest readings, warning levels, bounded per-channel history and the last camera shot.
// @Tags         telemetry
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/telemetry [get]
// @Security     BearerAuth
func (h *Handler) getTelemetry(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Snapshot())
}

// @Summary      Channel history
// @Description  The in-memory ring for one channel (most recent readings, oldest first).
// @Tags         telemetry
// @Produce      json
// @Param        channel  path  string  true  "Channel name"  Enums(temperature,humidity,moisture,soilEC,co2,atmosphericPress,poreEC)
// @Success      200  {object}  map[string]interface{}  "channel, unit, readings"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/telemetry/{channel}/history [get]
// @Security     BearerAuth
func (h *Handler) getChannelHistory(c *gin.Context) {
	ch := models.Channel(c.Param("channel"))
	readings, err := h.services.ChannelHistory(ch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"channel":  ch,
		"unit":     ch.Unit(),
		"readings": readings,
	})
}

// @Summary      Export channel archive as CSV
// @Description  Streams archived readings for one channel within [from, to] as CSV. Defaults to the last 24 hours.
// @Tags         telemetry
// @Produce      text/csv
// @Param        channel  path   string  true   "Channel name"
// @Param        from     query  string  false  "Start of range (RFC3339 or YYYY-MM-DD)"
// @Param        to       query  string  false  "End of range (RFC3339 or YYYY-MM-DD)"
// @Success      200  {string}  string  "CSV body"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/telemetry/{channel}/export [get]
// @Security     BearerAuth
func (h *Handler) exportChannelCSV(c *gin.Context) {
	ch := models.Channel(c.Param("channel"))

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	var err error
	if qs := c.Query("from"); qs != "" {
		if from, err = parseQueryTime(qs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return
		}
	}
	if qs := c.Query("to"); qs != "" {
		if to, err = parseQueryTime(qs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	if from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'from' must be <= 'to'"})
		return
	}

	readings, err := h.services.ArchivedRange(c.Request.Context(), ch, from, to)
	if err != nil {
		if errors.Is(err, service.ErrUnknownChannel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to read archive", "telemetry_export_failed", err, "channel", ch)
		return
	}

	filename := fmt.Sprintf("%s_%s_%s.csv", ch, from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "text/csv")

	w := c.Writer
	_, _ = fmt.Fprintf(w, "time,value,unit\r\n")
	prec := ch.Precision()
	for _, r := range readings {
		_, _ = fmt.Fprintf(w, "%s,%s,%s\r\n",
			r.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.Value, 'f', prec, 64),
			ch.Unit(),
		)
	}
}
