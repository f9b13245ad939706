package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmlab_twin/internal/models"
	"farmlab_twin/internal/service"
)

func newMockedService() (*service.Service, *mockDevices, *mockTelemetry, *mockSettings, *mockEventLog, *mockAuth) {
	devices := &mockDevices{states: models.DefaultDeviceStates()}
	telemetry := &mockTelemetry{}
	settings := &mockSettings{
		thresholds: models.DefaultWarningThresholds(),
		light:      models.DefaultLightSchedule(),
		pump:       models.DefaultIrrigationSchedule(),
	}
	logs := &mockEventLog{}
	auth := &mockAuth{parseID: 7}
	svc := &service.Service{
		Devices:       devices,
		Telemetry:     telemetry,
		Settings:      settings,
		EventLog:      logs,
		Weather:       &mockWeather{payload: []byte(`{"current":{"temp_c":14}}`)},
		Authorization: auth,
	}
	return svc, devices, telemetry, settings, logs, auth
}

func doRequest(router http.Handler, method, path string, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	svc, _, _, _, _, _ := newMockedService()
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	svc, _, _, _, _, auth := newMockedService()
	auth.parseErr = service.ErrInvalidToken
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet, "/api/v1/devices/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/devices/", "", authHeader("bad-token"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestToggleDevice_OK(t *testing.T) {
	svc, devices, _, _, _, _ := newMockedService()
	devices.toggleSt = models.StateOn
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/api/v1/devices/fan/toggle", "", authHeader("t"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"device":"fan","state":"ON"}`, w.Body.String())
	assert.Equal(t, models.DeviceFan, devices.lastToggled)
}

func TestToggleDevice_UnknownIs400(t *testing.T) {
	svc, _, _, _, _, _ := newMockedService()
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/api/v1/devices/heater/toggle", "", authHeader("t"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToggleDevice_AutobotDispatchAndConflict(t *testing.T) {
	svc, devices, _, _, _, _ := newMockedService()
	devices.autobotErr = service.ErrScheduleNotConfigured
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/api/v1/devices/autobot/toggle", "", authHeader("t"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, devices.autobotCalls)
	assert.Equal(t, 0, devices.toggleCalls)
}

func TestToggleDevice_WriteFailureIs502WithRevertedState(t *testing.T) {
	svc, devices, _, _, _, _ := newMockedService()
	devices.toggleSt = models.StateOff // state after revert
	devices.toggleErr = assert.AnError
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/api/v1/devices/pump/toggle", "", authHeader("t"))
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"OFF"`)
}

func TestGetTelemetry(t *testing.T) {
	svc, _, telemetry, _, _, _ := newMockedService()
	telemetry.view = service.TelemetryView{
		Latest: map[models.Channel]float64{models.ChannelTemperature: 21.5},
		Levels: map[models.Channel]models.WarningLevel{models.ChannelTemperature: models.WarningNormal},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet, "/api/v1/telemetry/", "", authHeader("t"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"temperature":21.5`)
}

func TestChannelHistory_UnknownChannelIs400(t *testing.T) {
	svc, _, _, _, _, _ := newMockedService()
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet, "/api/v1/telemetry/radiation/history", "", authHeader("t"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportChannelCSV(t *testing.T) {
	svc, _, telemetry, _, _, _ := newMockedService()
	telemetry.archived = []models.SensorReading{
		{Time: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), Value: 21.5},
		{Time: time.Date(2026, 8, 1, 10, 0, 30, 0, time.UTC), Value: 21.6},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet, "/api/v1/telemetry/temperature/export?from=2026-08-01&to=2026-08-01", "", authHeader("t"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "temperature_20260801_20260801.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time,value,unit", lines[0])
	assert.Equal(t, "2026-08-01T10:00:00Z,21.5,°C", lines[1])

	// Date-only 'to' covers the whole day.
	assert.Equal(t, 23, telemetry.lastTo.Hour())
}

func TestGetSettings(t *testing.T) {
	svc, _, _, _, _, _ := newMockedService()
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet, "/api/v1/settings/", "", authHeader("t"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"warningThresholds"`)
	assert.Contains(t, w.Body.String(), `"pumpSchedule"`)
}

func TestSaveSettings_LockedIs423(t *testing.T) {
	svc, _, _, settings, _, _ := newMockedService()
	settings.saveErr = service.ErrSettingsLocked
	router := newTestRouter(svc)

	body := `{"lightSchedule":{"startHour":7,"startMinute":0,"endHour":21,"endMinute":0},"warningThresholds":{"tempHigh":23,"tempLow":20,"humidHigh":75,"humidLow":62,"co2High":620,"co2Low":580,"moistureHigh":34,"moistureLow":30}}`
	w := doRequest(router, http.MethodPut, "/api/v1/settings/", body, authHeader("t"))
	assert.Equal(t, http.StatusLocked, w.Code)
}

func TestSaveSettings_OKPassesParsedSchedule(t *testing.T) {
	svc, _, _, settings, _, _ := newMockedService()
	router := newTestRouter(svc)

	body := `{"lightSchedule":{"startHour":6,"startMinute":45,"endHour":22,"endMinute":30},"warningThresholds":{"tempHigh":25,"tempLow":18,"humidHigh":80,"humidLow":60,"co2High":700,"co2Low":500,"moistureHigh":40,"moistureLow":25}}`
	w := doRequest(router, http.MethodPut, "/api/v1/settings/", body, authHeader("t"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ClockTime{Hours: 6, Minutes: 45}, settings.lastLight.Start)
	assert.Equal(t, models.ClockTime{Hours: 22, Minutes: 30}, settings.lastLight.End)
	assert.InDelta(t, 25.0, settings.lastThr.TempHigh, 1e-9)
}

func TestSavePumpSchedule_InvalidIs400(t *testing.T) {
	svc, _, _, settings, _, _ := newMockedService()
	settings.pumpErr = service.ErrInvalidSchedule
	router := newTestRouter(svc)

	body := `{"firstHour":9,"firstMinute":10,"secondHour":21,"secondMinute":10,"durationSeconds":60}`
	w := doRequest(router, http.MethodPut, "/api/v1/settings/pump-schedule", body, authHeader("t"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLogs_PassesFilter(t *testing.T) {
	svc, _, _, _, logs, _ := newMockedService()
	logs.resp = []models.TwinEvent{{Type: "TOGGLE", Description: "fan switched ON"}}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet, "/api/v1/logs/?from=2026-08-01&to=2026-08-02&type=toggle", "", authHeader("t"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TOGGLE", logs.lastType)
	assert.Equal(t, 1, logs.lastFrom.Day())
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestGetLogs_BadRangeIs400(t *testing.T) {
	svc, _, _, _, _, _ := newMockedService()
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet, "/api/v1/logs/?from=2026-08-02&to=2026-08-01", "", authHeader("t"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignIn(t *testing.T) {
	svc, _, _, _, _, auth := newMockedService()
	auth.genTokenToken = "jwt-token"
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/auth/sign-in", `{"username":"123456","password":"123456"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"jwt-token"}`, w.Body.String())
	assert.Equal(t, "123456", auth.lastGenUsername)

	auth.genTokenErr = service.ErrInvalidPassword
	w = doRequest(router, http.MethodPost, "/auth/sign-in", `{"username":"123456","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetWeather_Passthrough(t *testing.T) {
	svc, _, _, _, _, _ := newMockedService()
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet, "/api/v1/weather", "", authHeader("t"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"current":{"temp_c":14}}`, w.Body.String())
}
