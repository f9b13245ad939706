package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"farmlab_twin/internal/models"
	"farmlab_twin/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastGenUsername string
	lastGenPassword string
	lastParseToken  string
}

func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}
func (m *mockAuth) EnsureOperator(username, password string) error { return nil }

type mockDevices struct {
	states     models.DeviceStates
	toggleSt   models.DeviceState
	toggleErr  error
	autobotSt  models.DeviceState
	autobotErr error

	lastToggled  models.Device
	toggleCalls  int
	autobotCalls int
}

func (m *mockDevices) States() models.DeviceStates { return m.states }
func (m *mockDevices) Toggle(ctx context.Context, d models.Device) (models.DeviceState, error) {
	m.toggleCalls++
	m.lastToggled = d
	if !d.Valid() {
		return "", service.ErrUnknownDevice
	}
	return m.toggleSt, m.toggleErr
}
func (m *mockDevices) ToggleAutobot(ctx context.Context) (models.DeviceState, error) {
	m.autobotCalls++
	return m.autobotSt, m.autobotErr
}
func (m *mockDevices) RunReconciler(ctx context.Context, tick time.Duration) {}

type mockTelemetry struct {
	view       service.TelemetryView
	history    []models.SensorReading
	historyErr error
	archived   []models.SensorReading
	archiveErr error

	lastChannel models.Channel
	lastFrom    time.Time
	lastTo      time.Time
}

func (m *mockTelemetry) Snapshot() service.TelemetryView { return m.view }
func (m *mockTelemetry) ChannelHistory(ch models.Channel) ([]models.SensorReading, error) {
	m.lastChannel = ch
	if !ch.Valid() {
		return nil, service.ErrUnknownChannel
	}
	return m.history, m.historyErr
}
func (m *mockTelemetry) ArchivedRange(ctx context.Context, ch models.Channel, from, to time.Time) ([]models.SensorReading, error) {
	m.lastChannel = ch
	m.lastFrom = from
	m.lastTo = to
	if !ch.Valid() {
		return nil, service.ErrUnknownChannel
	}
	return m.archived, m.archiveErr
}
func (m *mockTelemetry) RunPoller(ctx context.Context, tick time.Duration) {}

type mockSettings struct {
	thresholds models.WarningThresholds
	light      models.LightSchedule
	pump       models.IrrigationSchedule
	saveErr    error
	pumpErr    error

	lastLight models.LightSchedule
	lastThr   models.WarningThresholds
	lastPump  models.IrrigationSchedule
}

func (m *mockSettings) Thresholds() models.WarningThresholds    { return m.thresholds }
func (m *mockSettings) LightSchedule() models.LightSchedule     { return m.light }
func (m *mockSettings) PumpSchedule() models.IrrigationSchedule { return m.pump }
func (m *mockSettings) Save(ctx context.Context, light models.LightSchedule, t models.WarningThresholds) error {
	m.lastLight = light
	m.lastThr = t
	return m.saveErr
}
func (m *mockSettings) SavePumpSchedule(ctx context.Context, sched models.IrrigationSchedule) error {
	m.lastPump = sched
	return m.pumpErr
}
func (m *mockSettings) RunRefresher(ctx context.Context, tick time.Duration) {}

type mockEventLog struct {
	resp     []models.TwinEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.TwinEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

type mockWeather struct {
	payload json.RawMessage
	err     error
}

func (m *mockWeather) Weather(ctx context.Context) (json.RawMessage, error) {
	return m.payload, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
