package service

import (
	"context"
	"encoding/json"
	"time"

	"farmlab_twin/internal/farmapi"
	"farmlab_twin/internal/logger"
	"farmlab_twin/internal/models"
	"farmlab_twin/internal/repository"
)

type Authorization interface {
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	EnsureOperator(username, password string) error
}

// Devices exposes the local device mirror and its write paths. The
// reconciler keeps the mirror aligned with the server.
type Devices interface {
	States() models.DeviceStates
	Toggle(ctx context.Context, d models.Device) (models.DeviceState, error)
	ToggleAutobot(ctx context.Context) (models.DeviceState, error)
	RunReconciler(ctx context.Context, tick time.Duration)
}

// Telemetry exposes the in-memory sensor view and the on-disk archive.
type Telemetry interface {
	Snapshot() TelemetryView
	ChannelHistory(ch models.Channel) ([]models.SensorReading, error)
	ArchivedRange(ctx context.Context, ch models.Channel, from, to time.Time) ([]models.SensorReading, error)
	RunPoller(ctx context.Context, tick time.Duration)
}

// Settings exposes thresholds and schedules plus the combined save path.
type Settings interface {
	Thresholds() models.WarningThresholds
	LightSchedule() models.LightSchedule
	PumpSchedule() models.IrrigationSchedule
	Save(ctx context.Context, light models.LightSchedule, t models.WarningThresholds) error
	SavePumpSchedule(ctx context.Context, sched models.IrrigationSchedule) error
	RunRefresher(ctx context.Context, tick time.Duration)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.TwinEvent, error)
}

// Weather exposes the upstream weather payload, briefly cached.
type Weather interface {
	Weather(ctx context.Context) (json.RawMessage, error)
}

// LogFilter narrows an event log query.
type LogFilter struct {
	From time.Time
	To   time.Time
	Type string
}

// Service aggregates all sub-services.
type Service struct {
	Devices
	Telemetry
	Settings
	EventLog
	Weather
	Authorization
}

// Config carries the tunables NewService cannot derive.
type Config struct {
	JWTSigningKey        string
	WarningGrace         time.Duration
	IrrigationCheckEvery time.Duration
	LightCheckEvery      time.Duration
	IrrigationWindow     time.Duration
}

// NewService wires the API client, repositories and notifier into the
// concrete services and cross-binds the device mirror with automation.
func NewService(api *farmapi.Client, repos *repository.Repository, notifier Notifier, log *logger.Logger, cfg Config) *Service {
	thresholds := NewThresholdStore(api, log)
	schedules := NewScheduleStore(api, log)

	devices := NewDeviceService(api, repos.EventRepo, schedules, notifier, log)
	automation := NewAutomationService(devices, schedules, repos.EventRepo, log, AutomationConfig{
		LightCheckEvery:      cfg.LightCheckEvery,
		IrrigationCheckEvery: cfg.IrrigationCheckEvery,
		IrrigationWindow:     cfg.IrrigationWindow,
	})
	devices.BindAutomation(automation)

	telemetry := NewTelemetryService(api, thresholds, repos.HistoryRepo, repos.EventRepo, notifier, log, cfg.WarningGrace)
	settings := NewSettingsService(api, thresholds, schedules, devices, repos.EventRepo, log)

	return &Service{
		Devices:       devices,
		Telemetry:     telemetry,
		Settings:      settings,
		EventLog:      NewEventLogService(repos.EventRepo),
		Weather:       NewWeatherService(api, log),
		Authorization: NewAuthService(repos.Auth, cfg.JWTSigningKey),
	}
}
