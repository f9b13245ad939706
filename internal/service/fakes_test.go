package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"farmlab_twin/internal/logger"
	"farmlab_twin/internal/models"
)

func testLogger() *logger.Logger {
	return logger.Get(logger.ErrorLevel)
}

// fakeDeviceAPI records device writes and fails on demand.
type fakeDeviceAPI struct {
	mu sync.Mutex

	states    models.DeviceStates
	statesErr error
	writeErr  map[models.Device]error
	writes    []deviceWrite
}

type deviceWrite struct {
	device models.Device
	state  models.DeviceState
}

func newFakeDeviceAPI() *fakeDeviceAPI {
	return &fakeDeviceAPI{
		states:   models.DefaultDeviceStates(),
		writeErr: make(map[models.Device]error),
	}
}

func (f *fakeDeviceAPI) DeviceStates(ctx context.Context) (models.DeviceStates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statesErr != nil {
		return models.DeviceStates{}, f.statesErr
	}
	return f.states, nil
}

func (f *fakeDeviceAPI) UpdateDeviceState(ctx context.Context, d models.Device, s models.DeviceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr[d]; err != nil {
		return err
	}
	f.writes = append(f.writes, deviceWrite{device: d, state: s})
	f.states.Set(d, s)
	return nil
}

func (f *fakeDeviceAPI) writeLog() []deviceWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]deviceWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

// fakeSettingsAPI serves canned settings and fails on demand.
type fakeSettingsAPI struct {
	mu sync.Mutex

	thresholds    models.WarningThresholds
	thresholdsErr error
	light         models.LightSchedule
	lightErr      error
	pump          models.IrrigationSchedule
	pumpErr       error
	saveErr       error
	savePumpErr   error
	pumpFetches   int
}

func newFakeSettingsAPI() *fakeSettingsAPI {
	return &fakeSettingsAPI{
		thresholds: models.DefaultWarningThresholds(),
		light:      models.DefaultLightSchedule(),
		pump:       models.DefaultIrrigationSchedule(),
	}
}

func (f *fakeSettingsAPI) WarningThresholds(ctx context.Context) (models.WarningThresholds, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.thresholdsErr != nil {
		return models.WarningThresholds{}, f.thresholdsErr
	}
	return f.thresholds, nil
}

func (f *fakeSettingsAPI) LightSchedule(ctx context.Context) (models.LightSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lightErr != nil {
		return models.LightSchedule{}, f.lightErr
	}
	return f.light, nil
}

func (f *fakeSettingsAPI) PumpSchedule(ctx context.Context) (models.IrrigationSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pumpFetches++
	if f.pumpErr != nil {
		return models.IrrigationSchedule{}, f.pumpErr
	}
	return f.pump, nil
}

func (f *fakeSettingsAPI) SaveSettings(ctx context.Context, light models.LightSchedule, t models.WarningThresholds) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.light = light
	f.thresholds = t
	return nil
}

func (f *fakeSettingsAPI) SavePumpSchedule(ctx context.Context, sched models.IrrigationSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.savePumpErr != nil {
		return f.savePumpErr
	}
	f.pump = sched
	return nil
}

// fakeTelemetryAPI serves one canned snapshot.
type fakeTelemetryAPI struct {
	mu   sync.Mutex
	snap models.TelemetrySnapshot
	err  error
}

func (f *fakeTelemetryAPI) Data(ctx context.Context) (models.TelemetrySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.TelemetrySnapshot{}, f.err
	}
	return f.snap, nil
}

// fakeEventRepo collects appended events in memory.
type fakeEventRepo struct {
	mu     sync.Mutex
	events []models.TwinEvent
}

func (f *fakeEventRepo) Append(ctx context.Context, e models.TwinEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]models.TwinEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.TwinEvent, len(f.events))
	copy(out, f.events)
	return out, nil
}

func (f *fakeEventRepo) byType(typ string) []models.TwinEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TwinEvent
	for _, e := range f.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// fakeHistoryRepo archives readings in memory.
type fakeHistoryRepo struct {
	mu       sync.Mutex
	recorded map[models.Channel][]models.SensorReading
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{recorded: make(map[models.Channel][]models.SensorReading)}
}

func (f *fakeHistoryRepo) Record(ctx context.Context, ch models.Channel, r models.SensorReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded[ch] = append(f.recorded[ch], r)
	return nil
}

func (f *fakeHistoryRepo) Range(ctx context.Context, ch models.Channel, from, to time.Time) ([]models.SensorReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recorded[ch], nil
}

// fakeNotifier records notifications.
type fakeNotifier struct {
	mu       sync.Mutex
	devices  []deviceWrite
	warnings []warningChange
}

type warningChange struct {
	ch    models.Channel
	level models.WarningLevel
}

func (f *fakeNotifier) DeviceChanged(d models.Device, state models.DeviceState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = append(f.devices, deviceWrite{device: d, state: state})
}

func (f *fakeNotifier) WarningChanged(ch models.Channel, level models.WarningLevel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, warningChange{ch: ch, level: level})
}

func (f *fakeNotifier) warningLog() []warningChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]warningChange, len(f.warnings))
	copy(out, f.warnings)
	return out
}

// fakeAutomation records EnsureStarted/EnsureStopped calls.
type fakeAutomation struct {
	mu      sync.Mutex
	started int
	stopped int
}

func (f *fakeAutomation) EnsureStarted() {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
}

func (f *fakeAutomation) EnsureStopped() {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
}

// fakeWeatherAPI serves one canned payload.
type fakeWeatherAPI struct {
	payload json.RawMessage
	err     error
	calls   int
}

func (f *fakeWeatherAPI) Weather(ctx context.Context) (json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

var errBoom = errors.New("boom")
