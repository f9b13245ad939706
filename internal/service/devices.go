package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"farmlab_twin/internal/farmapi"
	"farmlab_twin/internal/logger"
	"farmlab_twin/internal/metrics"
	"farmlab_twin/internal/models"
	"farmlab_twin/internal/repository"
)

var (
	ErrUnknownDevice          = errors.New("unknown device")
	ErrScheduleNotConfigured  = errors.New("cannot enable automation: light schedule has never been configured")
	ErrAutobotViaManualToggle = errors.New("autobot is not a manual device, use the automation toggle")
)

// AutomationControl is how the device mirror drives the scheduler when
// the autobot switch changes, from any write path.
type AutomationControl interface {
	EnsureStarted()
	EnsureStopped()
}

// DeviceService owns the local device mirror and every write path to the
// server switchboard. The mirror is optimistic: manual toggles flip it
// before the server confirms, and the reconciler snaps it back to
// whatever the server reports.
type DeviceService struct {
	api       farmapi.DeviceAPI
	events    repository.EventRepo
	schedules *ScheduleStore
	notifier  Notifier
	log       *logger.Logger

	automation AutomationControl

	mu     sync.RWMutex
	states models.DeviceStates

	// writeMu serializes writes per device so a slow POST for the fan
	// cannot interleave with a second fan toggle.
	writeMu map[models.Device]*sync.Mutex
}

func NewDeviceService(api farmapi.DeviceAPI, events repository.EventRepo, schedules *ScheduleStore, notifier Notifier, log *logger.Logger) *DeviceService {
	writeMu := make(map[models.Device]*sync.Mutex, 4)
	for _, d := range []models.Device{models.DeviceFan, models.DevicePlantLight, models.DevicePump, models.DeviceAutobot} {
		writeMu[d] = &sync.Mutex{}
	}
	return &DeviceService{
		api:       api,
		events:    events,
		schedules: schedules,
		notifier:  notifier,
		log:       log,
		states:    models.DefaultDeviceStates(),
		writeMu:   writeMu,
	}
}

// BindAutomation attaches the scheduler after construction. Must be
// called before any toggle or reconcile runs.
func (s *DeviceService) BindAutomation(a AutomationControl) { s.automation = a }

// States returns a copy of the local mirror.
func (s *DeviceService) States() models.DeviceStates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states
}

func (s *DeviceService) get(d models.Device) models.DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states.Get(d)
}

// apply mutates the mirror and notifies if the state actually changed.
func (s *DeviceService) apply(d models.Device, state models.DeviceState) {
	s.mu.Lock()
	changed := s.states.Get(d) != state
	s.states.Set(d, state)
	s.mu.Unlock()
	if changed {
		s.notifier.DeviceChanged(d, state)
	}
}

// Toggle flips a manually operated device. The mirror flips first so the
// dashboard reacts instantly; a failed server write rolls it back and
// returns the error with the restored state.
func (s *DeviceService) Toggle(ctx context.Context, d models.Device) (models.DeviceState, error) {
	if !d.Valid() {
		return "", ErrUnknownDevice
	}
	if d == models.DeviceAutobot {
		return "", ErrAutobotViaManualToggle
	}

	s.writeMu[d].Lock()
	defer s.writeMu[d].Unlock()

	prev := s.get(d)
	next := prev.Flip()

	s.apply(d, next)
	if err := s.api.UpdateDeviceState(ctx, d, next); err != nil {
		s.apply(d, prev)
		metrics.TogglesTotal.WithLabelValues(string(d), metrics.ResultError).Inc()
		metrics.RevertsTotal.Inc()
		s.log.Errorw("device write failed, reverting", "device", string(d), "state", string(next), "error", err)
		s.appendEvent(ctx, models.EventRevert, "reverted "+string(d)+" to "+string(prev), map[string]any{
			"device": string(d), "attempted": string(next),
		})
		return prev, err
	}

	metrics.TogglesTotal.WithLabelValues(string(d), metrics.ResultOK).Inc()
	s.appendEvent(ctx, models.EventToggle, string(d)+" switched "+string(next), map[string]any{
		"device": string(d), "state": string(next),
	})
	return next, nil
}

// ToggleAutobot flips the automation switch. Unlike manual devices the
// server is written first; the mirror and the scheduler only follow a
// confirmed change. Enabling is refused while the light schedule still
// equals the factory sentinel.
func (s *DeviceService) ToggleAutobot(ctx context.Context) (models.DeviceState, error) {
	s.writeMu[models.DeviceAutobot].Lock()
	defer s.writeMu[models.DeviceAutobot].Unlock()

	prev := s.get(models.DeviceAutobot)
	next := prev.Flip()

	if next.On() && s.schedules.Light().IsDefault() {
		return prev, ErrScheduleNotConfigured
	}

	if err := s.api.UpdateDeviceState(ctx, models.DeviceAutobot, next); err != nil {
		metrics.TogglesTotal.WithLabelValues(string(models.DeviceAutobot), metrics.ResultError).Inc()
		return prev, err
	}

	s.apply(models.DeviceAutobot, next)
	s.syncAutomation(next)
	metrics.TogglesTotal.WithLabelValues(string(models.DeviceAutobot), metrics.ResultOK).Inc()
	s.appendEvent(ctx, models.EventAutobot, "automation switched "+string(next), nil)
	return next, nil
}

// SetScheduled is the write path for automation-driven light changes:
// the mirror changes first and stays changed even if the server write
// fails. The reconciler will resolve any divergence.
func (s *DeviceService) SetScheduled(ctx context.Context, d models.Device, state models.DeviceState) error {
	s.writeMu[d].Lock()
	defer s.writeMu[d].Unlock()

	if s.get(d) == state {
		return nil
	}
	s.apply(d, state)
	s.appendEvent(ctx, models.EventSchedule, string(d)+" scheduled "+string(state), nil)

	if err := s.api.UpdateDeviceState(ctx, d, state); err != nil {
		metrics.TogglesTotal.WithLabelValues(string(d), metrics.ResultError).Inc()
		s.log.Errorw("scheduled device write failed, keeping local state", "device", string(d), "state", string(state), "error", err)
		return err
	}
	metrics.TogglesTotal.WithLabelValues(string(d), metrics.ResultOK).Inc()
	return nil
}

// SetWriteFirst posts the new state and only mirrors it on success. Pump
// runs use this for both edges so the mirror never claims a running pump
// the server refused.
func (s *DeviceService) SetWriteFirst(ctx context.Context, d models.Device, state models.DeviceState) error {
	s.writeMu[d].Lock()
	defer s.writeMu[d].Unlock()

	if err := s.api.UpdateDeviceState(ctx, d, state); err != nil {
		metrics.TogglesTotal.WithLabelValues(string(d), metrics.ResultError).Inc()
		return err
	}
	s.apply(d, state)
	metrics.TogglesTotal.WithLabelValues(string(d), metrics.ResultOK).Inc()
	return nil
}

// Reconcile fetches the authoritative switchboard and overwrites the
// mirror with it. Divergent devices are notified individually; an
// autobot flip observed here starts or stops the scheduler exactly as a
// local toggle would.
func (s *DeviceService) Reconcile(ctx context.Context) error {
	server, err := s.api.DeviceStates(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.states
	s.states = server
	s.mu.Unlock()

	for _, d := range []models.Device{models.DeviceFan, models.DevicePlantLight, models.DevicePump, models.DeviceAutobot} {
		if prev.Get(d) != server.Get(d) {
			s.log.Infow("reconciled device with server", "device", string(d), "was", string(prev.Get(d)), "now", string(server.Get(d)))
			s.notifier.DeviceChanged(d, server.Get(d))
		}
	}
	s.syncAutomation(server.Autobot)
	return nil
}

// RunReconciler polls the server switchboard until the context ends.
// The first reconcile runs immediately so the mirror starts from the
// server snapshot instead of all-OFF.
func (s *DeviceService) RunReconciler(ctx context.Context, tick time.Duration) {
	if err := s.Reconcile(ctx); err != nil {
		s.log.Warnw("device reconcile failed, keeping local mirror", "error", err)
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil {
				s.log.Warnw("device reconcile failed, keeping local mirror", "error", err)
			}
		}
	}
}

func (s *DeviceService) syncAutomation(autobot models.DeviceState) {
	if s.automation == nil {
		return
	}
	if autobot.On() {
		s.automation.EnsureStarted()
	} else {
		s.automation.EnsureStopped()
	}
}

func (s *DeviceService) appendEvent(ctx context.Context, typ, desc string, meta map[string]any) {
	e := models.TwinEvent{Type: typ, Description: desc}
	if meta != nil {
		e.Metadata = meta
	}
	if err := s.events.Append(ctx, e); err != nil {
		s.log.Warnw("event append failed", "type", typ, "error", err)
	}
}
