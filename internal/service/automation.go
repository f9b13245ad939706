package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"farmlab_twin/internal/logger"
	"farmlab_twin/internal/metrics"
	"farmlab_twin/internal/models"
	"farmlab_twin/internal/repository"
)

var ErrPumpBusy = errors.New("irrigation run already in progress")

// deviceController is the slice of the device mirror automation needs.
type deviceController interface {
	States() models.DeviceStates
	SetScheduled(ctx context.Context, d models.Device, state models.DeviceState) error
	SetWriteFirst(ctx context.Context, d models.Device, state models.DeviceState) error
}

// AutomationConfig carries the scheduler tunables.
type AutomationConfig struct {
	LightCheckEvery      time.Duration
	IrrigationCheckEvery time.Duration
	// IrrigationWindow is how close to a trigger instant a check must
	// land to fire. The default one second means a check only fires when
	// it lands inside the trigger second, which a 10s check cadence will
	// usually miss. Widen to a minute to fire anywhere in the trigger
	// minute, or beyond that for a ±window/2 band around the instant.
	// The daily latch keeps every mode to one run per trigger.
	IrrigationWindow time.Duration
}

func (c *AutomationConfig) applyDefaults() {
	if c.LightCheckEvery <= 0 {
		c.LightCheckEvery = 30 * time.Second
	}
	if c.IrrigationCheckEvery <= 0 {
		c.IrrigationCheckEvery = 10 * time.Second
	}
	if c.IrrigationWindow <= 0 {
		c.IrrigationWindow = time.Second
	}
}

// AutomationService runs the light and irrigation loops while the
// autobot switch is ON. EnsureStarted/EnsureStopped are idempotent, so
// every observer of an autobot change may call them blindly.
type AutomationService struct {
	devices   deviceController
	schedules *ScheduleStore
	events    repository.EventRepo
	log       *logger.Logger
	cfg       AutomationConfig

	// seams for tests
	now   func() time.Time
	after func(d time.Duration) <-chan time.Time

	pumpBusy atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc

	latchMu sync.Mutex
	fired   map[string]struct{}
}

func NewAutomationService(devices deviceController, schedules *ScheduleStore, events repository.EventRepo, log *logger.Logger, cfg AutomationConfig) *AutomationService {
	cfg.applyDefaults()
	return &AutomationService{
		devices:   devices,
		schedules: schedules,
		events:    events,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
		after:     time.After,
		fired:     make(map[string]struct{}),
	}
}

// EnsureStarted launches the scheduler loops if they are not running.
func (s *AutomationService) EnsureStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.log.Infow("automation started",
		"light_check", s.cfg.LightCheckEvery.String(),
		"irrigation_check", s.cfg.IrrigationCheckEvery.String(),
	)
	go s.runLights(ctx)
	go s.runIrrigation(ctx)
}

// EnsureStopped cancels the scheduler loops if they are running. An
// in-flight pump run finishes on its own.
func (s *AutomationService) EnsureStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.log.Infow("automation stopped")
}

// Running reports whether the scheduler loops are active.
func (s *AutomationService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *AutomationService) runLights(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LightCheckEvery)
	defer ticker.Stop()

	s.CheckLight(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckLight(ctx)
		}
	}
}

// CheckLight aligns the plant light with the schedule window. A light
// already in the desired state is left alone, so repeated checks inside
// the window write nothing.
func (s *AutomationService) CheckLight(ctx context.Context) {
	desired := models.StateOff
	if s.schedules.Light().ActiveAt(s.now()) {
		desired = models.StateOn
	}
	if s.devices.States().Get(models.DevicePlantLight) == desired {
		return
	}
	if err := s.devices.SetScheduled(ctx, models.DevicePlantLight, desired); err != nil {
		s.log.Errorw("scheduled light change failed", "desired", string(desired), "error", err)
	}
}

func (s *AutomationService) runIrrigation(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.IrrigationCheckEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckIrrigation(ctx)
		}
	}
}

// CheckIrrigation refetches the irrigation schedule and fires a pump run
// when a trigger instant is due. Each trigger fires at most once per day.
func (s *AutomationService) CheckIrrigation(ctx context.Context) {
	// Fetch fresh so a schedule edited elsewhere applies without a
	// restart; a failed fetch falls back to the cache.
	_ = s.schedules.RefreshPump(ctx)

	sched := s.schedules.Pump()
	now := s.now()
	for i, trigger := range sched.Triggers() {
		if !s.matchesTrigger(now, trigger) {
			continue
		}
		if !s.latch(i, now) {
			continue
		}
		go func() {
			if err := s.RunPump(ctx, sched.Duration()); err != nil {
				s.log.Errorw("scheduled pump run failed", "error", err)
			}
		}()
	}
}

// matchesTrigger reports whether now is close enough to the trigger
// instant to fire.
func (s *AutomationService) matchesTrigger(now time.Time, t models.ClockTime) bool {
	if s.cfg.IrrigationWindow <= time.Second {
		return now.Hour() == t.Hours && now.Minute() == t.Minutes && now.Second() == 0
	}
	if s.cfg.IrrigationWindow <= time.Minute {
		return now.Hour() == t.Hours && now.Minute() == t.Minutes
	}
	trigger := time.Date(now.Year(), now.Month(), now.Day(), t.Hours, t.Minutes, 0, 0, now.Location())
	diff := now.Sub(trigger)
	half := s.cfg.IrrigationWindow / 2
	return diff >= -half && diff <= half
}

// latch records that trigger i fired today. Returns false when it
// already had.
func (s *AutomationService) latch(i int, now time.Time) bool {
	key := fmt.Sprintf("%d@%s", i, now.Format("2006-01-02"))
	s.latchMu.Lock()
	defer s.latchMu.Unlock()
	if _, done := s.fired[key]; done {
		return false
	}
	if len(s.fired) > 8 {
		s.fired = make(map[string]struct{})
	}
	s.fired[key] = struct{}{}
	return true
}

// RunPump switches the pump ON, waits the run length, and switches it
// OFF. Both edges are write-first. Only one run may be in flight; a
// failed ON aborts the run, a failed OFF is logged and surfaced but the
// busy flag clears either way so the next trigger can retry.
func (s *AutomationService) RunPump(ctx context.Context, d time.Duration) error {
	if !s.pumpBusy.CompareAndSwap(false, true) {
		return ErrPumpBusy
	}
	defer s.pumpBusy.Store(false)

	if err := s.devices.SetWriteFirst(ctx, models.DevicePump, models.StateOn); err != nil {
		metrics.PumpRunsTotal.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("pump on: %w", err)
	}
	s.appendEvent(ctx, "pump run started", map[string]any{"duration_s": int(d.Seconds())})

	// The run length always elapses in full. Stopping automation does
	// not cut a started run short; the OFF edge below still lands.
	<-s.after(d)

	if err := s.devices.SetWriteFirst(context.WithoutCancel(ctx), models.DevicePump, models.StateOff); err != nil {
		metrics.PumpRunsTotal.WithLabelValues(metrics.ResultError).Inc()
		s.log.Errorw("pump off write failed, pump may still be running", "error", err)
		return fmt.Errorf("pump off: %w", err)
	}
	metrics.PumpRunsTotal.WithLabelValues(metrics.ResultOK).Inc()
	s.appendEvent(ctx, "pump run finished", nil)
	return nil
}

// PumpBusy reports whether an irrigation run is in flight.
func (s *AutomationService) PumpBusy() bool { return s.pumpBusy.Load() }

func (s *AutomationService) appendEvent(ctx context.Context, desc string, meta map[string]any) {
	e := models.TwinEvent{Type: models.EventPumpRun, Description: desc}
	if meta != nil {
		e.Metadata = meta
	}
	if err := s.events.Append(context.WithoutCancel(ctx), e); err != nil {
		s.log.Warnw("event append failed", "type", e.Type, "error", err)
	}
}
