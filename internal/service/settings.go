package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farmlab_twin/internal/farmapi"
	"farmlab_twin/internal/logger"
	"farmlab_twin/internal/models"
	"farmlab_twin/internal/repository"
)

var (
	ErrSettingsLocked  = errors.New("settings are locked while automation is enabled")
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// SettingsService fronts the threshold and schedule caches and owns the
// save paths. Saves go to the server first; the caches only change after
// the server accepts.
type SettingsService struct {
	api        farmapi.SettingsAPI
	thresholds *ThresholdStore
	schedules  *ScheduleStore
	devices    *DeviceService
	events     repository.EventRepo
	log        *logger.Logger
}

func NewSettingsService(api farmapi.SettingsAPI, thresholds *ThresholdStore, schedules *ScheduleStore, devices *DeviceService, events repository.EventRepo, log *logger.Logger) *SettingsService {
	return &SettingsService{
		api:        api,
		thresholds: thresholds,
		schedules:  schedules,
		devices:    devices,
		events:     events,
		log:        log,
	}
}

func (s *SettingsService) Thresholds() models.WarningThresholds {
	return s.thresholds.Current()
}

func (s *SettingsService) LightSchedule() models.LightSchedule {
	return s.schedules.Light()
}

func (s *SettingsService) PumpSchedule() models.IrrigationSchedule {
	return s.schedules.Pump()
}

// Save posts the light schedule and thresholds together. Refused while
// the autobot is ON: the scheduler acts on these values and must not
// have them change under it.
func (s *SettingsService) Save(ctx context.Context, light models.LightSchedule, t models.WarningThresholds) error {
	if s.devices.States().Autobot.On() {
		return ErrSettingsLocked
	}
	if err := validateSchedule(light.Start); err != nil {
		return err
	}
	if err := validateSchedule(light.End); err != nil {
		return err
	}
	if err := s.api.SaveSettings(ctx, light, t); err != nil {
		return err
	}
	s.schedules.SetLight(light)
	s.thresholds.Set(t)
	s.appendEvent(ctx, "settings saved", map[string]any{
		"light_start": light.Start.String(),
		"light_end":   light.End.String(),
	})
	return nil
}

// SavePumpSchedule posts a new irrigation schedule, locked while the
// autobot is ON for the same reason Save is.
func (s *SettingsService) SavePumpSchedule(ctx context.Context, sched models.IrrigationSchedule) error {
	if s.devices.States().Autobot.On() {
		return ErrSettingsLocked
	}
	if err := validateSchedule(sched.First); err != nil {
		return err
	}
	if err := validateSchedule(sched.Second); err != nil {
		return err
	}
	if sched.DurationSeconds <= 0 {
		return fmt.Errorf("%w: irrigation duration must be positive", ErrInvalidSchedule)
	}
	if err := s.api.SavePumpSchedule(ctx, sched); err != nil {
		return err
	}
	s.schedules.SetPump(sched)
	s.appendEvent(ctx, "irrigation schedule saved", map[string]any{
		"first":      sched.First.String(),
		"second":     sched.Second.String(),
		"duration_s": sched.DurationSeconds,
	})
	return nil
}

// RunRefresher periodically re-fetches thresholds and schedules so edits
// made through another client converge here too. The first load runs
// immediately so the stores hold server values instead of the built-in
// defaults from the start.
func (s *SettingsService) RunRefresher(ctx context.Context, tick time.Duration) {
	s.refresh(ctx)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *SettingsService) refresh(ctx context.Context) {
	_ = s.thresholds.Refresh(ctx)
	_ = s.schedules.RefreshLight(ctx)
	_ = s.schedules.RefreshPump(ctx)
}

func validateSchedule(t models.ClockTime) error {
	if t.Hours < 0 || t.Hours > 23 || t.Minutes < 0 || t.Minutes > 59 {
		return fmt.Errorf("%w: time out of range %s", ErrInvalidSchedule, t)
	}
	return nil
}

func (s *SettingsService) appendEvent(ctx context.Context, desc string, meta map[string]any) {
	e := models.TwinEvent{Type: models.EventSettings, Description: desc, Metadata: meta}
	if err := s.events.Append(ctx, e); err != nil {
		s.log.Warnw("event append failed", "type", e.Type, "error", err)
	}
}
