package service

import (
	"context"
	"sync"

	"farmlab_twin/internal/farmapi"
	"farmlab_twin/internal/logger"
	"farmlab_twin/internal/models"
)

// ScheduleStore caches the light and irrigation schedules. Unlike the
// threshold cache, a failed refresh keeps the last known schedule: an
// automation loop running on stale times beats one running on the
// factory sentinel.
type ScheduleStore struct {
	api farmapi.SettingsAPI
	log *logger.Logger

	mu    sync.RWMutex
	light models.LightSchedule
	pump  models.IrrigationSchedule
}

func NewScheduleStore(api farmapi.SettingsAPI, log *logger.Logger) *ScheduleStore {
	return &ScheduleStore{
		api:   api,
		log:   log,
		light: models.DefaultLightSchedule(),
		pump:  models.DefaultIrrigationSchedule(),
	}
}

// Light returns the cached light schedule.
func (s *ScheduleStore) Light() models.LightSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.light
}

// Pump returns the cached irrigation schedule.
func (s *ScheduleStore) Pump() models.IrrigationSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pump
}

// SetLight overwrites the cached light schedule.
func (s *ScheduleStore) SetLight(l models.LightSchedule) {
	s.mu.Lock()
	s.light = l
	s.mu.Unlock()
}

// SetPump overwrites the cached irrigation schedule.
func (s *ScheduleStore) SetPump(p models.IrrigationSchedule) {
	s.mu.Lock()
	s.pump = p
	s.mu.Unlock()
}

// RefreshLight fetches the light schedule, keeping the cache on failure.
func (s *ScheduleStore) RefreshLight(ctx context.Context) error {
	l, err := s.api.LightSchedule(ctx)
	if err != nil {
		s.log.Warnw("light schedule fetch failed, keeping cached schedule", "error", err)
		return err
	}
	s.SetLight(l)
	return nil
}

// RefreshPump fetches the irrigation schedule, keeping the cache on failure.
func (s *ScheduleStore) RefreshPump(ctx context.Context) error {
	p, err := s.api.PumpSchedule(ctx)
	if err != nil {
		s.log.Warnw("pump schedule fetch failed, keeping cached schedule", "error", err)
		return err
	}
	s.SetPump(p)
	return nil
}
