package service

import (
	"context"
	"sync"

	"farmlab_twin/internal/farmapi"
	"farmlab_twin/internal/logger"
	"farmlab_twin/internal/models"
)

// ThresholdStore caches the warning bounds. The server is authoritative;
// a failed refresh resets the cache to the hardcoded defaults rather
// than keeping possibly stale bounds.
type ThresholdStore struct {
	api farmapi.SettingsAPI
	log *logger.Logger

	mu      sync.RWMutex
	current models.WarningThresholds
}

func NewThresholdStore(api farmapi.SettingsAPI, log *logger.Logger) *ThresholdStore {
	return &ThresholdStore{
		api:     api,
		log:     log,
		current: models.DefaultWarningThresholds(),
	}
}

// Current returns the cached thresholds.
func (s *ThresholdStore) Current() models.WarningThresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set overwrites the cache after a successful save.
func (s *ThresholdStore) Set(t models.WarningThresholds) {
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
}

// Refresh fetches the thresholds from the server. On failure the cache
// falls back to the defaults and the fetch error is returned.
func (s *ThresholdStore) Refresh(ctx context.Context) error {
	t, err := s.api.WarningThresholds(ctx)
	if err != nil {
		s.log.Warnw("threshold fetch failed, resetting to defaults", "error", err)
		s.Set(models.DefaultWarningThresholds())
		return err
	}
	s.Set(t)
	return nil
}
