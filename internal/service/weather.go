package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"farmlab_twin/internal/farmapi"
	"farmlab_twin/internal/logger"
)

const weatherCacheTTL = time.Minute

// WeatherService proxies the upstream weather payload with a short
// cache, so a dashboard refreshing every few seconds does not hammer
// the provider.
type WeatherService struct {
	api farmapi.WeatherAPI
	log *logger.Logger

	mu        sync.Mutex
	cached    json.RawMessage
	fetchedAt time.Time
}

func NewWeatherService(api farmapi.WeatherAPI, log *logger.Logger) *WeatherService {
	return &WeatherService{api: api, log: log}
}

func (s *WeatherService) Weather(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Since(s.fetchedAt) < weatherCacheTTL {
		return s.cached, nil
	}

	raw, err := s.api.Weather(ctx)
	if err != nil {
		if s.cached != nil {
			s.log.Warnw("weather fetch failed, serving cached payload", "error", err)
			return s.cached, nil
		}
		return nil, err
	}
	s.cached = raw
	s.fetchedAt = time.Now()
	return raw, nil
}
