package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"farmlab_twin/internal/farmapi"
	"farmlab_twin/internal/logger"
	"farmlab_twin/internal/metrics"
	"farmlab_twin/internal/models"
	"farmlab_twin/internal/repository"
)

var ErrUnknownChannel = errors.New("unknown channel")

// defaultWarningGrace suppresses warning side effects for a window after
// the first successful poll, so a dashboard opening mid-incident does
// not fire a burst of alerts before the operator can see anything.
const defaultWarningGrace = 10 * time.Second

// TelemetryView is a read snapshot of the sensor state for handlers and
// the websocket push.
type TelemetryView struct {
	Latest     map[models.Channel]float64                `json:"latest"`
	Levels     map[models.Channel]models.WarningLevel    `json:"levels"`
	History    map[models.Channel][]models.SensorReading `json:"history"`
	CameraShot *models.CameraShot                        `json:"lastCameraShot,omitempty"`
	UpdatedAt  time.Time                                 `json:"updatedAt"`
}

// TelemetryService polls the sensor payload, keeps the bounded in-memory
// rings, archives readings, and evaluates warning levels.
type TelemetryService struct {
	api        farmapi.TelemetryAPI
	thresholds *ThresholdStore
	archive    repository.HistoryRepo
	events     repository.EventRepo
	notifier   Notifier
	log        *logger.Logger

	grace time.Duration

	mu        sync.RWMutex
	startedAt time.Time // first successful poll, anchors the grace window
	graceDone bool      // suppressed levels were surfaced after the window
	rings     map[models.Channel]*models.History
	latest    map[models.Channel]float64
	levels    map[models.Channel]models.WarningLevel
	camera    *models.CameraShot
	updatedAt time.Time
}

func NewTelemetryService(api farmapi.TelemetryAPI, thresholds *ThresholdStore, archive repository.HistoryRepo, events repository.EventRepo, notifier Notifier, log *logger.Logger, grace time.Duration) *TelemetryService {
	if grace <= 0 {
		grace = defaultWarningGrace
	}
	rings := make(map[models.Channel]*models.History, len(models.Channels))
	levels := make(map[models.Channel]models.WarningLevel, len(models.Channels))
	for _, ch := range models.Channels {
		rings[ch] = models.NewHistory(models.HistoryLimit)
		levels[ch] = models.WarningNormal
	}
	return &TelemetryService{
		api:        api,
		thresholds: thresholds,
		archive:    archive,
		events:     events,
		notifier:   notifier,
		log:        log,
		grace:      grace,
		rings:      rings,
		latest:     make(map[models.Channel]float64),
		levels:     levels,
	}
}

// round truncates v to the channel's display precision.
func round(ch models.Channel, v float64) float64 {
	scale := math.Pow(10, float64(ch.Precision()))
	return math.Round(v*scale) / scale
}

// Poll fetches the sensor payload once and applies it: histories the
// server included replace the rings wholesale, latest readings are
// rounded, pushed, archived and evaluated against the warning bounds.
func (s *TelemetryService) Poll(ctx context.Context) error {
	snap, err := s.api.Data(ctx)
	if err != nil {
		metrics.PollsTotal.WithLabelValues(metrics.ResultError).Inc()
		return err
	}
	metrics.PollsTotal.WithLabelValues(metrics.ResultOK).Inc()

	now := time.Now().UTC()
	bounds := s.thresholds.Current()

	type levelChange struct {
		ch    models.Channel
		level models.WarningLevel
	}
	var changes []levelChange

	s.mu.Lock()
	if s.startedAt.IsZero() {
		s.startedAt = now
	}
	inGrace := now.Sub(s.startedAt) < s.grace
	for ch, h := range snap.History {
		if ring, ok := s.rings[ch]; ok {
			ring.Replace(roundAll(ch, h))
		}
	}
	for ch, raw := range snap.Latest {
		v := round(ch, raw)
		s.latest[ch] = v
		if ring, ok := s.rings[ch]; ok {
			ring.Push(models.SensorReading{Time: now, Value: v})
		}
		metrics.SensorValue.WithLabelValues(string(ch)).Set(v)

		if b, guarded := bounds.BoundsFor(ch); guarded {
			level := b.Evaluate(v)
			if s.levels[ch] != level {
				s.levels[ch] = level
				changes = append(changes, levelChange{ch: ch, level: level})
			}
			metrics.WarningState.WithLabelValues(string(ch)).Set(metrics.LevelValue(string(level)))
		}
	}
	if snap.CameraShot != nil {
		s.camera = snap.CameraShot
	}
	s.updatedAt = now

	// The first poll past the grace window surfaces warnings whose
	// transition was swallowed while suppressed, so an incident that
	// started during startup still alerts.
	if !inGrace && !s.graceDone {
		s.graceDone = true
		pending := make(map[models.Channel]bool, len(changes))
		for _, c := range changes {
			pending[c.ch] = true
		}
		for _, ch := range models.Channels {
			if s.levels[ch] != models.WarningNormal && !pending[ch] {
				changes = append(changes, levelChange{ch: ch, level: s.levels[ch]})
			}
		}
	}
	s.mu.Unlock()

	for ch, raw := range snap.Latest {
		v := round(ch, raw)
		if err := s.archive.Record(ctx, ch, models.SensorReading{Time: now, Value: v}); err != nil {
			s.log.Warnw("reading archive failed", "channel", string(ch), "error", err)
		}
	}

	// Warning levels always update; only their side effects wait out the
	// grace window.
	for _, c := range changes {
		if inGrace {
			s.log.Debugw("warning change suppressed during startup grace", "channel", string(c.ch), "level", string(c.level))
			continue
		}
		s.notifier.WarningChanged(c.ch, c.level)
		s.appendWarningEvent(ctx, c.ch, c.level)
	}
	return nil
}

// RunPoller polls until the context ends. One poll fires immediately so
// the dashboard is not empty for a full tick after startup.
func (s *TelemetryService) RunPoller(ctx context.Context, tick time.Duration) {
	if err := s.Poll(ctx); err != nil {
		s.log.Warnw("telemetry poll failed", "error", err)
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Poll(ctx); err != nil {
				s.log.Warnw("telemetry poll failed", "error", err)
			}
		}
	}
}

// Snapshot returns a deep copy of the current telemetry view.
func (s *TelemetryService) Snapshot() TelemetryView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := TelemetryView{
		Latest:     make(map[models.Channel]float64, len(s.latest)),
		Levels:     make(map[models.Channel]models.WarningLevel, len(s.levels)),
		History:    make(map[models.Channel][]models.SensorReading, len(s.rings)),
		CameraShot: s.camera,
		UpdatedAt:  s.updatedAt,
	}
	for ch, v := range s.latest {
		view.Latest[ch] = v
	}
	for ch, l := range s.levels {
		view.Levels[ch] = l
	}
	for ch, ring := range s.rings {
		view.History[ch] = ring.Values()
	}
	return view
}

// ChannelHistory returns the in-memory ring for one channel.
func (s *TelemetryService) ChannelHistory(ch models.Channel) ([]models.SensorReading, error) {
	if !ch.Valid() {
		return nil, ErrUnknownChannel
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rings[ch].Values(), nil
}

// ArchivedRange reads the on-disk archive, which reaches further back
// than the ring.
func (s *TelemetryService) ArchivedRange(ctx context.Context, ch models.Channel, from, to time.Time) ([]models.SensorReading, error) {
	if !ch.Valid() {
		return nil, ErrUnknownChannel
	}
	return s.archive.Range(ctx, ch, from, to)
}

func roundAll(ch models.Channel, rs []models.SensorReading) []models.SensorReading {
	out := make([]models.SensorReading, len(rs))
	for i, r := range rs {
		out[i] = models.SensorReading{Time: r.Time, Value: round(ch, r.Value)}
	}
	return out
}

func (s *TelemetryService) appendWarningEvent(ctx context.Context, ch models.Channel, level models.WarningLevel) {
	e := models.TwinEvent{
		Type:        models.EventWarning,
		Description: string(ch) + " is " + string(level),
		Metadata:    map[string]any{"channel": string(ch), "level": string(level)},
	}
	if err := s.events.Append(ctx, e); err != nil {
		s.log.Warnw("event append failed", "type", e.Type, "error", err)
	}
}
