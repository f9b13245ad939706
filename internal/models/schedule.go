package models

import (
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// MinuteOfDay converts to minutes since midnight.
func (t ClockTime) MinuteOfDay() int { return t.Hours*60 + t.Minutes }

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hours, t.Minutes)
}

// LightSchedule is the daily plant-light window. End before Start means
// the window wraps past midnight.
type LightSchedule struct {
	Start ClockTime `json:"startTime"`
	End   ClockTime `json:"endTime"`
}

// DefaultLightSchedule is the 8:10 → 23:50 factory schedule. It doubles
// as the "never configured" sentinel: automation refuses to start while
// the schedule still equals it.
func DefaultLightSchedule() LightSchedule {
	return LightSchedule{
		Start: ClockTime{Hours: 8, Minutes: 10},
		End:   ClockTime{Hours: 23, Minutes: 50},
	}
}

// IsDefault reports whether the schedule still equals the factory
// sentinel, i.e. was never configured.
func (s LightSchedule) IsDefault() bool { return s == DefaultLightSchedule() }

// ActiveAt reports whether the lights should be on at now. Start is
// inclusive, End exclusive; an End at or before Start spans midnight.
func (s LightSchedule) ActiveAt(now time.Time) bool {
	cur := now.Hour()*60 + now.Minute()
	start := s.Start.MinuteOfDay()
	end := s.End.MinuteOfDay()
	if end > start {
		return cur >= start && cur < end
	}
	return cur >= start || cur < end
}

// IrrigationSchedule holds the two daily pump trigger instants and the
// run length.
type IrrigationSchedule struct {
	First           ClockTime `json:"first"`
	Second          ClockTime `json:"second"`
	DurationSeconds int       `json:"durationSeconds"`
}

// DefaultIrrigationSchedule is the initial schedule before the first
// successful fetch: 09:10 and 21:10, 60 seconds per run.
func DefaultIrrigationSchedule() IrrigationSchedule {
	return IrrigationSchedule{
		First:           ClockTime{Hours: 9, Minutes: 10},
		Second:          ClockTime{Hours: 21, Minutes: 10},
		DurationSeconds: 60,
	}
}

// Duration returns the configured pump run length.
func (s IrrigationSchedule) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

// Triggers returns both daily trigger instants.
func (s IrrigationSchedule) Triggers() [2]ClockTime {
	return [2]ClockTime{s.First, s.Second}
}
