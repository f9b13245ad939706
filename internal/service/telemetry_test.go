package service

import (
	"context"
	"testing"
	"time"

	"farmlab_twin/internal/models"
)

func newTelemetryFixture(grace time.Duration) (*TelemetryService, *fakeTelemetryAPI, *fakeEventRepo, *fakeNotifier, *fakeHistoryRepo) {
	api := &fakeTelemetryAPI{}
	events := &fakeEventRepo{}
	notifier := &fakeNotifier{}
	archive := newFakeHistoryRepo()
	thresholds := NewThresholdStore(newFakeSettingsAPI(), testLogger())
	svc := NewTelemetryService(api, thresholds, archive, events, notifier, testLogger(), grace)
	return svc, api, events, notifier, archive
}

func TestPoll_RoundsLatestPerChannelPrecision(t *testing.T) {
	svc, api, _, _, archive := newTelemetryFixture(time.Nanosecond)
	api.snap = models.TelemetrySnapshot{
		Latest: map[models.Channel]float64{
			models.ChannelTemperature: 21.4567,
			models.ChannelSoilEC:      1.23456,
			models.ChannelCO2:         601.7,
		},
	}

	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	view := svc.Snapshot()
	if got := view.Latest[models.ChannelTemperature]; got != 21.5 {
		t.Errorf("temperature = %v, want 21.5", got)
	}
	if got := view.Latest[models.ChannelSoilEC]; got != 1.235 {
		t.Errorf("soilEC = %v, want 1.235", got)
	}
	if got := view.Latest[models.ChannelCO2]; got != 602 {
		t.Errorf("co2 = %v, want 602", got)
	}

	// Every latest reading is archived rounded.
	if rs := archive.recorded[models.ChannelSoilEC]; len(rs) != 1 || rs[0].Value != 1.235 {
		t.Errorf("archived soilEC = %+v", rs)
	}
}

func TestPoll_HistoryReplaceIsWholesale(t *testing.T) {
	svc, api, _, _, _ := newTelemetryFixture(time.Nanosecond)

	api.snap = models.TelemetrySnapshot{
		History: map[models.Channel][]models.SensorReading{
			models.ChannelTemperature: {{Value: 20}, {Value: 21}},
		},
	}
	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	api.snap = models.TelemetrySnapshot{
		History: map[models.Channel][]models.SensorReading{
			models.ChannelTemperature: {{Value: 25}},
		},
	}
	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	hist, err := svc.ChannelHistory(models.ChannelTemperature)
	if err != nil {
		t.Fatalf("ChannelHistory() error = %v", err)
	}
	if len(hist) != 1 || hist[0].Value != 25 {
		t.Fatalf("history merged instead of replaced: %+v", hist)
	}
}

func TestPoll_WarningTransitionsNotifyOnce(t *testing.T) {
	svc, api, events, notifier, _ := newTelemetryFixture(time.Nanosecond)

	// Default temp high bound is 23; 24 trips it.
	api.snap = models.TelemetrySnapshot{
		Latest: map[models.Channel]float64{models.ChannelTemperature: 24},
	}
	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	// A second poll with the same level must not re-notify.
	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	warnings := notifier.warningLog()
	if len(warnings) != 1 || warnings[0].level != models.WarningHigh {
		t.Fatalf("warnings = %+v, want single high transition", warnings)
	}
	if len(events.byType(models.EventWarning)) != 1 {
		t.Fatalf("expected one WARNING event, got %+v", events.events)
	}

	// Recovery transitions back to normal and notifies again.
	api.snap = models.TelemetrySnapshot{
		Latest: map[models.Channel]float64{models.ChannelTemperature: 22},
	}
	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	warnings = notifier.warningLog()
	if len(warnings) != 2 || warnings[1].level != models.WarningNormal {
		t.Fatalf("warnings = %+v, want high then normal", warnings)
	}
}

func TestPoll_GraceSuppressesSideEffectsNotLevels(t *testing.T) {
	svc, api, events, notifier, _ := newTelemetryFixture(50 * time.Millisecond)

	api.snap = models.TelemetrySnapshot{
		Latest: map[models.Channel]float64{models.ChannelCO2: 900},
	}
	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	// The level itself is visible immediately.
	if got := svc.Snapshot().Levels[models.ChannelCO2]; got != models.WarningHigh {
		t.Fatalf("level = %v, want high", got)
	}
	// But nothing was notified or logged during the grace window.
	if len(notifier.warningLog()) != 0 {
		t.Fatalf("grace window must suppress notifications: %+v", notifier.warningLog())
	}
	if len(events.byType(models.EventWarning)) != 0 {
		t.Fatalf("grace window must suppress WARNING events")
	}

	// A warning that arose while suppressed still surfaces after the
	// window passes, even though the level never changes again.
	time.Sleep(80 * time.Millisecond)
	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	warnings := notifier.warningLog()
	if len(warnings) != 1 || warnings[0].ch != models.ChannelCO2 || warnings[0].level != models.WarningHigh {
		t.Fatalf("warnings = %+v, want single high after grace", warnings)
	}
	if len(events.byType(models.EventWarning)) != 1 {
		t.Fatalf("expected one WARNING event after grace, got %+v", events.events)
	}
}

func TestPoll_FetchFailureKeepsView(t *testing.T) {
	svc, api, _, _, _ := newTelemetryFixture(time.Nanosecond)

	api.snap = models.TelemetrySnapshot{
		Latest: map[models.Channel]float64{models.ChannelHumidity: 70},
	}
	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	api.err = errBoom
	if err := svc.Poll(context.Background()); err == nil {
		t.Fatalf("Poll() expected error")
	}
	if got := svc.Snapshot().Latest[models.ChannelHumidity]; got != 70 {
		t.Fatalf("failed poll must keep last view, got %v", got)
	}
}

func TestPoll_UnboundedChannelsNeverWarn(t *testing.T) {
	svc, api, _, notifier, _ := newTelemetryFixture(time.Nanosecond)

	api.snap = models.TelemetrySnapshot{
		Latest: map[models.Channel]float64{models.ChannelSoilEC: 99999},
	}
	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(notifier.warningLog()) != 0 {
		t.Fatalf("EC channels carry no bounds, warnings = %+v", notifier.warningLog())
	}
}

func TestChannelHistory_RejectsUnknownChannel(t *testing.T) {
	svc, _, _, _, _ := newTelemetryFixture(time.Nanosecond)
	if _, err := svc.ChannelHistory(models.Channel("radiation")); err != ErrUnknownChannel {
		t.Fatalf("error = %v, want ErrUnknownChannel", err)
	}
}
