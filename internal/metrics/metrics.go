// Package metrics exposes Prometheus collectors for the twin core.
// Collectors register themselves on the default registry; the /metrics
// endpoint serves them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TogglesTotal counts device write attempts by device and result.
	TogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farmlab",
		Name:      "device_toggles_total",
		Help:      "Device state write attempts by device and result.",
	}, []string{"device", "result"})

	// RevertsTotal counts optimistic updates rolled back after a failed write.
	RevertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farmlab",
		Name:      "device_reverts_total",
		Help:      "Optimistic device updates rolled back after a write failure.",
	})

	// PollsTotal counts telemetry poll cycles by result.
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farmlab",
		Name:      "telemetry_polls_total",
		Help:      "Telemetry poll cycles by result.",
	}, []string{"result"})

	// SensorValue mirrors the latest rounded reading per channel.
	SensorValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "farmlab",
		Name:      "sensor_value",
		Help:      "Latest rounded sensor reading per channel.",
	}, []string{"channel"})

	// WarningState is 1 when a channel is above its high bound, -1 below
	// its low bound, 0 otherwise.
	WarningState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "farmlab",
		Name:      "warning_state",
		Help:      "Warning level per channel: 1 high, -1 low, 0 normal.",
	}, []string{"channel"})

	// PumpRunsTotal counts scheduled irrigation runs by result.
	PumpRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farmlab",
		Name:      "pump_runs_total",
		Help:      "Scheduled irrigation pump runs by result.",
	}, []string{"result"})

	// WSClients tracks currently connected websocket subscribers.
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "farmlab",
		Name:      "ws_clients",
		Help:      "Connected websocket subscribers.",
	})
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// LevelValue converts a warning level string to the gauge encoding.
func LevelValue(level string) float64 {
	switch level {
	case "high":
		return 1
	case "low":
		return -1
	}
	return 0
}
