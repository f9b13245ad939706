package service

import (
	"farmlab_twin/internal/logger"
	"farmlab_twin/internal/models"
)

// Notifier receives side-effect notifications from the twin core.
// Implementations render the change somewhere: a log line, an MQTT
// topic, a dashboard push. Callers hold no locks while notifying.
type Notifier interface {
	DeviceChanged(d models.Device, state models.DeviceState)
	WarningChanged(ch models.Channel, level models.WarningLevel)
}

// LogNotifier renders notifications as log lines.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) DeviceChanged(d models.Device, state models.DeviceState) {
	n.log.Infow("device changed", "device", string(d), "state", string(state))
}

func (n *LogNotifier) WarningChanged(ch models.Channel, level models.WarningLevel) {
	n.log.Infow("warning level changed", "channel", string(ch), "level", string(level))
}

// MultiNotifier fans a notification out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) DeviceChanged(d models.Device, state models.DeviceState) {
	for _, n := range m {
		n.DeviceChanged(d, state)
	}
}

func (m MultiNotifier) WarningChanged(ch models.Channel, level models.WarningLevel) {
	for _, n := range m {
		n.WarningChanged(ch, level)
	}
}
