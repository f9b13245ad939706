package models

import "time"

// Channel names one sensor metric stream.
type Channel string

const (
	ChannelTemperature     Channel = "temperature"
	ChannelHumidity        Channel = "humidity"
	ChannelMoisture        Channel = "moisture"
	ChannelSoilEC          Channel = "soilEC"
	ChannelCO2             Channel = "co2"
	ChannelAtmosphericPres Channel = "atmosphericPress"
	ChannelPoreEC          Channel = "poreEC"
)

// Channels lists every known channel in display order.
var Channels = []Channel{
	ChannelTemperature,
	ChannelHumidity,
	ChannelMoisture,
	ChannelSoilEC,
	ChannelCO2,
	ChannelAtmosphericPres,
	ChannelPoreEC,
}

// Valid reports whether c is a known channel name.
func (c Channel) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// Precision returns the number of decimals readings on this channel are
// rounded to before recording: temp/humid/moisture one, EC channels
// three, co2 and pressure none.
func (c Channel) Precision() int {
	switch c {
	case ChannelSoilEC, ChannelPoreEC:
		return 3
	case ChannelCO2, ChannelAtmosphericPres:
		return 0
	default:
		return 1
	}
}

// Unit returns the display unit for a channel.
func (c Channel) Unit() string {
	switch c {
	case ChannelTemperature:
		return "°C"
	case ChannelHumidity, ChannelMoisture:
		return "%"
	case ChannelSoilEC, ChannelPoreEC:
		return "mS/cm"
	case ChannelCO2:
		return "ppm"
	case ChannelAtmosphericPres:
		return "hPa"
	}
	return ""
}

// SensorReading is a single recorded measurement. Immutable once recorded.
type SensorReading struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// CameraShot describes the most recent thermal camera capture reported by
// the remote API. Display is external; only the metadata passes through.
type CameraShot struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	ImageURL  string `json:"imageUrl"`
}

// TelemetrySnapshot is one parsed /api/data payload: full histories for
// channels the server included, latest scalar readings keyed by channel,
// and the optional camera shot.
type TelemetrySnapshot struct {
	History    map[Channel][]SensorReading
	Latest     map[Channel]float64
	CameraShot *CameraShot
}

// History is a FIFO ring of the most recent readings on one channel.
// Oldest entries are evicted first once the limit is reached. It is not
// safe for concurrent use; the owning store guards it.
type History struct {
	limit int
	data  []SensorReading
}

// HistoryLimit is the bound on retained readings per channel.
const HistoryLimit = 120

// NewHistory returns an empty history bounded to limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = HistoryLimit
	}
	return &History{limit: limit}
}

// Push appends a reading, evicting the oldest entry when full.
func (h *History) Push(r SensorReading) {
	h.data = append(h.data, r)
	if len(h.data) > h.limit {
		h.data = h.data[len(h.data)-h.limit:]
	}
}

// Replace swaps the whole contents for rs (last-write-wins, not merged),
// keeping at most the newest limit entries.
func (h *History) Replace(rs []SensorReading) {
	if len(rs) > h.limit {
		rs = rs[len(rs)-h.limit:]
	}
	h.data = append(h.data[:0:0], rs...)
}

// Values returns a copy of the retained readings, oldest first.
func (h *History) Values() []SensorReading {
	out := make([]SensorReading, len(h.data))
	copy(out, h.data)
	return out
}

// Len returns the number of retained readings.
func (h *History) Len() int { return len(h.data) }

// Latest returns the most recent reading, if any.
func (h *History) Latest() (SensorReading, bool) {
	if len(h.data) == 0 {
		return SensorReading{}, false
	}
	return h.data[len(h.data)-1], true
}
