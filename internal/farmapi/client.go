package farmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"farmlab_twin/internal/models"
)

// DeviceAPI reads and writes the authoritative device switchboard.
type DeviceAPI interface {
	DeviceStates(ctx context.Context) (models.DeviceStates, error)
	UpdateDeviceState(ctx context.Context, device models.Device, state models.DeviceState) error
}

// TelemetryAPI fetches the combined sensor payload.
type TelemetryAPI interface {
	Data(ctx context.Context) (models.TelemetrySnapshot, error)
}

// SettingsAPI reads and writes thresholds and schedules.
type SettingsAPI interface {
	WarningThresholds(ctx context.Context) (models.WarningThresholds, error)
	LightSchedule(ctx context.Context) (models.LightSchedule, error)
	PumpSchedule(ctx context.Context) (models.IrrigationSchedule, error)
	SaveSettings(ctx context.Context, light models.LightSchedule, thresholds models.WarningThresholds) error
	SavePumpSchedule(ctx context.Context, sched models.IrrigationSchedule) error
}

// WeatherAPI fetches the third-party weather payload. The shape is owned
// by the upstream provider; it passes through untouched.
type WeatherAPI interface {
	Weather(ctx context.Context) (json.RawMessage, error)
}

const defaultTimeout = 15 * time.Second

// Client talks JSON over HTTPS to the remote greenhouse API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

var (
	_ DeviceAPI    = (*Client)(nil)
	_ TelemetryAPI = (*Client)(nil)
	_ SettingsAPI  = (*Client)(nil)
	_ WeatherAPI   = (*Client)(nil)
)

// metricChannels maps the server-side metric codes embedded in per-sensor
// reading lists to channels.
var metricChannels = map[string]models.Channel{
	"1":  models.ChannelTemperature,
	"2":  models.ChannelHumidity,
	"3":  models.ChannelCO2,
	"4":  models.ChannelAtmosphericPres,
	"8":  models.ChannelMoisture,
	"10": models.ChannelSoilEC,
	"11": models.ChannelPoreEC,
}

// ---- wire helpers ----

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build GET %s: %w", path, err)
	}
	return c.do(req, dst)
}

func (c *Client) postJSON(ctx context.Context, path string, body, dst any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode POST %s body: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build POST %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s %s: decode body: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// flexNumber decodes a JSON value that may arrive as a number or a
// numeric string (the sensor gateway emits both).
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	if len(b) > 1 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("numeric value %q: %w", string(b), err)
	}
	*n = flexNumber(f)
	return nil
}

// flexTime decodes a timestamp that may arrive as an RFC3339 string or
// as epoch milliseconds.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(b []byte) error {
	if len(b) > 1 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		*t = flexTime(parsed.UTC())
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("timestamp %q: %w", string(b), err)
	}
	*t = flexTime(time.UnixMilli(ms).UTC())
	return nil
}

// ---- /api/data ----

type metricReading struct {
	Metric string     `json:"metric"`
	Value  flexNumber `json:"value"`
}

type sensorBlock struct {
	Readings []metricReading `json:"readings"`
}

type historyReading struct {
	Time  flexTime   `json:"time"`
	Value flexNumber `json:"value"`
}

type dataPayload struct {
	Sensor1 *sensorBlock `json:"sensor1"`
	Sensor2 *sensorBlock `json:"sensor2"`
	Sensor3 *sensorBlock `json:"sensor3"`

	TempHistory            []historyReading `json:"tempHistory"`
	HumidityHistory        []historyReading `json:"humidityHistory"`
	CO2History             []historyReading `json:"co2History"`
	AtmosphericPresHistory []historyReading `json:"atmosphericPressHistory"`
	MoistureHistory        []historyReading `json:"moistureHistory"`
	SoilECHistory          []historyReading `json:"soilECHistory"`
	PoreECHistory          []historyReading `json:"poreECHistory"`

	LastCameraShot *models.CameraShot `json:"lastCameraShot"`
}

func toReadings(in []historyReading) []models.SensorReading {
	out := make([]models.SensorReading, 0, len(in))
	for _, r := range in {
		out = append(out, models.SensorReading{Time: time.Time(r.Time), Value: float64(r.Value)})
	}
	return out
}

// Data fetches /api/data and maps it onto channels: histories the server
// included, plus the latest scalar reading per metric code. Absent fields
// simply do not appear in the snapshot.
func (c *Client) Data(ctx context.Context) (models.TelemetrySnapshot, error) {
	var payload dataPayload
	if err := c.getJSON(ctx, "/api/data", &payload); err != nil {
		return models.TelemetrySnapshot{}, err
	}

	snap := models.TelemetrySnapshot{
		History:    make(map[models.Channel][]models.SensorReading),
		Latest:     make(map[models.Channel]float64),
		CameraShot: payload.LastCameraShot,
	}

	histories := map[models.Channel][]historyReading{
		models.ChannelTemperature:     payload.TempHistory,
		models.ChannelHumidity:        payload.HumidityHistory,
		models.ChannelCO2:             payload.CO2History,
		models.ChannelAtmosphericPres: payload.AtmosphericPresHistory,
		models.ChannelMoisture:        payload.MoistureHistory,
		models.ChannelSoilEC:          payload.SoilECHistory,
		models.ChannelPoreEC:          payload.PoreECHistory,
	}
	for ch, h := range histories {
		if h != nil {
			snap.History[ch] = toReadings(h)
		}
	}

	for _, block := range []*sensorBlock{payload.Sensor1, payload.Sensor2, payload.Sensor3} {
		if block == nil {
			continue
		}
		for _, r := range block.Readings {
			ch, ok := metricChannels[r.Metric]
			if !ok {
				continue // unknown metric code, skip
			}
			snap.Latest[ch] = float64(r.Value)
		}
	}
	return snap, nil
}

// ---- /api/device-states, /api/update-device-state ----

// DeviceStates fetches the authoritative device snapshot.
func (c *Client) DeviceStates(ctx context.Context) (models.DeviceStates, error) {
	var states models.DeviceStates
	if err := c.getJSON(ctx, "/api/device-states", &states); err != nil {
		return models.DeviceStates{}, err
	}
	return states, nil
}

type updateDeviceRequest struct {
	Device string `json:"device"`
	State  string `json:"state"`
}

// UpdateDeviceState posts a new target state for one device. Any non-2xx
// response is a failure.
func (c *Client) UpdateDeviceState(ctx context.Context, device models.Device, state models.DeviceState) error {
	var ack map[string]any
	return c.postJSON(ctx, "/api/update-device-state", updateDeviceRequest{
		Device: string(device),
		State:  string(state),
	}, &ack)
}

// ---- /api/warning-thresholds ----

type thresholdsPayload struct {
	TempHigh     flexNumber `json:"temp_high"`
	TempLow      flexNumber `json:"temp_low"`
	HumidHigh    flexNumber `json:"humid_high"`
	HumidLow     flexNumber `json:"humid_low"`
	CO2High      flexNumber `json:"co2_high"`
	CO2Low       flexNumber `json:"co2_low"`
	MoistureHigh flexNumber `json:"moisture_high"`
	MoistureLow  flexNumber `json:"moisture_low"`
}

// WarningThresholds fetches the warning bounds (snake_case on the wire).
func (c *Client) WarningThresholds(ctx context.Context) (models.WarningThresholds, error) {
	var p thresholdsPayload
	if err := c.getJSON(ctx, "/api/warning-thresholds", &p); err != nil {
		return models.WarningThresholds{}, err
	}
	return models.WarningThresholds{
		TempHigh:     float64(p.TempHigh),
		TempLow:      float64(p.TempLow),
		HumidHigh:    float64(p.HumidHigh),
		HumidLow:     float64(p.HumidLow),
		CO2High:      float64(p.CO2High),
		CO2Low:       float64(p.CO2Low),
		MoistureHigh: float64(p.MoistureHigh),
		MoistureLow:  float64(p.MoistureLow),
	}, nil
}

// ---- /api/light-schedule ----

type lightSchedulePayload struct {
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	EndHour     int `json:"end_hour"`
	EndMinute   int `json:"end_minute"`
}

// LightSchedule fetches the configured light window.
func (c *Client) LightSchedule(ctx context.Context) (models.LightSchedule, error) {
	var p lightSchedulePayload
	if err := c.getJSON(ctx, "/api/light-schedule", &p); err != nil {
		return models.LightSchedule{}, err
	}
	return models.LightSchedule{
		Start: models.ClockTime{Hours: p.StartHour, Minutes: p.StartMinute},
		End:   models.ClockTime{Hours: p.EndHour, Minutes: p.EndMinute},
	}, nil
}

// ---- /api/pump-schedule ----

type pumpSchedulePayload struct {
	FirstHour       int `json:"first_irrigation_hour"`
	FirstMinute     int `json:"first_irrigation_minute"`
	SecondHour      int `json:"second_irrigation_hour"`
	SecondMinute    int `json:"second_irrigation_minute"`
	DurationSeconds int `json:"duration_seconds"`
}

// PumpSchedule fetches the irrigation schedule.
func (c *Client) PumpSchedule(ctx context.Context) (models.IrrigationSchedule, error) {
	var p pumpSchedulePayload
	if err := c.getJSON(ctx, "/api/pump-schedule", &p); err != nil {
		return models.IrrigationSchedule{}, err
	}
	return models.IrrigationSchedule{
		First:           models.ClockTime{Hours: p.FirstHour, Minutes: p.FirstMinute},
		Second:          models.ClockTime{Hours: p.SecondHour, Minutes: p.SecondMinute},
		DurationSeconds: p.DurationSeconds,
	}, nil
}

type savePumpScheduleRequest struct {
	FirstIrrigationHour    int `json:"firstIrrigationHour"`
	FirstIrrigationMinute  int `json:"firstIrrigationMinute"`
	SecondIrrigationHour   int `json:"secondIrrigationHour"`
	SecondIrrigationMinute int `json:"secondIrrigationMinute"`
	DurationSeconds        int `json:"durationSeconds"`
}

// SavePumpSchedule posts a full irrigation schedule.
func (c *Client) SavePumpSchedule(ctx context.Context, sched models.IrrigationSchedule) error {
	var ack map[string]any
	return c.postJSON(ctx, "/api/pump-schedule", savePumpScheduleRequest{
		FirstIrrigationHour:    sched.First.Hours,
		FirstIrrigationMinute:  sched.First.Minutes,
		SecondIrrigationHour:   sched.Second.Hours,
		SecondIrrigationMinute: sched.Second.Minutes,
		DurationSeconds:        sched.DurationSeconds,
	}, &ack)
}

// ---- /api/settings ----

type saveSettingsRequest struct {
	LightSchedule struct {
		StartHour   int `json:"startHour"`
		StartMinute int `json:"startMinute"`
		EndHour     int `json:"endHour"`
		EndMinute   int `json:"endMinute"`
	} `json:"lightSchedule"`
	WarningThresholds models.WarningThresholds `json:"warningThresholds"`
}

type saveSettingsResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SaveSettings posts the light schedule and thresholds together. A 2xx
// response with success=false is still a failure.
func (c *Client) SaveSettings(ctx context.Context, light models.LightSchedule, thresholds models.WarningThresholds) error {
	req := saveSettingsRequest{WarningThresholds: thresholds}
	req.LightSchedule.StartHour = light.Start.Hours
	req.LightSchedule.StartMinute = light.Start.Minutes
	req.LightSchedule.EndHour = light.End.Hours
	req.LightSchedule.EndMinute = light.End.Minutes

	var resp saveSettingsResponse
	if err := c.postJSON(ctx, "/api/settings", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		if resp.Error != "" {
			return fmt.Errorf("save settings rejected: %s", resp.Error)
		}
		return fmt.Errorf("save settings rejected")
	}
	return nil
}

// ---- /api/weather ----

// Weather fetches the raw weather payload for passthrough.
func (c *Client) Weather(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/weather", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
