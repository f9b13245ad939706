package models

// Device identifies one of the four switchable appliances in the room.
type Device string

const (
	DeviceFan        Device = "fan"
	DevicePlantLight Device = "plantLight"
	DevicePump       Device = "pump"
	DeviceAutobot    Device = "autobot"
)

// Valid reports whether d is a known device name.
func (d Device) Valid() bool {
	switch d {
	case DeviceFan, DevicePlantLight, DevicePump, DeviceAutobot:
		return true
	}
	return false
}

// DeviceState is the binary switch position as the server reports it.
type DeviceState string

const (
	StateOn  DeviceState = "ON"
	StateOff DeviceState = "OFF"
)

// Flip returns the opposite switch position.
func (s DeviceState) Flip() DeviceState {
	if s == StateOn {
		return StateOff
	}
	return StateOn
}

// On reports whether the state is ON.
func (s DeviceState) On() bool { return s == StateOn }

// DeviceStates mirrors the server's authoritative device snapshot.
// The JSON field names match the remote API wire format.
type DeviceStates struct {
	Fan        DeviceState `json:"fan"`
	PlantLight DeviceState `json:"plantLight"`
	Pump       DeviceState `json:"pump"`
	Autobot    DeviceState `json:"autobot"`
}

// DefaultDeviceStates is the local mirror before the first reconcile:
// everything OFF.
func DefaultDeviceStates() DeviceStates {
	return DeviceStates{Fan: StateOff, PlantLight: StateOff, Pump: StateOff, Autobot: StateOff}
}

// Get returns the state of a single device.
func (ds DeviceStates) Get(d Device) DeviceState {
	switch d {
	case DeviceFan:
		return ds.Fan
	case DevicePlantLight:
		return ds.PlantLight
	case DevicePump:
		return ds.Pump
	case DeviceAutobot:
		return ds.Autobot
	}
	return StateOff
}

// Set overwrites the state of a single device.
func (ds *DeviceStates) Set(d Device, s DeviceState) {
	switch d {
	case DeviceFan:
		ds.Fan = s
	case DevicePlantLight:
		ds.PlantLight = s
	case DevicePump:
		ds.Pump = s
	case DeviceAutobot:
		ds.Autobot = s
	}
}
