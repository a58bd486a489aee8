package model

import (
	"encoding/json"
	"strings"
	"time"
)

// DeviceType classifies a device for power, policy and algorithm decisions.
type DeviceType string

const (
	DeviceTypeCamera   DeviceType = "camera"
	DeviceTypeSensor   DeviceType = "sensor"
	DeviceTypeActuator DeviceType = "actuator"
	DeviceTypeDisplay  DeviceType = "display"
)

// Protocol is the wire protocol a service is reached over.
type Protocol string

const (
	ProtocolHTTP     Protocol = "HTTP"
	ProtocolHTTPREST Protocol = "HTTP/REST"
	ProtocolMQTT     Protocol = "MQTT"
)

// IsHTTP reports whether p is HTTP or HTTP/REST, ignoring case.
func (p Protocol) IsHTTP() bool {
	switch Protocol(strings.ToUpper(string(p))) {
	case ProtocolHTTP, ProtocolHTTPREST:
		return true
	}
	return false
}

// IsMQTT reports whether p is MQTT, ignoring case.
func (p Protocol) IsMQTT() bool {
	return Protocol(strings.ToUpper(string(p))) == ProtocolMQTT
}

// Details holds free-form service attributes such as resolution, fps or unit.
type Details map[string]any

// String returns the value at key when it is a string.
func (d Details) String(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

// Float returns the numeric value at key. Numeric strings are not converted.
func (d Details) Float(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Service is one capability exposed by a device.
type Service struct {
	Name     string   `json:"name"`
	Protocol Protocol `json:"protocol,omitempty"`
	Path     string   `json:"path,omitempty"`
	Details  Details  `json:"details,omitempty"`
}

// EffectiveProtocol defaults an unset protocol to HTTP/REST.
func (s *Service) EffectiveProtocol() Protocol {
	if s.Protocol == "" {
		return ProtocolHTTPREST
	}
	return s.Protocol
}

// Location is either a named area or a coordinate with an optional detection area.
type Location struct {
	Area          string  `json:"area,omitempty"`
	DetectionArea string  `json:"detection_area,omitempty"`
	X             float64 `json:"x,omitempty"`
	Y             float64 `json:"y,omitempty"`
	Z             float64 `json:"z,omitempty"`
}

// UnmarshalJSON accepts a bare string as the area name.
func (l *Location) UnmarshalJSON(data []byte) error {
	var area string
	if err := json.Unmarshal(data, &area); err == nil {
		*l = Location{Area: area}
		return nil
	}
	type plain Location
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Location(p)
	return nil
}

// Tag is the area used for coverage decisions: the detection area when set,
// else the named area.
func (l Location) Tag() string {
	if l.DetectionArea != "" {
		return l.DetectionArea
	}
	return l.Area
}

// Device is a registry record.
type Device struct {
	ID              string     `json:"id"`
	Name            string     `json:"name,omitempty"`
	Type            DeviceType `json:"type,omitempty"`
	IP              string     `json:"ip,omitempty"`
	Port            int        `json:"port,omitempty"`
	Location        Location   `json:"location"`
	Services        []Service  `json:"services,omitempty"`
	Capabilities    []string   `json:"capabilities,omitempty"`
	Status          string     `json:"status,omitempty"`
	LastSeen        string     `json:"last_seen,omitempty"`
	Battery         *float64   `json:"battery,omitempty"`
	FirmwareVersion string     `json:"firmware_version,omitempty"`
}

// UnmarshalJSON normalizes the identifier and timestamp aliases found in
// device documents.
func (d *Device) UnmarshalJSON(data []byte) error {
	type plain Device
	var aux struct {
		plain
		DeviceID      string   `json:"deviceId"`
		DeviceIDSnake string   `json:"device_id"`
		LastSeenCamel string   `json:"lastSeen"`
		BatteryLevel  *float64 `json:"battery_level"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = Device(aux.plain)
	if d.ID == "" {
		d.ID = firstNonEmpty(aux.DeviceID, aux.DeviceIDSnake)
	}
	if d.LastSeen == "" {
		d.LastSeen = aux.LastSeenCamel
	}
	if d.Battery == nil {
		d.Battery = aux.BatteryLevel
	}
	return nil
}

// FindService returns the service with the given name.
func (d *Device) FindService(name string) (*Service, bool) {
	for i := range d.Services {
		if d.Services[i].Name == name {
			return &d.Services[i], true
		}
	}
	return nil, false
}

// HasService reports whether the device exposes any of the named services.
func (d *Device) HasService(names ...string) bool {
	for _, n := range names {
		if _, ok := d.FindService(n); ok {
			return true
		}
	}
	return false
}

// BatteryLevel returns the battery percentage, treating unknown as full.
func (d *Device) BatteryLevel() float64 {
	if d.Battery == nil {
		return 100
	}
	return *d.Battery
}

// LastSeenTime parses LastSeen. Timestamps without a zone are taken as UTC.
func (d *Device) LastSeenTime() (time.Time, bool) {
	if d.LastSeen == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, d.LastSeen); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// SeenWithin reports whether the device was seen less than window before now.
func (d *Device) SeenWithin(now time.Time, window time.Duration) bool {
	t, ok := d.LastSeenTime()
	return ok && now.Sub(t) < window
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
