package model

import "time"

// OTAMode is who initiates a firmware delivery.
type OTAMode string

const (
	OTAPush OTAMode = "push"
	OTAPull OTAMode = "pull"
)

// OTAOutcome is the per-device result of an update.
type OTAOutcome string

const (
	OTACompleted OTAOutcome = "completed"
	OTAPending   OTAOutcome = "pending"
	OTARejected  OTAOutcome = "rejected"
	OTAFailed    OTAOutcome = "failed"
	OTAUpToDate  OTAOutcome = "up_to_date"
)

// DefaultFirmwareVersion is reported for devices without a firmware_version.
const DefaultFirmwareVersion = "1.0.0"

// Firmware identifies a binary and its detached signature.
type Firmware struct {
	Version   string `json:"version"`
	Reference string `json:"binary_ref"`
	Signature string `json:"signature"`
}

// DeviceUpdate is the outcome of an update for one device.
type DeviceUpdate struct {
	DeviceID       string     `json:"device_id"`
	Status         OTAOutcome `json:"status"`
	Message        string     `json:"message,omitempty"`
	CurrentVersion string     `json:"current_version,omitempty"`
	TargetVersion  string     `json:"target_version,omitempty"`
	DownloadURL    string     `json:"download_url,omitempty"`
	Steps          []string   `json:"steps,omitempty"`
	ResponseCode   int        `json:"response_code,omitempty"`
}

// OTARecord is the result of one push or pull request.
type OTARecord struct {
	UpdateID        string         `json:"update_id"`
	Mode            OTAMode        `json:"mode"`
	FirmwareVersion string         `json:"firmware_version"`
	Status          string         `json:"status"`
	Devices         []DeviceUpdate `json:"devices"`
	Timestamp       time.Time      `json:"timestamp"`
}

// OTAServerConfig is the persisted firmware catalog entry.
type OTAServerConfig struct {
	LatestVersion string `json:"latest_version"`
	FirmwareKey   string `json:"firmware_key"`
	Signature     string `json:"signature"`
	ServerURL     string `json:"server_url,omitempty"`
}
