package service

import (
	"fmt"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

const (
	StreamReady = "stream_ready"

	defaultStreamType       = "camera"
	defaultStreamResolution = "1920x1080"
	defaultStreamFPS        = 30.0
	streamHTTPPort          = 8080
	streamRTSPPort          = 554
)

var streamFormats = []string{"H.264", "MJPEG", "RTSP"}

// StreamURLs are the endpoints a client may read a device stream from.
type StreamURLs struct {
	HTTP  string `json:"http"`
	RTSP  string `json:"rtsp"`
	MJPEG string `json:"mjpeg"`
}

// StreamInfo tells a client how to connect to a device stream.
type StreamInfo struct {
	DeviceID         string       `json:"device_id"`
	DeviceName       string       `json:"device_name"`
	StreamType       string       `json:"stream_type"`
	Device           model.Device `json:"device_info"`
	URLs             StreamURLs   `json:"stream_urls"`
	AvailableFormats []string     `json:"available_formats"`
	Resolution       string       `json:"resolution"`
	FPS              float64      `json:"fps"`
	Capabilities     []string     `json:"capabilities"`
	Status           string       `json:"status"`
}

// RequestStream resolves the stream endpoints of a device. The stream type
// defaults to camera. Resolution and fps come from the matching service when
// it describes them.
func (s *Service) RequestStream(deviceID, streamType string) (*StreamInfo, error) {
	if deviceID == "" {
		return nil, core.MissingField("target")
	}
	if streamType == "" {
		streamType = defaultStreamType
	}
	d, ok := s.registry.FindDevice(deviceID)
	if !ok {
		return nil, core.NotFound("device", deviceID)
	}
	if d.IP == "" {
		return nil, core.InvalidField("target", fmt.Sprintf("device %s has no IP address", deviceID))
	}

	info := &StreamInfo{
		DeviceID:   deviceID,
		DeviceName: d.Name,
		StreamType: streamType,
		Device:     *d,
		URLs: StreamURLs{
			HTTP:  fmt.Sprintf("http://%s:%d/%s/stream", d.IP, streamHTTPPort, streamType),
			RTSP:  fmt.Sprintf("rtsp://%s:%d/%s", d.IP, streamRTSPPort, streamType),
			MJPEG: fmt.Sprintf("http://%s:%d/%s/mjpeg", d.IP, streamHTTPPort, streamType),
		},
		AvailableFormats: streamFormats,
		Resolution:       defaultStreamResolution,
		FPS:              defaultStreamFPS,
		Capabilities:     d.Capabilities,
		Status:           StreamReady,
	}
	if info.DeviceName == "" {
		info.DeviceName = deviceID
	}
	if info.Capabilities == nil {
		info.Capabilities = []string{}
	}
	if svc, ok := d.FindService(streamType); ok {
		if res := svc.Details.String("resolution"); res != "" {
			info.Resolution = res
		}
		if fps, ok := svc.Details.Float("fps"); ok {
			info.FPS = fps
		} else if fps, ok := svc.Details.Float("sampling_frequency"); ok {
			info.FPS = fps
		}
	}

	s.logger.Info("Stream requested", "device", deviceID, "type", streamType)
	return info, nil
}
