package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

func seen(d model.Device, ago time.Duration) model.Device {
	d.LastSeen = testNow.Add(-ago).Format(time.RFC3339)
	return d
}

func monitoringHarness(t *testing.T) *harness {
	t.Helper()
	idle := sensor("temp-2", "room-2")
	idle.Status = "idle"
	h := newHarness(t,
		seen(camera("cam-1", "corridor"), time.Minute),
		seen(sensor("temp-1", "room-1"), 10*time.Minute),
	)
	h.registry.deployment = &model.Deployment{
		Devices:       []model.Device{idle, seen(camera("cam-1", "corridor"), time.Hour)},
		NetworkConfig: map[string]any{"primary_mqtt_broker": map[string]any{"status": "online"}},
	}
	return h
}

func TestDeploymentStatus(t *testing.T) {
	h := monitoringHarness(t)

	st := h.svc.DeploymentStatus()

	assert.Equal(t, 3, st.TotalDevices)
	assert.Equal(t, map[string]int{"active": 2, "idle": 1}, st.StatusBreakdown)
	assert.Equal(t, 1, st.RecentlyActive)
	assert.Equal(t, "online", st.NetworkConfig["primary_mqtt_broker"].(map[string]any)["status"])
}

func TestDeviceConnectivity(t *testing.T) {
	h := monitoringHarness(t)

	c, err := h.svc.DeviceConnectivity("cam-1")
	require.NoError(t, err)
	assert.True(t, c.IsOnline)
	assert.Equal(t, "1m0s", c.TimeSinceSeen)
	assert.Equal(t, "10.0.0.1", c.IP)

	c, err = h.svc.DeviceConnectivity("temp-1")
	require.NoError(t, err)
	assert.False(t, c.IsOnline)

	c, err = h.svc.DeviceConnectivity("temp-2")
	require.NoError(t, err)
	assert.False(t, c.IsOnline)
	assert.Empty(t, c.TimeSinceSeen)

	_, err = h.svc.DeviceConnectivity("ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = h.svc.DeviceInfo("")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func ids(devices []model.Device) []string {
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.ID)
	}
	return out
}

func TestDeviceQueries(t *testing.T) {
	h := monitoringHarness(t)

	tests := []struct {
		name  string
		query func() ([]model.Device, error)
		want  []string
	}{
		{"location", func() ([]model.Device, error) { return h.svc.DevicesByLocation("ROOM") }, []string{"temp-1", "temp-2"}},
		{"service", func() ([]model.Device, error) { return h.svc.DevicesByService("Cam") }, []string{"cam-1"}},
		{"status", func() ([]model.Device, error) { return h.svc.DevicesByStatus("IDLE") }, []string{"temp-2"}},
		{"capability in details", func() ([]model.Device, error) {
			return h.svc.DevicesByCapability("corridor", "1920x1080")
		}, []string{"cam-1"}},
		{"capability elsewhere", func() ([]model.Device, error) {
			return h.svc.DevicesByCapability("room", "camera")
		}, []string{}},
		{"active default window", func() ([]model.Device, error) { return h.svc.ActiveDevices(0) }, []string{"cam-1"}},
		{"active wide window", func() ([]model.Device, error) { return h.svc.ActiveDevices(15) }, []string{"cam-1", "temp-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query()
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestDeviceQueriesRequireArguments(t *testing.T) {
	h := monitoringHarness(t)

	_, err := h.svc.DevicesByLocation("")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = h.svc.DevicesByService("")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = h.svc.DevicesByStatus("")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = h.svc.DevicesByCapability("corridor", "")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = h.svc.ActiveDevices(-1)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestRefreshRegistry(t *testing.T) {
	h := monitoringHarness(t)

	n, err := h.svc.RefreshRegistry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, h.registry.refreshes)

	h.registry.refreshErr = errors.New("bad json")
	_, err = h.svc.RefreshRegistry(context.Background())
	assert.ErrorContains(t, err, "bad json")
}

func TestRequestStream(t *testing.T) {
	cam := camera("cam-1", "corridor")
	cam.Services[1].Details = model.Details{"resolution": "1280x720", "fps": 15.0}
	h := newHarness(t, cam, sensor("temp-1", "room-1"))

	info, err := h.svc.RequestStream("cam-1", "")
	require.NoError(t, err)
	assert.Equal(t, StreamReady, info.Status)
	assert.Equal(t, "camera", info.StreamType)
	assert.Equal(t, "cam-1", info.DeviceName)
	assert.Equal(t, StreamURLs{
		HTTP:  "http://10.0.0.1:8080/camera/stream",
		RTSP:  "rtsp://10.0.0.1:554/camera",
		MJPEG: "http://10.0.0.1:8080/camera/mjpeg",
	}, info.URLs)
	assert.Equal(t, "1280x720", info.Resolution)
	assert.Equal(t, 15.0, info.FPS)

	info, err = h.svc.RequestStream("cam-1", "motion")
	require.NoError(t, err)
	assert.Equal(t, defaultStreamResolution, info.Resolution)
	assert.Equal(t, defaultStreamFPS, info.FPS)

	_, err = h.svc.RequestStream("temp-1", "")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = h.svc.RequestStream("ghost", "")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = h.svc.RequestStream("", "")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
