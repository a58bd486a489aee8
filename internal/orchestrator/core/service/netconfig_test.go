package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

func TestAnalyzeIntent(t *testing.T) {
	a := AnalyzeIntent("Secure fall detection and camera monitoring in the nursing home, OTA enabled")

	assert.Equal(t, "healthcare_facility", a.Environment)
	assert.True(t, a.PriorityFallDetection)
	assert.True(t, a.PriorityVideo)
	assert.False(t, a.PriorityEnvironmental)
	assert.False(t, a.MultiProtocolNeeded)
	assert.True(t, a.SecurityRequired)
	assert.True(t, a.OTAEnabled)
	assert.Contains(t, a.Keywords, "nursing")

	a = AnalyzeIntent("temperature readings over BLE")
	assert.Equal(t, "general", a.Environment)
	assert.True(t, a.PriorityEnvironmental)
	assert.True(t, a.MultiProtocolNeeded)
	assert.False(t, a.SecurityRequired)
}

func TestConfigureFromIntent(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"), sensor("temp-1", "room-1"))
	h.firmware.cfg.ServerURL = "https://ota.local"

	cfg, err := h.svc.ConfigureFromIntent(context.Background(), "secure video monitoring with multi protocol sensors in the hospital")
	require.NoError(t, err)

	assert.Equal(t, "configured", cfg.Status)
	assert.Equal(t, testNow, cfg.Timestamp)
	require.Len(t, cfg.DevicesConfigured, 2)

	cam := cfg.DevicesConfigured[0].Configuration
	require.Len(t, cam.Protocols, 2)
	assert.Equal(t, "HTTP/REST", cam.Protocols[0].Name)
	assert.Equal(t, "HTTPS", cam.Protocols[0].Security)
	assert.Equal(t, "TLS", cam.Protocols[1].Security)
	assert.Equal(t, "mqtt://127.0.0.1:1883", cam.Protocols[1].Broker)
	assert.Equal(t, "none", cam.WiFi.PowerSave)
	require.Len(t, cam.Services, 2)
	assert.Equal(t, model.Details{}, cam.Services[0].Parameters)

	sen := cfg.DevicesConfigured[1].Configuration
	assert.Equal(t, "modem_sleep", sen.WiFi.PowerSave)
	require.Len(t, sen.Protocols, 2)
	require.NotNil(t, sen.Protocols[0].QoS)
	assert.Equal(t, 1, *sen.Protocols[0].QoS)
	assert.Equal(t, "BLE", sen.Protocols[1].Name)

	assert.Equal(t, []string{"BLE", "HTTP/REST", "MQTT"}, cfg.ProtocolsEnabled)

	// three shared steps, one per device, then ota and verification
	require.Len(t, cfg.ConfigurationSteps, 7)
	for i, st := range cfg.ConfigurationSteps {
		assert.Equal(t, i+1, st.Step)
	}
	assert.Equal(t, "cam-1", cfg.ConfigurationSteps[3].Target)
	ota := cfg.ConfigurationSteps[5]
	assert.Equal(t, "ota_setup", ota.Action)
	assert.Equal(t, "https://ota.local", ota.Parameters.(map[string]any)["ota_server"])

	// healthcare (2) and video (1)
	assert.Len(t, cfg.Recommendations, 3)
	assert.Equal(t, "critical", cfg.Recommendations[0].Priority)
}

func TestConfigureFromIntentDegradesWithoutCatalog(t *testing.T) {
	h := newHarness(t, sensor("temp-1", "room-1"))
	h.firmware.err = errors.New("catalog missing")

	cfg, err := h.svc.ConfigureFromIntent(context.Background(), "temperature")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.ConfigurationSteps[4].Parameters.(map[string]any)["ota_server"])
	assert.Equal(t, []ConfigRecommendation{}, cfg.Recommendations)

	_, err = h.svc.ConfigureFromIntent(context.Background(), " ")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestConfigureNetwork(t *testing.T) {
	h := newHarness(t)

	res := h.svc.ConfigureNetwork(NetworkChangeRequest{
		ConfigurationType: "vlan_segmentation",
		Priority:          "high",
		Changes: []Change{
			{"step_name": "Create VLAN 20"},
			{"type": "QoS_policy_application"},
			{"step_name": "Firewall allow MQTT"},
			{"type": "Access_Port_Configuration"},
			{"step_name": "Reboot switch"},
		},
	})

	assert.Equal(t, "configured", res.Status)
	assert.Equal(t, NetworkChangeSummary{
		TotalSteps:         5,
		VLANConfigurations: 1,
		QoSPolicies:        1,
		FirewallRules:      1,
		PortConfigs:        1,
	}, res.Summary)

	res = h.svc.ConfigureNetwork(NetworkChangeRequest{})
	assert.Equal(t, []Change{}, res.ConfigurationSteps)
}

func TestApplyConfiguration(t *testing.T) {
	h := newHarness(t)

	res := h.svc.ApplyConfiguration(ApplyConfigurationRequest{
		Changes: []Change{
			{"type": "vlan_provisioning"},
			{"type": "vlan_provisioning"},
			{"type": "qos_policy_update"},
			{"type": "firewall_rule_addition"},
			{"type": "unknown"},
		},
		VerificationSteps: []string{"ping gateway"},
		RollbackStrategy:  "restore snapshot",
	})

	assert.Equal(t, "applied", res.Status)
	assert.Equal(t, ApplySummary{
		TotalChanges:      5,
		VLANProvisioning:  2,
		QoSUpdates:        1,
		FirewallRules:     1,
		VerificationSteps: 1,
	}, res.Summary)
}

func TestDeployConfiguration(t *testing.T) {
	h := newHarness(t)

	res := h.svc.DeployConfiguration(DeployConfigurationRequest{
		TargetScope: "ward-a",
		Details: DeploymentDetails{
			VLAN:     map[string]any{"vlan_id": 20.0, "name": "iot"},
			QoS:      map[string]any{"rules": []any{"video", "alerts"}},
			Security: map[string]any{"rules": []any{"deny-all"}},
		},
	})

	assert.Equal(t, "deployed", res.Status)
	assert.Equal(t, DeploySummary{
		VLANConfigured: true,
		VLANID:         20.0,
		VLANName:       "iot",
		QoSRules:       2,
		SecurityRules:  1,
		TotalElements:  3,
	}, res.Summary)
}
