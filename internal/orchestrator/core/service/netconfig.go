package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

const (
	deviceSSID        = "WiseSDN_IoT"
	otaCheckInterval  = 3600
	deviceHTTPPort    = 80
	verifyTimeoutSecs = 30
)

// IntentAnalysis is the keyword reading of a network intent.
type IntentAnalysis struct {
	Environment           string   `json:"environment"`
	PriorityFallDetection bool     `json:"priority_fall_detection"`
	PriorityVideo         bool     `json:"priority_video"`
	PriorityEnvironmental bool     `json:"priority_environmental"`
	MultiProtocolNeeded   bool     `json:"multi_protocol_needed"`
	SecurityRequired      bool     `json:"security_required"`
	OTAEnabled            bool     `json:"ota_enabled"`
	Keywords              []string `json:"intent_keywords"`
}

// AnalyzeIntent extracts network requirements from free text.
func AnalyzeIntent(intent string) IntentAnalysis {
	lower := strings.ToLower(intent)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	a := IntentAnalysis{
		Environment:           "general",
		PriorityFallDetection: has("fall", "detection"),
		PriorityVideo:         has("video", "camera", "monitoring"),
		PriorityEnvironmental: has("temperature", "environmental"),
		MultiProtocolNeeded:   has("wifi", "ble", "zigbee", "thread", "multi"),
		SecurityRequired:      has("secure", "security"),
		OTAEnabled:            has("update", "ota"),
		Keywords:              strings.Fields(lower),
	}
	if has("nursing", "hospital") {
		a.Environment = "healthcare_facility"
	}
	return a
}

type WiFiConfig struct {
	Enabled       bool   `json:"enabled"`
	SSID          string `json:"ssid"`
	Security      string `json:"security"`
	AutoReconnect bool   `json:"auto_reconnect"`
	PowerSave     string `json:"power_save"`
}

type ProtocolConfig struct {
	Name                  string `json:"name"`
	Enabled               bool   `json:"enabled"`
	Broker                string `json:"broker,omitempty"`
	Port                  int    `json:"port,omitempty"`
	Security              string `json:"security,omitempty"`
	QoS                   *int   `json:"qos,omitempty"`
	AdvertisingIntervalMS int    `json:"advertising_interval_ms,omitempty"`
	PowerLevel            int    `json:"power_level,omitempty"`
}

type DeviceOTAConfig struct {
	Enabled              bool   `json:"enabled"`
	Mode                 string `json:"mode"`
	CheckIntervalSeconds int    `json:"check_interval_seconds"`
	AutoUpdate           bool   `json:"auto_update"`
	RollbackProtection   bool   `json:"rollback_protection"`
}

type DeviceSecurityConfig struct {
	SecureBoot              bool `json:"secure_boot"`
	FlashEncryption         bool `json:"flash_encryption"`
	TLSEnabled              bool `json:"tls_enabled"`
	CertificateVerification bool `json:"certificate_verification"`
}

type ServiceConfig struct {
	Name       string         `json:"name"`
	Protocol   model.Protocol `json:"protocol"`
	Enabled    bool           `json:"enabled"`
	Parameters model.Details  `json:"parameters"`
}

type NodeConfiguration struct {
	WiFi      WiFiConfig           `json:"wifi"`
	Protocols []ProtocolConfig     `json:"protocols"`
	OTA       DeviceOTAConfig      `json:"ota"`
	Security  DeviceSecurityConfig `json:"security"`
	Services  []ServiceConfig      `json:"services"`
}

// DeviceConfig is the generated configuration of one device.
type DeviceConfig struct {
	DeviceID      string            `json:"device_id"`
	Type          model.DeviceType  `json:"type"`
	Configuration NodeConfiguration `json:"configuration"`
}

// ConfigurationStep is one numbered rollout instruction.
type ConfigurationStep struct {
	Step        int    `json:"step"`
	Description string `json:"description"`
	Target      string `json:"target"`
	Action      string `json:"action"`
	Parameters  any    `json:"parameters"`
}

// ConfigRecommendation is advice derived from the intent.
type ConfigRecommendation struct {
	Priority       string `json:"priority"`
	Category       string `json:"category"`
	Recommendation string `json:"recommendation"`
	Reason         string `json:"reason"`
}

// NetworkConfiguration is the result of ConfigureFromIntent.
type NetworkConfiguration struct {
	UserIntent         string                 `json:"user_intent"`
	Timestamp          time.Time              `json:"configuration_timestamp"`
	Status             string                 `json:"status"`
	IntentAnalysis     IntentAnalysis         `json:"intent_analysis"`
	DevicesConfigured  []DeviceConfig         `json:"devices_configured"`
	ProtocolsEnabled   []string               `json:"protocols_enabled"`
	ConfigurationSteps []ConfigurationStep    `json:"configuration_steps"`
	Recommendations    []ConfigRecommendation `json:"recommendations"`
}

// ConfigureFromIntent generates a configuration for every deployed device.
func (s *Service) ConfigureFromIntent(ctx context.Context, intent string) (*NetworkConfiguration, error) {
	if strings.TrimSpace(intent) == "" {
		return nil, core.MissingField("user_intent")
	}

	otaServer := ""
	if catalog, err := s.firmware.OTAConfig(ctx); err == nil {
		otaServer = catalog.ServerURL
	} else {
		s.logger.Error(err, "Failed to load firmware catalog")
	}

	analysis := AnalyzeIntent(intent)
	devices := s.knownDevices()

	cfg := &NetworkConfiguration{
		UserIntent:        intent,
		Timestamp:         s.now(),
		Status:            "configured",
		IntentAnalysis:    analysis,
		DevicesConfigured: make([]DeviceConfig, 0, len(devices)),
	}
	for i := range devices {
		cfg.DevicesConfigured = append(cfg.DevicesConfigured, deviceConfig(&devices[i], analysis, s.cfg.Broker))
	}
	cfg.ProtocolsEnabled = enabledProtocols(cfg.DevicesConfigured)
	cfg.ConfigurationSteps = configurationSteps(cfg.DevicesConfigured, cfg.ProtocolsEnabled, otaServer)
	cfg.Recommendations = intentRecommendations(analysis)

	s.logger.Info("Generated network configuration", "devices", len(cfg.DevicesConfigured), "protocols", cfg.ProtocolsEnabled)
	return cfg, nil
}

func deviceConfig(d *model.Device, a IntentAnalysis, broker string) DeviceConfig {
	powerSave := "none"
	if d.Type == model.DeviceTypeSensor {
		powerSave = "modem_sleep"
	}
	httpSecurity, mqttSecurity := "HTTP", "none"
	if a.SecurityRequired {
		httpSecurity, mqttSecurity = "HTTPS", "TLS"
	}

	httpProto := ProtocolConfig{Name: string(model.ProtocolHTTPREST), Enabled: true, Port: deviceHTTPPort, Security: httpSecurity}
	mqttProto := ProtocolConfig{Name: string(model.ProtocolMQTT), Enabled: true, Broker: broker, Security: mqttSecurity}

	var protocols []ProtocolConfig
	switch d.Type {
	case model.DeviceTypeCamera:
		if a.PriorityVideo {
			protocols = append(protocols, httpProto)
		}
		protocols = append(protocols, mqttProto)
	case model.DeviceTypeSensor:
		qos := 1
		mqttProto.QoS = &qos
		protocols = append(protocols, mqttProto)
		if a.MultiProtocolNeeded {
			protocols = append(protocols, ProtocolConfig{Name: "BLE", Enabled: true, AdvertisingIntervalMS: 100, PowerLevel: -12})
		}
	case model.DeviceTypeActuator, model.DeviceTypeDisplay:
		protocols = append(protocols, httpProto)
	}

	services := make([]ServiceConfig, 0, len(d.Services))
	for _, svc := range d.Services {
		params := svc.Details
		if params == nil {
			params = model.Details{}
		}
		services = append(services, ServiceConfig{Name: svc.Name, Protocol: svc.EffectiveProtocol(), Enabled: true, Parameters: params})
	}

	return DeviceConfig{
		DeviceID: d.ID,
		Type:     d.Type,
		Configuration: NodeConfiguration{
			WiFi: WiFiConfig{
				Enabled:       true,
				SSID:          deviceSSID,
				Security:      "WPA2-PSK",
				AutoReconnect: true,
				PowerSave:     powerSave,
			},
			Protocols: protocols,
			OTA: DeviceOTAConfig{
				Enabled:              true,
				Mode:                 string(model.OTAPush),
				CheckIntervalSeconds: otaCheckInterval,
				RollbackProtection:   true,
			},
			Security: DeviceSecurityConfig{
				SecureBoot:              true,
				FlashEncryption:         true,
				TLSEnabled:              true,
				CertificateVerification: true,
			},
			Services: services,
		},
	}
}

func enabledProtocols(configs []DeviceConfig) []string {
	names := sets.New[string]()
	for _, c := range configs {
		for _, p := range c.Configuration.Protocols {
			if p.Enabled {
				names.Insert(p.Name)
			}
		}
	}
	return sets.List(names)
}

func configurationSteps(configs []DeviceConfig, protocols []string, otaServer string) []ConfigurationStep {
	steps := []ConfigurationStep{
		{
			Description: "Initialize WiFi connection",
			Target:      "all_devices",
			Action:      "wifi_init",
			Parameters:  map[string]any{"ssid": deviceSSID, "security": "WPA2-PSK", "auto_reconnect": true},
		},
		{
			Description: "Configure security (Secure Boot, Flash Encryption)",
			Target:      "all_devices",
			Action:      "security_setup",
			Parameters:  map[string]any{"secure_boot": true, "flash_encryption": true},
		},
		{
			Description: "Initialize enabled protocols",
			Target:      "all_devices",
			Action:      "protocol_init",
			Parameters:  map[string]any{"protocols": protocols},
		},
	}
	for _, c := range configs {
		steps = append(steps, ConfigurationStep{
			Description: fmt.Sprintf("Configure %s device %s", c.Type, c.DeviceID),
			Target:      c.DeviceID,
			Action:      "device_config",
			Parameters:  c.Configuration,
		})
	}
	steps = append(steps,
		ConfigurationStep{
			Description: "Setup OTA update mechanism (OTA Server => Device)",
			Target:      "all_devices",
			Action:      "ota_setup",
			Parameters: map[string]any{
				"mode":                   string(model.OTAPush),
				"ota_server":             otaServer,
				"check_interval_seconds": otaCheckInterval,
				"signature_verification": true,
			},
		},
		ConfigurationStep{
			Description: "Verify all devices are connected and configured",
			Target:      "all_devices",
			Action:      "verify_connectivity",
			Parameters:  map[string]any{"timeout_seconds": verifyTimeoutSecs, "retry_count": 3},
		},
	)
	for i := range steps {
		steps[i].Step = i + 1
	}
	return steps
}

func intentRecommendations(a IntentAnalysis) []ConfigRecommendation {
	recs := []ConfigRecommendation{}
	if a.Environment == "healthcare_facility" {
		recs = append(recs,
			ConfigRecommendation{"critical", "security", "Enable TLS encryption for all MQTT connections",
				"Healthcare environment requires HIPAA-compliant secure communication"},
			ConfigRecommendation{"critical", "security", "Implement device authentication with X.509 certificates",
				"Patient data protection and compliance requirements"},
		)
	}
	if a.PriorityFallDetection {
		recs = append(recs,
			ConfigRecommendation{"high", "performance", "Use low-latency MQTT QoS 1 for sensor data",
				"Fall detection requires quick alert transmission"},
			ConfigRecommendation{"high", "coverage", "Deploy devices progressively along patient's path",
				"Continuous fall detection as patient moves"},
		)
	}
	if a.PriorityVideo {
		recs = append(recs, ConfigRecommendation{"high", "bandwidth", "Enable video compression (H.265) and adaptive bitrate",
			"Video streaming consumes significant bandwidth"})
	}
	if a.OTAEnabled {
		recs = append(recs,
			ConfigRecommendation{"high", "maintenance", "Schedule OTA updates during low-activity hours",
				"Minimize disruption to active monitoring"},
			ConfigRecommendation{"high", "reliability", "Always verify firmware signatures before update",
				"Prevent firmware tampering and malicious updates"},
		)
	}
	return recs
}

// Change is one free-form configuration change. Only its type and step name
// are interpreted.
type Change map[string]any

func (c Change) kind() string {
	s, _ := c["type"].(string)
	return s
}

func (c Change) stepName() string {
	s, _ := c["step_name"].(string)
	return s
}

// NetworkChangeRequest carries structured network changes. Changes is filled
// from either configuration_steps or changes.
type NetworkChangeRequest struct {
	ConfigurationType string
	Description       string
	TargetApplication string
	Priority          string
	Changes           []Change
}

type NetworkChangeSummary struct {
	TotalSteps         int `json:"total_steps"`
	VLANConfigurations int `json:"vlan_configurations"`
	QoSPolicies        int `json:"qos_policies"`
	FirewallRules      int `json:"firewall_rules"`
	PortConfigs        int `json:"port_configs"`
}

type NetworkChangeResult struct {
	Status             string               `json:"status"`
	ConfigurationType  string               `json:"configuration_type"`
	Description        string               `json:"description"`
	TargetApplication  string               `json:"target_application"`
	Priority           string               `json:"priority"`
	ConfigurationSteps []Change             `json:"configuration_steps"`
	Summary            NetworkChangeSummary `json:"summary"`
}

// ConfigureNetwork records structured network changes and summarizes them.
func (s *Service) ConfigureNetwork(req NetworkChangeRequest) *NetworkChangeResult {
	changes := req.Changes
	if changes == nil {
		changes = []Change{}
	}
	res := &NetworkChangeResult{
		Status:             "configured",
		ConfigurationType:  req.ConfigurationType,
		Description:        req.Description,
		TargetApplication:  req.TargetApplication,
		Priority:           req.Priority,
		ConfigurationSteps: changes,
		Summary:            NetworkChangeSummary{TotalSteps: len(changes)},
	}
	for _, c := range changes {
		name, kind := c.stepName(), c.kind()
		switch {
		case strings.Contains(name, "VLAN") || kind == "VLAN_creation":
			res.Summary.VLANConfigurations++
		case strings.Contains(name, "QoS") || kind == "QoS_policy_application":
			res.Summary.QoSPolicies++
		case strings.Contains(name, "Firewall") || kind == "Firewall_rule_update":
			res.Summary.FirewallRules++
		case strings.Contains(name, "Port") || kind == "Access_Port_Configuration":
			res.Summary.PortConfigs++
		}
	}
	s.logger.Info("Applied network configuration", "type", req.ConfigurationType, "steps", len(changes))
	return res
}

// ApplyConfigurationRequest is a change set with verification and rollback notes.
type ApplyConfigurationRequest struct {
	Description       string   `json:"description"`
	Changes           []Change `json:"configuration_changes"`
	VerificationSteps []string `json:"verification_steps"`
	RollbackStrategy  string   `json:"rollback_strategy"`
}

type ApplySummary struct {
	TotalChanges      int `json:"total_changes"`
	VLANProvisioning  int `json:"vlan_provisioning"`
	QoSUpdates        int `json:"qos_updates"`
	FirewallRules     int `json:"firewall_rules"`
	VerificationSteps int `json:"verification_steps"`
}

type ApplyConfigurationResult struct {
	Status            string       `json:"status"`
	Description       string       `json:"description"`
	Changes           []Change     `json:"configuration_changes"`
	VerificationSteps []string     `json:"verification_steps"`
	RollbackStrategy  string       `json:"rollback_strategy"`
	Summary           ApplySummary `json:"summary"`
}

// ApplyConfiguration records a change set and counts it by change type.
func (s *Service) ApplyConfiguration(req ApplyConfigurationRequest) *ApplyConfigurationResult {
	if req.Changes == nil {
		req.Changes = []Change{}
	}
	if req.VerificationSteps == nil {
		req.VerificationSteps = []string{}
	}
	res := &ApplyConfigurationResult{
		Status:            "applied",
		Description:       req.Description,
		Changes:           req.Changes,
		VerificationSteps: req.VerificationSteps,
		RollbackStrategy:  req.RollbackStrategy,
		Summary: ApplySummary{
			TotalChanges:      len(req.Changes),
			VerificationSteps: len(req.VerificationSteps),
		},
	}
	for _, c := range req.Changes {
		switch c.kind() {
		case "vlan_provisioning":
			res.Summary.VLANProvisioning++
		case "qos_policy_update":
			res.Summary.QoSUpdates++
		case "firewall_rule_addition":
			res.Summary.FirewallRules++
		}
	}
	s.logger.Info("Applied configuration changes", "changes", len(req.Changes))
	return res
}

// DeploymentDetails groups the policy blocks of a deployment.
type DeploymentDetails struct {
	VLAN         map[string]any `json:"vlan_management,omitempty"`
	QoS          map[string]any `json:"qos_policy,omitempty"`
	Security     map[string]any `json:"security_policy,omitempty"`
	Provisioning map[string]any `json:"device_provisioning_template,omitempty"`
}

type DeployConfigurationRequest struct {
	TargetScope string            `json:"target_scope"`
	Description string            `json:"description"`
	Details     DeploymentDetails `json:"configuration_details"`
}

type DeploySummary struct {
	VLANConfigured            bool `json:"vlan_configured"`
	VLANID                    any  `json:"vlan_id"`
	VLANName                  any  `json:"vlan_name"`
	QoSRules                  int  `json:"qos_rules"`
	SecurityRules             int  `json:"security_rules"`
	DeviceProvisioningEnabled bool `json:"device_provisioning_enabled"`
	TotalElements             int  `json:"total_elements"`
}

type DeployConfigurationResult struct {
	Status      string            `json:"status"`
	TargetScope string            `json:"target_scope"`
	Description string            `json:"description"`
	Details     DeploymentDetails `json:"configuration_details"`
	Summary     DeploySummary     `json:"summary"`
}

// DeployConfiguration summarizes a VLAN, QoS, security and provisioning rollout.
func (s *Service) DeployConfiguration(req DeployConfigurationRequest) *DeployConfigurationResult {
	d := req.Details
	sum := DeploySummary{
		VLANConfigured:            len(d.VLAN) > 0,
		VLANID:                    d.VLAN["vlan_id"],
		VLANName:                  d.VLAN["name"],
		QoSRules:                  countRules(d.QoS),
		SecurityRules:             countRules(d.Security),
		DeviceProvisioningEnabled: len(d.Provisioning) > 0,
	}
	for _, block := range []map[string]any{d.VLAN, d.QoS, d.Security, d.Provisioning} {
		if len(block) > 0 {
			sum.TotalElements++
		}
	}
	s.logger.Info("Deployed network configuration", "scope", req.TargetScope, "elements", sum.TotalElements)
	return &DeployConfigurationResult{
		Status:      "deployed",
		TargetScope: req.TargetScope,
		Description: req.Description,
		Details:     d,
		Summary:     sum,
	}
}

func countRules(block map[string]any) int {
	rules, _ := block["rules"].([]any)
	return len(rules)
}
