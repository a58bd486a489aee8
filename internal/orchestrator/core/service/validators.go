package service

import (
	"fmt"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

// Constraint names.
const (
	ConstraintEnergy       = "energy"
	ConstraintTransmission = "transmission"
	ConstraintSecurity     = "security"
	ConstraintLocation     = "location"
	ConstraintPrivacy      = "privacy"
)

// Energy model in mW.
var (
	basePowerMW = map[model.DeviceType]float64{
		model.DeviceTypeSensor:   50,
		model.DeviceTypeCamera:   500,
		model.DeviceTypeDisplay:  1000,
		model.DeviceTypeActuator: 200,
	}
	defaultBasePowerMW = 100.0
)

const (
	batteryCritical = 20.0
	batteryLow      = 50.0

	powerReduceSamplingMW = 5000.0
	powerProgressiveMW    = 3000.0

	bandwidthWarnMbps        = 100.0
	bandwidthCriticalMbps    = 1000.0
	bandwidthResolutionMbps  = 50.0
	bandwidthCompressionMbps = 30.0
)

// ValidationEnv is the registry and policy snapshot the validators read.
type ValidationEnv struct {
	// FindDevice resolves live registry records. It may be nil.
	FindDevice   func(id string) (*model.Device, bool)
	BrokerStatus string
	Policies     *model.SecurityPolicies
}

// ConstraintValidator inspects a plan for one concern.
type ConstraintValidator func(plan *model.Plan, user *model.UserContext, env *ValidationEnv) *model.ConstraintCheck

// Validators lists every constraint check in reporting order.
var Validators = []ConstraintValidator{
	ValidateEnergy,
	ValidateTransmission,
	ValidateSecurity,
	ValidateLocation,
	ValidatePrivacy,
}

// DevicePowerMW is the estimated draw of a device: a per-type base plus
// 300mW for a camera service and 10mW for each temperature or humidity service.
func DevicePowerMW(d *model.Device) float64 {
	power, ok := basePowerMW[d.Type]
	if !ok {
		power = defaultBasePowerMW
	}
	for _, svc := range d.Services {
		switch svc.Name {
		case "camera":
			power += 300
		case "temperature", "humidity":
			power += 10
		}
	}
	return power
}

// ServiceBandwidthMbps estimates the traffic of one service.
func ServiceBandwidthMbps(svc *model.Service) float64 {
	switch svc.Name {
	case "camera":
		resolution := svc.Details.String("resolution")
		if resolution == "" {
			resolution = "1920x1080"
		}
		fps, ok := svc.Details.Float("fps")
		if !ok {
			fps = 30
		}
		switch {
		case strings.Contains(resolution, "1920x1080"):
			return 30 * fps / 30
		case strings.Contains(resolution, "1440p"), strings.Contains(resolution, "2560x1440"):
			return 50 * fps / 30
		default:
			return 10
		}
	case "temperature", "humidity":
		freq, ok := svc.Details.Float("sampling_frequency")
		if !ok {
			freq = 1
		}
		return freq * 0.001
	default:
		return 1
	}
}

// ValidateEnergy checks battery levels against the estimated power draw.
func ValidateEnergy(plan *model.Plan, _ *model.UserContext, env *ValidationEnv) *model.ConstraintCheck {
	check := model.NewConstraintCheck(ConstraintEnergy)

	var total float64
	for i := range plan.Devices {
		d := &plan.Devices[i]
		battery := d.BatteryLevel()

		live, found := lookup(env, d.ID)
		switch {
		case found && live.Battery != nil:
			battery = live.BatteryLevel()
		case !found && d.Battery == nil:
			check.AddIssue(model.SeverityWarning, d.ID, fmt.Sprintf("Device %s not found in deployment", d.ID))
			continue
		}

		power := DevicePowerMW(d)
		total += power

		switch {
		case battery < batteryCritical:
			check.AddIssue(model.SeverityCritical, d.ID,
				fmt.Sprintf("Device battery critical: %s%%. Estimated consumption: %smW", num(battery), num(power)))
		case battery < batteryLow:
			check.AddIssue(model.SeverityWarning, d.ID, fmt.Sprintf("Device battery low: %s%%", num(battery)))
		}
	}

	if total > powerReduceSamplingMW {
		check.Recommend(model.PriorityHigh, model.ActionReduceSampling,
			"Reduce sampling frequency (e.g., from 60Hz to 30Hz) to lower energy consumption")
	}
	if total > powerProgressiveMW {
		check.Recommend(model.PriorityMedium, model.ActionProgressive,
			"Consider progressive device activation instead of simultaneous")
	}

	check.Metrics["total_power_mw"] = total
	return check
}

// ValidateTransmission checks bandwidth and broker availability.
func ValidateTransmission(plan *model.Plan, _ *model.UserContext, env *ValidationEnv) *model.ConstraintCheck {
	check := model.NewConstraintCheck(ConstraintTransmission)

	var total float64
	mqttServices := 0
	protocols := map[string]int{}
	for i := range plan.Devices {
		for j := range plan.Devices[i].Services {
			svc := &plan.Devices[i].Services[j]
			total += ServiceBandwidthMbps(svc)
			protocols[string(svc.EffectiveProtocol())]++
			if svc.EffectiveProtocol().IsMQTT() {
				mqttServices++
			}
		}
	}

	if env == nil || env.BrokerStatus != "online" {
		sev := model.SeverityWarning
		if mqttServices > 0 {
			sev = model.SeverityCritical
		}
		check.AddIssue(sev, "", fmt.Sprintf("Primary MQTT broker is offline (%d MQTT services affected)", mqttServices))
	}

	if total > bandwidthWarnMbps {
		check.AddIssue(model.SeverityWarning, "", fmt.Sprintf("High bandwidth requirement: %s Mbps", num(total)))
	}
	if total > bandwidthCriticalMbps {
		check.AddIssue(model.SeverityCritical, "",
			fmt.Sprintf("Critical bandwidth requirement: %s Mbps exceeds network capacity", num(total)))
	}

	if total > bandwidthResolutionMbps {
		check.Recommend(model.PriorityHigh, model.ActionReduceRes, "Reduce camera resolution (e.g., 1920x1080 to 1440p)")
	}
	if total > bandwidthCompressionMbps {
		check.Recommend(model.PriorityMedium, model.ActionCompression, "Enable video compression (H.265 instead of H.264)")
	}

	check.Metrics["total_bandwidth_mbps"] = total
	check.Metrics["protocols"] = protocols
	return check
}

// ValidateSecurity checks the caller's role and permissions against the
// access policy of every device type in the plan.
func ValidateSecurity(plan *model.Plan, user *model.UserContext, env *ValidationEnv) *model.ConstraintCheck {
	check := model.NewConstraintCheck(ConstraintSecurity)

	if user == nil {
		check.Recommend(model.PriorityMedium, model.ActionUserContext, "Include user context for proper credential validation")
		return check
	}

	role := user.EffectiveRole()
	granted := sets.New(user.Permissions...)

	for i := range plan.Devices {
		d := &plan.Devices[i]
		policy := accessPolicy(env, d.Type)

		if sets.New(policy.RestrictedRoles...).Has(role) {
			check.AddIssue(model.SeverityCritical, d.ID, fmt.Sprintf("User role '%s' not authorized to access %s", role, d.ID))
		}

		missing := sets.List(sets.New(policy.RequiredPermissions...).Difference(granted))
		if len(missing) == 0 {
			continue
		}
		if d.Type == model.DeviceTypeCamera && granted.Has("read_video") {
			check.AddIssue(model.SeverityWarning, d.ID,
				fmt.Sprintf("Additional camera permissions may be required: %s", strings.Join(missing, ", ")))
		} else {
			check.AddIssue(model.SeverityCritical, d.ID,
				fmt.Sprintf("Missing permissions for device %s: %s", d.ID, strings.Join(missing, ", ")))
		}
	}

	check.Recommend(model.PriorityHigh, model.ActionEncrypt, "Use encrypted communication for all device interactions")
	return check
}

// ValidateLocation reports required areas that no plan device covers. Required
// areas are the plan's required_areas plus every detection_area named by a
// plan service; a device covers its location area and detection area.
func ValidateLocation(plan *model.Plan, _ *model.UserContext, _ *ValidationEnv) *model.ConstraintCheck {
	check := model.NewConstraintCheck(ConstraintLocation)

	required := sets.New[string]()
	covered := sets.New[string]()
	for _, area := range plan.RequiredAreas {
		if area != "" {
			required.Insert(area)
		}
	}
	for i := range plan.Devices {
		d := &plan.Devices[i]
		for _, area := range []string{d.Location.Area, d.Location.DetectionArea} {
			if area != "" {
				covered.Insert(area)
			}
		}
		for _, svc := range d.Services {
			if area := svc.Details.String("detection_area"); area != "" {
				required.Insert(area)
			}
		}
	}

	uncovered := sets.List(required.Difference(covered))
	if len(uncovered) > 0 {
		check.AddIssue(model.SeverityWarning, "", fmt.Sprintf("Not all locations covered: %s", strings.Join(uncovered, ", ")))
	}

	check.Recommend(model.PriorityMedium, model.ActionCorridorDevices,
		"Select only devices located in the corridor for progressive patient monitoring")

	check.Metrics["required_areas"] = sets.List(required)
	check.Metrics["covered_areas"] = sets.List(covered)
	return check
}

// ValidatePrivacy rejects camera requests from users on the camera privacy list.
func ValidatePrivacy(plan *model.Plan, user *model.UserContext, env *ValidationEnv) *model.ConstraintCheck {
	check := model.NewConstraintCheck(ConstraintPrivacy)

	var cameras []*model.Device
	for i := range plan.Devices {
		if plan.Devices[i].Type == model.DeviceTypeCamera {
			cameras = append(cameras, &plan.Devices[i])
		}
	}

	if len(cameras) > 0 && user != nil {
		restricted := sets.New(privacyPolicy(env, model.DeviceTypeCamera).RestrictedUsers...)
		if restricted.Has(user.UserID) {
			for _, cam := range cameras {
				check.AddIssue(model.SeverityCritical, cam.ID,
					fmt.Sprintf("User %s does not have sufficient rights to request camera device %s", user.UserID, cam.ID))
			}
		}
	}

	if len(cameras) > 0 {
		check.Recommend(model.PriorityHigh, model.ActionReduceRes,
			"Use lower resolution (e.g., 1440p instead of 4K) for privacy-sensitive areas")
	}
	check.Recommend(model.PriorityHigh, model.ActionReduceSampling,
		"Adjust sampling frequency to 30Hz instead of 60Hz to reduce data collection")

	return check
}

// Aggregate merges checks into a result: failed on any critical issue,
// warnings on any issue, passed otherwise.
func Aggregate(planID string, checks []*model.ConstraintCheck) *model.ValidationResult {
	result := &model.ValidationResult{
		PlanID:          planID,
		Status:          model.ValidationPassed,
		Checks:          checks,
		Issues:          []model.Issue{},
		Recommendations: []model.Recommendation{},
	}

	for _, c := range checks {
		result.Issues = append(result.Issues, c.Issues...)
		result.Recommendations = append(result.Recommendations, c.Recommendations...)
	}

	for _, issue := range result.Issues {
		if issue.Severity == model.SeverityCritical {
			result.Status = model.ValidationFailed
			return result
		}
	}
	if len(result.Issues) > 0 {
		result.Status = model.ValidationWarnings
	}
	return result
}

func lookup(env *ValidationEnv, id string) (*model.Device, bool) {
	if env == nil || env.FindDevice == nil || id == "" {
		return nil, false
	}
	return env.FindDevice(id)
}

func accessPolicy(env *ValidationEnv, t model.DeviceType) model.DeviceAccessPolicy {
	if env == nil || env.Policies == nil {
		return model.DeviceAccessPolicy{}
	}
	return env.Policies.AccessControl[string(t)]
}

func privacyPolicy(env *ValidationEnv, t model.DeviceType) model.PrivacyPolicy {
	if env == nil || env.Policies == nil {
		return model.PrivacyPolicy{}
	}
	return env.Policies.Privacy[string(t)]
}

// num formats a float without trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
