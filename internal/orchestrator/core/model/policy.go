package model

// DeviceAccessPolicy lists the roles and permissions required per device type.
type DeviceAccessPolicy struct {
	RequiredPermissions []string `json:"required_permissions,omitempty"`
	RestrictedRoles     []string `json:"restricted_roles,omitempty"`
	AllowedRoles        []string `json:"allowed_roles,omitempty"`
}

// PrivacyPolicy lists users that may not request a device type.
type PrivacyPolicy struct {
	RestrictedUsers []string `json:"restricted_users,omitempty"`
}

// SecurityPolicies is the content of security_policies.json.
type SecurityPolicies struct {
	AccessControl map[string]DeviceAccessPolicy `json:"access_control"`
	Privacy       map[string]PrivacyPolicy      `json:"privacy"`
}

// AccessUser is a principal known to access control.
type AccessUser struct {
	UserID string   `json:"userId"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
}

// RolePolicy lists the permissions a role allows. "*" allows everything.
type RolePolicy struct {
	Role  string   `json:"role"`
	Allow []string `json:"allow"`
}

// AccessPolicies is the content of access_policies.json.
type AccessPolicies struct {
	Users    []AccessUser `json:"users"`
	Policies []RolePolicy `json:"policies"`
}

// FindUser looks up a user by id or name.
func (p *AccessPolicies) FindUser(idOrName string) (*AccessUser, bool) {
	for i := range p.Users {
		if p.Users[i].UserID == idOrName || p.Users[i].Name == idOrName {
			return &p.Users[i], true
		}
	}
	return nil, false
}

// Policy returns the policy of a role.
func (p *AccessPolicies) Policy(role string) (*RolePolicy, bool) {
	for i := range p.Policies {
		if p.Policies[i].Role == role {
			return &p.Policies[i], true
		}
	}
	return nil, false
}

// Deployment is the content of deployment_monitoring.json.
type Deployment struct {
	Devices       []Device       `json:"devices"`
	Locations     []any          `json:"locations,omitempty"`
	NetworkConfig map[string]any `json:"network_config,omitempty"`
}

// MQTTBrokerStatus returns network_config.primary_mqtt_broker.status, or "".
func (d *Deployment) MQTTBrokerStatus() string {
	broker, ok := d.NetworkConfig["primary_mqtt_broker"].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := broker["status"].(string)
	return s
}
