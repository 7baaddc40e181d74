// Package model defines the canonical records shared by collectors,
// normalizers, the diff engine, and the reconciler. Vendor variance is
// resolved before data enters these types.
package model

// DeviceStatus is the reachability state of a device.
type DeviceStatus string

const (
	DeviceStatusUnknown DeviceStatus = "unknown"
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
	DeviceStatusError   DeviceStatus = "error"
)

// Device is the canonical device descriptor. PlatformTag is the key into the
// platform registry and determines the SSH driver, template platform, and
// command set. Hostname, Status, and LastError are mutated only by the
// connection manager.
type Device struct {
	Host        string       `json:"host" yaml:"host"`
	PlatformTag string       `json:"platform_tag" yaml:"platform_tag"`
	Port        int          `json:"port" yaml:"port"`
	Role        string       `json:"role,omitempty" yaml:"role,omitempty"`
	Hostname    string       `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Status      DeviceStatus `json:"status,omitempty" yaml:"-"`
	LastError   string       `json:"last_error,omitempty" yaml:"-"`
	Enabled     bool         `json:"enabled" yaml:"enabled"`
	Tags        []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// DisplayName returns the learned hostname when known, otherwise the host.
func (d *Device) DisplayName() string {
	if d.Hostname != "" {
		return d.Hostname
	}
	return d.Host
}

// SSHPort returns the configured port or the SSH default.
func (d *Device) SSHPort() int {
	if d.Port > 0 {
		return d.Port
	}
	return 22
}

// DeviceInfo is the device-info collector output: identity and version facts
// harvested from "show version"-family commands.
type DeviceInfo struct {
	Hostname     string `json:"hostname"`
	Host         string `json:"host"`
	Platform     string `json:"platform"`
	Model        string `json:"model,omitempty"`
	Serial       string `json:"serial,omitempty"`
	OSVersion    string `json:"os_version,omitempty"`
	Uptime       string `json:"uptime,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
}
