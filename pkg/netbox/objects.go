// Package netbox is the remote-inventory client: typed objects, the API
// surface the reconciler consumes, and an HTTP implementation speaking the
// DCIM's REST dialect (single and bulk writes, lookup endpoints, and the
// MAC-assignment side channel).
package netbox

import "context"

// Ref is a named object reference returned inside other objects.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Device is the remote inventory's device record.
type Device struct {
	ID           int    `json:"id,omitempty"`
	Name         string `json:"name"`
	Serial       string `json:"serial,omitempty"`
	Site         *Ref   `json:"site,omitempty"`
	Role         *Ref   `json:"role,omitempty"`
	DeviceType   *Ref   `json:"device_type,omitempty"`
	Tenant       *Ref   `json:"tenant,omitempty"`
	PrimaryIP    string `json:"primary_ip,omitempty"`
	Status       string `json:"status,omitempty"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
}

// CableRef marks an interface as already cabled.
type CableRef struct {
	ID int `json:"id"`
}

// Interface is the remote inventory's interface record.
type Interface struct {
	ID           int       `json:"id,omitempty"`
	DeviceID     int       `json:"device,omitempty"`
	DeviceName   string    `json:"device_name,omitempty"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Enabled      bool      `json:"enabled"`
	MTU          int       `json:"mtu,omitempty"`
	Speed        int       `json:"speed,omitempty"`
	Duplex       string    `json:"duplex,omitempty"`
	Mode         string    `json:"mode"`
	UntaggedVLAN int       `json:"untagged_vlan,omitempty"`
	TaggedVLANs  []int     `json:"tagged_vlans,omitempty"`
	LagID        int       `json:"lag,omitempty"`
	LagName      string    `json:"lag_name,omitempty"`
	MAC          string    `json:"mac_address,omitempty"`
	IsLag        bool      `json:"is_lag,omitempty"`
	Cable        *CableRef `json:"cable,omitempty"`
}

// IPAddress is one address assignment.
type IPAddress struct {
	ID          int    `json:"id,omitempty"`
	Address     string `json:"address"`
	InterfaceID int    `json:"assigned_interface,omitempty"`
	DeviceID    int    `json:"device,omitempty"`
	IsPrimary   bool   `json:"is_primary,omitempty"`
}

// VLAN is one VLAN in scope of a site.
type VLAN struct {
	ID     int    `json:"id,omitempty"`
	VID    int    `json:"vid"`
	Name   string `json:"name"`
	SiteID int    `json:"site,omitempty"`
}

// CableEnd identifies one cable termination.
type CableEnd struct {
	DeviceID    int    `json:"device"`
	DeviceName  string `json:"device_name,omitempty"`
	InterfaceID int    `json:"interface"`
	Interface   string `json:"interface_name,omitempty"`
}

// Cable is one point-to-point link.
type Cable struct {
	ID     int      `json:"id,omitempty"`
	A      CableEnd `json:"a_termination"`
	B      CableEnd `json:"b_termination"`
	Status string   `json:"status,omitempty"`
}

// InventoryItem is one hardware component attached to a device.
type InventoryItem struct {
	ID          int    `json:"id,omitempty"`
	DeviceID    int    `json:"device"`
	Name        string `json:"name"`
	Serial      string `json:"serial,omitempty"`
	PartID      string `json:"part_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// DependencyKind names the get-or-create object families.
type DependencyKind string

const (
	KindManufacturer DependencyKind = "manufacturer"
	KindDeviceType   DependencyKind = "device-type"
	KindSite         DependencyKind = "site"
	KindRole         DependencyKind = "role"
	KindTenant       DependencyKind = "tenant"
)

// API is the object-level contract the reconciler consumes. Lookup methods
// return (nil, nil) when the object does not exist; bulk writes reject the
// whole batch on failure so callers can fall back to per-item calls.
type API interface {
	// Device lookups feeding the caches and the cable lookup chain.
	GetDeviceByName(ctx context.Context, name string) (*Device, error)
	GetDeviceByIP(ctx context.Context, ip string) (*Device, error)
	GetDeviceByMAC(ctx context.Context, mac string) (*Device, error)
	ListDevices(ctx context.Context, tenant string) ([]Device, error)

	// Dependencies resolved by name with derived slugs.
	GetOrCreateDependency(ctx context.Context, kind DependencyKind, name string, parentID int) (*Ref, error)

	// Devices.
	CreateDevices(ctx context.Context, devs []Device) ([]Device, error)
	CreateDevice(ctx context.Context, dev Device) (*Device, error)
	UpdateDevices(ctx context.Context, devs []Device) error
	UpdateDevice(ctx context.Context, dev Device) error
	DeleteDevices(ctx context.Context, ids []int) error
	DeleteDevice(ctx context.Context, id int) error

	// Interfaces.
	ListInterfaces(ctx context.Context, deviceID int) ([]Interface, error)
	CreateInterfaces(ctx context.Context, ifaces []Interface) ([]Interface, error)
	CreateInterface(ctx context.Context, iface Interface) (*Interface, error)
	UpdateInterfaces(ctx context.Context, ifaces []Interface) error
	UpdateInterface(ctx context.Context, iface Interface) error
	DeleteInterfaces(ctx context.Context, ids []int) error
	DeleteInterface(ctx context.Context, id int) error
	// The bulk payload cannot carry MAC assignments; they go through a
	// dedicated endpoint after the interface write.
	AssignMAC(ctx context.Context, interfaceID int, mac string) error

	// IP addresses.
	ListIPAddresses(ctx context.Context, deviceID int) ([]IPAddress, error)
	CreateIPAddresses(ctx context.Context, ips []IPAddress) ([]IPAddress, error)
	CreateIPAddress(ctx context.Context, ip IPAddress) (*IPAddress, error)
	UpdateIPAddress(ctx context.Context, ip IPAddress) error
	DeleteIPAddresses(ctx context.Context, ids []int) error
	DeleteIPAddress(ctx context.Context, id int) error

	// VLANs.
	ListVLANs(ctx context.Context, siteID int) ([]VLAN, error)
	CreateVLAN(ctx context.Context, vlan VLAN) (*VLAN, error)

	// Cables.
	ListCables(ctx context.Context, deviceIDs []int) ([]Cable, error)
	CreateCable(ctx context.Context, cable Cable) (*Cable, error)
	DeleteCable(ctx context.Context, id int) error

	// Inventory items.
	ListInventoryItems(ctx context.Context, deviceID int) ([]InventoryItem, error)
	CreateInventoryItems(ctx context.Context, items []InventoryItem) ([]InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item InventoryItem) (*InventoryItem, error)
	UpdateInventoryItems(ctx context.Context, items []InventoryItem) error
	UpdateInventoryItem(ctx context.Context, item InventoryItem) error
	DeleteInventoryItems(ctx context.Context, ids []int) error
	DeleteInventoryItem(ctx context.Context, id int) error
}
