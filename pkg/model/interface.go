package model

// InterfaceStatus is the operational state of an interface.
type InterfaceStatus string

const (
	InterfaceUp       InterfaceStatus = "up"
	InterfaceDown     InterfaceStatus = "down"
	InterfaceDisabled InterfaceStatus = "disabled"
	InterfaceError    InterfaceStatus = "error"
	InterfaceUnknown  InterfaceStatus = "unknown"
)

// InterfaceMode is the switchport mode in remote-inventory terms.
// The empty string is meaningful: it tells the reconciler to clear the
// mode remotely.
type InterfaceMode string

const (
	ModeNone      InterfaceMode = ""
	ModeAccess    InterfaceMode = "access"
	ModeTagged    InterfaceMode = "tagged"
	ModeTaggedAll InterfaceMode = "tagged-all"
)

// InterfaceRecord is a normalized interface. Name is always the canonical
// short form (Gi0/1, Te1/0/2, Po10).
type InterfaceRecord struct {
	Device       string          `json:"device"`
	Host         string          `json:"host,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Status       InterfaceStatus `json:"status"`
	Enabled      bool            `json:"enabled"`
	MTU          int             `json:"mtu,omitempty"`
	Speed        int             `json:"speed,omitempty"` // kbit/s, DCIM convention
	Duplex       string          `json:"duplex,omitempty"`
	Mode         InterfaceMode   `json:"mode"`
	AccessVLAN   int             `json:"access_vlan,omitempty"`
	AllowedVLANs []int           `json:"allowed_vlans,omitempty"`
	LAGParent    string          `json:"lag_parent,omitempty"`
	MAC          string          `json:"mac,omitempty"`
	IPAddresses  []string        `json:"ip_addresses,omitempty"` // CIDR, first is primary

	// HasMode and HasDescription distinguish "field absent, leave remote
	// as is" from "field present and empty, clear it remotely".
	HasMode        bool `json:"-"`
	HasDescription bool `json:"-"`
}

// DeriveEnabled computes Enabled from Status: anything that is not
// administratively disabled or errored counts as enabled.
func (r *InterfaceRecord) DeriveEnabled() {
	r.Enabled = r.Status != InterfaceDisabled && r.Status != InterfaceError
}
