package model

// MACType distinguishes learned from configured table entries.
type MACType string

const (
	MACDynamic MACType = "dynamic"
	MACStatic  MACType = "static"
)

// PortStatus is the link state of the port a MAC was learned on.
type PortStatus string

const (
	PortOnline  PortStatus = "online"
	PortOffline PortStatus = "offline"
	PortUnknown PortStatus = "unknown"
)

// MACEntry is one normalized MAC-table row. MAC holds the canonical
// 12-hex-uppercase form; Display holds the per-render format requested by
// the caller (ieee, cisco, or unix). Entries are deduplicated by
// (MAC, VLAN, Interface).
type MACEntry struct {
	Device      string     `json:"device"`
	Host        string     `json:"host"`
	Interface   string     `json:"interface"` // canonical short form
	MAC         string     `json:"mac"`
	Display     string     `json:"mac_display,omitempty"`
	VLAN        int        `json:"vlan,omitempty"`
	Type        MACType    `json:"type"`
	PortStatus  PortStatus `json:"port_status"`
	Description string     `json:"description,omitempty"`
}

// Key returns the dedup key for a MAC entry.
func (e *MACEntry) Key() [3]interface{} {
	return [3]interface{}{e.MAC, e.VLAN, e.Interface}
}
