package model

// NeighborType records which identifier the peer actually supplied. It drives
// the remote-device lookup chain during cable reconciliation.
type NeighborType string

const (
	NeighborByHostname NeighborType = "hostname"
	NeighborByMAC      NeighborType = "mac"
	NeighborByIP       NeighborType = "ip"
	NeighborUnknown    NeighborType = "unknown"
)

// NeighborProtocol identifies the discovery protocol(s) a record came from.
type NeighborProtocol string

const (
	ProtocolLLDP NeighborProtocol = "LLDP"
	ProtocolCDP  NeighborProtocol = "CDP"
	ProtocolBoth NeighborProtocol = "BOTH"
)

// Neighbor is a normalized LLDP/CDP neighbor record. LocalInterface is the
// canonical short form. RemoteHostname may be synthetic ("[MAC:...]",
// "[IP:...]", "[unknown]") when the peer supplied no system name.
type Neighbor struct {
	LocalDevice    string           `json:"local_device"`
	LocalHost      string           `json:"local_host,omitempty"`
	LocalInterface string           `json:"local_interface"`
	RemoteHostname string           `json:"remote_hostname"`
	RemotePort     string           `json:"remote_port"`
	RemoteMAC      string           `json:"remote_mac,omitempty"`
	RemoteIP       string           `json:"remote_ip,omitempty"`
	RemotePlatform string           `json:"remote_platform,omitempty"`
	Type           NeighborType     `json:"neighbor_type"`
	Protocol       NeighborProtocol `json:"protocol"`
	Capabilities   string           `json:"capabilities,omitempty"`
}
