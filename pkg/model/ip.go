package model

// IPBinding associates an address in CIDR notation with an interface.
type IPBinding struct {
	Device    string `json:"device"`
	Interface string `json:"interface"` // canonical short form
	Address   string `json:"address"`   // e.g. "10.0.0.1/30"
	IsPrimary bool   `json:"is_primary"`
}
