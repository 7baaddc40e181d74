package model

// ComponentType classifies hardware inventory items.
type ComponentType string

const (
	ComponentModule ComponentType = "module"
	ComponentSFP    ComponentType = "sfp"
	ComponentPSU    ComponentType = "psu"
	ComponentFan    ComponentType = "fan"
	ComponentOther  ComponentType = "other"
)

// InventoryItem is one hardware component reported by a device.
type InventoryItem struct {
	Device      string        `json:"device"`
	Host        string        `json:"host,omitempty"`
	Type        ComponentType `json:"component_type"`
	Name        string        `json:"name"`
	Serial      string        `json:"serial,omitempty"`
	PartID      string        `json:"part_id,omitempty"`
	Description string        `json:"description,omitempty"`
}

// ConfigBackup is one device's captured running configuration.
type ConfigBackup struct {
	Device string `json:"device"`
	Host   string `json:"host"`
	Config string `json:"config"`
}
