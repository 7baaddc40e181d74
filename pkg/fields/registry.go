// Package fields holds the declarative field registry: per entity kind, which
// internal fields are enabled, how they render in exports, their column
// order, and their reconciliation flags. The mapping is bidirectional so a
// previously exported table can be read back into the model.
package fields

import (
	"sort"
	"strings"

	"github.com/nettally/nettally/pkg/util"
)

// SyncFlags controls how the reconciler treats a field.
type SyncFlags struct {
	Syncable     bool `yaml:"syncable"`       // pushed to the remote inventory
	Compare      bool `yaml:"compare"`        // participates in update diffing
	ClearOnEmpty bool `yaml:"clear_on_empty"` // empty string means "clear remotely"
}

// Spec describes one field of one entity kind.
type Spec struct {
	Enabled     bool      `yaml:"enabled"`
	DisplayName string    `yaml:"display_name"`
	Order       int       `yaml:"order"`
	Sync        SyncFlags `yaml:"sync,omitempty"`
}

// Registry maps entity kind -> internal field name -> spec.
type Registry map[string]map[string]Spec

// Default returns the built-in registry.
func Default() Registry {
	return Registry{
		"device": {
			"hostname":  {Enabled: true, DisplayName: "Hostname", Order: 1, Sync: SyncFlags{Syncable: true, Compare: true}},
			"host":      {Enabled: true, DisplayName: "IP Address", Order: 2},
			"platform":  {Enabled: true, DisplayName: "Platform", Order: 3},
			"model":     {Enabled: true, DisplayName: "Model", Order: 4, Sync: SyncFlags{Syncable: true, Compare: true}},
			"serial":    {Enabled: true, DisplayName: "Serial", Order: 5, Sync: SyncFlags{Syncable: true, Compare: true}},
			"os_version": {Enabled: true, DisplayName: "OS Version", Order: 6},
			"uptime":    {Enabled: false, DisplayName: "Uptime", Order: 7},
		},
		"interface": {
			"device":        {Enabled: true, DisplayName: "Device", Order: 1},
			"name":          {Enabled: true, DisplayName: "Interface", Order: 2},
			"description":   {Enabled: true, DisplayName: "Description", Order: 3, Sync: SyncFlags{Syncable: true, Compare: true, ClearOnEmpty: true}},
			"status":        {Enabled: true, DisplayName: "Status", Order: 4},
			"enabled":       {Enabled: true, DisplayName: "Enabled", Order: 5, Sync: SyncFlags{Syncable: true, Compare: true}},
			"mtu":           {Enabled: true, DisplayName: "MTU", Order: 6, Sync: SyncFlags{Syncable: true, Compare: true}},
			"speed":         {Enabled: true, DisplayName: "Speed", Order: 7, Sync: SyncFlags{Syncable: true, Compare: true}},
			"duplex":        {Enabled: false, DisplayName: "Duplex", Order: 8, Sync: SyncFlags{Syncable: true, Compare: true}},
			"mode":          {Enabled: true, DisplayName: "Mode", Order: 9, Sync: SyncFlags{Syncable: true, Compare: true, ClearOnEmpty: true}},
			"access_vlan":   {Enabled: true, DisplayName: "Access VLAN", Order: 10, Sync: SyncFlags{Syncable: true, Compare: true}},
			"allowed_vlans": {Enabled: false, DisplayName: "Allowed VLANs", Order: 11, Sync: SyncFlags{Syncable: true, Compare: true}},
			"lag_parent":    {Enabled: true, DisplayName: "LAG", Order: 12, Sync: SyncFlags{Syncable: true, Compare: true}},
			"mac":           {Enabled: false, DisplayName: "MAC", Order: 13, Sync: SyncFlags{Syncable: true}},
		},
		"mac": {
			"device":      {Enabled: true, DisplayName: "Device", Order: 1},
			"interface":   {Enabled: true, DisplayName: "Interface", Order: 2},
			"mac_display": {Enabled: true, DisplayName: "MAC Address", Order: 3},
			"vlan":        {Enabled: true, DisplayName: "VLAN", Order: 4},
			"type":        {Enabled: true, DisplayName: "Type", Order: 5},
			"port_status": {Enabled: true, DisplayName: "Port Status", Order: 6},
			"description": {Enabled: false, DisplayName: "Description", Order: 7},
		},
		"neighbor": {
			"local_device":    {Enabled: true, DisplayName: "Device", Order: 1},
			"local_interface": {Enabled: true, DisplayName: "Local Port", Order: 2},
			"remote_hostname": {Enabled: true, DisplayName: "Neighbor", Order: 3},
			"remote_port":     {Enabled: true, DisplayName: "Neighbor Port", Order: 4},
			"remote_ip":       {Enabled: true, DisplayName: "Neighbor IP", Order: 5},
			"remote_mac":      {Enabled: false, DisplayName: "Neighbor MAC", Order: 6},
			"remote_platform": {Enabled: false, DisplayName: "Platform", Order: 7},
			"protocol":        {Enabled: true, DisplayName: "Protocol", Order: 8},
			"neighbor_type":   {Enabled: false, DisplayName: "Type", Order: 9},
		},
		"inventory": {
			"device":         {Enabled: true, DisplayName: "Device", Order: 1},
			"component_type": {Enabled: true, DisplayName: "Type", Order: 2},
			"name":           {Enabled: true, DisplayName: "Name", Order: 3},
			"part_id":        {Enabled: true, DisplayName: "Part ID", Order: 4, Sync: SyncFlags{Syncable: true, Compare: true}},
			"serial":         {Enabled: true, DisplayName: "Serial", Order: 5, Sync: SyncFlags{Syncable: true, Compare: true}},
			"description":    {Enabled: false, DisplayName: "Description", Order: 6, Sync: SyncFlags{Syncable: true, Compare: true, ClearOnEmpty: true}},
		},
		"ip": {
			"device":     {Enabled: true, DisplayName: "Device", Order: 1},
			"interface":  {Enabled: true, DisplayName: "Interface", Order: 2},
			"address":    {Enabled: true, DisplayName: "Address", Order: 3, Sync: SyncFlags{Syncable: true, Compare: true}},
			"is_primary": {Enabled: true, DisplayName: "Primary", Order: 4, Sync: SyncFlags{Syncable: true}},
		},
	}
}

// Columns returns the enabled internal field names of a kind in column order.
func (r Registry) Columns(kind string) []string {
	specs, ok := r[kind]
	if !ok {
		return nil
	}
	var names []string
	for name, spec := range specs {
		if spec.Enabled {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := specs[names[i]], specs[names[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return names[i] < names[j]
	})
	return names
}

// DisplayName renders an internal field name; unknown fields fall back to
// the internal name.
func (r Registry) DisplayName(kind, field string) string {
	if spec, ok := r[kind][field]; ok && spec.DisplayName != "" {
		return spec.DisplayName
	}
	return field
}

// Reverse maps a display name (case-insensitive) back to the internal field
// name. Only enabled fields participate.
func (r Registry) Reverse(kind, displayName string) (string, bool) {
	specs, ok := r[kind]
	if !ok {
		return "", false
	}
	for name, spec := range specs {
		if !spec.Enabled {
			continue
		}
		if strings.EqualFold(spec.DisplayName, displayName) {
			return name, true
		}
	}
	return "", false
}

// CompareFields returns the fields of a kind flagged for update diffing.
func (r Registry) CompareFields(kind string) []string {
	specs, ok := r[kind]
	if !ok {
		return nil
	}
	var names []string
	for name, spec := range specs {
		if spec.Sync.Compare {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ClearOnEmpty reports whether an empty value for a field means
// "clear it remotely" rather than "leave as is".
func (r Registry) ClearOnEmpty(kind, field string) bool {
	return r[kind][field].Sync.ClearOnEmpty
}

// Validate checks the registry for duplicate display names within a kind and
// for enabled fields with no display name.
func (r Registry) Validate() error {
	vb := &util.ValidationBuilder{}
	for kind, specs := range r {
		seen := make(map[string]string)
		for name, spec := range specs {
			if !spec.Enabled {
				continue
			}
			if spec.DisplayName == "" {
				vb.AddErrorf("%s.%s: enabled field has no display name", kind, name)
				continue
			}
			key := strings.ToLower(spec.DisplayName)
			if prev, dup := seen[key]; dup {
				vb.AddErrorf("%s: display name %q used by both %s and %s", kind, spec.DisplayName, prev, name)
			}
			seen[key] = name
		}
	}
	return vb.Build()
}
