// Package platform maps canonical platform tags to SSH driver tags,
// text-template platform tags, and per-domain command strings. The tables are
// static; unknown tags are a recoverable error and callers may fall back to
// cisco_ios.
package platform

import (
	"fmt"

	"github.com/nettally/nettally/pkg/util"
)

// Command identifies one of the normalized command slots every platform
// provides.
type Command string

const (
	CmdVersion        Command = "version"
	CmdInventory      Command = "inventory"
	CmdInventoryMods  Command = "inventory_modules"
	CmdMACTable       Command = "mac_table"
	CmdLLDPNeighbors  Command = "lldp_neighbors"
	CmdCDPNeighbors   Command = "cdp_neighbors"
	CmdInterfaces     Command = "interfaces"
	CmdInterfaceStat  Command = "interface_status"
	CmdInterfaceDescr Command = "interface_descriptions"
	CmdRunningConfig  Command = "running_config"
)

// Platform describes everything the rest of the system needs to talk to one
// vendor family.
type Platform struct {
	Tag              string             // canonical tag, e.g. "cisco_ios"
	DriverTag        string             // SSH driver selector
	TemplatePlatform string             // key used by the textfsm library
	Commands         map[Command]string // exact command strings
}

// CommandString returns the exact CLI string for a command slot.
func (p *Platform) CommandString(cmd Command) (string, bool) {
	s, ok := p.Commands[cmd]
	return s, ok
}

// DefaultTag is the fallback platform when a tag is unknown and the caller
// opts into degraded operation.
const DefaultTag = "cisco_ios"

var registry = map[string]*Platform{
	"cisco_ios": {
		Tag:              "cisco_ios",
		DriverTag:        "cisco_ios",
		TemplatePlatform: "cisco_ios",
		Commands: map[Command]string{
			CmdVersion:        "show version",
			CmdInventory:      "show inventory",
			CmdInventoryMods:  "show module",
			CmdMACTable:       "show mac address-table",
			CmdLLDPNeighbors:  "show lldp neighbors detail",
			CmdCDPNeighbors:   "show cdp neighbors detail",
			CmdInterfaces:     "show interfaces",
			CmdInterfaceStat:  "show interfaces status",
			CmdInterfaceDescr: "show interfaces description",
			CmdRunningConfig:  "show running-config",
		},
	},
	"cisco_iosxe": {
		Tag:              "cisco_iosxe",
		DriverTag:        "cisco_iosxe",
		TemplatePlatform: "cisco_ios",
		Commands: map[Command]string{
			CmdVersion:        "show version",
			CmdInventory:      "show inventory",
			CmdInventoryMods:  "show module",
			CmdMACTable:       "show mac address-table",
			CmdLLDPNeighbors:  "show lldp neighbors detail",
			CmdCDPNeighbors:   "show cdp neighbors detail",
			CmdInterfaces:     "show interfaces",
			CmdInterfaceStat:  "show interfaces status",
			CmdInterfaceDescr: "show interfaces description",
			CmdRunningConfig:  "show running-config",
		},
	},
	"cisco_nxos": {
		Tag:              "cisco_nxos",
		DriverTag:        "cisco_nxos",
		TemplatePlatform: "cisco_nxos",
		Commands: map[Command]string{
			CmdVersion:        "show version",
			CmdInventory:      "show inventory",
			CmdInventoryMods:  "show module",
			CmdMACTable:       "show mac address-table",
			CmdLLDPNeighbors:  "show lldp neighbors detail",
			CmdCDPNeighbors:   "show cdp neighbors detail",
			CmdInterfaces:     "show interface",
			CmdInterfaceStat:  "show interface status",
			CmdInterfaceDescr: "show interface description",
			CmdRunningConfig:  "show running-config",
		},
	},
	"arista_eos": {
		Tag:              "arista_eos",
		DriverTag:        "arista_eos",
		TemplatePlatform: "arista_eos",
		Commands: map[Command]string{
			CmdVersion:        "show version",
			CmdInventory:      "show inventory",
			CmdInventoryMods:  "show module",
			CmdMACTable:       "show mac address-table",
			CmdLLDPNeighbors:  "show lldp neighbors detail",
			CmdCDPNeighbors:   "", // CDP not supported on EOS
			CmdInterfaces:     "show interfaces",
			CmdInterfaceStat:  "show interfaces status",
			CmdInterfaceDescr: "show interfaces description",
			CmdRunningConfig:  "show running-config",
		},
	},
	"juniper_junos": {
		Tag:              "juniper_junos",
		DriverTag:        "juniper_junos",
		TemplatePlatform: "juniper_junos",
		Commands: map[Command]string{
			CmdVersion:        "show version",
			CmdInventory:      "show chassis hardware",
			CmdInventoryMods:  "show chassis hardware",
			CmdMACTable:       "show ethernet-switching table",
			CmdLLDPNeighbors:  "show lldp neighbors",
			CmdCDPNeighbors:   "",
			CmdInterfaces:     "show interfaces",
			CmdInterfaceStat:  "show interfaces terse",
			CmdInterfaceDescr: "show interfaces descriptions",
			CmdRunningConfig:  "show configuration | display set",
		},
	},
	// QTech switches speak an IOS-compatible CLI; they reuse the cisco_ios
	// templates with a few bundled overrides.
	"qtech": {
		Tag:              "qtech",
		DriverTag:        "cisco_ios",
		TemplatePlatform: "cisco_ios",
		Commands: map[Command]string{
			CmdVersion:        "show version",
			CmdInventory:      "show inventory",
			CmdInventoryMods:  "show module",
			CmdMACTable:       "show mac-address-table",
			CmdLLDPNeighbors:  "show lldp neighbors interface",
			CmdCDPNeighbors:   "",
			CmdInterfaces:     "show interface",
			CmdInterfaceStat:  "show interface status",
			CmdInterfaceDescr: "show interface description",
			CmdRunningConfig:  "show running-config",
		},
	},
}

// customTemplates maps (template platform, command) to a bundled template
// path that takes precedence over the library's built-in template.
var customTemplates = map[string]string{
	"cisco_ios/" + string(CmdLLDPNeighbors): "templates/cisco_ios_show_lldp_neighbors_detail.textfsm",
	"cisco_ios/" + string(CmdCDPNeighbors):  "templates/cisco_ios_show_cdp_neighbors_detail.textfsm",
	"cisco_ios/" + string(CmdMACTable):      "templates/cisco_ios_show_mac_address_table.textfsm",
}

// Lookup resolves a canonical platform tag. Unknown tags return
// util.ErrUnknownPlatform; callers may retry with DefaultTag.
func Lookup(tag string) (*Platform, error) {
	p, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", util.ErrUnknownPlatform, tag)
	}
	return p, nil
}

// LookupOrDefault resolves a tag, falling back to cisco_ios with a warning
// when the tag is unknown.
func LookupOrDefault(tag string) *Platform {
	p, err := Lookup(tag)
	if err != nil {
		util.Warnf("platform: %v, falling back to %s", err, DefaultTag)
		return registry[DefaultTag]
	}
	return p
}

// Tags returns all registered canonical tags.
func Tags() []string {
	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	return tags
}

// CustomTemplate returns the bundled template path overriding the library
// template for (templatePlatform, command), if one exists.
func CustomTemplate(templatePlatform string, cmd Command) (string, bool) {
	path, ok := customTemplates[templatePlatform+"/"+string(cmd)]
	return path, ok
}
