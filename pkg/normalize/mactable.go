package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nettally/nettally/pkg/model"
)

// MACTableOptions controls MAC-table normalization.
type MACTableOptions struct {
	Format          MACFormat // display rendering; defaults to ieee
	ExcludePrefixes []string  // interface regexes to drop; defaults to ^Po, ^Vlan
	ExcludeVLANs    []int
}

// DefaultExcludePrefixes drops aggregate and SVI pseudo-ports, which carry
// every MAC behind them and would drown the physical-port view.
var DefaultExcludePrefixes = []string{`^Po`, `^Vlan`}

// macRowKeys maps the row-key variants emitted by different templates onto
// one schema. Templates disagree on naming; the normalizer does not.
var macRowKeys = map[string]string{
	"destination_address": "mac",
	"mac_address":         "mac",
	"mac":                 "mac",
	"destination_port":    "interface",
	"port":                "interface",
	"interface":           "interface",
	"vlan_id":             "vlan",
	"vlan":                "vlan",
	"type":                "type",
}

// NormalizeMACTable converts raw MAC-table rows into MACEntry records.
// statuses maps canonical interface names to port status from a
// "show interfaces status" snapshot; missing interfaces get PortUnknown.
// Entries are deduplicated by (MAC, VLAN, interface).
func NormalizeMACTable(rows []map[string]string, statuses map[string]model.PortStatus, dev *model.Device, opts MACTableOptions) []model.MACEntry {
	if opts.Format == "" {
		opts.Format = MACFormatIEEE
	}
	prefixes := opts.ExcludePrefixes
	if prefixes == nil {
		prefixes = DefaultExcludePrefixes
	}
	var excludeRes []*regexp.Regexp
	for _, p := range prefixes {
		if re, err := regexp.Compile(p); err == nil {
			excludeRes = append(excludeRes, re)
		}
	}

	seen := make(map[string]bool)
	var entries []model.MACEntry

	for _, raw := range rows {
		row := remapKeys(raw, macRowKeys)

		intf := CanonicalInterface(row["interface"])
		if intf == "" {
			continue
		}
		excluded := false
		for _, re := range excludeRes {
			if re.MatchString(intf) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		canon, ok := CanonicalMAC(row["mac"])
		if !ok {
			continue
		}

		vlan, _ := strconv.Atoi(strings.TrimSpace(row["vlan"]))
		if vlanExcluded(vlan, opts.ExcludeVLANs) {
			continue
		}

		key := canon + "|" + strconv.Itoa(vlan) + "|" + intf
		if seen[key] {
			continue
		}
		seen[key] = true

		macType := model.MACDynamic
		if strings.EqualFold(strings.TrimSpace(row["type"]), "static") {
			macType = model.MACStatic
		}

		status, known := statuses[intf]
		if !known {
			status = model.PortUnknown
		}

		entries = append(entries, model.MACEntry{
			Device:     dev.DisplayName(),
			Host:       dev.Host,
			Interface:  intf,
			MAC:        canon,
			Display:    RenderMAC(canon, opts.Format),
			VLAN:       vlan,
			Type:       macType,
			PortStatus: status,
		})
	}
	return entries
}

// NormalizePortStatuses converts "show interfaces status" rows into a
// canonical-interface to port-status map used by the MAC-table join.
func NormalizePortStatuses(rows []map[string]string) map[string]model.PortStatus {
	statuses := make(map[string]model.PortStatus, len(rows))
	for _, row := range rows {
		name := row["port"]
		if name == "" {
			name = row["interface"]
		}
		intf := CanonicalInterface(name)
		if intf == "" {
			continue
		}
		statuses[intf] = portStatusFromText(row["status"])
	}
	return statuses
}

func portStatusFromText(s string) model.PortStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "connected", "up":
		return model.PortOnline
	case "notconnect", "notconnected", "down", "disabled", "err-disabled", "sfpabsent", "xcvrabsen":
		return model.PortOffline
	default:
		return model.PortUnknown
	}
}

func vlanExcluded(vlan int, excluded []int) bool {
	for _, v := range excluded {
		if v == vlan {
			return true
		}
	}
	return false
}

// remapKeys lowers row keys and folds template variants onto the canonical
// schema. Unmapped keys are carried through lowercased.
func remapKeys(row map[string]string, mapping map[string]string) map[string]string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		lk := strings.ToLower(k)
		if canon, ok := mapping[lk]; ok {
			if out[canon] == "" {
				out[canon] = strings.TrimSpace(v)
			}
		} else if out[lk] == "" {
			out[lk] = strings.TrimSpace(v)
		}
	}
	return out
}
