package normalize

import (
	"strconv"
	"strings"

	"github.com/nettally/nettally/pkg/model"
)

var interfaceRowKeys = map[string]string{
	"interface":       "interface",
	"port":            "interface",
	"link_status":     "status",
	"status":          "status",
	"protocol_status": "protocol",
	"description":     "description",
	"descr":           "description",
	"mtu":             "mtu",
	"speed":           "speed",
	"duplex":          "duplex",
	"address":         "mac",
	"mac_address":     "mac",
	"hardware_type":   "hardware",
	"mode":            "mode",
	"vlan":            "vlan",
	"access_vlan":     "vlan",
	"trunking_vlans":  "allowed_vlans",
	"allowed_vlans":   "allowed_vlans",
	"group":           "lag_parent",
	"lag":             "lag_parent",
	"ip_address":      "ip_address",
	"ipv4_address":    "ip_address",
}

// NormalizeInterfaces converts raw "show interfaces" rows into canonical
// InterfaceRecords. Mode and description tracking matters downstream: a row
// that carried the key at all (even empty) means "clear remotely", a row
// without it means "leave as is".
func NormalizeInterfaces(rows []map[string]string, dev *model.Device) []model.InterfaceRecord {
	var out []model.InterfaceRecord
	for _, raw := range rows {
		row := remapKeys(raw, interfaceRowKeys)

		name := CanonicalInterface(row["interface"])
		if name == "" {
			continue
		}

		rec := model.InterfaceRecord{
			Device: dev.DisplayName(),
			Host:   dev.Host,
			Name:   name,
			Status: interfaceStatusFromText(row["status"]),
			Duplex: normalizeDuplex(row["duplex"]),
		}

		if _, ok := rawHasKey(raw, "description", "descr"); ok {
			rec.Description = row["description"]
			rec.HasDescription = true
		}
		if _, ok := rawHasKey(raw, "mode"); ok {
			rec.Mode = interfaceModeFromText(row["mode"])
			rec.HasMode = true
		}

		rec.MTU, _ = strconv.Atoi(strings.TrimSpace(row["mtu"]))
		rec.Speed = parseSpeedKbps(row["speed"])
		if canon, ok := CanonicalMAC(row["mac"]); ok {
			rec.MAC = canon
		}
		if v, err := strconv.Atoi(strings.TrimSpace(row["vlan"])); err == nil {
			rec.AccessVLAN = v
		}
		rec.AllowedVLANs = parseVLANList(row["allowed_vlans"])
		if lag := CanonicalInterface(row["lag_parent"]); lag != "" && strings.HasPrefix(lag, "Po") {
			rec.LAGParent = lag
		}
		if ip := strings.TrimSpace(row["ip_address"]); ip != "" && strings.Contains(ip, "/") {
			rec.IPAddresses = append(rec.IPAddresses, ip)
		}

		rec.DeriveEnabled()
		out = append(out, rec)
	}
	return out
}

func rawHasKey(raw map[string]string, keys ...string) (string, bool) {
	for k := range raw {
		lk := strings.ToLower(k)
		for _, want := range keys {
			if lk == want {
				return k, true
			}
		}
	}
	return "", false
}

func interfaceStatusFromText(s string) model.InterfaceStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "connected":
		return model.InterfaceUp
	case "down", "notconnect", "notconnected", "lowerlayerdown":
		return model.InterfaceDown
	case "administratively down", "admin down", "disabled", "shutdown":
		return model.InterfaceDisabled
	case "err-disabled", "errdisabled", "error":
		return model.InterfaceError
	default:
		return model.InterfaceUnknown
	}
}

func interfaceModeFromText(s string) model.InterfaceMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "access", "static access":
		return model.ModeAccess
	case "trunk", "tagged":
		return model.ModeTagged
	case "tagged-all", "trunk-all":
		return model.ModeTaggedAll
	default:
		return model.ModeNone
	}
}

func normalizeDuplex(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "full"):
		return "full"
	case strings.Contains(s, "half"):
		return "half"
	case strings.Contains(s, "auto"):
		return "auto"
	default:
		return ""
	}
}

// parseSpeedKbps converts vendor speed text ("1000Mb/s", "a-1000", "10G")
// into kbit/s, the remote-inventory convention. Unparseable input yields 0.
func parseSpeedKbps(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "a-")
	s = strings.TrimSuffix(s, "b/s")
	s = strings.TrimSuffix(s, "bps")
	if s == "" || s == "auto" || s == "unknown" {
		return 0
	}
	mult := 1000 // plain numbers are Mb/s
	switch {
	case strings.HasSuffix(s, "g"):
		s, mult = strings.TrimSuffix(s, "g"), 1000*1000
	case strings.HasSuffix(s, "m"):
		s, mult = strings.TrimSuffix(s, "m"), 1000
	case strings.HasSuffix(s, "k"):
		s, mult = strings.TrimSuffix(s, "k"), 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n * mult
}

// parseVLANList expands "1,10-12,20" into [1 10 11 12 20]. "ALL" and "none"
// yield nil.
func parseVLANList(s string) []int {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") || strings.EqualFold(s, "none") {
		return nil
	}
	var vlans []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || end < start {
				continue
			}
			for v := start; v <= end; v++ {
				vlans = append(vlans, v)
			}
		} else if v, err := strconv.Atoi(part); err == nil {
			vlans = append(vlans, v)
		}
	}
	return vlans
}
