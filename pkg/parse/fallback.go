package parse

import (
	"regexp"
	"strings"
)

// Regex fallbacks mirror the schema of the corresponding templates so the
// normalizers never care which stage produced a row.

var macRowRegexp = regexp.MustCompile(
	`(?m)^[*R+\s]*(\d+|All)\s+([0-9a-fA-F]{4}\.[0-9a-fA-F]{4}\.[0-9a-fA-F]{4})\s+(\S+)\s+(?:\S+\s+)?(\S+)\s*$`)

// fallbackMACTable scrapes "show mac address-table" style output:
// VLAN, dotted-quad MAC, type, and the last column as the port.
func fallbackMACTable(output string) []map[string]string {
	var rows []map[string]string
	for _, m := range macRowRegexp.FindAllStringSubmatch(output, -1) {
		rows = append(rows, map[string]string{
			"vlan":      m[1],
			"mac":       m[2],
			"type":      m[3],
			"interface": m[4],
		})
	}
	return rows
}

var (
	lldpLocalIntfRegexp = regexp.MustCompile(`(?i)^Local (?:Intf|Interface|Port id):\s*(\S+)`)
	lldpChassisRegexp   = regexp.MustCompile(`(?i)^Chassis id:\s*(\S+)`)
	lldpPortIDRegexp    = regexp.MustCompile(`(?i)^Port id:\s*(\S+)`)
	lldpPortDescRegexp  = regexp.MustCompile(`(?i)^Port Description:\s*(.+)`)
	lldpSysNameRegexp   = regexp.MustCompile(`(?i)^System Name:\s*(\S+)`)
	lldpMgmtIPRegexp    = regexp.MustCompile(`(?i)^\s*IP:\s*(\d+\.\d+\.\d+\.\d+)`)
	lldpCapRegexp       = regexp.MustCompile(`(?i)^Enabled Capabilities:\s*(\S+)`)
)

// fallbackLLDP scrapes "show lldp neighbors detail" blocks separated by
// dashed lines.
func fallbackLLDP(output string) []map[string]string {
	var rows []map[string]string
	for _, block := range splitBlocks(output) {
		row := map[string]string{}
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimRight(line, "\r")
			switch {
			case matchInto(lldpLocalIntfRegexp, line, row, "local_interface"):
			case matchInto(lldpChassisRegexp, line, row, "chassis_id"):
			case matchInto(lldpPortIDRegexp, line, row, "port_id"):
			case matchInto(lldpPortDescRegexp, line, row, "port_description"):
			case matchInto(lldpSysNameRegexp, line, row, "system_name"):
			case matchInto(lldpMgmtIPRegexp, line, row, "mgmt_ip"):
			case matchInto(lldpCapRegexp, line, row, "capabilities"):
			}
		}
		if len(row) > 0 && row["local_interface"] != "" {
			rows = append(rows, row)
		}
	}
	return rows
}

var (
	cdpDeviceIDRegexp = regexp.MustCompile(`(?i)^Device ID:\s*(\S+)`)
	cdpIPRegexp       = regexp.MustCompile(`(?i)^\s*IP(?:v4)? address:\s*(\d+\.\d+\.\d+\.\d+)`)
	cdpPlatformRegexp = regexp.MustCompile(`(?i)^Platform:\s*([^,]+),\s*Capabilities:\s*(.+?)\s*$`)
	cdpIntfRegexp     = regexp.MustCompile(`(?i)^Interface:\s*([^,]+),\s*Port ID \(outgoing port\):\s*(\S+)`)
)

// fallbackCDP scrapes "show cdp neighbors detail" blocks.
func fallbackCDP(output string) []map[string]string {
	var rows []map[string]string
	for _, block := range splitBlocks(output) {
		row := map[string]string{}
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimRight(line, "\r")
			if m := cdpDeviceIDRegexp.FindStringSubmatch(line); m != nil {
				row["device_id"] = m[1]
			} else if m := cdpIPRegexp.FindStringSubmatch(line); m != nil && row["mgmt_ip"] == "" {
				row["mgmt_ip"] = m[1]
			} else if m := cdpPlatformRegexp.FindStringSubmatch(line); m != nil {
				row["platform"] = strings.TrimSpace(m[1])
				row["capabilities"] = strings.TrimSpace(m[2])
			} else if m := cdpIntfRegexp.FindStringSubmatch(line); m != nil {
				row["local_interface"] = strings.TrimSpace(m[1])
				row["port_id"] = m[2]
			}
		}
		if row["device_id"] != "" && row["local_interface"] != "" {
			rows = append(rows, row)
		}
	}
	return rows
}

var blockSepRegexp = regexp.MustCompile(`(?m)^-{4,}\s*$`)

func splitBlocks(output string) []string {
	return blockSepRegexp.Split(output, -1)
}

func matchInto(re *regexp.Regexp, line string, row map[string]string, key string) bool {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	if row[key] == "" {
		row[key] = strings.TrimSpace(m[1])
	}
	return true
}
