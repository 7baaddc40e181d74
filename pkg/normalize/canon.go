// Package normalize converts raw parser rows into the canonical records in
// pkg/model: interface-name shortening, MAC canonicalization and rendering,
// MAC-table and neighbor normalization, and the LLDP+CDP merge.
package normalize

import (
	"regexp"
	"strings"
)

// prefixReplacement is one long-form to short-form interface prefix rule.
type prefixReplacement struct {
	long  string
	short string
}

// Ordered longest-prefix-first so FortyGigabitEthernet never matches the
// bare Ethernet rule. Applied at the first match; already-short names fall
// through unchanged, which makes canonicalization idempotent.
var interfacePrefixes = []prefixReplacement{
	{"FortyGigabitEthernet", "Fo"},
	{"TwentyFiveGigE", "Twe"},
	{"TenGigabitEthernet", "Te"},
	{"HundredGigE", "Hu"},
	{"GigabitEthernet", "Gi"},
	{"FastEthernet", "Fa"},
	{"Port-channel", "Po"},
	{"Ethernet", "Eth"},
}

var (
	shortFormRegexp = regexp.MustCompile(`^(Fo|Twe|Te|Hu|Gi|Fa|Po|Eth|Vlan|Lo|Mgmt)\d`)
	junosFormRegexp = regexp.MustCompile(`^(ge|xe|et|ae|em|fxp|irb)-?\d`)
)

// CanonicalInterface shortens a long-form interface name to its canonical
// short form: "GigabitEthernet0/1" -> "Gi0/1". Names already in short form,
// and names with no matching prefix, are returned unchanged.
func CanonicalInterface(name string) string {
	name = strings.TrimSpace(name)
	for _, p := range interfacePrefixes {
		if strings.HasPrefix(name, p.long) {
			return p.short + name[len(p.long):]
		}
	}
	return name
}

// IsInterfaceShaped reports whether s looks like an interface name, long or
// short form, for any supported vendor family.
func IsInterfaceShaped(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, p := range interfacePrefixes {
		if strings.HasPrefix(s, p.long) && len(s) > len(p.long) {
			return true
		}
	}
	return shortFormRegexp.MatchString(s) || junosFormRegexp.MatchString(s)
}
