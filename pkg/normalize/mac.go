package normalize

import (
	"regexp"
	"strings"
)

// MACFormat selects a rendering of a canonical MAC.
type MACFormat string

const (
	MACFormatIEEE  MACFormat = "ieee"  // AA:BB:CC:DD:EE:FF
	MACFormatCisco MACFormat = "cisco" // aabb.ccdd.eeff
	MACFormatUnix  MACFormat = "unix"  // aa:bb:cc:dd:ee:ff
)

var hexOnlyRegexp = regexp.MustCompile(`^[0-9A-F]{12}$`)

// CanonicalMAC strips separators and uppercases. The canonical form is 12
// uppercase hex nibbles. Inputs that do not reduce to 12 hex digits are
// returned unchanged with ok=false so downstream treats them as unclassified
// strings.
func CanonicalMAC(s string) (string, bool) {
	cleaned := strings.ToUpper(strings.TrimSpace(s))
	cleaned = strings.NewReplacer(".", "", ":", "", "-", "").Replace(cleaned)
	if !hexOnlyRegexp.MatchString(cleaned) {
		return s, false
	}
	return cleaned, true
}

// IsMACShaped reports whether s reduces to a valid canonical MAC.
func IsMACShaped(s string) bool {
	_, ok := CanonicalMAC(s)
	return ok
}

// RenderMAC formats a MAC in the requested form. Invalid input is returned
// unchanged, matching CanonicalMAC's contract.
func RenderMAC(s string, format MACFormat) string {
	canon, ok := CanonicalMAC(s)
	if !ok {
		return s
	}
	switch format {
	case MACFormatCisco:
		return strings.ToLower(canon[0:4] + "." + canon[4:8] + "." + canon[8:12])
	case MACFormatUnix:
		return strings.ToLower(insertColons(canon))
	default: // ieee
		return insertColons(canon)
	}
}

func insertColons(canon string) string {
	var sb strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(canon[i : i+2])
	}
	return sb.String()
}
