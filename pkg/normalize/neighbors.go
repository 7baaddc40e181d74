package normalize

import (
	"strings"

	"github.com/nettally/nettally/pkg/model"
)

// neighborRowKeys folds the key variants emitted by LLDP and CDP templates
// onto one schema.
var neighborRowKeys = map[string]string{
	"neighbor":             "remote_hostname",
	"system_name":          "remote_hostname",
	"device_id":            "remote_hostname",
	"neighbor_name":        "remote_hostname",
	"chassis_id":           "chassis_id",
	"neighbor_port_id":     "port_id",
	"port_id":              "port_id",
	"remote_port":          "port_id",
	"neighbor_interface":   "port_id",
	"port_description":     "port_description",
	"mgmt_ip":              "remote_ip",
	"management_ip":        "remote_ip",
	"mgmt_address":         "remote_ip",
	"platform":             "remote_platform",
	"capabilities":         "capabilities",
	"system_capabilities":  "capabilities",
	"enabled_capabilities": "capabilities",
	"local_interface":      "local_interface",
	"local_port":           "local_interface",
}

// NormalizeNeighbors converts raw LLDP or CDP rows into Neighbor records.
// proto is the protocol the rows came from (merging happens separately).
func NormalizeNeighbors(rows []map[string]string, proto model.NeighborProtocol, dev *model.Device) []model.Neighbor {
	var out []model.Neighbor
	for _, raw := range rows {
		row := remapKeys(raw, neighborRowKeys)

		local := CanonicalInterface(row["local_interface"])
		if local == "" {
			continue
		}

		n := model.Neighbor{
			LocalDevice:    dev.DisplayName(),
			LocalHost:      dev.Host,
			LocalInterface: local,
			RemoteHostname: strings.TrimSpace(row["remote_hostname"]),
			RemoteIP:       strings.TrimSpace(row["remote_ip"]),
			RemotePlatform: strings.TrimSpace(row["remote_platform"]),
			Capabilities:   strings.TrimSpace(row["capabilities"]),
			Protocol:       proto,
		}

		// chassis_id is a MAC on most platforms; keep it only when MAC-shaped.
		if canon, ok := CanonicalMAC(row["chassis_id"]); ok {
			n.RemoteMAC = canon
		}

		n.RemotePort = resolveRemotePort(&n, row["port_id"], row["port_description"])
		classifyNeighbor(&n)
		out = append(out, n)
	}
	return out
}

// resolveRemotePort picks the remote port with explicit precedence when the
// template supplies both port_id and port_description:
//  1. interface-shaped port_id wins;
//  2. MAC-shaped port_id moves to RemoteMAC, and an interface-shaped
//     port_description takes its place;
//  3. otherwise an interface-shaped port_description, else the raw port_id.
func resolveRemotePort(n *model.Neighbor, portID, portDescr string) string {
	portID = strings.TrimSpace(portID)
	portDescr = strings.TrimSpace(portDescr)

	if IsInterfaceShaped(portID) {
		return portID
	}
	if canon, ok := CanonicalMAC(portID); ok {
		if n.RemoteMAC == "" {
			n.RemoteMAC = canon
		}
		if IsInterfaceShaped(portDescr) {
			return portDescr
		}
		return portID
	}
	if IsInterfaceShaped(portDescr) {
		return portDescr
	}
	return portID
}

// classifyNeighbor derives Type from which identifier the peer supplied and
// synthesizes a placeholder hostname when the real one is missing.
func classifyNeighbor(n *model.Neighbor) {
	switch {
	case n.RemoteHostname != "" && !isSyntheticHostname(n.RemoteHostname):
		n.Type = model.NeighborByHostname
	case n.RemoteMAC != "":
		n.Type = model.NeighborByMAC
		n.RemoteHostname = "[MAC:" + n.RemoteMAC + "]"
	case n.RemoteIP != "":
		n.Type = model.NeighborByIP
		n.RemoteHostname = "[IP:" + n.RemoteIP + "]"
	default:
		n.Type = model.NeighborUnknown
		n.RemoteHostname = "[unknown]"
	}
}

func isSyntheticHostname(h string) bool {
	return strings.HasPrefix(h, "[MAC:") || strings.HasPrefix(h, "[IP:") || h == "[unknown]"
}

// MergeNeighbors combines CDP and LLDP views of the same links. CDP is the
// base: its identifiers are stronger on Cisco gear. LLDP contributes
// RemoteMAC and Capabilities where CDP omits them; LLDP-only entries
// (non-Cisco peers) are appended. Merged entries carry Protocol BOTH.
// Matching is on the canonical local interface.
func MergeNeighbors(cdp, lldp []model.Neighbor) []model.Neighbor {
	if len(cdp) == 0 {
		return lldp
	}
	if len(lldp) == 0 {
		return cdp
	}

	lldpByIntf := make(map[string][]model.Neighbor)
	for _, n := range lldp {
		key := n.LocalHost + "|" + n.LocalInterface
		lldpByIntf[key] = append(lldpByIntf[key], n)
	}

	merged := make([]model.Neighbor, 0, len(cdp))
	consumed := make(map[string]bool)

	for _, base := range cdp {
		key := base.LocalHost + "|" + base.LocalInterface
		if peers, ok := lldpByIntf[key]; ok {
			consumed[key] = true
			peer := peers[0]
			if base.RemoteMAC == "" {
				base.RemoteMAC = peer.RemoteMAC
			}
			if base.Capabilities == "" {
				base.Capabilities = peer.Capabilities
			}
			base.Protocol = model.ProtocolBoth
		}
		merged = append(merged, base)
	}

	for _, n := range lldp {
		if !consumed[n.LocalHost+"|"+n.LocalInterface] {
			merged = append(merged, n)
		}
	}
	return merged
}
