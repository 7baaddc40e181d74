package collect

import (
	"context"
	"strings"
	"sync"

	"github.com/nettally/nettally/pkg/connect"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/normalize"
	"github.com/nettally/nettally/pkg/platform"
	"github.com/nettally/nettally/pkg/util"
)

// manufacturerByTag maps platform families to DCIM manufacturer names.
var manufacturerByTag = map[string]string{
	"cisco_ios":     "Cisco",
	"cisco_iosxe":   "Cisco",
	"cisco_nxos":    "Cisco",
	"arista_eos":    "Arista Networks",
	"juniper_junos": "Juniper Networks",
	"qtech":         "QTech",
}

// DeviceInfo collects identity and version facts from each device.
func (c *Collector) DeviceInfo(ctx context.Context, devices []*model.Device, creds *model.Credentials) ([]model.DeviceInfo, []DeviceError) {
	var mu sync.Mutex
	var infos []model.DeviceInfo

	errs := c.forEachDevice(ctx, devices, creds, func(ctx context.Context, dev *model.Device, sess *connect.Session) error {
		rows, _, err := c.runCommand(ctx, dev, sess, platform.CmdVersion)
		if err != nil {
			return err
		}

		info := model.DeviceInfo{
			Hostname:     dev.DisplayName(),
			Host:         dev.Host,
			Platform:     dev.PlatformTag,
			Manufacturer: manufacturerByTag[dev.PlatformTag],
		}
		if len(rows) > 0 {
			row := rows[0]
			info.Model = row["model"]
			if info.Model == "" {
				info.Model = row["hardware"]
			}
			info.Serial = row["serial"]
			info.OSVersion = row["version"]
			info.Uptime = row["uptime"]
		}

		mu.Lock()
		infos = append(infos, info)
		mu.Unlock()
		return nil
	})
	return infos, errs
}

// Interfaces collects normalized interface records from each device.
func (c *Collector) Interfaces(ctx context.Context, devices []*model.Device, creds *model.Credentials) ([]model.InterfaceRecord, []DeviceError) {
	var mu sync.Mutex
	var records []model.InterfaceRecord

	errs := c.forEachDevice(ctx, devices, creds, func(ctx context.Context, dev *model.Device, sess *connect.Session) error {
		rows, _, err := c.runCommand(ctx, dev, sess, platform.CmdInterfaces)
		if err != nil {
			return err
		}
		recs := normalize.NormalizeInterfaces(rows, dev)

		// Descriptions come from a second command on platforms where the
		// interface table omits them.
		if descrRows, _, err := c.runCommand(ctx, dev, sess, platform.CmdInterfaceDescr); err == nil && len(descrRows) > 0 {
			mergeDescriptions(recs, descrRows)
		}

		mu.Lock()
		records = append(records, recs...)
		mu.Unlock()
		return nil
	})
	return records, errs
}

func mergeDescriptions(recs []model.InterfaceRecord, rows []map[string]string) {
	descr := make(map[string]string, len(rows))
	for _, row := range rows {
		name := row["interface"]
		if name == "" {
			name = row["port"]
		}
		if name == "" {
			continue
		}
		descr[normalize.CanonicalInterface(name)] = strings.TrimSpace(row["description"])
	}
	for i := range recs {
		if d, ok := descr[recs[i].Name]; ok {
			recs[i].Description = d
			recs[i].HasDescription = true
		}
	}
}

// MACTableOptions narrows the MAC collection.
type MACTableOptions struct {
	Format          normalize.MACFormat
	ExcludePrefixes []string
	ExcludeVLANs    []int
}

// MACTable collects the MAC table joined with a port-status snapshot.
func (c *Collector) MACTable(ctx context.Context, devices []*model.Device, creds *model.Credentials, opts MACTableOptions) ([]model.MACEntry, []DeviceError) {
	var mu sync.Mutex
	var entries []model.MACEntry

	errs := c.forEachDevice(ctx, devices, creds, func(ctx context.Context, dev *model.Device, sess *connect.Session) error {
		statusRows, _, err := c.runCommand(ctx, dev, sess, platform.CmdInterfaceStat)
		if err != nil {
			return err
		}
		macRows, _, err := c.runCommand(ctx, dev, sess, platform.CmdMACTable)
		if err != nil {
			return err
		}

		statuses := normalize.NormalizePortStatuses(statusRows)
		recs := normalize.NormalizeMACTable(macRows, statuses, dev, normalize.MACTableOptions{
			Format:          opts.Format,
			ExcludePrefixes: opts.ExcludePrefixes,
			ExcludeVLANs:    opts.ExcludeVLANs,
		})

		mu.Lock()
		entries = append(entries, recs...)
		mu.Unlock()
		return nil
	})
	return entries, errs
}

// NeighborOptions selects the discovery protocols.
type NeighborOptions struct {
	LLDP bool
	CDP  bool
}

// Neighbors collects LLDP and/or CDP neighbors. When both protocols are
// requested the per-device views are merged with CDP as the base.
func (c *Collector) Neighbors(ctx context.Context, devices []*model.Device, creds *model.Credentials, opts NeighborOptions) ([]model.Neighbor, []DeviceError) {
	if !opts.LLDP && !opts.CDP {
		opts.LLDP, opts.CDP = true, true
	}

	var mu sync.Mutex
	var neighbors []model.Neighbor

	errs := c.forEachDevice(ctx, devices, creds, func(ctx context.Context, dev *model.Device, sess *connect.Session) error {
		var lldp, cdp []model.Neighbor

		if opts.LLDP {
			rows, _, err := c.runCommand(ctx, dev, sess, platform.CmdLLDPNeighbors)
			if err != nil {
				return err
			}
			lldp = normalize.NormalizeNeighbors(rows, model.ProtocolLLDP, dev)
		}
		if opts.CDP {
			rows, _, err := c.runCommand(ctx, dev, sess, platform.CmdCDPNeighbors)
			if err != nil {
				return err
			}
			cdp = normalize.NormalizeNeighbors(rows, model.ProtocolCDP, dev)
		}

		merged := normalize.MergeNeighbors(cdp, lldp)

		mu.Lock()
		neighbors = append(neighbors, merged...)
		mu.Unlock()
		return nil
	})
	return neighbors, errs
}

// Inventory collects hardware components from each device.
func (c *Collector) Inventory(ctx context.Context, devices []*model.Device, creds *model.Credentials) ([]model.InventoryItem, []DeviceError) {
	var mu sync.Mutex
	var items []model.InventoryItem

	errs := c.forEachDevice(ctx, devices, creds, func(ctx context.Context, dev *model.Device, sess *connect.Session) error {
		rows, _, err := c.runCommand(ctx, dev, sess, platform.CmdInventory)
		if err != nil {
			return err
		}

		var recs []model.InventoryItem
		for _, row := range rows {
			name := strings.Trim(firstNonEmpty(row["name"], row["item"]), `"`)
			if name == "" {
				continue
			}
			descr := strings.Trim(firstNonEmpty(row["descr"], row["description"]), `"`)
			recs = append(recs, model.InventoryItem{
				Device:      dev.DisplayName(),
				Host:        dev.Host,
				Type:        classifyComponent(name, descr),
				Name:        name,
				Serial:      firstNonEmpty(row["sn"], row["serial"]),
				PartID:      firstNonEmpty(row["pid"], row["part_id"]),
				Description: descr,
			})
		}

		mu.Lock()
		items = append(items, recs...)
		mu.Unlock()
		return nil
	})
	return items, errs
}

// classifyComponent buckets an inventory row by name and description.
func classifyComponent(name, descr string) model.ComponentType {
	s := strings.ToLower(name + " " + descr)
	switch {
	case strings.Contains(s, "power") || strings.Contains(s, "psu"):
		return model.ComponentPSU
	case strings.Contains(s, "fan"):
		return model.ComponentFan
	case strings.Contains(s, "sfp") || strings.Contains(s, "transceiver") ||
		strings.Contains(s, "gbic") || strings.Contains(s, "qsfp"):
		return model.ComponentSFP
	case strings.Contains(s, "module") || strings.Contains(s, "supervisor") ||
		strings.Contains(s, "linecard") || strings.Contains(s, "slot"):
		return model.ComponentModule
	default:
		return model.ComponentOther
	}
}

// Configs captures each device's running configuration verbatim.
func (c *Collector) Configs(ctx context.Context, devices []*model.Device, creds *model.Credentials) ([]model.ConfigBackup, []DeviceError) {
	var mu sync.Mutex
	var backups []model.ConfigBackup

	errs := c.forEachDevice(ctx, devices, creds, func(ctx context.Context, dev *model.Device, sess *connect.Session) error {
		_, raw, err := c.runCommand(ctx, dev, sess, platform.CmdRunningConfig)
		if err != nil {
			return err
		}
		if strings.TrimSpace(raw) == "" {
			util.WithDevice(dev.Host).Warn("empty running-config capture")
		}

		mu.Lock()
		backups = append(backups, model.ConfigBackup{
			Device: dev.DisplayName(),
			Host:   dev.Host,
			Config: raw,
		})
		mu.Unlock()
		return nil
	})
	return backups, errs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
