package reconcile

import (
	"context"
	"strconv"
	"strings"

	"github.com/nettally/nettally/pkg/diff"
	"github.com/nettally/nettally/pkg/fields"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/netbox"
	"github.com/nettally/nettally/pkg/normalize"
	"github.com/nettally/nettally/pkg/util"
)

// localIface adapts a collected interface record to the comparator. Absent
// fields (zero MTU, missing mode key) report present=false so the remote
// value is left alone.
type localIface struct {
	rec model.InterfaceRecord
}

func (l localIface) DiffKey() string { return normalize.CanonicalInterface(l.rec.Name) }

func (l localIface) Field(name string) (string, bool) {
	switch name {
	case "description":
		if !l.rec.HasDescription {
			return "", false
		}
		return l.rec.Description, true
	case "enabled":
		return strconv.FormatBool(l.rec.Enabled), true
	case "mtu":
		if l.rec.MTU == 0 {
			return "", false
		}
		return strconv.Itoa(l.rec.MTU), true
	case "speed":
		if l.rec.Speed == 0 {
			return "", false
		}
		return strconv.Itoa(l.rec.Speed), true
	case "duplex":
		return l.rec.Duplex, l.rec.Duplex != ""
	case "mode":
		if !l.rec.HasMode {
			return "", false
		}
		return string(l.rec.Mode), true
	case "access_vlan":
		if l.rec.AccessVLAN == 0 {
			return "", false
		}
		return strconv.Itoa(l.rec.AccessVLAN), true
	case "allowed_vlans":
		if len(l.rec.AllowedVLANs) == 0 {
			return "", false
		}
		return joinVLANs(l.rec.AllowedVLANs), true
	case "lag_parent":
		return l.rec.LAGParent, l.rec.LAGParent != ""
	}
	return "", false
}

// remoteIface adapts a remote interface; all fields are present because the
// remote value is authoritative for comparison.
type remoteIface struct {
	iface netbox.Interface
}

func (r remoteIface) DiffKey() string { return normalize.CanonicalInterface(r.iface.Name) }

func (r remoteIface) Field(name string) (string, bool) {
	switch name {
	case "description":
		return r.iface.Description, true
	case "enabled":
		return strconv.FormatBool(r.iface.Enabled), true
	case "mtu":
		if r.iface.MTU == 0 {
			return "", true
		}
		return strconv.Itoa(r.iface.MTU), true
	case "speed":
		if r.iface.Speed == 0 {
			return "", true
		}
		return strconv.Itoa(r.iface.Speed), true
	case "duplex":
		return r.iface.Duplex, true
	case "mode":
		return r.iface.Mode, true
	case "access_vlan":
		if r.iface.UntaggedVLAN == 0 {
			return "", true
		}
		return strconv.Itoa(r.iface.UntaggedVLAN), true
	case "allowed_vlans":
		return joinVLANs(r.iface.TaggedVLANs), true
	case "lag_parent":
		return normalize.CanonicalInterface(r.iface.LagName), true
	}
	return "", true
}

func joinVLANs(vlans []int) string {
	parts := make([]string, len(vlans))
	for i, v := range vlans {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// SyncInterfaces reconciles interfaces device by device. A device missing
// remotely fails all of its interfaces; other devices are unaffected.
func (c *Core) SyncInterfaces(ctx context.Context, recs []model.InterfaceRecord) (*Stats, error) {
	stats := &Stats{}
	registry := fields.Default()

	compare := registry.CompareFields("interface")
	if c.opts.TrustRemoteEnabled {
		compare = withoutField(compare, "enabled")
	}
	clearable := make(map[string]bool)
	for _, f := range compare {
		if registry.ClearOnEmpty("interface", f) {
			clearable[f] = true
		}
	}

	for device, deviceRecs := range groupInterfacesByDevice(recs) {
		if err := ctx.Err(); err != nil {
			return stats, util.ErrCancelled
		}
		if err := c.syncDeviceInterfaces(ctx, device, deviceRecs, compare, clearable, stats); err != nil {
			stats.Failed += len(deviceRecs)
			stats.Errors = append(stats.Errors, device+": "+err.Error())
			util.WithDevice(device).Warnf("interface sync failed: %v", err)
		}
	}
	return stats, nil
}

func groupInterfacesByDevice(recs []model.InterfaceRecord) map[string][]model.InterfaceRecord {
	grouped := make(map[string][]model.InterfaceRecord)
	for _, rec := range recs {
		grouped[rec.Device] = append(grouped[rec.Device], rec)
	}
	return grouped
}

func (c *Core) syncDeviceInterfaces(ctx context.Context, device string, recs []model.InterfaceRecord,
	compare []string, clearable map[string]bool, stats *Stats) error {
	remote, err := c.deviceByName(ctx, device)
	if err != nil {
		return err
	}
	if remote == nil {
		return util.ErrNotFound
	}

	remoteIfaces, err := c.remoteInterfaces(ctx, remote.ID)
	if err != nil {
		return err
	}
	remoteByName := make(map[string]*netbox.Interface, len(remoteIfaces))
	var remoteRecords []diff.Record
	for i := range remoteIfaces {
		remoteByName[normalize.CanonicalInterface(remoteIfaces[i].Name)] = &remoteIfaces[i]
		remoteRecords = append(remoteRecords, remoteIface{iface: remoteIfaces[i]})
	}

	recByName := make(map[string]model.InterfaceRecord, len(recs))
	var localRecords []diff.Record
	for _, rec := range recs {
		recByName[normalize.CanonicalInterface(rec.Name)] = rec
		localRecords = append(localRecords, localIface{rec: rec})
	}

	plan, err := diff.Compare(localRecords, remoteRecords, diff.Options{
		ExcludePatterns: c.opts.ExcludeInterfaces,
		CreateMissing:   c.opts.CreateMissing,
		UpdateExisting:  c.opts.UpdateExisting,
		Cleanup:         c.opts.Cleanup,
		CompareFields:   compare,
		ClearableFields: clearable,
	})
	if err != nil {
		return err
	}
	stats.Skipped += len(plan.ToSkip)

	createdByName := c.createInterfaces(ctx, remote, plan.ToCreate, recByName, stats)
	c.updateInterfaces(ctx, remote, plan.ToUpdate, remoteByName, recByName, stats)
	c.deleteInterfaces(ctx, remote, plan.ToDelete, remoteByName, stats)
	c.assignLAGParents(ctx, remote, recs, remoteByName, createdByName, stats)
	return nil
}

func interfacePayload(deviceID int, rec model.InterfaceRecord) netbox.Interface {
	return netbox.Interface{
		DeviceID:     deviceID,
		Name:         normalize.CanonicalInterface(rec.Name),
		Description:  rec.Description,
		Enabled:      rec.Enabled,
		MTU:          rec.MTU,
		Speed:        rec.Speed,
		Duplex:       rec.Duplex,
		Mode:         string(rec.Mode),
		UntaggedVLAN: rec.AccessVLAN,
		TaggedVLANs:  rec.AllowedVLANs,
	}
}

// createInterfaces returns the name→id map of successfully created
// interfaces; the LAG pass needs it.
func (c *Core) createInterfaces(ctx context.Context, dev *netbox.Device, items []diff.Item,
	recs map[string]model.InterfaceRecord, stats *Stats) map[string]int {
	created := make(map[string]int)
	var payloads []netbox.Interface
	var macs []string
	for _, item := range items {
		rec := recs[item.Name]
		payloads = append(payloads, interfacePayload(dev.ID, rec))
		macs = append(macs, rec.MAC)
	}
	if len(payloads) == 0 {
		return created
	}
	if c.opts.DryRun {
		for _, p := range payloads {
			c.dryRun("would create interface %s on %s", p.Name, dev.Name)
			stats.Created++
			stats.detail("create interface %s/%s", dev.Name, p.Name)
		}
		return created
	}

	record := func(iface *netbox.Interface, mac string) {
		created[iface.Name] = iface.ID
		stats.Created++
		stats.detail("create interface %s/%s", dev.Name, iface.Name)
		if mac != "" {
			// MAC assignment is a side channel the bulk payload cannot carry.
			if err := c.client.AssignMAC(ctx, iface.ID, mac); err != nil {
				stats.fail(err, "assign MAC on %s/%s", dev.Name, iface.Name)
			}
		}
	}

	_, errs := c.applyBatch(ctx, len(payloads),
		func(ctx context.Context) error {
			out, err := c.client.CreateInterfaces(ctx, payloads)
			if err != nil {
				return err
			}
			for i := range out {
				record(&out[i], macs[i])
			}
			return nil
		},
		func(ctx context.Context, i int) error {
			out, err := c.client.CreateInterface(ctx, payloads[i])
			if err != nil {
				return err
			}
			record(out, macs[i])
			return nil
		})
	for _, err := range errs {
		stats.fail(err, "create interface on %s", dev.Name)
	}
	return created
}

func (c *Core) updateInterfaces(ctx context.Context, dev *netbox.Device, items []diff.Item,
	remotes map[string]*netbox.Interface, recs map[string]model.InterfaceRecord, stats *Stats) {
	var payloads []netbox.Interface
	var macs []string
	for _, item := range items {
		remote := remotes[item.Name]
		if remote == nil {
			continue
		}
		patch := *remote
		patch.Cable = nil
		for _, fc := range item.FieldChanges {
			applyInterfaceChange(&patch, fc.Field, fc.New)
		}
		payloads = append(payloads, patch)
		macs = append(macs, changedMAC(recs[item.Name].MAC, remote.MAC))
	}
	if len(payloads) == 0 {
		return
	}
	if c.opts.DryRun {
		for _, p := range payloads {
			c.dryRun("would update interface %s on %s", p.Name, dev.Name)
			stats.Updated++
			stats.detail("update interface %s/%s", dev.Name, p.Name)
		}
		return
	}

	applied, errs := c.applyBatch(ctx, len(payloads),
		func(ctx context.Context) error { return c.client.UpdateInterfaces(ctx, payloads) },
		func(ctx context.Context, i int) error { return c.client.UpdateInterface(ctx, payloads[i]) })
	stats.Updated += len(applied)
	for _, i := range applied {
		stats.detail("update interface %s/%s", dev.Name, payloads[i].Name)
		if macs[i] != "" {
			// MAC assignment is a side channel the update payload cannot carry.
			if err := c.client.AssignMAC(ctx, payloads[i].ID, macs[i]); err != nil {
				stats.fail(err, "assign MAC on %s/%s", dev.Name, payloads[i].Name)
			}
		}
	}
	for _, err := range errs {
		stats.fail(err, "update interface on %s", dev.Name)
	}
}

// changedMAC returns the local MAC when it differs from the remote one,
// empty otherwise.
func changedMAC(local, remote string) string {
	if local == "" {
		return ""
	}
	lc, ok := normalize.CanonicalMAC(local)
	if !ok {
		return ""
	}
	if rc, ok := normalize.CanonicalMAC(remote); ok && rc == lc {
		return ""
	}
	return local
}

func applyInterfaceChange(patch *netbox.Interface, field, value string) {
	switch field {
	case "description":
		patch.Description = value
	case "enabled":
		patch.Enabled = value == "true"
	case "mtu":
		patch.MTU, _ = strconv.Atoi(value)
	case "speed":
		patch.Speed, _ = strconv.Atoi(value)
	case "duplex":
		patch.Duplex = value
	case "mode":
		patch.Mode = value
	case "access_vlan":
		patch.UntaggedVLAN, _ = strconv.Atoi(value)
	case "allowed_vlans":
		patch.TaggedVLANs = nil
		for _, part := range util.SplitCommaSeparated(value) {
			if v, err := strconv.Atoi(part); err == nil {
				patch.TaggedVLANs = append(patch.TaggedVLANs, v)
			}
		}
	}
}

func (c *Core) deleteInterfaces(ctx context.Context, dev *netbox.Device, items []diff.Item,
	remotes map[string]*netbox.Interface, stats *Stats) {
	var ids []int
	var names []string
	for _, item := range items {
		if remote := remotes[item.Name]; remote != nil {
			ids = append(ids, remote.ID)
			names = append(names, remote.Name)
		}
	}
	if len(ids) == 0 {
		return
	}
	if c.opts.DryRun {
		for _, name := range names {
			c.dryRun("would delete interface %s on %s", name, dev.Name)
			stats.Deleted++
			stats.detail("delete interface %s/%s", dev.Name, name)
		}
		return
	}

	applied, errs := c.applyBatch(ctx, len(ids),
		func(ctx context.Context) error { return c.client.DeleteInterfaces(ctx, ids) },
		func(ctx context.Context, i int) error { return c.client.DeleteInterface(ctx, ids[i]) })
	stats.Deleted += len(applied)
	for _, i := range applied {
		stats.detail("delete interface %s/%s", dev.Name, names[i])
	}
	for _, err := range errs {
		stats.fail(err, "delete interface on %s", dev.Name)
	}
}

// assignLAGParents runs after creates so that member references resolve.
// Self-parenting is a skip with a warning, not an error.
func (c *Core) assignLAGParents(ctx context.Context, dev *netbox.Device, recs []model.InterfaceRecord,
	remotes map[string]*netbox.Interface, created map[string]int, stats *Stats) {
	resolve := func(name string) int {
		if id, ok := created[name]; ok {
			return id
		}
		if remote := remotes[name]; remote != nil {
			return remote.ID
		}
		return 0
	}

	for _, rec := range recs {
		if rec.LAGParent == "" {
			continue
		}
		name := normalize.CanonicalInterface(rec.Name)
		parent := normalize.CanonicalInterface(rec.LAGParent)
		if parent == name {
			util.WithDevice(dev.Name).Warnf("interface %s is its own LAG parent, skipping", name)
			stats.Skipped++
			continue
		}
		memberID := resolve(name)
		parentID := resolve(parent)
		if memberID == 0 || parentID == 0 {
			continue
		}
		if remote := remotes[name]; remote != nil && remote.LagID == parentID {
			continue // already assigned
		}
		if c.opts.DryRun {
			c.dryRun("would assign %s to LAG %s on %s", name, parent, dev.Name)
			continue
		}
		patch := netbox.Interface{ID: memberID, Name: name, LagID: parentID}
		if err := c.client.UpdateInterface(ctx, patch); err != nil {
			stats.fail(err, "assign LAG %s -> %s on %s", name, parent, dev.Name)
		}
	}
}

func withoutField(fields []string, drop string) []string {
	out := fields[:0:0]
	for _, f := range fields {
		if f != drop {
			out = append(out, f)
		}
	}
	return out
}
