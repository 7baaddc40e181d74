package reconcile

import (
	"context"
	"fmt"

	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/netbox"
	"github.com/nettally/nettally/pkg/normalize"
	"github.com/nettally/nettally/pkg/util"
)

// cableKey is the symmetric dedup key: both directions of the same link
// reduce to one key.
func cableKey(devA, ifA, devB, ifB string) string {
	a := devA + ":" + normalize.CanonicalInterface(ifA)
	b := devB + ":" + normalize.CanonicalInterface(ifB)
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// SyncCables reconciles observed neighbor links into remote cables. Links
// are processed one at a time because every endpoint needs validation.
// Cleanup only ever touches cables whose both endpoints belong to devices in
// the current scan.
func (c *Core) SyncCables(ctx context.Context, neighbors []model.Neighbor) (*Stats, error) {
	stats := &Stats{}

	// Scope: the set of local devices that produced neighbor data.
	scope := make(map[string]bool)
	for _, n := range neighbors {
		scope[util.StripDomain(n.LocalDevice)] = true
	}

	observed := make(map[string]bool)
	planned := make(map[string]bool)

	for _, n := range neighbors {
		if err := ctx.Err(); err != nil {
			return stats, util.ErrCancelled
		}
		c.syncOneCable(ctx, n, observed, planned, stats)
	}

	if c.opts.Cleanup {
		if err := c.cleanupCables(ctx, scope, observed, stats); err != nil {
			stats.Errors = append(stats.Errors, "cable cleanup: "+err.Error())
			util.Logger.Warnf("cable cleanup failed: %v", err)
		}
	}
	return stats, nil
}

func (c *Core) syncOneCable(ctx context.Context, n model.Neighbor, observed, planned map[string]bool, stats *Stats) {
	log := util.WithDevice(n.LocalDevice)

	if n.Type == model.NeighborUnknown && c.opts.SkipUnknownNeighbors {
		stats.Skipped++
		return
	}

	localDev, err := c.deviceByName(ctx, n.LocalDevice)
	if err != nil {
		stats.fail(err, "lookup local device %s", n.LocalDevice)
		return
	}
	if localDev == nil {
		stats.fail(util.ErrNotFound, "local device %s", n.LocalDevice)
		return
	}
	localEnd := c.findInterface(ctx, localDev.ID, n.LocalInterface)
	if localEnd == nil {
		stats.fail(util.ErrNotFound, "local interface %s/%s", n.LocalDevice, n.LocalInterface)
		return
	}

	remoteDev, err := c.resolveRemoteDevice(ctx, n)
	if err != nil {
		stats.fail(err, "lookup neighbor of %s/%s", n.LocalDevice, n.LocalInterface)
		return
	}
	if remoteDev == nil {
		stats.Skipped++
		log.Debugf("neighbor %s not in remote inventory, skipping", n.RemoteHostname)
		return
	}
	remoteEnd := c.findInterface(ctx, remoteDev.ID, n.RemotePort)
	if remoteEnd == nil {
		stats.Skipped++
		log.Debugf("neighbor interface %s/%s not in remote inventory, skipping", remoteDev.Name, n.RemotePort)
		return
	}

	key := cableKey(localDev.Name, localEnd.Name, remoteDev.Name, remoteEnd.Name)
	observed[key] = true

	if localEnd.IsLag || remoteEnd.IsLag {
		stats.Skipped++
		return
	}
	if localEnd.Cable != nil || remoteEnd.Cable != nil {
		stats.AlreadyExists++
		stats.Skipped++
		return
	}
	if planned[key] {
		return // other direction of a link already handled
	}
	planned[key] = true

	if c.opts.DryRun {
		c.dryRun("would create cable %s", key)
		stats.Created++
		stats.detail("create cable %s", key)
		return
	}
	cable := netbox.Cable{
		A:      netbox.CableEnd{DeviceID: localDev.ID, InterfaceID: localEnd.ID},
		B:      netbox.CableEnd{DeviceID: remoteDev.ID, InterfaceID: remoteEnd.ID},
		Status: "connected",
	}
	created, err := c.client.CreateCable(ctx, cable)
	if err != nil {
		stats.fail(err, "create cable %s", key)
		return
	}
	// Mark both endpoints cabled so a later neighbor row cannot re-create.
	ref := &netbox.CableRef{ID: created.ID}
	localEnd.Cable = ref
	remoteEnd.Cable = ref
	stats.Created++
	stats.detail("create cable %s", key)
}

// resolveRemoteDevice walks the type-driven lookup chain. A chain that
// matches nothing is not an error; the caller skips the link.
func (c *Core) resolveRemoteDevice(ctx context.Context, n model.Neighbor) (*netbox.Device, error) {
	byName := func() (*netbox.Device, error) {
		if n.RemoteHostname == "" || n.Type != model.NeighborByHostname {
			return nil, nil
		}
		return c.deviceByName(ctx, n.RemoteHostname)
	}
	byIP := func() (*netbox.Device, error) {
		if n.RemoteIP == "" {
			return nil, nil
		}
		return c.deviceByIP(ctx, n.RemoteIP)
	}
	byMAC := func() (*netbox.Device, error) {
		if n.RemoteMAC == "" {
			return nil, nil
		}
		return c.deviceByMAC(ctx, n.RemoteMAC)
	}

	var chain []func() (*netbox.Device, error)
	switch n.Type {
	case model.NeighborByHostname:
		chain = []func() (*netbox.Device, error){byName, byIP, byMAC}
	case model.NeighborByMAC:
		chain = []func() (*netbox.Device, error){byMAC, byIP}
	default: // ip, unknown
		chain = []func() (*netbox.Device, error){byIP, byMAC}
	}
	for _, lookup := range chain {
		dev, err := lookup()
		if err != nil || dev != nil {
			return dev, err
		}
	}
	return nil, nil
}

// findInterface matches by exact or canonical name against the cached
// interface list of a device.
func (c *Core) findInterface(ctx context.Context, deviceID int, name string) *netbox.Interface {
	ifaces, err := c.remoteInterfaces(ctx, deviceID)
	if err != nil {
		util.Logger.Warnf("list interfaces of device %d: %v", deviceID, err)
		return nil
	}
	canon := normalize.CanonicalInterface(name)
	for i := range ifaces {
		if ifaces[i].Name == name || normalize.CanonicalInterface(ifaces[i].Name) == canon {
			return &ifaces[i]
		}
	}
	return nil
}

// cleanupCables deletes remote cables that join two in-scope devices but do
// not correspond to any observed link. A cable touching a device outside the
// scan is left alone.
func (c *Core) cleanupCables(ctx context.Context, scope, observed map[string]bool, stats *Stats) error {
	var scopeIDs []int
	inScopeID := make(map[int]string)
	for name := range scope {
		dev, err := c.deviceByName(ctx, name)
		if err != nil {
			return err
		}
		if dev != nil {
			scopeIDs = append(scopeIDs, dev.ID)
			inScopeID[dev.ID] = dev.Name
		}
	}
	if len(scopeIDs) == 0 {
		return nil
	}

	cables, err := c.client.ListCables(ctx, scopeIDs)
	if err != nil {
		return err
	}
	for _, cable := range cables {
		if err := ctx.Err(); err != nil {
			return util.ErrCancelled
		}
		aName, aOK := inScopeID[cable.A.DeviceID]
		bName, bOK := inScopeID[cable.B.DeviceID]
		if !aOK || !bOK {
			continue // endpoint outside the scan, never delete
		}
		key := cableKey(aName, cable.A.Interface, bName, cable.B.Interface)
		if observed[key] {
			continue
		}
		desc := fmt.Sprintf("%s (id %d)", key, cable.ID)
		if c.opts.DryRun {
			c.dryRun("would delete cable %s", desc)
			stats.Deleted++
			stats.detail("delete cable %s", key)
			continue
		}
		if err := c.client.DeleteCable(ctx, cable.ID); err != nil {
			stats.fail(err, "delete cable %s", desc)
			continue
		}
		stats.Deleted++
		stats.detail("delete cable %s", key)
	}
	return nil
}
