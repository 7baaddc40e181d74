package reconcile

import (
	"context"

	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/netbox"
	"github.com/nettally/nettally/pkg/normalize"
	"github.com/nettally/nettally/pkg/util"
)

// BindingsFromInterfaces flattens interface records into IP bindings. The
// first address on an interface is the primary.
func BindingsFromInterfaces(recs []model.InterfaceRecord) []model.IPBinding {
	var bindings []model.IPBinding
	for _, rec := range recs {
		for i, addr := range rec.IPAddresses {
			bindings = append(bindings, model.IPBinding{
				Device:    rec.Device,
				Interface: normalize.CanonicalInterface(rec.Name),
				Address:   addr,
				IsPrimary: i == 0,
			})
		}
	}
	return bindings
}

// SyncIPs reconciles address assignments. Creates and deletes are batched;
// a moved address (same CIDR, different interface) is updated per item
// because a mask change may need delete+create on the remote side.
func (c *Core) SyncIPs(ctx context.Context, bindings []model.IPBinding) (*Stats, error) {
	stats := &Stats{}

	grouped := make(map[string][]model.IPBinding)
	for _, b := range bindings {
		grouped[b.Device] = append(grouped[b.Device], b)
	}

	for device, deviceBindings := range grouped {
		if err := ctx.Err(); err != nil {
			return stats, util.ErrCancelled
		}
		if err := c.syncDeviceIPs(ctx, device, deviceBindings, stats); err != nil {
			stats.Failed += len(deviceBindings)
			stats.Errors = append(stats.Errors, device+": "+err.Error())
			util.WithDevice(device).Warnf("ip sync failed: %v", err)
		}
	}
	return stats, nil
}

func (c *Core) syncDeviceIPs(ctx context.Context, device string, bindings []model.IPBinding, stats *Stats) error {
	remote, err := c.deviceByName(ctx, device)
	if err != nil {
		return err
	}
	if remote == nil {
		return util.ErrNotFound
	}

	ifaces, err := c.remoteInterfaces(ctx, remote.ID)
	if err != nil {
		return err
	}
	ifaceID := make(map[string]int, len(ifaces))
	for _, iface := range ifaces {
		ifaceID[normalize.CanonicalInterface(iface.Name)] = iface.ID
	}

	existing, err := c.client.ListIPAddresses(ctx, remote.ID)
	if err != nil {
		return err
	}
	remoteByAddr := make(map[string]*netbox.IPAddress, len(existing))
	for i := range existing {
		remoteByAddr[existing[i].Address] = &existing[i]
	}

	var toCreate []netbox.IPAddress
	localAddrs := make(map[string]bool, len(bindings))
	for _, b := range bindings {
		if localAddrs[b.Address] {
			continue
		}
		localAddrs[b.Address] = true

		id, ok := ifaceID[b.Interface]
		if !ok {
			stats.Skipped++
			util.WithDevice(device).Debugf("no remote interface %s for %s, skipping", b.Interface, b.Address)
			continue
		}
		current, exists := remoteByAddr[b.Address]
		switch {
		case !exists && c.opts.CreateMissing:
			toCreate = append(toCreate, netbox.IPAddress{
				Address: b.Address, InterfaceID: id, DeviceID: remote.ID, IsPrimary: b.IsPrimary,
			})
		case !exists:
			stats.Skipped++
		case current.InterfaceID != id && c.opts.UpdateExisting:
			patch := *current
			patch.InterfaceID = id
			if c.opts.DryRun {
				c.dryRun("would move %s to %s on %s", b.Address, b.Interface, device)
				stats.Updated++
				stats.detail("move ip %s -> %s/%s", b.Address, device, b.Interface)
				continue
			}
			if err := c.client.UpdateIPAddress(ctx, patch); err != nil {
				stats.fail(err, "move ip %s on %s", b.Address, device)
				continue
			}
			stats.Updated++
			stats.detail("move ip %s -> %s/%s", b.Address, device, b.Interface)
		default:
			stats.Skipped++
		}
	}

	if len(toCreate) > 0 {
		if c.opts.DryRun {
			for _, ip := range toCreate {
				c.dryRun("would create ip %s on %s", ip.Address, device)
				stats.Created++
				stats.detail("create ip %s on %s", ip.Address, device)
			}
		} else {
			applied, errs := c.applyBatch(ctx, len(toCreate),
				func(ctx context.Context) error {
					_, err := c.client.CreateIPAddresses(ctx, toCreate)
					return err
				},
				func(ctx context.Context, i int) error {
					_, err := c.client.CreateIPAddress(ctx, toCreate[i])
					return err
				})
			stats.Created += len(applied)
			for _, i := range applied {
				stats.detail("create ip %s on %s", toCreate[i].Address, device)
			}
			for _, err := range errs {
				stats.fail(err, "create ip on %s", device)
			}
		}
	}

	if c.opts.Cleanup {
		var staleIDs []int
		var staleAddrs []string
		for addr, ip := range remoteByAddr {
			if !localAddrs[addr] {
				staleIDs = append(staleIDs, ip.ID)
				staleAddrs = append(staleAddrs, addr)
			}
		}
		if len(staleIDs) > 0 {
			if c.opts.DryRun {
				for _, addr := range staleAddrs {
					c.dryRun("would delete ip %s on %s", addr, device)
					stats.Deleted++
					stats.detail("delete ip %s on %s", addr, device)
				}
			} else {
				applied, errs := c.applyBatch(ctx, len(staleIDs),
					func(ctx context.Context) error { return c.client.DeleteIPAddresses(ctx, staleIDs) },
					func(ctx context.Context, i int) error { return c.client.DeleteIPAddress(ctx, staleIDs[i]) })
				stats.Deleted += len(applied)
				for _, i := range applied {
					stats.detail("delete ip %s on %s", staleAddrs[i], device)
				}
				for _, err := range errs {
					stats.fail(err, "delete ip on %s", device)
				}
			}
		}
	}
	return nil
}
