package reconcile

import (
	"context"
	"fmt"

	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/util"
)

// NeighborDescription renders the description pushed for one observed link.
func NeighborDescription(n *model.Neighbor) string {
	return fmt.Sprintf("%s %s", util.StripDomain(n.RemoteHostname), n.RemotePort)
}

// PushDescriptions writes neighbor-derived descriptions onto the local
// devices' remote interfaces. Only interfaces with a resolvable neighbor are
// touched; existing matching descriptions are skipped. Unknown-peer rows are
// skipped so synthetic placeholder names never land in the inventory.
func (s *Syncer) PushDescriptions(ctx context.Context, neighbors []model.Neighbor) (*Stats, error) {
	c := s.core
	stats := &Stats{}

	for i := range neighbors {
		if err := ctx.Err(); err != nil {
			return stats, util.ErrCancelled
		}
		n := &neighbors[i]
		if n.Type != model.NeighborByHostname {
			stats.Skipped++
			continue
		}

		dev, err := c.deviceByName(ctx, n.LocalDevice)
		if err != nil {
			stats.fail(err, "lookup device %s", n.LocalDevice)
			continue
		}
		if dev == nil {
			stats.fail(util.ErrNotFound, "device %s", util.StripDomain(n.LocalDevice))
			continue
		}
		iface := c.findInterface(ctx, dev.ID, n.LocalInterface)
		if iface == nil {
			util.WithDevice(n.LocalDevice).Debugf("interface %s not in remote inventory", n.LocalInterface)
			stats.Skipped++
			continue
		}

		desc := NeighborDescription(n)
		if iface.Description == desc {
			stats.Skipped++
			continue
		}
		if c.opts.DryRun {
			c.dryRun("would set %s/%s description to %q", dev.Name, iface.Name, desc)
			stats.Updated++
			stats.detail("update %s/%s description", dev.Name, iface.Name)
			continue
		}

		// Full-copy patch so enabled and mode keep their remote values.
		patch := *iface
		patch.Cable = nil
		patch.Description = desc
		if err := c.client.UpdateInterface(ctx, patch); err != nil {
			stats.fail(err, "update %s/%s", dev.Name, iface.Name)
			continue
		}
		iface.Description = desc
		stats.Updated++
		stats.detail("update %s/%s description", dev.Name, iface.Name)
	}
	return stats, nil
}
