package reconcile

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/netbox"
	"github.com/nettally/nettally/pkg/util"
)

var sviNameRegexp = regexp.MustCompile(`^Vlan(\d+)$`)

// SVIVLANs extracts the unique VLAN ids implied by SVI interface names.
func SVIVLANs(recs []model.InterfaceRecord) []int {
	seen := make(map[int]bool)
	for _, rec := range recs {
		m := sviNameRegexp.FindStringSubmatch(rec.Name)
		if m == nil {
			continue
		}
		if vid, err := strconv.Atoi(m[1]); err == nil && vid > 0 {
			seen[vid] = true
		}
	}
	vids := make([]int, 0, len(seen))
	for vid := range seen {
		vids = append(vids, vid)
	}
	sort.Ints(vids)
	return vids
}

// SyncVLANs creates any VLAN observed as an SVI that the site does not know
// yet. VLANs are never updated or deleted from scan data.
func (c *Core) SyncVLANs(ctx context.Context, recs []model.InterfaceRecord) (*Stats, error) {
	stats := &Stats{}
	vids := SVIVLANs(recs)
	if len(vids) == 0 {
		return stats, nil
	}

	siteID := 0
	if c.opts.Site != "" {
		site, err := c.getOrCreate(ctx, netbox.KindSite, c.opts.Site, 0)
		if err != nil {
			return stats, err
		}
		if site != nil {
			siteID = site.ID
		}
	}

	existing, err := c.client.ListVLANs(ctx, siteID)
	if err != nil {
		return stats, err
	}
	known := make(map[int]bool, len(existing))
	for _, v := range existing {
		known[v.VID] = true
	}

	for _, vid := range vids {
		if err := ctx.Err(); err != nil {
			return stats, util.ErrCancelled
		}
		if known[vid] {
			stats.AlreadyExists++
			stats.Skipped++
			continue
		}
		name := fmt.Sprintf("VLAN%d", vid)
		if c.opts.DryRun {
			c.dryRun("would create vlan %d", vid)
			stats.Created++
			stats.detail("create vlan %d", vid)
			continue
		}
		if _, err := c.client.CreateVLAN(ctx, netbox.VLAN{VID: vid, Name: name, SiteID: siteID}); err != nil {
			stats.fail(err, "create vlan %d", vid)
			continue
		}
		stats.Created++
		stats.detail("create vlan %d", vid)
	}
	return stats, nil
}
