package reconcile

import (
	"context"

	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/netbox"
	"github.com/nettally/nettally/pkg/util"
)

// Data is the collected input to a full sync.
type Data struct {
	DeviceInfos []model.DeviceInfo
	Interfaces  []model.InterfaceRecord
	Neighbors   []model.Neighbor
	Inventory   []model.InventoryItem
}

// Kinds selects which entity kinds a sync call covers.
type Kinds struct {
	Devices    bool
	Interfaces bool
	IPs        bool
	VLANs      bool
	Cables     bool
	Inventory  bool
}

// AllKinds enables every entity kind.
func AllKinds() Kinds {
	return Kinds{Devices: true, Interfaces: true, IPs: true, VLANs: true, Cables: true, Inventory: true}
}

// KindOrder is the authoritative cross-kind ordering: cables need interfaces,
// interfaces and IPs need devices.
var KindOrder = []string{"devices", "interfaces", "ip_addresses", "vlans", "cables", "inventory"}

// Result maps entity kind to its sync stats. A kind that failed wholesale
// still has an entry, with the error recorded in its stats.
type Result map[string]*Stats

// Total sums the counters across kinds.
func (r Result) Total() Stats {
	var total Stats
	for _, s := range r {
		total.Created += s.Created
		total.Updated += s.Updated
		total.Deleted += s.Deleted
		total.Skipped += s.Skipped
		total.Failed += s.Failed
	}
	return total
}

// Status derives the history status from the counters.
func (r Result) Status() string {
	total := r.Total()
	switch {
	case total.Failed == 0:
		return "success"
	case total.Created+total.Updated+total.Deleted > 0:
		return "partial"
	default:
		return "error"
	}
}

// Syncer is the reconciliation entry point. One Syncer value serves one sync
// call; its caches must not outlive the call.
type Syncer struct {
	core *Core
}

// New builds a Syncer over the remote inventory client.
func New(client netbox.API, opts Options) *Syncer {
	return &Syncer{core: newCore(client, opts)}
}

// Core exposes the per-kind sync methods for callers that drive kinds
// individually (the pipeline executor does).
func (s *Syncer) Core() *Core {
	return s.core
}

// SyncAll runs the selected kinds in dependency order. A kind-level failure
// is recorded and the remaining kinds still run; only cancellation stops the
// sequence.
func (s *Syncer) SyncAll(ctx context.Context, data Data, kinds Kinds) (Result, error) {
	result := make(Result)

	run := func(kind string, enabled bool, fn func(context.Context) (*Stats, error)) error {
		if !enabled {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return util.ErrCancelled
		}
		util.Logger.Infof("syncing %s", kind)
		stats, err := fn(ctx)
		if stats == nil {
			stats = &Stats{}
		}
		result[kind] = stats
		if err != nil {
			if err == util.ErrCancelled || ctx.Err() != nil {
				return util.ErrCancelled
			}
			stats.Errors = append(stats.Errors, err.Error())
			stats.Failed++
			util.Logger.Warnf("%s sync failed: %v", kind, err)
		}
		return nil
	}

	steps := []struct {
		kind    string
		enabled bool
		fn      func(context.Context) (*Stats, error)
	}{
		{"devices", kinds.Devices, func(ctx context.Context) (*Stats, error) {
			return s.core.SyncDevices(ctx, data.DeviceInfos)
		}},
		{"interfaces", kinds.Interfaces, func(ctx context.Context) (*Stats, error) {
			return s.core.SyncInterfaces(ctx, data.Interfaces)
		}},
		{"ip_addresses", kinds.IPs, func(ctx context.Context) (*Stats, error) {
			return s.core.SyncIPs(ctx, BindingsFromInterfaces(data.Interfaces))
		}},
		{"vlans", kinds.VLANs, func(ctx context.Context) (*Stats, error) {
			return s.core.SyncVLANs(ctx, data.Interfaces)
		}},
		{"cables", kinds.Cables, func(ctx context.Context) (*Stats, error) {
			return s.core.SyncCables(ctx, data.Neighbors)
		}},
		{"inventory", kinds.Inventory, func(ctx context.Context) (*Stats, error) {
			return s.core.SyncInventory(ctx, data.Inventory)
		}},
	}
	for _, step := range steps {
		if err := run(step.kind, step.enabled, step.fn); err != nil {
			return result, err
		}
	}
	return result, nil
}
