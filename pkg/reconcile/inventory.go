package reconcile

import (
	"context"

	"github.com/nettally/nettally/pkg/diff"
	"github.com/nettally/nettally/pkg/fields"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/netbox"
	"github.com/nettally/nettally/pkg/util"
)

func localInventoryRecord(item model.InventoryItem) diff.MapRecord {
	return diff.MapRecord{
		Key: item.Name,
		Fields: map[string]string{
			"serial":      item.Serial,
			"part_id":     item.PartID,
			"description": item.Description,
		},
	}
}

func remoteInventoryRecord(item netbox.InventoryItem) diff.MapRecord {
	return diff.MapRecord{
		Key: item.Name,
		Fields: map[string]string{
			"serial":      item.Serial,
			"part_id":     item.PartID,
			"description": item.Description,
		},
	}
}

// SyncInventory reconciles hardware components per device with full batch
// create/update/delete.
func (c *Core) SyncInventory(ctx context.Context, items []model.InventoryItem) (*Stats, error) {
	stats := &Stats{}
	registry := fields.Default()
	compare := registry.CompareFields("inventory")
	clearable := map[string]bool{}
	for _, f := range compare {
		if registry.ClearOnEmpty("inventory", f) {
			clearable[f] = true
		}
	}

	grouped := make(map[string][]model.InventoryItem)
	for _, item := range items {
		grouped[item.Device] = append(grouped[item.Device], item)
	}

	for device, deviceItems := range grouped {
		if err := ctx.Err(); err != nil {
			return stats, util.ErrCancelled
		}
		if err := c.syncDeviceInventory(ctx, device, deviceItems, compare, clearable, stats); err != nil {
			stats.Failed += len(deviceItems)
			stats.Errors = append(stats.Errors, device+": "+err.Error())
			util.WithDevice(device).Warnf("inventory sync failed: %v", err)
		}
	}
	return stats, nil
}

func (c *Core) syncDeviceInventory(ctx context.Context, device string, items []model.InventoryItem,
	compare []string, clearable map[string]bool, stats *Stats) error {
	remote, err := c.deviceByName(ctx, device)
	if err != nil {
		return err
	}
	if remote == nil {
		return util.ErrNotFound
	}

	existing, err := c.client.ListInventoryItems(ctx, remote.ID)
	if err != nil {
		return err
	}
	remoteByName := make(map[string]*netbox.InventoryItem, len(existing))
	var remoteRecords []diff.Record
	for i := range existing {
		remoteByName[existing[i].Name] = &existing[i]
		remoteRecords = append(remoteRecords, remoteInventoryRecord(existing[i]))
	}

	itemByName := make(map[string]model.InventoryItem, len(items))
	var localRecords []diff.Record
	for _, item := range items {
		itemByName[item.Name] = item
		localRecords = append(localRecords, localInventoryRecord(item))
	}

	plan, err := diff.Compare(localRecords, remoteRecords, diff.Options{
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

	// Creates.
	var creates []netbox.InventoryItem
	for _, item := range plan.ToCreate {
		local := itemByName[item.Name]
		creates = append(creates, netbox.InventoryItem{
			DeviceID:    remote.ID,
			Name:        local.Name,
			Serial:      local.Serial,
			PartID:      local.PartID,
			Description: local.Description,
		})
	}
	if len(creates) > 0 {
		if c.opts.DryRun {
			for _, it := range creates {
				c.dryRun("would create inventory item %s on %s", it.Name, device)
				stats.Created++
				stats.detail("create inventory %s/%s", device, it.Name)
			}
		} else {
			applied, errs := c.applyBatch(ctx, len(creates),
				func(ctx context.Context) error {
					_, err := c.client.CreateInventoryItems(ctx, creates)
					return err
				},
				func(ctx context.Context, i int) error {
					_, err := c.client.CreateInventoryItem(ctx, creates[i])
					return err
				})
			stats.Created += len(applied)
			for _, i := range applied {
				stats.detail("create inventory %s/%s", device, creates[i].Name)
			}
			for _, err := range errs {
				stats.fail(err, "create inventory on %s", device)
			}
		}
	}

	// Updates.
	var updates []netbox.InventoryItem
	for _, item := range plan.ToUpdate {
		current := remoteByName[item.Name]
		if current == nil {
			continue
		}
		patch := *current
		for _, fc := range item.FieldChanges {
			switch fc.Field {
			case "serial":
				patch.Serial = fc.New
			case "part_id":
				patch.PartID = fc.New
			case "description":
				patch.Description = fc.New
			}
		}
		updates = append(updates, patch)
	}
	if len(updates) > 0 {
		if c.opts.DryRun {
			for _, it := range updates {
				c.dryRun("would update inventory item %s on %s", it.Name, device)
				stats.Updated++
				stats.detail("update inventory %s/%s", device, it.Name)
			}
		} else {
			applied, errs := c.applyBatch(ctx, len(updates),
				func(ctx context.Context) error { return c.client.UpdateInventoryItems(ctx, updates) },
				func(ctx context.Context, i int) error { return c.client.UpdateInventoryItem(ctx, updates[i]) })
			stats.Updated += len(applied)
			for _, i := range applied {
				stats.detail("update inventory %s/%s", device, updates[i].Name)
			}
			for _, err := range errs {
				stats.fail(err, "update inventory on %s", device)
			}
		}
	}

	// Deletes.
	var staleIDs []int
	var staleNames []string
	for _, item := range plan.ToDelete {
		if current := remoteByName[item.Name]; current != nil {
			staleIDs = append(staleIDs, current.ID)
			staleNames = append(staleNames, current.Name)
		}
	}
	if len(staleIDs) > 0 {
		if c.opts.DryRun {
			for _, name := range staleNames {
				c.dryRun("would delete inventory item %s on %s", name, device)
				stats.Deleted++
				stats.detail("delete inventory %s/%s", device, name)
			}
		} else {
			applied, errs := c.applyBatch(ctx, len(staleIDs),
				func(ctx context.Context) error { return c.client.DeleteInventoryItems(ctx, staleIDs) },
				func(ctx context.Context, i int) error { return c.client.DeleteInventoryItem(ctx, staleIDs[i]) })
			stats.Deleted += len(applied)
			for _, i := range applied {
				stats.detail("delete inventory %s/%s", device, staleNames[i])
			}
			for _, err := range errs {
				stats.fail(err, "delete inventory on %s", device)
			}
		}
	}
	return nil
}
