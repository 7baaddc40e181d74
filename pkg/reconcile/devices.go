package reconcile

import (
	"context"
	"strings"

	"github.com/nettally/nettally/pkg/diff"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/netbox"
	"github.com/nettally/nettally/pkg/util"
)

// deviceCompareFields are the fields an existing remote device is diffed on.
var deviceCompareFields = []string{"serial", "model"}

func localDeviceRecord(info model.DeviceInfo) diff.MapRecord {
	return diff.MapRecord{
		Key: util.StripDomain(info.Hostname),
		Fields: map[string]string{
			"serial": info.Serial,
			"model":  info.Model,
		},
	}
}

func remoteDeviceRecord(dev netbox.Device) diff.MapRecord {
	model := dev.Model
	if model == "" && dev.DeviceType != nil {
		model = dev.DeviceType.Name
	}
	return diff.MapRecord{
		Key: util.StripDomain(dev.Name),
		Fields: map[string]string{
			"serial": dev.Serial,
			"model":  model,
		},
	}
}

// SyncDevices reconciles collected device facts against the remote device
// table. Cleanup is scoped to the configured tenant and refused without one,
// so unrelated records can never be deleted.
func (c *Core) SyncDevices(ctx context.Context, infos []model.DeviceInfo) (*Stats, error) {
	stats := &Stats{}

	remotes, err := c.client.ListDevices(ctx, c.opts.Tenant)
	if err != nil {
		return stats, err
	}
	remoteByName := make(map[string]*netbox.Device, len(remotes))
	var remoteRecords []diff.Record
	for i := range remotes {
		key := util.StripDomain(remotes[i].Name)
		remoteByName[key] = &remotes[i]
		remoteRecords = append(remoteRecords, remoteDeviceRecord(remotes[i]))
		c.rememberDevice(&remotes[i])
	}

	infoByName := make(map[string]model.DeviceInfo, len(infos))
	var localRecords []diff.Record
	for _, info := range infos {
		key := util.StripDomain(info.Hostname)
		if key == "" {
			stats.Skipped++
			continue
		}
		infoByName[key] = info
		localRecords = append(localRecords, localDeviceRecord(info))
	}

	cleanup := c.opts.Cleanup
	if cleanup && c.opts.Tenant == "" {
		util.Logger.Warn("device cleanup requires a tenant scope, skipping deletes")
		cleanup = false
	}

	plan, err := diff.Compare(localRecords, remoteRecords, diff.Options{
		CreateMissing:  c.opts.CreateMissing,
		UpdateExisting: c.opts.UpdateExisting,
		Cleanup:        cleanup,
		CompareFields:  deviceCompareFields,
	})
	if err != nil {
		return stats, err
	}
	stats.Skipped += len(plan.ToSkip)

	c.createDevices(ctx, plan.ToCreate, infoByName, stats)
	c.updateDevices(ctx, plan.ToUpdate, remoteByName, stats)
	c.deleteDevices(ctx, plan.ToDelete, remoteByName, stats)
	return stats, nil
}

func (c *Core) createDevices(ctx context.Context, items []diff.Item, infos map[string]model.DeviceInfo, stats *Stats) {
	var payloads []netbox.Device
	for _, item := range items {
		info := infos[item.Name]
		payload, err := c.buildDevicePayload(ctx, item.Name, info)
		if err != nil {
			stats.fail(err, "resolve dependencies for device %s", item.Name)
			continue
		}
		payloads = append(payloads, *payload)
	}
	if len(payloads) == 0 {
		return
	}
	if c.opts.DryRun {
		for _, p := range payloads {
			c.dryRun("would create device %s", p.Name)
			stats.Created++
			stats.detail("create device %s", p.Name)
		}
		return
	}

	applied, errs := c.applyBatch(ctx, len(payloads),
		func(ctx context.Context) error {
			created, err := c.client.CreateDevices(ctx, payloads)
			if err == nil {
				for i := range created {
					c.rememberDevice(&created[i])
				}
			}
			return err
		},
		func(ctx context.Context, i int) error {
			created, err := c.client.CreateDevice(ctx, payloads[i])
			if err == nil {
				c.rememberDevice(created)
			}
			return err
		})
	stats.Created += len(applied)
	for _, i := range applied {
		stats.detail("create device %s", payloads[i].Name)
	}
	for _, err := range errs {
		stats.fail(err, "create device")
	}
}

func (c *Core) buildDevicePayload(ctx context.Context, name string, info model.DeviceInfo) (*netbox.Device, error) {
	manufacturer := info.Manufacturer
	if manufacturer == "" {
		manufacturer = "Unknown"
	}
	mfg, err := c.getOrCreate(ctx, netbox.KindManufacturer, manufacturer, 0)
	if err != nil {
		return nil, err
	}
	devModel := info.Model
	if devModel == "" {
		devModel = "Unknown"
	}
	var mfgID int
	if mfg != nil {
		mfgID = mfg.ID
	}
	dtype, err := c.getOrCreate(ctx, netbox.KindDeviceType, devModel, mfgID)
	if err != nil {
		return nil, err
	}
	site, err := c.getOrCreate(ctx, netbox.KindSite, firstNonEmptyStr(c.opts.Site, "Default"), 0)
	if err != nil {
		return nil, err
	}
	role, err := c.getOrCreate(ctx, netbox.KindRole, firstNonEmptyStr(c.opts.Role, "network"), 0)
	if err != nil {
		return nil, err
	}
	var tenant *netbox.Ref
	if c.opts.Tenant != "" {
		tenant, err = c.getOrCreate(ctx, netbox.KindTenant, c.opts.Tenant, 0)
		if err != nil {
			return nil, err
		}
	}

	return &netbox.Device{
		Name:       name,
		Serial:     info.Serial,
		Status:     "active",
		Site:       site,
		Role:       role,
		DeviceType: dtype,
		Tenant:     tenant,
	}, nil
}

func (c *Core) updateDevices(ctx context.Context, items []diff.Item, remotes map[string]*netbox.Device, stats *Stats) {
	var payloads []netbox.Device
	for _, item := range items {
		remote := remotes[item.Name]
		if remote == nil {
			continue
		}
		patch := netbox.Device{ID: remote.ID, Name: remote.Name}
		for _, fc := range item.FieldChanges {
			switch fc.Field {
			case "serial":
				patch.Serial = fc.New
			case "model":
				patch.Model = fc.New
			}
		}
		payloads = append(payloads, patch)
	}
	if len(payloads) == 0 {
		return
	}
	if c.opts.DryRun {
		for _, p := range payloads {
			c.dryRun("would update device %s", p.Name)
			stats.Updated++
			stats.detail("update device %s", p.Name)
		}
		return
	}

	applied, errs := c.applyBatch(ctx, len(payloads),
		func(ctx context.Context) error { return c.client.UpdateDevices(ctx, payloads) },
		func(ctx context.Context, i int) error { return c.client.UpdateDevice(ctx, payloads[i]) })
	stats.Updated += len(applied)
	for _, i := range applied {
		stats.detail("update device %s", payloads[i].Name)
	}
	for _, err := range errs {
		stats.fail(err, "update device")
	}
}

func (c *Core) deleteDevices(ctx context.Context, items []diff.Item, remotes map[string]*netbox.Device, stats *Stats) {
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
			c.dryRun("would delete device %s", name)
			stats.Deleted++
			stats.detail("delete device %s", name)
		}
		return
	}

	applied, errs := c.applyBatch(ctx, len(ids),
		func(ctx context.Context) error { return c.client.DeleteDevices(ctx, ids) },
		func(ctx context.Context, i int) error { return c.client.DeleteDevice(ctx, ids[i]) })
	stats.Deleted += len(applied)
	for _, i := range applied {
		stats.detail("delete device %s", names[i])
	}
	for _, err := range errs {
		stats.fail(err, "delete device")
	}
}

func firstNonEmptyStr(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
