package reconcile

import (
	"context"
	"strings"
	"testing"

	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/netbox"
)

func allOpts() Options {
	return Options{CreateMissing: true, UpdateExisting: true, Cleanup: true, SkipUnknownNeighbors: true, Tenant: "lab"}
}

// ============================================================================
// Device Sync Tests
// ============================================================================

func TestSyncDevicesCreatesAndUpdates(t *testing.T) {
	api := newFakeAPI()
	existing := api.addDevice("sw2", "")
	existing.Serial = "OLD"

	infos := []model.DeviceInfo{
		{Hostname: "sw1.example.com", Serial: "ABC123", Model: "C9300", Manufacturer: "Cisco"},
		{Hostname: "sw2", Serial: "NEW456", Model: "C9300"},
	}

	stats, err := newCore(api, allOpts()).SyncDevices(context.Background(), infos)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Created != 1 || stats.Updated != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	// The create strips the domain from the hostname.
	created, _ := api.GetDeviceByName(context.Background(), "sw1")
	if created == nil {
		t.Fatal("sw1 not created")
	}
	if created.Serial != "ABC123" {
		t.Errorf("serial = %q", created.Serial)
	}
	if existing.Serial != "NEW456" {
		t.Errorf("sw2 serial = %q, want updated", existing.Serial)
	}
}

func TestSyncDevicesCleanupNeedsTenant(t *testing.T) {
	api := newFakeAPI()
	api.addDevice("stale", "")

	opts := allOpts()
	opts.Tenant = ""
	stats, err := newCore(api, opts).SyncDevices(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Deleted != 0 {
		t.Errorf("deleted %d devices without a tenant scope", stats.Deleted)
	}
	if len(api.devices) != 1 {
		t.Error("stale device was removed")
	}
}

func TestSyncDevicesBatchFallback(t *testing.T) {
	api := newFakeAPI()
	api.failBulk = true

	infos := []model.DeviceInfo{
		{Hostname: "sw1", Model: "M", Manufacturer: "Cisco"},
		{Hostname: "sw2", Model: "M", Manufacturer: "Cisco"},
	}
	stats, err := newCore(api, allOpts()).SyncDevices(context.Background(), infos)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Created != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if api.countCalls("bulk-create-devices") != 1 || api.countCalls("create-device") != 2 {
		t.Errorf("calls = %v", api.calls)
	}
}

// ============================================================================
// Interface Sync Tests
// ============================================================================

func ifaceRec(device, name string) model.InterfaceRecord {
	return model.InterfaceRecord{
		Device: device, Name: name, Status: model.InterfaceUp, Enabled: true,
	}
}

func TestSyncInterfacesMissingDeviceFails(t *testing.T) {
	api := newFakeAPI()
	recs := []model.InterfaceRecord{ifaceRec("ghost", "Gi0/1"), ifaceRec("ghost", "Gi0/2")}

	stats, err := newCore(api, allOpts()).SyncInterfaces(context.Background(), recs)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 2 {
		t.Errorf("stats = %+v, want both interfaces failed", stats)
	}
}

func TestSyncInterfacesClearMode(t *testing.T) {
	api := newFakeAPI()
	dev := api.addDevice("sw1", "")
	remote := api.addInterface(dev.ID, "Gi0/1")
	remote.Mode = "tagged-all"
	remote.Enabled = true

	rec := ifaceRec("sw1", "Gi0/1")
	rec.Status = model.InterfaceUp
	rec.HasMode = true
	rec.Mode = model.ModeNone

	stats, err := newCore(api, allOpts()).SyncInterfaces(context.Background(), []model.InterfaceRecord{rec})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updated != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if remote.Mode != "" {
		t.Errorf("mode = %q, want cleared", remote.Mode)
	}
}

func TestSyncInterfacesMACSideChannel(t *testing.T) {
	api := newFakeAPI()
	api.addDevice("sw1", "")

	rec := ifaceRec("sw1", "GigabitEthernet0/1")
	rec.MAC = "AA:BB:CC:DD:EE:FF"

	stats, err := newCore(api, allOpts()).SyncInterfaces(context.Background(), []model.InterfaceRecord{rec})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Created != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if api.countCalls("assign-mac") != 1 {
		t.Errorf("calls = %v, want one MAC assignment", api.calls)
	}
	// Stored under the canonical short name.
	for _, iface := range api.interfaces {
		if iface.Name != "Gi0/1" {
			t.Errorf("created name = %q", iface.Name)
		}
	}
}

func TestSyncInterfacesMACSideChannelOnUpdate(t *testing.T) {
	api := newFakeAPI()
	dev := api.addDevice("sw1", "")
	remote := api.addInterface(dev.ID, "Gi0/1")
	remote.MAC = "00:11:22:33:44:55"

	rec := ifaceRec("sw1", "Gi0/1")
	rec.MAC = "AA:BB:CC:DD:EE:FF"

	stats, err := newCore(api, allOpts()).SyncInterfaces(context.Background(), []model.InterfaceRecord{rec})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updated != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if api.countCalls("assign-mac") != 1 {
		t.Errorf("calls = %v, want one MAC assignment", api.calls)
	}
	if remote.MAC != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("mac = %q, want reassigned", remote.MAC)
	}
}

func TestSyncInterfacesMACUnchangedNotReassigned(t *testing.T) {
	api := newFakeAPI()
	dev := api.addDevice("sw1", "")
	remote := api.addInterface(dev.ID, "Gi0/1")
	remote.MAC = "AA:BB:CC:DD:EE:FF"

	rec := ifaceRec("sw1", "Gi0/1")
	rec.MAC = "aabb.ccdd.eeff" // same address, vendor form

	stats, err := newCore(api, allOpts()).SyncInterfaces(context.Background(), []model.InterfaceRecord{rec})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updated != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if api.countCalls("assign-mac") != 0 {
		t.Errorf("calls = %v, want no MAC assignment", api.calls)
	}
}

// A mid-batch per-item failure must attribute details to the writes that
// actually landed, not to the first N payloads.
func TestSyncInterfacesFallbackDetailAttribution(t *testing.T) {
	api := newFakeAPI()
	dev := api.addDevice("sw1", "")
	api.addInterface(dev.ID, "Gi0/1")
	api.addInterface(dev.ID, "Gi0/2")
	api.failBulk = true
	api.failNames["Gi0/1"] = true

	recs := []model.InterfaceRecord{ifaceRec("sw1", "Gi0/1"), ifaceRec("sw1", "Gi0/2")}
	stats, err := newCore(api, allOpts()).SyncInterfaces(context.Background(), recs)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updated != 1 || stats.Failed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	for _, d := range stats.Details {
		if strings.Contains(d, "Gi0/1") {
			t.Errorf("details = %v, must not credit the failed write", stats.Details)
		}
	}
	found := false
	for _, d := range stats.Details {
		if strings.Contains(d, "update interface sw1/Gi0/2") {
			found = true
		}
	}
	if !found {
		t.Errorf("details = %v, want the surviving write recorded", stats.Details)
	}
}

func TestSyncInterfacesSelfLAGSkipped(t *testing.T) {
	api := newFakeAPI()
	api.addDevice("sw1", "")

	rec := ifaceRec("sw1", "Po10")
	rec.LAGParent = "Po10"

	stats, err := newCore(api, allOpts()).SyncInterfaces(context.Background(), []model.InterfaceRecord{rec})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	for _, iface := range api.interfaces {
		if iface.LagID != 0 {
			t.Error("self-parenting must not assign a LAG")
		}
	}
}

// ============================================================================
// Dry-Run Projection Tests
// ============================================================================

// Dry run then real run yield the same mutation counters, and the dry run
// touches nothing.
func TestDryRunProjection(t *testing.T) {
	build := func() *fakeAPI {
		api := newFakeAPI()
		dev := api.addDevice("sw1", "")
		api.addInterface(dev.ID, "Gi0/9") // stale, cleanup target
		mod := api.addInterface(dev.ID, "Gi0/2")
		mod.Enabled = false
		return api
	}
	recs := []model.InterfaceRecord{
		ifaceRec("sw1", "Gi0/1"),
		ifaceRec("sw1", "Gi0/2"),
	}

	dryAPI := build()
	dryOpts := allOpts()
	dryOpts.DryRun = true
	dryStats, err := newCore(dryAPI, dryOpts).SyncInterfaces(context.Background(), recs)
	if err != nil {
		t.Fatal(err)
	}
	if dryAPI.countCalls("create-interface")+dryAPI.countCalls("bulk-create-interfaces") != 0 {
		t.Errorf("dry run issued writes: %v", dryAPI.calls)
	}
	if len(dryAPI.interfaces) != 2 {
		t.Error("dry run mutated remote state")
	}

	wetAPI := build()
	wetStats, err := newCore(wetAPI, allOpts()).SyncInterfaces(context.Background(), recs)
	if err != nil {
		t.Fatal(err)
	}

	if dryStats.Created != wetStats.Created || dryStats.Updated != wetStats.Updated ||
		dryStats.Deleted != wetStats.Deleted || dryStats.Failed != wetStats.Failed {
		t.Errorf("dry = %+v, wet = %+v", dryStats, wetStats)
	}
	if wetStats.Created != 1 || wetStats.Updated != 1 || wetStats.Deleted != 1 {
		t.Errorf("wet stats = %+v", wetStats)
	}
}

// ============================================================================
// Cable Sync Tests
// ============================================================================

func cableFixture() (*fakeAPI, []model.Neighbor) {
	api := newFakeAPI()
	a := api.addDevice("switchA", "10.0.0.1")
	b := api.addDevice("switchB", "10.0.0.2")
	api.addInterface(a.ID, "Gi0/1")
	api.addInterface(b.ID, "Gi0/2")

	neighbors := []model.Neighbor{
		{LocalDevice: "switchA", LocalInterface: "Gi0/1", RemoteHostname: "switchB", RemotePort: "Gi0/2", Type: model.NeighborByHostname},
		{LocalDevice: "switchB", LocalInterface: "Gi0/2", RemoteHostname: "switchA", RemotePort: "Gi0/1", Type: model.NeighborByHostname},
		{LocalDevice: "switchA", LocalInterface: "Gi0/3", Type: model.NeighborUnknown},
	}
	return api, neighbors
}

// Both directions of one link create exactly one cable; the unknown entry is
// skipped.
func TestSyncCablesDedup(t *testing.T) {
	api, neighbors := cableFixture()

	stats, err := newCore(api, allOpts()).SyncCables(context.Background(), neighbors)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Created != 1 {
		t.Fatalf("stats = %+v, want one create", stats)
	}
	if stats.Skipped == 0 {
		t.Error("unknown neighbor should be skipped")
	}
	if len(api.cables) != 1 {
		t.Fatalf("remote has %d cables", len(api.cables))
	}
}

func TestSyncCablesDryRunDedup(t *testing.T) {
	api, neighbors := cableFixture()
	opts := allOpts()
	opts.DryRun = true

	stats, err := newCore(api, opts).SyncCables(context.Background(), neighbors)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Created != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(api.cables) != 0 {
		t.Error("dry run created a cable")
	}
}

func TestSyncCablesExistingSkipped(t *testing.T) {
	api, neighbors := cableFixture()
	// Pre-cable the link.
	if _, err := newCore(api, allOpts()).SyncCables(context.Background(), neighbors); err != nil {
		t.Fatal(err)
	}

	stats, err := newCore(api, allOpts()).SyncCables(context.Background(), neighbors)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Created != 0 {
		t.Fatalf("second run stats = %+v", stats)
	}
	if stats.AlreadyExists == 0 {
		t.Error("expected already-exists count")
	}
}

// A cable with an endpoint outside the scan is never deleted, regardless of
// cleanup.
func TestSyncCablesCleanupScope(t *testing.T) {
	api := newFakeAPI()
	a := api.addDevice("switchA", "")
	b := api.addDevice("switchB", "")
	outside := api.addDevice("core1", "")
	ifA1 := api.addInterface(a.ID, "Gi0/1")
	ifB1 := api.addInterface(b.ID, "Gi0/2")
	ifA2 := api.addInterface(a.ID, "Gi0/5")
	ifOut := api.addInterface(outside.ID, "Te1/1")

	// Stale in-scope cable and a cable leaving the scan.
	stale, _ := api.CreateCable(context.Background(), netbox.Cable{
		A: netbox.CableEnd{DeviceID: a.ID, InterfaceID: ifA1.ID},
		B: netbox.CableEnd{DeviceID: b.ID, InterfaceID: ifB1.ID},
	})
	leaving, _ := api.CreateCable(context.Background(), netbox.Cable{
		A: netbox.CableEnd{DeviceID: a.ID, InterfaceID: ifA2.ID},
		B: netbox.CableEnd{DeviceID: outside.ID, InterfaceID: ifOut.ID},
	})

	// Neighbors from both in-scope devices, observing no links at all.
	neighbors := []model.Neighbor{
		{LocalDevice: "switchA", LocalInterface: "Gi0/48", Type: model.NeighborUnknown},
		{LocalDevice: "switchB", LocalInterface: "Gi0/48", Type: model.NeighborUnknown},
	}

	stats, err := newCore(api, allOpts()).SyncCables(context.Background(), neighbors)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Deleted != 1 {
		t.Fatalf("stats = %+v, want exactly the stale in-scope cable deleted", stats)
	}
	if _, gone := api.cables[stale.ID]; gone {
		t.Error("stale in-scope cable should be deleted")
	}
	if _, kept := api.cables[leaving.ID]; !kept {
		t.Error("cable leaving the scan must never be deleted")
	}
}

// ============================================================================
// IP and VLAN Sync Tests
// ============================================================================

func TestSyncIPsFromInterfaces(t *testing.T) {
	api := newFakeAPI()
	dev := api.addDevice("sw1", "")
	api.addInterface(dev.ID, "Vlan10")

	rec := ifaceRec("sw1", "Vlan10")
	rec.IPAddresses = []string{"10.0.10.1/24"}

	core := newCore(api, allOpts())
	stats, err := core.SyncIPs(context.Background(), BindingsFromInterfaces([]model.InterfaceRecord{rec}))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Created != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	for _, ip := range api.ips {
		if ip.Address != "10.0.10.1/24" || !ip.IsPrimary {
			t.Errorf("ip = %+v", ip)
		}
	}
}

func TestSVIVLANs(t *testing.T) {
	recs := []model.InterfaceRecord{
		ifaceRec("sw1", "Vlan10"),
		ifaceRec("sw1", "Vlan1"),
		ifaceRec("sw2", "Vlan10"),
		ifaceRec("sw1", "Gi0/1"),
	}
	vids := SVIVLANs(recs)
	if len(vids) != 2 || vids[0] != 1 || vids[1] != 10 {
		t.Errorf("vids = %v", vids)
	}
}

func TestSyncVLANsCreatesMissing(t *testing.T) {
	api := newFakeAPI()
	api.vlans[99] = &netbox.VLAN{ID: 99, VID: 10, Name: "VLAN10"}

	stats, err := newCore(api, allOpts()).SyncVLANs(context.Background(), []model.InterfaceRecord{
		ifaceRec("sw1", "Vlan10"),
		ifaceRec("sw1", "Vlan20"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Created != 1 || stats.AlreadyExists != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

// ============================================================================
// Full Sync Tests
// ============================================================================

func TestSyncAllOrderAndIsolation(t *testing.T) {
	api := newFakeAPI()
	data := Data{
		DeviceInfos: []model.DeviceInfo{{Hostname: "sw1", Model: "C9300", Manufacturer: "Cisco"}},
		Interfaces:  []model.InterfaceRecord{ifaceRec("sw1", "Gi0/1")},
	}

	result, err := New(api, allOpts()).SyncAll(context.Background(), data, AllKinds())
	if err != nil {
		t.Fatal(err)
	}
	for _, kind := range KindOrder {
		if _, ok := result[kind]; !ok {
			t.Errorf("missing stats for kind %s", kind)
		}
	}
	// The interface sync must see the device created moments earlier.
	if result["interfaces"].Failed != 0 {
		t.Errorf("interfaces = %+v", result["interfaces"])
	}
	if result["interfaces"].Created != 1 {
		t.Errorf("interfaces = %+v", result["interfaces"])
	}
	if result.Status() != "success" {
		t.Errorf("status = %q", result.Status())
	}
}

func TestSyncAllCancelled(t *testing.T) {
	api := newFakeAPI()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(api, allOpts()).SyncAll(ctx, Data{}, AllKinds())
	if err == nil {
		t.Error("expected cancellation error")
	}
}
