package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/nettally/nettally/pkg/netbox"
)

// fakeAPI is an in-memory remote inventory. Writes mutate the maps so a
// subsequent sync sees its own effects, mirroring the real system.
type fakeAPI struct {
	nextID     int
	devices    map[int]*netbox.Device
	interfaces map[int]*netbox.Interface
	ips        map[int]*netbox.IPAddress
	vlans      map[int]*netbox.VLAN
	cables     map[int]*netbox.Cable
	items      map[int]*netbox.InventoryItem
	deps       map[string]*netbox.Ref

	failBulk  bool            // reject bulk calls to exercise the fallback path
	failNames map[string]bool // reject per-item writes for these object names
	calls     []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		nextID:     1,
		devices:    make(map[int]*netbox.Device),
		interfaces: make(map[int]*netbox.Interface),
		ips:        make(map[int]*netbox.IPAddress),
		vlans:      make(map[int]*netbox.VLAN),
		cables:     make(map[int]*netbox.Cable),
		items:      make(map[int]*netbox.InventoryItem),
		deps:       make(map[string]*netbox.Ref),
		failNames:  make(map[string]bool),
	}
}

func (f *fakeAPI) id() int {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) countCalls(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) addDevice(name string, primaryIP string) *netbox.Device {
	dev := &netbox.Device{ID: f.id(), Name: name, PrimaryIP: primaryIP}
	f.devices[dev.ID] = dev
	return dev
}

func (f *fakeAPI) addInterface(deviceID int, name string) *netbox.Interface {
	iface := &netbox.Interface{ID: f.id(), DeviceID: deviceID, Name: name}
	f.interfaces[iface.ID] = iface
	return iface
}

// --- devices ---

func (f *fakeAPI) GetDeviceByName(ctx context.Context, name string) (*netbox.Device, error) {
	f.record("get-device-name")
	for _, dev := range f.devices {
		if strings.EqualFold(dev.Name, name) {
			return dev, nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) GetDeviceByIP(ctx context.Context, ip string) (*netbox.Device, error) {
	f.record("get-device-ip")
	for _, dev := range f.devices {
		if dev.PrimaryIP == ip {
			return dev, nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) GetDeviceByMAC(ctx context.Context, mac string) (*netbox.Device, error) {
	f.record("get-device-mac")
	for _, iface := range f.interfaces {
		if strings.EqualFold(iface.MAC, mac) {
			return f.devices[iface.DeviceID], nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) ListDevices(ctx context.Context, tenant string) ([]netbox.Device, error) {
	f.record("list-devices")
	var out []netbox.Device
	for _, dev := range f.devices {
		out = append(out, *dev)
	}
	return out, nil
}

func (f *fakeAPI) GetOrCreateDependency(ctx context.Context, kind netbox.DependencyKind, name string, parentID int) (*netbox.Ref, error) {
	key := string(kind) + "|" + name
	if ref, ok := f.deps[key]; ok {
		return ref, nil
	}
	ref := &netbox.Ref{ID: f.id(), Name: name}
	f.deps[key] = ref
	return ref, nil
}

func (f *fakeAPI) CreateDevices(ctx context.Context, devs []netbox.Device) ([]netbox.Device, error) {
	f.record("bulk-create-devices")
	if f.failBulk {
		return nil, errors.New("bulk rejected")
	}
	var out []netbox.Device
	for _, dev := range devs {
		created, _ := f.CreateDevice(ctx, dev)
		out = append(out, *created)
	}
	return out, nil
}

func (f *fakeAPI) CreateDevice(ctx context.Context, dev netbox.Device) (*netbox.Device, error) {
	f.record("create-device")
	dev.ID = f.id()
	f.devices[dev.ID] = &dev
	return &dev, nil
}

func (f *fakeAPI) UpdateDevices(ctx context.Context, devs []netbox.Device) error {
	f.record("bulk-update-devices")
	if f.failBulk {
		return errors.New("bulk rejected")
	}
	for _, dev := range devs {
		if err := f.UpdateDevice(ctx, dev); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeAPI) UpdateDevice(ctx context.Context, dev netbox.Device) error {
	f.record("update-device")
	current, ok := f.devices[dev.ID]
	if !ok {
		return errors.New("no such device")
	}
	if dev.Serial != "" {
		current.Serial = dev.Serial
	}
	if dev.Model != "" {
		current.Model = dev.Model
	}
	return nil
}

func (f *fakeAPI) DeleteDevices(ctx context.Context, ids []int) error {
	f.record("bulk-delete-devices")
	if f.failBulk {
		return errors.New("bulk rejected")
	}
	for _, id := range ids {
		delete(f.devices, id)
	}
	return nil
}

func (f *fakeAPI) DeleteDevice(ctx context.Context, id int) error {
	f.record("delete-device")
	delete(f.devices, id)
	return nil
}

// --- interfaces ---

func (f *fakeAPI) ListInterfaces(ctx context.Context, deviceID int) ([]netbox.Interface, error) {
	f.record("list-interfaces")
	var out []netbox.Interface
	for _, iface := range f.interfaces {
		if iface.DeviceID == deviceID {
			out = append(out, *iface)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateInterfaces(ctx context.Context, ifaces []netbox.Interface) ([]netbox.Interface, error) {
	f.record("bulk-create-interfaces")
	if f.failBulk {
		return nil, errors.New("bulk rejected")
	}
	var out []netbox.Interface
	for _, iface := range ifaces {
		created, _ := f.CreateInterface(ctx, iface)
		out = append(out, *created)
	}
	return out, nil
}

func (f *fakeAPI) CreateInterface(ctx context.Context, iface netbox.Interface) (*netbox.Interface, error) {
	f.record("create-interface")
	iface.ID = f.id()
	f.interfaces[iface.ID] = &iface
	return &iface, nil
}

func (f *fakeAPI) UpdateInterfaces(ctx context.Context, ifaces []netbox.Interface) error {
	f.record("bulk-update-interfaces")
	if f.failBulk {
		return errors.New("bulk rejected")
	}
	for _, iface := range ifaces {
		if err := f.UpdateInterface(ctx, iface); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeAPI) UpdateInterface(ctx context.Context, iface netbox.Interface) error {
	f.record("update-interface")
	if f.failNames[iface.Name] {
		return errors.New("item rejected")
	}
	current, ok := f.interfaces[iface.ID]
	if !ok {
		return errors.New("no such interface")
	}
	keep := *current
	*current = iface
	current.DeviceID = keep.DeviceID
	if iface.LagID != 0 {
		current.LagID = iface.LagID
	}
	return nil
}

func (f *fakeAPI) DeleteInterfaces(ctx context.Context, ids []int) error {
	f.record("bulk-delete-interfaces")
	if f.failBulk {
		return errors.New("bulk rejected")
	}
	for _, id := range ids {
		delete(f.interfaces, id)
	}
	return nil
}

func (f *fakeAPI) DeleteInterface(ctx context.Context, id int) error {
	f.record("delete-interface")
	delete(f.interfaces, id)
	return nil
}

func (f *fakeAPI) AssignMAC(ctx context.Context, interfaceID int, mac string) error {
	f.record("assign-mac")
	if iface, ok := f.interfaces[interfaceID]; ok {
		iface.MAC = mac
	}
	return nil
}

// --- ip addresses ---

func (f *fakeAPI) ListIPAddresses(ctx context.Context, deviceID int) ([]netbox.IPAddress, error) {
	f.record("list-ips")
	var out []netbox.IPAddress
	for _, ip := range f.ips {
		if ip.DeviceID == deviceID {
			out = append(out, *ip)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateIPAddresses(ctx context.Context, ips []netbox.IPAddress) ([]netbox.IPAddress, error) {
	f.record("bulk-create-ips")
	if f.failBulk {
		return nil, errors.New("bulk rejected")
	}
	var out []netbox.IPAddress
	for _, ip := range ips {
		created, _ := f.CreateIPAddress(ctx, ip)
		out = append(out, *created)
	}
	return out, nil
}

func (f *fakeAPI) CreateIPAddress(ctx context.Context, ip netbox.IPAddress) (*netbox.IPAddress, error) {
	f.record("create-ip")
	ip.ID = f.id()
	f.ips[ip.ID] = &ip
	return &ip, nil
}

func (f *fakeAPI) UpdateIPAddress(ctx context.Context, ip netbox.IPAddress) error {
	f.record("update-ip")
	current, ok := f.ips[ip.ID]
	if !ok {
		return errors.New("no such ip")
	}
	*current = ip
	return nil
}

func (f *fakeAPI) DeleteIPAddresses(ctx context.Context, ids []int) error {
	f.record("bulk-delete-ips")
	if f.failBulk {
		return errors.New("bulk rejected")
	}
	for _, id := range ids {
		delete(f.ips, id)
	}
	return nil
}

func (f *fakeAPI) DeleteIPAddress(ctx context.Context, id int) error {
	f.record("delete-ip")
	delete(f.ips, id)
	return nil
}

// --- vlans ---

func (f *fakeAPI) ListVLANs(ctx context.Context, siteID int) ([]netbox.VLAN, error) {
	f.record("list-vlans")
	var out []netbox.VLAN
	for _, v := range f.vlans {
		out = append(out, *v)
	}
	return out, nil
}

func (f *fakeAPI) CreateVLAN(ctx context.Context, vlan netbox.VLAN) (*netbox.VLAN, error) {
	f.record("create-vlan")
	vlan.ID = f.id()
	f.vlans[vlan.ID] = &vlan
	return &vlan, nil
}

// --- cables ---

func (f *fakeAPI) ListCables(ctx context.Context, deviceIDs []int) ([]netbox.Cable, error) {
	f.record("list-cables")
	wanted := make(map[int]bool)
	for _, id := range deviceIDs {
		wanted[id] = true
	}
	var out []netbox.Cable
	for _, c := range f.cables {
		if wanted[c.A.DeviceID] || wanted[c.B.DeviceID] {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateCable(ctx context.Context, cable netbox.Cable) (*netbox.Cable, error) {
	f.record("create-cable")
	cable.ID = f.id()
	if a, ok := f.interfaces[cable.A.InterfaceID]; ok {
		cable.A.Interface = a.Name
		a.Cable = &netbox.CableRef{ID: cable.ID}
	}
	if b, ok := f.interfaces[cable.B.InterfaceID]; ok {
		cable.B.Interface = b.Name
		b.Cable = &netbox.CableRef{ID: cable.ID}
	}
	f.cables[cable.ID] = &cable
	return &cable, nil
}

func (f *fakeAPI) DeleteCable(ctx context.Context, id int) error {
	f.record("delete-cable")
	delete(f.cables, id)
	return nil
}

// --- inventory ---

func (f *fakeAPI) ListInventoryItems(ctx context.Context, deviceID int) ([]netbox.InventoryItem, error) {
	f.record("list-inventory")
	var out []netbox.InventoryItem
	for _, item := range f.items {
		if item.DeviceID == deviceID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateInventoryItems(ctx context.Context, items []netbox.InventoryItem) ([]netbox.InventoryItem, error) {
	f.record("bulk-create-inventory")
	if f.failBulk {
		return nil, errors.New("bulk rejected")
	}
	var out []netbox.InventoryItem
	for _, item := range items {
		created, _ := f.CreateInventoryItem(ctx, item)
		out = append(out, *created)
	}
	return out, nil
}

func (f *fakeAPI) CreateInventoryItem(ctx context.Context, item netbox.InventoryItem) (*netbox.InventoryItem, error) {
	f.record("create-inventory")
	item.ID = f.id()
	f.items[item.ID] = &item
	return &item, nil
}

func (f *fakeAPI) UpdateInventoryItems(ctx context.Context, items []netbox.InventoryItem) error {
	f.record("bulk-update-inventory")
	if f.failBulk {
		return errors.New("bulk rejected")
	}
	for _, item := range items {
		if err := f.UpdateInventoryItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeAPI) UpdateInventoryItem(ctx context.Context, item netbox.InventoryItem) error {
	f.record("update-inventory")
	current, ok := f.items[item.ID]
	if !ok {
		return errors.New("no such item")
	}
	*current = item
	return nil
}

func (f *fakeAPI) DeleteInventoryItems(ctx context.Context, ids []int) error {
	f.record("bulk-delete-inventory")
	if f.failBulk {
		return errors.New("bulk rejected")
	}
	for _, id := range ids {
		delete(f.items, id)
	}
	return nil
}

func (f *fakeAPI) DeleteInventoryItem(ctx context.Context, id int) error {
	f.record("delete-inventory")
	delete(f.items, id)
	return nil
}

var _ netbox.API = (*fakeAPI)(nil)
