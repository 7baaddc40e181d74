// Package store persists the device catalog as a JSON document with atomic
// rewrite (write-temp then rename).
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/platform"
	"github.com/nettally/nettally/pkg/util"
)

type catalog struct {
	Devices   []model.Device `json:"devices"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DeviceRepo is the file-backed device catalog. Writes are serialized; reads
// return copies.
type DeviceRepo struct {
	mu    sync.Mutex
	path  string
	clock clockwork.Clock
}

// NewDeviceRepo opens a catalog at path. The file is created on first save.
func NewDeviceRepo(path string) *DeviceRepo {
	return &DeviceRepo{path: path, clock: clockwork.NewRealClock()}
}

func (r *DeviceRepo) load() (*catalog, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return &catalog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read device catalog: %w", err)
	}
	var c catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse device catalog %s: %w", r.path, err)
	}
	return &c, nil
}

func (r *DeviceRepo) save(c *catalog) error {
	c.UpdatedAt = r.clock.Now()
	sort.Slice(c.Devices, func(i, j int) bool { return c.Devices[i].Host < c.Devices[j].Host })
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write device catalog: %w", err)
	}
	return os.Rename(tmp, r.path)
}

// List returns all devices, enabled and disabled alike.
func (r *DeviceRepo) List() ([]model.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.load()
	if err != nil {
		return nil, err
	}
	return c.Devices, nil
}

// Enabled returns pointers to fresh copies of the enabled devices, ready to
// hand to a collector (which mutates status fields).
func (r *DeviceRepo) Enabled() ([]*model.Device, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}
	var out []*model.Device
	for i := range all {
		if all[i].Enabled {
			dev := all[i]
			out = append(out, &dev)
		}
	}
	return out, nil
}

// Get returns one device by host.
func (r *DeviceRepo) Get(host string) (model.Device, error) {
	all, err := r.List()
	if err != nil {
		return model.Device{}, err
	}
	for _, dev := range all {
		if dev.Host == host {
			return dev, nil
		}
	}
	return model.Device{}, fmt.Errorf("device %s: %w", host, util.ErrNotFound)
}

// Upsert validates and inserts or replaces a device keyed by host.
func (r *DeviceRepo) Upsert(dev model.Device) error {
	if err := validateDevice(&dev); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range c.Devices {
		if c.Devices[i].Host == dev.Host {
			c.Devices[i] = dev
			replaced = true
			break
		}
	}
	if !replaced {
		c.Devices = append(c.Devices, dev)
	}
	return r.save(c)
}

// Delete removes a device by host.
func (r *DeviceRepo) Delete(host string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.load()
	if err != nil {
		return err
	}
	kept := c.Devices[:0]
	for _, dev := range c.Devices {
		if dev.Host != host {
			kept = append(kept, dev)
		}
	}
	if len(kept) == len(c.Devices) {
		return fmt.Errorf("device %s: %w", host, util.ErrNotFound)
	}
	c.Devices = kept
	return r.save(c)
}

// Replace swaps the whole catalog, validating every entry first.
func (r *DeviceRepo) Replace(devices []model.Device) error {
	for i := range devices {
		if err := validateDevice(&devices[i]); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(&catalog{Devices: devices})
}

func validateDevice(dev *model.Device) error {
	vb := &util.ValidationBuilder{}
	if dev.Host == "" {
		vb.AddErrorf("device host is required")
	}
	if dev.PlatformTag == "" {
		dev.PlatformTag = platform.DefaultTag
	} else if _, err := platform.Lookup(dev.PlatformTag); err != nil {
		vb.AddErrorf("device %s: unknown platform %q", dev.Host, dev.PlatformTag)
	}
	if dev.Port < 0 || dev.Port > 65535 {
		vb.AddErrorf("device %s: port %d out of range", dev.Host, dev.Port)
	}
	return vb.Build()
}
