// Package reconcile pushes collected records into the remote inventory.
// Each entity kind owns a sync method built on one shared core: per-call
// lookup caches, get-or-create for dependent objects, dry-run projection,
// and the batch-with-fallback write discipline.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/nettally/nettally/pkg/netbox"
	"github.com/nettally/nettally/pkg/util"
)

const cacheTTL = 5 * time.Minute

// Options tunes one sync call.
type Options struct {
	DryRun         bool
	CreateMissing  bool
	UpdateExisting bool
	Cleanup        bool

	// Tenant scopes device listing and is required for device cleanup.
	Tenant string
	Site   string
	Role   string

	// ExcludeInterfaces are regexes of canonical names to ignore.
	ExcludeInterfaces []string

	// SkipUnknownNeighbors drops cable candidates whose peer supplied no
	// usable identifier.
	SkipUnknownNeighbors bool

	// TrustRemoteEnabled leaves the remote enabled flag alone instead of
	// overwriting it with the locally inferred value.
	TrustRemoteEnabled bool
}

// Stats is the outcome of one kind's sync.
type Stats struct {
	Created       int      `json:"created"`
	Updated       int      `json:"updated"`
	Deleted       int      `json:"deleted"`
	Skipped       int      `json:"skipped"`
	Failed        int      `json:"failed"`
	AlreadyExists int      `json:"already_exists,omitempty"`
	Details       []string `json:"details,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

func (s *Stats) detail(format string, args ...interface{}) {
	s.Details = append(s.Details, fmt.Sprintf(format, args...))
}

func (s *Stats) fail(err error, format string, args ...interface{}) {
	s.Failed++
	msg := fmt.Sprintf(format, args...)
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", msg, err))
	util.Logger.Warnf("%s: %v", msg, err)
}

// Core holds the state shared by the per-kind sync methods for the duration
// of one sync call. Caches are never reused across calls.
type Core struct {
	client netbox.API
	opts   Options

	devByName *ttlcache.Cache[string, *netbox.Device]
	devByIP   *ttlcache.Cache[string, *netbox.Device]
	devByMAC  *ttlcache.Cache[string, *netbox.Device]
	deps      map[string]*netbox.Ref
	ifaces    map[int][]netbox.Interface
}

func newCore(client netbox.API, opts Options) *Core {
	return &Core{
		client:    client,
		opts:      opts,
		devByName: ttlcache.New[string, *netbox.Device](ttlcache.WithTTL[string, *netbox.Device](cacheTTL)),
		devByIP:   ttlcache.New[string, *netbox.Device](ttlcache.WithTTL[string, *netbox.Device](cacheTTL)),
		devByMAC:  ttlcache.New[string, *netbox.Device](ttlcache.WithTTL[string, *netbox.Device](cacheTTL)),
		deps:      make(map[string]*netbox.Ref),
		ifaces:    make(map[int][]netbox.Interface),
	}
}

// lookupDevice consults the per-call cache before hitting the API. Negative
// results are cached too.
func (c *Core) lookupDevice(ctx context.Context, cache *ttlcache.Cache[string, *netbox.Device],
	key string, fetch func(context.Context, string) (*netbox.Device, error)) (*netbox.Device, error) {
	if item := cache.Get(key); item != nil {
		return item.Value(), nil
	}
	dev, err := fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	cache.Set(key, dev, ttlcache.DefaultTTL)
	return dev, nil
}

func (c *Core) deviceByName(ctx context.Context, name string) (*netbox.Device, error) {
	return c.lookupDevice(ctx, c.devByName, util.StripDomain(name), c.client.GetDeviceByName)
}

func (c *Core) deviceByIP(ctx context.Context, ip string) (*netbox.Device, error) {
	return c.lookupDevice(ctx, c.devByIP, ip, c.client.GetDeviceByIP)
}

func (c *Core) deviceByMAC(ctx context.Context, mac string) (*netbox.Device, error) {
	return c.lookupDevice(ctx, c.devByMAC, mac, c.client.GetDeviceByMAC)
}

// rememberDevice primes the name cache, e.g. after a create.
func (c *Core) rememberDevice(dev *netbox.Device) {
	if dev != nil && dev.Name != "" {
		c.devByName.Set(util.StripDomain(dev.Name), dev, ttlcache.DefaultTTL)
	}
}

// getOrCreate resolves a dependent object by name, memoized per call.
// Dry-run mode never creates; missing objects get a synthetic zero-id ref so
// the projected plan still counts.
func (c *Core) getOrCreate(ctx context.Context, kind netbox.DependencyKind, name string, parentID int) (*netbox.Ref, error) {
	if name == "" {
		return nil, nil
	}
	key := string(kind) + "|" + name
	if ref, ok := c.deps[key]; ok {
		return ref, nil
	}
	if c.opts.DryRun {
		c.dryRun("would resolve %s %q", kind, name)
		ref := &netbox.Ref{Name: name, Slug: util.Slugify(name)}
		c.deps[key] = ref
		return ref, nil
	}
	ref, err := c.client.GetOrCreateDependency(ctx, kind, name, parentID)
	if err != nil {
		return nil, err
	}
	c.deps[key] = ref
	return ref, nil
}

// remoteInterfaces lists a device's interfaces once per call.
func (c *Core) remoteInterfaces(ctx context.Context, deviceID int) ([]netbox.Interface, error) {
	if cached, ok := c.ifaces[deviceID]; ok {
		return cached, nil
	}
	ifaces, err := c.client.ListInterfaces(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	c.ifaces[deviceID] = ifaces
	return ifaces, nil
}

func (c *Core) dryRun(format string, args ...interface{}) {
	util.Logger.Infof("[DRY-RUN] "+format, args...)
}

// applyBatch runs the batch-with-fallback write discipline: one bulk call,
// and on bulk failure a per-item sweep where individual failures are isolated.
// Returns the indices of the items that were applied and the per-item errors.
func (c *Core) applyBatch(ctx context.Context, count int,
	bulk func(context.Context) error, perItem func(context.Context, int) error) ([]int, []error) {
	if count == 0 {
		return nil, nil
	}
	if err := bulk(ctx); err == nil {
		applied := make([]int, count)
		for i := range applied {
			applied[i] = i
		}
		return applied, nil
	} else {
		util.Logger.Warnf("bulk call failed, falling back to per-item: %v", err)
	}

	var applied []int
	var errs []error
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, util.ErrCancelled)
			break
		}
		if err := perItem(ctx, i); err != nil {
			errs = append(errs, err)
			continue
		}
		applied = append(applied, i)
	}
	return applied, errs
}
