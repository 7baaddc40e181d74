// Package collect implements the per-domain collectors: connect, run the
// platform-mapped commands, parse, normalize, and tag records with the
// owning device. Devices are processed by a bounded worker pool; a failing
// device contributes an empty slice and an error, never an abort.
package collect

import (
	"context"
	"sync"

	"github.com/alitto/pond/v2"

	"github.com/nettally/nettally/pkg/connect"
	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/parse"
	"github.com/nettally/nettally/pkg/platform"
	"github.com/nettally/nettally/pkg/util"
)

// DefaultWorkers bounds the SSH fan-out.
const DefaultWorkers = 5

// DeviceError records a per-device failure surfaced alongside results.
type DeviceError struct {
	Host string `json:"host"`
	Err  error  `json:"-"`
	Msg  string `json:"error"`
}

func newDeviceError(host string, err error) DeviceError {
	return DeviceError{Host: host, Err: err, Msg: err.Error()}
}

// Collector carries the shared machinery for all collection domains.
type Collector struct {
	manager *connect.Manager
	parser  *parse.Parser
	workers int
}

// New creates a collector. workers <= 0 selects DefaultWorkers.
func New(connOpts connect.Options, workers int, templateDir string) *Collector {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Collector{
		manager: connect.NewManager(connOpts),
		parser:  &parse.Parser{TemplateDir: templateDir},
		workers: workers,
	}
}

// deviceFn runs inside one device's session. Commands within it are
// sequential; parallelism exists only across devices.
type deviceFn func(ctx context.Context, dev *model.Device, sess *connect.Session) error

// forEachDevice fans fn out across devices with the worker pool.
// Cancellation is observed between devices: once ctx is done, devices not
// yet started are skipped and recorded as cancelled.
func (c *Collector) forEachDevice(ctx context.Context, devices []*model.Device, creds *model.Credentials, fn deviceFn) []DeviceError {
	pool := pond.NewPool(c.workers)

	var mu sync.Mutex
	var errs []DeviceError

	for _, dev := range devices {
		dev := dev
		pool.Submit(func() {
			if ctx.Err() != nil {
				mu.Lock()
				errs = append(errs, newDeviceError(dev.Host, util.ErrCancelled))
				mu.Unlock()
				return
			}
			err := c.manager.WithSession(ctx, dev, creds, func(sess *connect.Session) error {
				return fn(ctx, dev, sess)
			})
			if err != nil {
				util.WithDevice(dev.Host).Warnf("collection failed: %v", err)
				mu.Lock()
				errs = append(errs, newDeviceError(dev.Host, err))
				mu.Unlock()
			}
		})
	}

	pool.StopAndWait()
	return errs
}

// runCommand resolves the platform command slot, executes it, and parses the
// output. A platform without the command yields no rows.
func (c *Collector) runCommand(ctx context.Context, dev *model.Device, sess *connect.Session, cmd platform.Command) ([]map[string]string, string, error) {
	plat := platform.LookupOrDefault(dev.PlatformTag)
	cmdStr, ok := plat.CommandString(cmd)
	if !ok || cmdStr == "" {
		util.WithDevice(dev.Host).Debugf("platform %s has no %s command", plat.Tag, cmd)
		return nil, "", nil
	}

	raw, err := sess.SendCommand(ctx, cmdStr)
	if err != nil {
		return nil, "", err
	}
	return c.parser.Parse(plat.TemplatePlatform, cmd, raw), raw, nil
}
