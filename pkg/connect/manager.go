// Package connect manages SSH sessions to network devices: scoped
// acquisition with guaranteed release, a retry policy where authentication
// failures are terminal, prompt capture for hostname learning, and
// command execution over an interactive shell channel.
package connect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/crypto/ssh"

	"github.com/nettally/nettally/pkg/model"
	"github.com/nettally/nettally/pkg/platform"
	"github.com/nettally/nettally/pkg/util"
)

// Options tunes connection behavior. Zero values get defaults.
type Options struct {
	SocketTimeout    time.Duration // per-command read deadline
	TransportTimeout time.Duration // TCP+SSH handshake deadline
	Retries          int           // extra attempts after the first
	RetryDelay       time.Duration // linear backoff between attempts
}

func (o Options) withDefaults() Options {
	if o.SocketTimeout <= 0 {
		o.SocketTimeout = 30 * time.Second
	}
	if o.TransportTimeout <= 0 {
		o.TransportTimeout = 15 * time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	return o
}

// Manager opens scoped SSH sessions.
type Manager struct {
	opts Options
}

// NewManager creates a connection manager.
func NewManager(opts Options) *Manager {
	return &Manager{opts: opts.withDefaults()}
}

// WithSession opens an authenticated session to dev, passes it to fn, and
// closes it on every exit path including panics. The device's Hostname,
// Status, and LastError fields are updated as a side effect.
func (m *Manager) WithSession(ctx context.Context, dev *model.Device, creds *model.Credentials, fn func(*Session) error) error {
	sess, err := m.open(ctx, dev, creds)
	if err != nil {
		dev.Status = model.DeviceStatusError
		if errors.Is(err, util.ErrConnectTimeout) {
			dev.Status = model.DeviceStatusOffline
		}
		dev.LastError = err.Error()
		return err
	}
	defer sess.close()

	dev.Status = model.DeviceStatusOnline
	dev.LastError = ""
	if sess.hostname != "" {
		dev.Hostname = sess.hostname
	}

	return fn(sess)
}

// open dials with the retry policy: 1+Retries attempts with linear backoff.
// Authentication failure is terminal and never retried.
func (m *Manager) open(ctx context.Context, dev *model.Device, creds *model.Credentials) (*Session, error) {
	plat := platform.LookupOrDefault(dev.PlatformTag)
	attempt := 0

	var sess *Session
	operation := func() error {
		attempt++
		s, err := m.dial(ctx, dev, creds, plat)
		if err != nil {
			kind := classifyDialError(err)
			cerr := util.NewConnectError(dev.Host, attempt, kind, err)
			if errors.Is(kind, util.ErrAuthFailed) {
				return backoff.Permanent(cerr)
			}
			util.WithDevice(dev.Host).Debugf("connect attempt %d failed: %v", attempt, err)
			return cerr
		}
		sess = s
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.opts.RetryDelay), uint64(m.opts.Retries)),
		ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return sess, nil
}

func (m *Manager) dial(ctx context.Context, dev *model.Device, creds *model.Credentials, plat *platform.Platform) (*Session, error) {
	config := &ssh.ClientConfig{
		User:    creds.Username,
		Auth:    []ssh.AuthMethod{ssh.Password(creds.Password)},
		Timeout: m.opts.TransportTimeout,
		// Device fleets rotate host keys on RMA; verification is handled
		// at the network boundary, not per-session.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := fmt.Sprintf("%s:%d", dev.Host, dev.SSHPort())
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, err
	}

	sess, err := newSession(ctx, client, dev.Host, plat, m.opts.SocketTimeout)
	if err != nil {
		client.Close()
		return nil, err
	}
	return sess, nil
}

// classifyDialError maps transport errors onto the error taxonomy.
func classifyDialError(err error) error {
	var netErr net.Error
	switch {
	case strings.Contains(err.Error(), "unable to authenticate"),
		strings.Contains(err.Error(), "permission denied"):
		return util.ErrAuthFailed
	case errors.As(err, &netErr) && netErr.Timeout():
		return util.ErrConnectTimeout
	case strings.Contains(err.Error(), "i/o timeout"):
		return util.ErrConnectTimeout
	default:
		return util.ErrConnectFailed
	}
}
