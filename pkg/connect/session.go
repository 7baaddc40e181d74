package connect

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/nettally/nettally/pkg/platform"
	"github.com/nettally/nettally/pkg/util"
)

// promptRegexp matches a device CLI prompt at the end of output:
// a bare word optionally in config mode, terminated by #, > or $.
var promptRegexp = regexp.MustCompile(`(?m)^[\w.:/@~-]+(?:\([\w-]+\))?[#>$]\s*$`)

// pagingDisableCommands per driver family. Sent once after login so long
// tables arrive in one read.
var pagingDisableCommands = map[string]string{
	"cisco_ios":     "terminal length 0",
	"cisco_iosxe":   "terminal length 0",
	"cisco_nxos":    "terminal length 0",
	"arista_eos":    "terminal length 0",
	"juniper_junos": "set cli screen-length 0",
}

// Session is one live interactive shell to a device. Not safe for
// concurrent use; commands on one device are sequential by design.
type Session struct {
	host     string
	client   *ssh.Client
	session  *ssh.Session
	stdin    io.WriteCloser
	chunks   chan []byte
	readErr  chan error
	timeout  time.Duration
	hostname string
}

// newSession requests a pty+shell, waits for the first prompt, derives the
// hostname from it, and disables paging.
func newSession(ctx context.Context, client *ssh.Client, host string, plat *platform.Platform, timeout time.Duration) (*Session, error) {
	sshSess, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("ssh session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 115200,
		ssh.TTY_OP_OSPEED: 115200,
	}
	if err := sshSess.RequestPty("vt100", 512, 512, modes); err != nil {
		sshSess.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := sshSess.StdinPipe()
	if err != nil {
		sshSess.Close()
		return nil, err
	}
	stdout, err := sshSess.StdoutPipe()
	if err != nil {
		sshSess.Close()
		return nil, err
	}
	if err := sshSess.Shell(); err != nil {
		sshSess.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	s := &Session{
		host:    host,
		client:  client,
		session: sshSess,
		stdin:   stdin,
		chunks:  make(chan []byte, 16),
		readErr: make(chan error, 1),
		timeout: timeout,
	}
	go s.readLoop(stdout)

	// Banner + first prompt.
	banner, err := s.readUntilPrompt(ctx)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("prompt probe: %w", err)
	}
	s.hostname = hostnameFromPrompt(banner)

	if cmd, ok := pagingDisableCommands[plat.DriverTag]; ok {
		if _, err := s.SendCommand(ctx, cmd); err != nil {
			util.WithDevice(host).Debugf("disable paging: %v", err)
		}
	}
	return s, nil
}

// Hostname returns the hostname learned from the prompt.
func (s *Session) Hostname() string {
	return s.hostname
}

// SendCommand writes a command and returns the raw output up to the next
// prompt, with the echoed command and the prompt line stripped. No parsing.
func (s *Session) SendCommand(ctx context.Context, cmd string) (string, error) {
	if _, err := s.stdin.Write([]byte(cmd + "\n")); err != nil {
		return "", &util.CommandError{Host: s.host, Command: cmd, Cause: err}
	}

	out, err := s.readUntilPrompt(ctx)
	if err != nil {
		return "", &util.CommandError{Host: s.host, Command: cmd, Cause: err}
	}

	out = stripEcho(out, cmd)
	out = stripTrailingPrompt(out)
	return out, nil
}

func (s *Session) readLoop(r io.Reader) {
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks <- chunk
		}
		if err != nil {
			s.readErr <- err
			return
		}
	}
}

// readUntilPrompt accumulates output until a prompt appears at the end,
// the per-command timeout expires, or ctx is cancelled.
func (s *Session) readUntilPrompt(ctx context.Context) (string, error) {
	var sb strings.Builder
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()

	for {
		select {
		case chunk := <-s.chunks:
			sb.Write(chunk)
			if endsWithPrompt(sb.String()) {
				return sb.String(), nil
			}
		case err := <-s.readErr:
			if sb.Len() > 0 && endsWithPrompt(sb.String()) {
				return sb.String(), nil
			}
			return sb.String(), fmt.Errorf("stream closed: %w", err)
		case <-deadline.C:
			return sb.String(), util.ErrConnectTimeout
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		}
	}
}

// close releases the shell and the underlying client. Errors are logged,
// never propagated: release must succeed from the caller's perspective.
func (s *Session) close() {
	if s.session != nil {
		if err := s.session.Close(); err != nil && err != io.EOF {
			util.WithDevice(s.host).Debugf("session close: %v", err)
		}
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			util.WithDevice(s.host).Debugf("client close: %v", err)
		}
	}
}

func endsWithPrompt(out string) bool {
	trimmed := strings.TrimRight(out, " \t")
	lines := strings.Split(trimmed, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return false
	}
	return promptRegexp.MatchString(last)
}

// hostnameFromPrompt derives the hostname from the final prompt line by
// stripping trailing prompt characters and whitespace.
func hostnameFromPrompt(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	host := strings.TrimRight(last, "#>$ \t")
	// Drop config-mode suffixes like "(config)".
	if i := strings.IndexByte(host, '('); i > 0 {
		host = host[:i]
	}
	return host
}

func stripEcho(out, cmd string) string {
	lines := strings.Split(out, "\n")
	if len(lines) > 0 && strings.Contains(lines[0], cmd) {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

func stripTrailingPrompt(out string) string {
	lines := strings.Split(out, "\n")
	for len(lines) > 0 {
		last := strings.TrimSpace(lines[len(lines)-1])
		if last == "" || promptRegexp.MatchString(last) {
			lines = lines[:len(lines)-1]
			continue
		}
		break
	}
	return strings.Join(lines, "\n")
}
