// Package tls implements the TLS stream wrapper of spec.md §4.4 over
// crypto/tls: a Dialer/Listener pair that produce a spio.Stream backed
// by a *tls.Conn, grounded on the teacher's own tls.Listen/tls.Dialer
// usage (srv.go, cli.go).
//
// crypto/tls already gives us the record buffering, handshake
// interleaving, and back-pressure spec.md §4.4 describes for a
// hand-rolled engine bridge -- a *tls.Conn behaves exactly like the net.Conn
// it wraps from the caller's point of view, so we reuse transport/tcp's
// Conn adapter instead of re-implementing the ring-buffer bridge.
package tls

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/opensp/spio"
	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/errs"
	"github.com/opensp/spio/transport/tcp"
)

// resolveNetwork maps a tls+tcp[46] URL scheme to the network family
// dialer/listener call net.Dial/net.Listen with, via spio.Underlay --
// the same scheme-resolves-to-network pattern transport/tcp's
// resolveNetworkAddr uses.
func resolveNetwork(scheme string) (string, error) {
	switch scheme {
	case "tls+tcp", "tls+tcp4", "tls+tcp6":
		network, _, _ := spio.Underlay(scheme)
		return network, nil
	default:
		return "", errs.Wrap(errs.InvalidAddress, scheme, nil)
	}
}

// minVersion enforces spec.md §4.4: "Permitted versions are 1.2 and
// 1.3; older protocols are rejected at configuration time."
const minVersion = tls.VersionTLS12

// Config wraps a *tls.Config and becomes busy once bound to a dialer or
// listener; setters after that point return errs.Busy. It carries no
// reference count.
type Config struct {
	inner *tls.Config
	busy  bool
}

// NewConfig validates cfg against the minimum-version floor and wraps
// it. cfg is not mutated; NewConfig clones it.
func NewConfig(cfg *tls.Config) (*Config, error) {
	if cfg.MinVersion != 0 && cfg.MinVersion < minVersion {
		return nil, errs.Wrap(errs.InvalidArgument, "tls MinVersion below 1.2", nil)
	}
	c := cfg.Clone()
	if c.MinVersion < minVersion {
		c.MinVersion = minVersion
	}
	return &Config{inner: c}, nil
}

// markBusy is called once a Config is bound to a Dialer or Listener; any
// further attempt to mutate it must go through a fresh clone instead.
func (c *Config) markBusy() { c.busy = true }

// SetServerName mutates the wrapped config's ServerName, before the
// Config becomes busy. Per spec.md §4.4, PSK identities and ServerName
// may not change afterward.
func (c *Config) SetServerName(name string) error {
	if c.busy {
		return errs.New(errs.Busy)
	}
	c.inner.ServerName = name
	return nil
}

// Dialer dials a TLS connection over one of tcp, tcp4, tcp6.
type Dialer struct {
	network string
	addr    string
	cfg     *Config
}

// NewDialer builds a Dialer for scheme (tls+tcp/tls+tcp4/tls+tcp6) and
// addr using cfg, marking cfg busy.
func NewDialer(scheme, addr string, cfg *Config) (*Dialer, error) {
	network, err := resolveNetwork(scheme)
	if err != nil {
		return nil, err
	}
	cfg.markBusy()
	return &Dialer{network: network, addr: addr, cfg: cfg}, nil
}

func (d *Dialer) Dial(a *aio.AIO) {
	timeout := a.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dialer := &tls.Dialer{Config: d.cfg.inner}
	nc, err := dialer.DialContext(ctx, d.network, d.addr)
	if err != nil {
		a.FinishError(errs.Wrap(errs.ConnectionShut, d.addr, err))
		return
	}
	a.SetOutput(0, tcp.New(nc))
	a.Finish(nil, 0)
}

func (d *Dialer) Close() error { return nil }

// Listener accepts TLS connections over one of tcp, tcp4, tcp6.
type Listener struct {
	network string
	addr    string
	cfg     *Config
	nl      net.Listener
}

// NewListener builds a Listener for scheme (tls+tcp/tls+tcp4/tls+tcp6)
// and addr using cfg, marking cfg busy.
func NewListener(scheme, addr string, cfg *Config) (*Listener, error) {
	network, err := resolveNetwork(scheme)
	if err != nil {
		return nil, err
	}
	cfg.markBusy()
	return &Listener{network: network, addr: addr, cfg: cfg}, nil
}

func (l *Listener) Listen() error {
	nl, err := tls.Listen(l.network, l.addr, l.cfg.inner)
	if err != nil {
		return errs.Wrap(errs.InvalidAddress, l.addr, err)
	}
	l.nl = nl
	return nil
}

func (l *Listener) Accept(a *aio.AIO) {
	nc, err := l.nl.Accept()
	if err != nil {
		a.FinishError(errs.Wrap(errs.ConnectionShut, l.addr, err))
		return
	}
	// Start the server half of the handshake now, so a peer's Dial can
	// complete before this side issues its first Send or Recv.
	if tc, ok := nc.(*tls.Conn); ok {
		go tc.Handshake()
	}
	a.SetOutput(0, tcp.New(nc))
	a.Finish(nil, 0)
}

func (l *Listener) Close() error {
	if l.nl == nil {
		return nil
	}
	return l.nl.Close()
}

// PeerInfo exposes the TLS engine attributes spec.md §6 requires
// (verified, peer_cn, peer_alt_names) for a Stream produced by this
// package, via Stream.Get.
func PeerInfo(s spio.Stream) (verified bool, cn string, altNames []string, err error) {
	v, err := s.Get("tls-connection-state")
	if err != nil {
		return false, "", nil, err
	}
	state := v.(tls.ConnectionState)
	if len(state.PeerCertificates) == 0 {
		return false, "", nil, nil
	}
	leaf := state.PeerCertificates[0]
	return state.VerifiedChains != nil, leaf.Subject.CommonName, leaf.DNSNames, nil
}
