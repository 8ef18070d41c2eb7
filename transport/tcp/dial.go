package tcp

import (
	"net"
	"strings"
	"time"

	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/errs"
)

// Dialer dials one of tcp, tcp4, tcp6, ipc (unix), or abstract, per the
// URL schemes of spec.md §6. addr is the scheme-stripped host:port or
// path.
type Dialer struct {
	network string
	addr    string
}

// NewDialer builds a Dialer for scheme (tcp/tcp4/tcp6/ipc/unix/abstract)
// and addr.
func NewDialer(scheme, addr string) (*Dialer, error) {
	network, dialAddr, err := resolveNetworkAddr(scheme, addr)
	if err != nil {
		return nil, err
	}
	return &Dialer{network: network, addr: dialAddr}, nil
}

func resolveNetworkAddr(scheme, addr string) (network, dialAddr string, err error) {
	switch scheme {
	case "tcp", "tcp4", "tcp6":
		return scheme, addr, nil
	case "ipc", "unix":
		return "unix", addr, nil
	case "abstract":
		return "unix", abstractAddr(addr), nil
	default:
		return "", "", errs.Wrap(errs.InvalidAddress, scheme, nil)
	}
}

// abstractAddr converts a bare name into Linux's abstract-namespace unix
// socket address form: a leading NUL byte, conventionally spelled "@name"
// in URL form.
func abstractAddr(name string) string {
	name = strings.TrimPrefix(name, "@")
	return "\x00" + name
}

// Dial implements spio.StreamDialer.
func (d *Dialer) Dial(a *aio.AIO) {
	timeout := a.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	nc, err := net.DialTimeout(d.network, d.addr, timeout)
	if err != nil {
		a.FinishError(errs.Wrap(errs.ConnectionShut, d.addr, err))
		return
	}
	a.SetOutput(0, New(nc))
	a.Finish(nil, 0)
}

func (d *Dialer) Close() error { return nil }
