package tcp

import (
	"errors"
	"net"
	"syscall"

	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/errs"
)

// Listener accepts tcp/tcp4/tcp6/ipc/unix/abstract connections.
type Listener struct {
	network string
	addr    string
	nl      net.Listener
}

// NewListener builds a Listener for scheme and addr; Listen must be
// called before Accept.
func NewListener(scheme, addr string) (*Listener, error) {
	network, listenAddr, err := resolveNetworkAddr(scheme, addr)
	if err != nil {
		return nil, err
	}
	return &Listener{network: network, addr: listenAddr}, nil
}

func (l *Listener) Listen() error {
	nl, err := net.Listen(l.network, l.addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return errs.Wrap(errs.AlreadyInUse, l.addr, err)
		}
		return errs.Wrap(errs.InvalidAddress, l.addr, err)
	}
	l.nl = nl
	return nil
}

// Accept implements spio.StreamListener: one accept per call. Retry
// timing on resource-exhaustion errors (spec.md §4.2) is the endpoint
// layer's responsibility, not the transport's -- Accept just classifies
// the error so the caller can tell the two cases apart.
func (l *Listener) Accept(a *aio.AIO) {
	nc, err := l.nl.Accept()
	if err != nil {
		if isResourceExhausted(err) {
			a.FinishError(errs.Wrap(errs.NoFiles, l.addr, err))
			return
		}
		a.FinishError(errs.Wrap(errs.ConnectionShut, l.addr, err))
		return
	}
	a.SetOutput(0, New(nc))
	a.Finish(nil, 0)
}

func isResourceExhausted(err error) bool {
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) || errors.Is(err, syscall.ENOMEM)
}

func (l *Listener) Close() error {
	if l.nl == nil {
		return nil
	}
	return l.nl.Close()
}
