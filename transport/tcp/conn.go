// Package tcp implements the byte-stream transport contract of spec.md
// §6 over net.Conn: plain TCP, IPC (Unix domain sockets), and in-process
// (net.Pipe) connections all share the same Stream implementation, since
// none of them need anything net.Conn doesn't already give us.
package tcp

import (
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/errs"
)

// Conn adapts a net.Conn to the spio.Stream contract. Exactly one Send
// and one Recv AIO may be outstanding at a time, matching spec.md §4.3's
// "one outstanding send and one outstanding receive on the underlying
// stream at a time".
type Conn struct {
	nc net.Conn

	sendMu sync.Mutex
	recvMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps an already-connected net.Conn.
func New(nc net.Conn) *Conn {
	return &Conn{nc: nc, closed: make(chan struct{})}
}

// Send implements spio.Stream. It performs one underlying Write per call
// and finishes a with the number of bytes written -- short writes are
// legal, per spec.md §6, and the caller (spio.streamSendAll) loops.
//
// Arming the deadline from a.Timeout() before the blocking Write follows
// the teacher's writeFull (common.go): the calling goroutine is the only
// thing driving this AIO, so a expiring on the pool's expiration queue
// would otherwise leave this Write blocked long after the AIO itself has
// already finished with errs.TimedOut.
func (c *Conn) Send(a *aio.AIO) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	iov := a.IOV()
	if len(iov) == 0 || len(iov[0]) == 0 {
		a.Finish(nil, 0)
		return
	}
	if to := a.Timeout(); to > 0 {
		c.nc.SetWriteDeadline(time.Now().Add(to))
	} else {
		c.nc.SetWriteDeadline(time.Time{})
	}
	n, err := c.nc.Write(iov[0])
	if err != nil {
		a.Finish(classifyIOErr(err, "tcp write"), n)
		return
	}
	a.Finish(nil, n)
}

// Recv implements spio.Stream, symmetric to Send.
func (c *Conn) Recv(a *aio.AIO) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	iov := a.IOV()
	if len(iov) == 0 || len(iov[0]) == 0 {
		a.Finish(nil, 0)
		return
	}
	if to := a.Timeout(); to > 0 {
		c.nc.SetReadDeadline(time.Now().Add(to))
	} else {
		c.nc.SetReadDeadline(time.Time{})
	}
	n, err := c.nc.Read(iov[0])
	if err != nil {
		a.Finish(classifyIOErr(err, "tcp read"), n)
		return
	}
	a.Finish(nil, n)
}

// classifyIOErr distinguishes a deadline exceeded on the underlying
// net.Conn (errs.TimedOut) from any other I/O failure (errs.ConnectionShut).
func classifyIOErr(err error, context string) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return errs.Wrap(errs.TimedOut, context, err)
	}
	return errs.Wrap(errs.ConnectionShut, context, err)
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.nc.Close()
}

func (c *Conn) Stop() {
	c.Close()
}

func (c *Conn) Get(name string) (any, error) {
	switch name {
	case "local-addr":
		return c.nc.LocalAddr(), nil
	case "remote-addr":
		return c.nc.RemoteAddr(), nil
	case "tls-connection-state":
		if s, ok := c.nc.(interface{ ConnectionState() tls.ConnectionState }); ok {
			return s.ConnectionState(), nil
		}
		return nil, errs.New(errs.NotSupported)
	default:
		return nil, errs.New(errs.NotSupported)
	}
}

func (c *Conn) Set(name string, val any) error {
	return errs.New(errs.NotSupported)
}
