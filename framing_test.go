package spio

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/errs"
)

// testConn is a minimal Stream adapter over net.Conn, equivalent to
// transport/tcp.Conn, used here instead of importing transport/tcp:
// that package imports spio to register itself (transport/tcp's
// register.go), so importing it back from an internal (package spio)
// test file would create an import cycle.
type testConn struct {
	nc net.Conn

	sendMu sync.Mutex
	recvMu sync.Mutex
}

func newTestConn(nc net.Conn) *testConn { return &testConn{nc: nc} }

func (c *testConn) Send(a *aio.AIO) {
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
		a.Finish(testClassifyIOErr(err, "tcp write"), n)
		return
	}
	a.Finish(nil, n)
}

func (c *testConn) Recv(a *aio.AIO) {
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
		a.Finish(testClassifyIOErr(err, "tcp read"), n)
		return
	}
	a.Finish(nil, n)
}

func testClassifyIOErr(err error, context string) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return errs.Wrap(errs.TimedOut, context, err)
	}
	return errs.Wrap(errs.ConnectionShut, context, err)
}

func (c *testConn) Close() error                   { return c.nc.Close() }
func (c *testConn) Stop()                          { c.nc.Close() }
func (c *testConn) Get(name string) (any, error)   { return nil, errs.New(errs.NotSupported) }
func (c *testConn) Set(name string, val any) error { return errs.New(errs.NotSupported) }

func TestNegotiateMatchingProtocols(t *testing.T) {
	pool := aio.NewPool(2)
	defer pool.Close()

	a, b := net.Pipe()
	sa := newTestConn(a)
	sb := newTestConn(b)
	defer sa.Close()
	defer sb.Close()

	const reqID, repID = 0x0030, 0x0031

	type result struct {
		peer uint16
		err  error
	}
	ch := make(chan result, 2)
	go func() {
		p, err := negotiate(pool, sa, reqID)
		ch <- result{p, err}
	}()
	go func() {
		p, err := negotiate(pool, sb, repID)
		ch <- result{p, err}
	}()

	r1 := <-ch
	r2 := <-ch
	if r1.err != nil || r2.err != nil {
		t.Fatalf("negotiate errors: %v, %v", r1.err, r2.err)
	}
	got := map[uint16]bool{r1.peer: true, r2.peer: true}
	if !got[reqID] || !got[repID] {
		t.Fatalf("did not see both peer ids exchanged: %v", got)
	}
}

func TestSendRecvMessageRoundTrip(t *testing.T) {
	pool := aio.NewPool(2)
	defer pool.Close()

	a, b := net.Pipe()
	sa := newTestConn(a)
	sb := newTestConn(b)
	defer sa.Close()
	defer sb.Close()

	msg := NewMessage(0)
	msg.SetBody([]byte{0x41})

	errCh := make(chan error, 1)
	go func() { errCh <- sendMessage(pool, sa, msg, time.Second) }()

	got, err := recvMessage(pool, sb, 0, time.Second)
	if err != nil {
		t.Fatalf("recvMessage: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("sendMessage: %v", err)
	}
	if string(got.Body()) != "\x41" {
		t.Fatalf("got body %v, want [0x41]", got.Body())
	}
}

func TestRecvMessageTooBig(t *testing.T) {
	pool := aio.NewPool(2)
	defer pool.Close()

	a, b := net.Pipe()
	sa := newTestConn(a)
	sb := newTestConn(b)
	defer sa.Close()
	defer sb.Close()

	msg := NewMessage(0)
	msg.SetBody(make([]byte, 100))

	go sendMessage(pool, sa, msg, time.Second)

	_, err := recvMessage(pool, sb, 10, time.Second)
	if !errs.Is(err, errs.MessageTooBig) {
		t.Fatalf("err = %v, want errs.MessageTooBig", err)
	}
}
