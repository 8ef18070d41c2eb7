package spio

import (
	"time"

	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/errs"
)

// streamSendAll is the synchronous wrapper spec.md §5 describes: it
// issues one or more AIOs against stream.Send, looping on short writes,
// until buf is fully written or an error occurs.
func streamSendAll(pool *aio.Pool, stream Stream, buf []byte, timeout time.Duration) error {
	for len(buf) > 0 {
		done := make(chan struct{})
		var a *aio.AIO
		a = aio.New(pool, func(*aio.AIO) { close(done) }, nil)
		a.SetTimeout(timeout)
		a.SetIOV([][]byte{buf})
		if !a.Start(nil, nil) {
			return errs.New(errs.Stopped)
		}
		stream.Send(a)
		<-done
		if err := a.Result(); err != nil {
			return err
		}
		n := a.Count()
		if n <= 0 {
			return errs.New(errs.ConnectionShut)
		}
		buf = buf[n:]
	}
	return nil
}

// streamRecvAll is the read-side counterpart: it loops until exactly
// len(buf) bytes have been read into buf.
func streamRecvAll(pool *aio.Pool, stream Stream, buf []byte, timeout time.Duration) error {
	for len(buf) > 0 {
		done := make(chan struct{})
		var a *aio.AIO
		a = aio.New(pool, func(*aio.AIO) { close(done) }, nil)
		a.SetTimeout(timeout)
		a.SetIOV([][]byte{buf})
		if !a.Start(nil, nil) {
			return errs.New(errs.Stopped)
		}
		stream.Recv(a)
		<-done
		if err := a.Result(); err != nil {
			return err
		}
		n := a.Count()
		if n <= 0 {
			return errs.New(errs.ConnectionShut)
		}
		buf = buf[n:]
	}
	return nil
}
