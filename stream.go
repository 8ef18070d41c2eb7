package spio

import "github.com/opensp/spio/aio"

// Stream is the polymorphic byte-oriented duplex channel contract of
// spec.md §3/§6, implemented by each transport (transport/tcp,
// transport/tls, transport/ws). A Pipe drives its transport exclusively
// through this interface, so SP framing (framing.go) never depends on
// which concrete transport carries the bytes.
type Stream interface {
	// Send writes a.IOV()[i].len bytes total; finishes a with the number
	// of bytes actually written. Short writes are legal; callers loop.
	Send(a *aio.AIO)

	// Recv reads up to the sum of a.IOV()[...].len bytes; finishes a with
	// the number of bytes read, or an errs.ConnectionShut result at EOF.
	Recv(a *aio.AIO)

	// Close begins an orderly shutdown: queued AIOs drain with their
	// natural results, no new ones are accepted.
	Close() error

	// Stop aborts every queued AIO with errs.Closed and blocks until the
	// transport's internal goroutines have exited.
	Stop()

	// Get and Set access transport-specific named options (e.g. TLS
	// peer_cn, WS sub-protocol). An unrecognized name returns
	// errs.NotSupported.
	Get(name string) (any, error)
	Set(name string, val any) error
}

// StreamDialer is a transport-level connector: Dial produces one Stream per
// successful call, delivered as a.Output(0).
type StreamDialer interface {
	Dial(a *aio.AIO)
	Close() error
}

// StreamListener is a transport-level acceptor: Accept produces one Stream per
// successful call, delivered as a.Output(0). Listen binds/starts
// listening and must be called once before the first Accept.
type StreamListener interface {
	Listen() error
	Accept(a *aio.AIO)
	Close() error
}
