package spio

import (
	"time"

	"github.com/glycerine/idem"

	"github.com/opensp/spio/errs"
)

// acceptRetryDelay is how long the accept loop sleeps after a resource
// exhaustion error before retrying, per spec.md §4.2.
const acceptRetryDelay = 50 * time.Millisecond

// Listener is the accepting endpoint of spec.md §3/§4.2.
type Listener struct {
	sock    *Socket
	scheme  string
	addr    string
	factory ListenerFactory
	stream  StreamListener

	halt *idem.Halter
}

func newListener(sock *Socket, scheme, addr string, factory ListenerFactory) (*Listener, error) {
	stream, err := factory(addr)
	if err != nil {
		return nil, err
	}
	if err := stream.Listen(); err != nil {
		return nil, err
	}
	return &Listener{
		sock:    sock,
		scheme:  scheme,
		addr:    addr,
		factory: factory,
		stream:  stream,
		halt:    idem.NewHalterNamed("listener-" + addr),
	}, nil
}

func (l *Listener) id() string { return l.scheme + "://" + l.addr }

func (l *Listener) start() {
	go l.acceptLoop()
}

// acceptLoop accepts indefinitely, per spec.md §4.2: "a listener accepts
// indefinitely". Resource-exhaustion errors (errs.NoFiles) get a brief
// sleep before retrying; any other error restarts accept immediately,
// since the listener socket itself is otherwise healthy.
func (l *Listener) acceptLoop() {
	for {
		if l.halt.ReqStop.IsClosed() {
			return
		}
		done := make(chan struct{})
		var streamOut Stream
		var acceptErr error
		a := newDialAIO(l.sock.pool, func(s Stream, e error) {
			streamOut, acceptErr = s, e
			close(done)
		})
		l.stream.Accept(a)
		<-done

		if acceptErr != nil {
			vv("listener %s: accept error %v", l.id(), acceptErr)
			if errs.Is(acceptErr, errs.NoFiles) || errs.Is(acceptErr, errs.NoMemory) {
				time.Sleep(acceptRetryDelay)
			}
			if l.halt.ReqStop.IsClosed() {
				return
			}
			continue
		}

		p := newPipe(l.sock, streamOut, nil, l)
		go func() {
			if err := p.negotiateAndActivate(); err != nil {
				vv("listener %s: negotiation error %v", l.id(), err)
				return
			}
			vv("listener %s: pipe %d activated", l.id(), p.ID())
		}()
	}
}

func (l *Listener) close() {
	l.halt.ReqStop.Close()
	l.stream.Close()
}
