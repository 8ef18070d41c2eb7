package spio

import (
	"time"

	"github.com/glycerine/idem"
)

// backoff bounds for dialer reconnection, spec.md §4.2: "reschedules a
// connect attempt with exponential backoff bounded between a
// configurable min and max".
const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// Dialer is the outbound-connecting endpoint of spec.md §3/§4.2.
type Dialer struct {
	sock    *Socket
	scheme  string
	addr    string
	factory DialerFactory
	stream  StreamDialer

	halt *idem.Halter

	backoff time.Duration
	nextTry time.Time
}

func newDialer(sock *Socket, scheme, addr string, factory DialerFactory) *Dialer {
	return &Dialer{
		sock:    sock,
		scheme:  scheme,
		addr:    addr,
		factory: factory,
		halt:    idem.NewHalterNamed("dialer-" + addr),
		backoff: minBackoff,
	}
}

func (d *Dialer) id() string { return d.scheme + "://" + d.addr }

// start kicks off the first connect attempt on its own goroutine so
// Socket.Dial itself never blocks.
func (d *Dialer) start() {
	go d.attempt()
}

// attempt runs one dial, on success negotiates and activates the pipe,
// then arms redial for when that pipe eventually dies; on failure it
// reschedules itself on the socket's reconnectQueue with the current
// backoff, doubled (bounded by maxBackoff) for next time.
func (d *Dialer) attempt() {
	if d.halt.ReqStop.IsClosed() {
		return
	}
	token := traceToken()
	vv("dialer %s attempt %s: connecting", d.id(), token)
	stream, err := d.factory(d.addr)
	if err != nil {
		vv("dialer %s attempt %s: factory error %v", d.id(), token, err)
		d.scheduleRetry()
		return
	}
	d.stream = stream

	done := make(chan struct{})
	var streamOut Stream
	var dialErr error
	a := newDialAIO(d.sock.pool, func(s Stream, e error) {
		streamOut, dialErr = s, e
		close(done)
	})
	stream.Dial(a)
	<-done

	if dialErr != nil {
		vv("dialer %s attempt %s: dial error %v", d.id(), token, dialErr)
		d.scheduleRetry()
		return
	}

	p := newPipe(d.sock, streamOut, d, nil)
	if err := p.negotiateAndActivate(); err != nil {
		vv("dialer %s attempt %s: negotiation error %v", d.id(), token, err)
		d.scheduleRetry()
		return
	}

	vv("dialer %s attempt %s: pipe %d activated", d.id(), token, p.ID())
	// success resets backoff for the next time this pipe dies
	d.backoff = minBackoff
	go d.watchPipe(p)
}

// watchPipe blocks until the pipe closes (its Recv loop, run by a
// protocol layer above this package, will eventually observe
// errs.ConnectionShut and call p.Close), then reconnects.
func (d *Dialer) watchPipe(p *Pipe) {
	for !p.closed.Load() && !d.halt.ReqStop.IsClosed() {
		time.Sleep(50 * time.Millisecond)
	}
	if d.halt.ReqStop.IsClosed() {
		return
	}
	d.attempt()
}

func (d *Dialer) scheduleRetry() {
	if d.halt.ReqStop.IsClosed() {
		return
	}
	d.nextTry = time.Now().Add(d.backoff)
	vv("dialer %s: retry scheduled in %v", d.id(), d.backoff)
	d.backoff *= 2
	if d.backoff > maxBackoff {
		d.backoff = maxBackoff
	}
	d.sock.recq.schedule(d)
}

func (d *Dialer) redialDeadline() time.Time { return d.nextTry }
func (d *Dialer) redial()                   { d.attempt() }

func (d *Dialer) close() {
	d.halt.ReqStop.Close()
	if d.stream != nil {
		d.stream.Close()
	}
}
