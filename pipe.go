package spio

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/errs"
)

// globalPipeIDs is the process-wide pipe id map of spec.md §5 ("Pipe id
// map: global, guarded by a dedicated mutex"). Ids are unique across
// every socket in the process, matching spec.md §8 property 9.
var globalPipeIDs = struct {
	mu  sync.Mutex
	ids map[uint32]*Pipe
}{ids: make(map[uint32]*Pipe)}

func allocPipeID(p *Pipe) uint32 {
	globalPipeIDs.mu.Lock()
	defer globalPipeIDs.mu.Unlock()
	for {
		id := randPipeID()
		if _, taken := globalPipeIDs.ids[id]; !taken {
			globalPipeIDs.ids[id] = p
			return id
		}
	}
}

func freePipeID(id uint32) {
	globalPipeIDs.mu.Lock()
	defer globalPipeIDs.mu.Unlock()
	delete(globalPipeIDs.ids, id)
}

// Pipe is one peer connection, per spec.md §3. It is created by a
// Dialer or Listener when its underlying Stream dial/accept completes,
// negotiated (framing.go), and then handed to the owning Socket's
// active pipe set.
type Pipe struct {
	pipeID uint32
	socket *Socket

	// exactly one of dialer/listener is non-nil, spec.md §3
	dialer   *Dialer
	listener *Listener

	stream                   Stream
	pool                     *aio.Pool
	myProtoID                uint16
	peerProto                uint16
	recvmax                  int
	sendTimeout, recvTimeout time.Duration

	refcount int32
	closed   atomic.Bool

	sendMu sync.Mutex
	recvMu sync.Mutex

	stat PipeStat
}

// id satisfies dmap's ided interface so a Socket can hold its pipes in a
// deterministic map.
func (p *Pipe) id() string { return strconv.FormatUint(uint64(p.pipeID), 10) }

// ID returns the pipe's process-wide unique 31-bit id.
func (p *Pipe) ID() uint32 { return p.pipeID }

func newPipe(sock *Socket, stream Stream, dialer *Dialer, listener *Listener) *Pipe {
	assertf((dialer == nil) != (listener == nil), "pipe must have exactly one of dialer/listener")
	p := &Pipe{
		socket:      sock,
		dialer:      dialer,
		listener:    listener,
		stream:      stream,
		pool:        sock.pool,
		myProtoID:   sock.protoID,
		recvmax:     sock.recvmax,
		sendTimeout: sock.sendTimeout,
		recvTimeout: sock.recvTimeout,
		refcount:    2, // one for the caller (endpoint), one for self-hold
	}
	p.pipeID = allocPipeID(p)
	p.stat.ID = p.pipeID
	return p
}

// negotiateAndActivate performs the SP handshake and, on success, adds
// the pipe to its socket's active set. On failure it closes the pipe and
// returns the error; the caller (endpoint) must not add it to any list.
func (p *Pipe) negotiateAndActivate() error {
	peer, err := negotiate(p.pool, p.stream, p.myProtoID)
	if err != nil {
		p.Close()
		return err
	}
	p.peerProto = peer
	p.stat.PeerProtocol = peer
	p.socket.addPipe(p)
	return nil
}

// Send transmits msg over the pipe's negotiated stream, framed per
// spec.md §4.3.
func (p *Pipe) Send(msg *Message) error {
	if p.closed.Load() {
		return errs.New(errs.Closed)
	}
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	err := sendMessage(p.pool, p.stream, msg, p.sendTimeout)
	if err != nil {
		atomic.AddUint64(&p.stat.SendErrors, 1)
		p.Close()
		return err
	}
	atomic.AddUint64(&p.stat.MessagesSent, 1)
	return nil
}

// Recv reads the next message from the pipe.
func (p *Pipe) Recv() (*Message, error) {
	if p.closed.Load() {
		return nil, errs.New(errs.Closed)
	}
	p.recvMu.Lock()
	defer p.recvMu.Unlock()
	msg, err := recvMessage(p.pool, p.stream, p.recvmax, p.recvTimeout)
	if err != nil {
		if errs.Is(err, errs.MessageTooBig) {
			// per spec.md §4.3, oversize is reported to the caller but
			// does not close the pipe -- the protocol layer decides.
			atomic.AddUint64(&p.stat.RecvErrors, 1)
			return nil, err
		}
		atomic.AddUint64(&p.stat.RecvErrors, 1)
		p.Close()
		return nil, err
	}
	atomic.AddUint64(&p.stat.MessagesRecv, 1)
	return msg, nil
}

// Close is idempotent: only the first call runs the reap sequence of
// spec.md §4.2 (protocol pipe_close -> transport close -> post-remove ->
// id-map removal -> refcount release). Since this package specifies no
// protocol layer, there is no "protocol pipe_close" step and no removal
// callback: Close only drops the pipe from its Socket's active set.
// Close is the caller's only handle on the pipe, so it both drops the
// caller's reference and lets go of the self-hold acquired in newPipe,
// bringing refcount from 2 to 0.
func (p *Pipe) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	vv("pipe %d: reaping", p.pipeID)
	p.stream.Close()
	p.socket.removePipe(p)
	freePipeID(p.pipeID)
	p.release() // self-hold
	p.release() // caller
}

// release drops one reference, destroying bookkeeping state once the
// last holder (caller + self-hold, spec.md §3) lets go.
func (p *Pipe) release() {
	if atomic.AddInt32(&p.refcount, -1) == 0 {
		p.stream = nil
	}
}

// Stat returns a snapshot of the pipe's introspection counters
// (SPEC_FULL.md supplemental feature 2).
func (p *Pipe) Stat() PipeStat {
	s := p.stat
	s.MessagesSent = atomic.LoadUint64(&p.stat.MessagesSent)
	s.MessagesRecv = atomic.LoadUint64(&p.stat.MessagesRecv)
	s.SendErrors = atomic.LoadUint64(&p.stat.SendErrors)
	s.RecvErrors = atomic.LoadUint64(&p.stat.RecvErrors)
	return s
}
