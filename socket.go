package spio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensp/spio/aio"
)

// nextSocketID hands out the small integers spec.md §3 says identify a
// Socket.
var nextSocketID int32

// Socket owns a set of endpoints and pipes, plus the shared AIO pool
// they dispatch through. spec.md leaves the SP protocol layer (REQ/REP,
// PUB/SUB, ...) external; Socket exposes only the pipe/endpoint
// lifecycle this core is responsible for. A protocol package built on
// top would embed a *Socket and add its own send/recv policy.
type Socket struct {
	id      int32
	protoID uint16

	pool *aio.Pool
	recq *reconnectQueue

	recvmax                  int
	sendTimeout, recvTimeout time.Duration

	mu        sync.Mutex
	pipes     *dmap[*Pipe, *Pipe]
	dialers   []*Dialer
	listeners []*Listener
	rejects   uint64

	closed atomic.Bool
}

// NewSocket allocates a Socket identifying itself with protoID on the
// wire (spec.md §4.3 negotiation).
func NewSocket(protoID uint16) *Socket {
	s := &Socket{
		id:      atomic.AddInt32(&nextSocketID, 1),
		protoID: protoID,
		pool:    aio.NewPool(0),
		recq:    newReconnectQueue(),
		pipes:   newDmap[*Pipe, *Pipe](),
		recvmax: 1 << 20,
	}
	return s
}

// ID returns the socket's small integer identity.
func (s *Socket) ID() int32 { return s.id }

// SetRecvMax sets the per-message size ceiling enforced on receive
// (spec.md §4.3); 0 disables the check.
func (s *Socket) SetRecvMax(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvmax = n
}

// SetTimeouts sets the send/recv timeouts newly created pipes inherit.
func (s *Socket) SetTimeouts(send, recv time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendTimeout = send
	s.recvTimeout = recv
}

// Dial creates and starts a Dialer for rawURL, per spec.md §4.2.
func (s *Socket) Dial(rawURL string) (*Dialer, error) {
	scheme, addr, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	factory, err := lookupDialerFactory(scheme)
	if err != nil {
		return nil, err
	}
	d := newDialer(s, scheme, addr, factory)
	s.mu.Lock()
	s.dialers = append(s.dialers, d)
	s.mu.Unlock()
	d.start()
	return d, nil
}

// Listen creates, binds, and starts a Listener for rawURL.
func (s *Socket) Listen(rawURL string) (*Listener, error) {
	scheme, addr, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	factory, err := lookupListenerFactory(scheme)
	if err != nil {
		return nil, err
	}
	l, err := newListener(s, scheme, addr, factory)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
	l.start()
	return l, nil
}

func (s *Socket) addPipe(p *Pipe) {
	s.mu.Lock()
	s.pipes.upsert(p, p)
	s.mu.Unlock()
}

func (s *Socket) removePipe(p *Pipe) {
	s.mu.Lock()
	s.pipes.delete(p)
	s.mu.Unlock()
}

// IncReject records a negotiated-but-protocol-mismatched pipe (S1 in
// spec.md §8): the SP framing succeeded but the higher protocol layer
// rejected the pairing (e.g. a REQ socket dialing a PUSH listener).
// This core has no protocol layer of its own to call it, so it is
// exported for a package built on top of Socket to call once it
// implements pattern-level pairing rules; it exists so SocketStat.Rejects
// is reachable at all once such a layer exists.
func (s *Socket) IncReject() {
	atomic.AddUint64(&s.rejects, 1)
}

// Pipes returns a stable-order snapshot of the socket's currently active
// pipes.
func (s *Socket) Pipes() []*Pipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Pipe, 0, s.pipes.Len())
	for _, p := range all(s.pipes) {
		out = append(out, p)
	}
	return out
}

// Stat returns an aggregate snapshot for introspection.
func (s *Socket) Stat() SocketStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	stat := SocketStat{
		ProtoID:      s.protoID,
		NumPipes:     s.pipes.Len(),
		NumDialers:   len(s.dialers),
		NumListeners: len(s.listeners),
		Rejects:      atomic.LoadUint64(&s.rejects),
	}
	for _, p := range all(s.pipes) {
		stat.Pipes = append(stat.Pipes, p.Stat())
	}
	return stat
}

// Close shuts every dialer, listener, and pipe down and stops the
// socket's shared AIO pool. Close is idempotent.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	dialers := s.dialers
	listeners := s.listeners
	s.mu.Unlock()

	for _, d := range dialers {
		d.close()
	}
	for _, l := range listeners {
		l.close()
	}
	for _, p := range s.Pipes() {
		p.Close()
	}
	s.recq.close()
	s.pool.Close()
	return nil
}
