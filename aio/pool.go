package aio

import (
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/glycerine/idem"

	"github.com/opensp/spio/errs"
)

// Pool owns the sharded expiration queues and the sharded callback
// dispatch workers shared by every AIO created with New(pool, ...).
//
// The sharding scheme is grounded on original_source/src/core/taskq.c:
// the reference implementation runs one worker thread per shard, each
// with its own task list, and picks a shard per-task with a fixed index
// chosen once. We mirror that for both callback dispatch and expiration,
// as noted in SPEC_FULL.md's supplemental feature 1.
type Pool struct {
	halt *idem.Halter

	shards []*shard

	mu sync.Mutex // protects rng only
	rng *rand.Rand
}

type shard struct {
	// haltExpire and haltDispatch each guard one of the shard's two
	// goroutines. They are separate idem.Halters, not one shared between
	// both loops: idem.Halter.Done closes as soon as its owning goroutine
	// returns, so sharing one Halter between expireLoop and dispatchLoop
	// would let Pool.Close observe "done" after only the first of the two
	// exits, while the other could still be draining queued callbacks.
	// ReqStop is signalled on both independently for the same reason.
	haltExpire   *idem.Halter
	haltDispatch *idem.Halter

	mu   sync.Mutex
	cond *sync.Cond
	heap expireHeap

	cbMu sync.Mutex
	cbCond *sync.Cond
	cbQueue []*AIO
}

// batchLimit bounds how many expired AIOs a single sweep finishes at
// once, per spec.md's batching guidance for expiration processing.
const batchLimit = 8

// NewPool constructs a Pool with n shards, each running its own
// expiration-sweep goroutine and its own callback-dispatch goroutine. A
// non-positive n defaults to max(1, runtime.GOMAXPROCS(0)), per
// SPEC_FULL.md's resolution of the corresponding open question.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
		if n < 1 {
			n = 1
		}
	}
	p := &Pool{
		halt:   idem.NewHalterNamed("aio-pool"),
		shards: make([]*shard, n),
		rng:    rand.New(rand.NewSource(1)),
	}
	for i := range p.shards {
		s := &shard{
			haltExpire:   idemHalterFor("aio-pool-expire", i),
			haltDispatch: idemHalterFor("aio-pool-dispatch", i),
		}
		s.cond = sync.NewCond(&s.mu)
		s.cbCond = sync.NewCond(&s.cbMu)
		p.halt.AddChild(s.haltExpire)
		p.halt.AddChild(s.haltDispatch)
		p.shards[i] = s
		go s.expireLoop()
		go s.dispatchLoop()
	}
	return p
}

// pickShard chooses a shard index for a newly created AIO. The choice is
// fixed for the AIO's lifetime, per spec.md §9's sharding invariant.
func (p *Pool) pickShard() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(len(p.shards))
}

// arm schedules a to expire at deadline, on its assigned shard.
func (p *Pool) arm(a *AIO, deadline time.Time) {
	s := p.shards[a.shard]
	item := &expireItem{aio: a, deadline: deadline}

	s.mu.Lock()
	a.mu.Lock()
	a.expireItem = item
	a.mu.Unlock()
	s.heap.add(item)
	s.cond.Signal()
	s.mu.Unlock()
}

// disarm removes item from its shard's expiration heap, if it is still
// present -- a no-op if it already fired or was never armed.
func (p *Pool) disarm(item *expireItem) {
	if item == nil {
		return
	}
	a := item.aio
	s := p.shards[a.shard]
	s.mu.Lock()
	s.heap.remove(item)
	s.mu.Unlock()
}

// dispatch enqueues a's callback for its assigned shard's worker.
func (p *Pool) dispatch(a *AIO) {
	s := p.shards[a.shard]
	s.cbMu.Lock()
	s.cbQueue = append(s.cbQueue, a)
	s.cbCond.Signal()
	s.cbMu.Unlock()
}

// Close stops every shard goroutine. Outstanding armed AIOs are aborted
// with errs.Stopped before Close returns.
func (p *Pool) Close() {
	for _, s := range p.shards {
		s.mu.Lock()
		var pending []*expireItem
		for len(s.heap) > 0 {
			item := s.heap[0]
			s.heap.remove(item)
			pending = append(pending, item)
		}
		s.mu.Unlock()
		for _, item := range pending {
			item.aio.Abort(errs.New(errs.Stopped))
		}
	}
	p.halt.ReqStop.Close()
	for _, s := range p.shards {
		s.haltExpire.ReqStop.Close()
		s.haltDispatch.ReqStop.Close()
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
		s.cbMu.Lock()
		s.cbCond.Broadcast()
		s.cbMu.Unlock()
	}
	for _, s := range p.shards {
		<-s.haltExpire.Done.Chan
		<-s.haltDispatch.Done.Chan
	}
}

// expireLoop is the per-shard sweep goroutine: it sleeps until the
// earliest deadline in its heap, then finishes every AIO whose deadline
// has passed (in batches of at most batchLimit), grounded on the
// teacher's pq.go min-heap pattern generalized to a background sweeper.
func (s *shard) expireLoop() {
	defer s.haltExpire.Done.Close()
	for {
		s.mu.Lock()
		for {
			if s.haltExpire.ReqStop.IsClosed() {
				s.mu.Unlock()
				return
			}
			d, ok := s.heap.peekDeadline()
			if !ok {
				s.cond.Wait()
				continue
			}
			wait := time.Until(d)
			if wait <= 0 {
				break
			}
			s.mu.Unlock()
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-s.haltExpire.ReqStop.Chan:
				timer.Stop()
				return
			}
			s.mu.Lock()
		}
		expired := s.heap.popExpired(time.Now(), batchLimit)
		s.mu.Unlock()

		if len(expired) > 0 {
			vv("shard expiring %d aio(s)", len(expired))
		}
		for _, item := range expired {
			item.aio.Abort(errs.New(errs.TimedOut))
		}
	}
}

// dispatchLoop is the per-shard callback-dispatch goroutine.
func (s *shard) dispatchLoop() {
	defer s.haltDispatch.Done.Close()
	for {
		s.cbMu.Lock()
		for len(s.cbQueue) == 0 && !s.haltDispatch.ReqStop.IsClosed() {
			s.cbCond.Wait()
		}
		if len(s.cbQueue) == 0 && s.haltDispatch.ReqStop.IsClosed() {
			s.cbMu.Unlock()
			return
		}
		a := s.cbQueue[0]
		s.cbQueue = s.cbQueue[1:]
		s.cbMu.Unlock()

		a.runCallback()
	}
}
