// Package aio implements the AIO primitive of spec.md §4.1: a reusable,
// one-shot asynchronous I/O handle that a provider (pipe, dialer,
// listener, or transport engine) drives from Start through exactly one
// Finish, and that a consumer waits on with Wait or a select on Done.
//
// The design is grounded on the teacher's pq.go priority-queue pattern
// (adapted here into expireHeap, sharded per shard) and its pervasive use
// of github.com/glycerine/idem for goroutine lifecycle, together with
// github.com/glycerine/loquet for the one-shot completion signal that the
// teacher uses for its own Message.DoneCh.
package aio

import (
	"strconv"
	"sync"
	"time"

	"github.com/glycerine/idem"
	"github.com/glycerine/loquet"

	"github.com/opensp/spio/errs"
)

// CancelFunc is invoked at most once, from Stop or Abort, to ask a
// provider to give up the operation it started. It must not block.
type CancelFunc func(a *AIO, arg any)

// Callback is invoked exactly once per Start/Finish pair. After Finish
// (and FinishError, FinishMsg, Abort) it runs on the pool's dispatch
// worker, never on the caller of Finish; FinishSync runs it inline on the
// calling goroutine, and a Start that returns false runs it inline before
// returning.
type Callback func(a *AIO)

// AIO is a reusable asynchronous I/O handle. The zero value is not usable;
// construct one with New. A single AIO is reused across many Start/Finish
// cycles via Reset -- providers and consumers must agree, out of band,
// that the previous cycle has fully quiesced (its callback has returned)
// before Reset is called again.
type AIO struct {
	mu sync.Mutex

	cb    Callback
	cbArg any

	// per-cycle state, cleared by Reset
	started  bool
	finished bool
	result   error
	count    int

	timeout     time.Duration
	hasDeadline bool
	deadline    time.Time

	msg     any
	inputs  [4]any
	outputs [4]any
	iov     [][]byte // at most 8 entries, spec §4.1

	cancelFn  CancelFunc
	cancelArg any

	stopped bool // Stop called: no further Start will succeed
	closed  bool // Close called: AIO is permanently unusable

	// preStartAbort latches an Abort that arrived before any provider
	// engaged this cycle, per spec.md §4.1 ("if no provider is engaged
	// yet, marks abort so the next start will fail with rv").
	preStartAbort       bool
	preStartAbortReason error

	// done is closed once Finish (or Abort, or FinishSync) has recorded
	// the cycle's outcome -- Result/Count are safe to read, but the
	// callback itself may not have run yet, since finishLocked closes
	// done before handing the AIO to the dispatch worker.
	//
	// cbDone is closed only after cb has actually returned; Wait and Stop
	// block on cbDone, not done, per spec.md §4.1 ("wait(aio) — block
	// until any outstanding callback has returned") and §8 universal
	// invariant 2 ("stop(aio) returns only after the callback task has
	// completed"). Both are replaced on every Reset so a goroutine blocked
	// from a stale cycle is never woken by a later one.
	done   *loquet.Chan[*AIO]
	cbDone *loquet.Chan[*AIO]

	// expiration queue linkage, valid only while started and useExpire
	shard      int
	useExpire  bool
	expireItem *expireItem

	pool *Pool // owning worker/expire pool, set at New time
}

// New allocates an AIO bound to pool, with cb as its completion callback.
// cbArg is passed back to the caller through CallbackArg; the callback
// itself takes only the AIO, following the teacher's convention of
// stashing correlation state on the caller's own struct rather than
// threading it through the callback signature.
func New(pool *Pool, cb Callback, cbArg any) *AIO {
	assertf(cb != nil, "aio.New: cb must not be nil")
	a := &AIO{
		cb:    cb,
		cbArg: cbArg,
		pool:  pool,
		shard: pool.pickShard(),
	}
	a.done = loquet.NewChan(&a)
	a.cbDone = loquet.NewChan(&a)
	return a
}

// CallbackArg returns the arg passed to New.
func (a *AIO) CallbackArg() any {
	return a.cbArg
}

// Reset prepares a for another Start/Finish cycle. The caller must ensure
// the previous cycle's callback has already returned; Reset does not wait
// for it.
func (a *AIO) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	assertf(!a.closed, "aio.Reset called on a closed AIO")
	a.started = false
	a.finished = false
	a.result = nil
	a.count = 0
	a.hasDeadline = false
	a.msg = nil
	a.inputs = [4]any{}
	a.outputs = [4]any{}
	a.iov = nil
	a.cancelFn = nil
	a.cancelArg = nil
	a.useExpire = false
	a.expireItem = nil
	a.preStartAbort = false
	a.preStartAbortReason = nil
	a.done = loquet.NewChan(&a)
	a.cbDone = loquet.NewChan(&a)
}

// SetTimeout sets the relative timeout applied by the next Start. A
// non-positive d disables the timeout for that cycle.
func (a *AIO) SetTimeout(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timeout = d
}

// Message returns the message payload attached to this cycle, or nil.
func (a *AIO) Message() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.msg
}

// SetMessage attaches msg to this cycle, for a provider to retrieve
// with Message.
func (a *AIO) SetMessage(msg any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msg = msg
}

// Input returns opaque input slot i (0..3).
func (a *AIO) Input(i int) any {
	a.mu.Lock()
	defer a.mu.Unlock()
	assertf(i >= 0 && i < len(a.inputs), "aio.Input: index %d out of range", i)
	return a.inputs[i]
}

// SetInput sets opaque input slot i (0..3).
func (a *AIO) SetInput(i int, v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	assertf(i >= 0 && i < len(a.inputs), "aio.SetInput: index %d out of range", i)
	a.inputs[i] = v
}

// Output returns opaque output slot i (0..3).
func (a *AIO) Output(i int) any {
	a.mu.Lock()
	defer a.mu.Unlock()
	assertf(i >= 0 && i < len(a.outputs), "aio.Output: index %d out of range", i)
	return a.outputs[i]
}

// SetOutput sets opaque output slot i (0..3).
func (a *AIO) SetOutput(i int, v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	assertf(i >= 0 && i < len(a.outputs), "aio.SetOutput: index %d out of range", i)
	a.outputs[i] = v
}

const maxIOV = 8

// SetIOV replaces the scatter/gather vector for this cycle. len(iov) must
// not exceed maxIOV.
func (a *AIO) SetIOV(iov [][]byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	assertf(len(iov) <= maxIOV, "aio.SetIOV: %d entries exceeds max %d", len(iov), maxIOV)
	a.iov = iov
}

// IOV returns the scatter/gather vector for this cycle.
func (a *AIO) IOV() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.iov
}

// Timeout returns the timeout set by SetTimeout.
func (a *AIO) Timeout() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timeout
}

// Result returns the error a finished with, or nil on success. Calling
// Result before the cycle finishes returns nil.
func (a *AIO) Result() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// Count returns the byte or message count a finished with.
func (a *AIO) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Done returns a channel closed once this cycle's Finish (or Abort) has
// been recorded -- Result/Count are already valid, but the callback may
// still be in flight on a worker goroutine. Callers that need to know the
// callback itself has returned must use Wait instead. Done's channel is
// stable for the lifetime of one Start/Finish cycle and is replaced by
// Reset.
func (a *AIO) Done() <-chan struct{} {
	a.mu.Lock()
	d := a.done
	a.mu.Unlock()
	return d.WhenClosed()
}

// dispatchSyncResult reports a Start that never armed a cycle: it
// records result/count for Result/Count to observe and invokes the
// callback synchronously on the calling goroutine, per spec.md §4.1
// ("in those cases the callback is dispatched synchronously with the
// appropriate result code"). Unlike finishLocked/FinishSync this does not
// touch started/done, since no cycle was ever begun for a caller to Wait
// or select on.
func (a *AIO) dispatchSyncResult(result error) {
	a.mu.Lock()
	a.result = result
	a.count = 0
	a.mu.Unlock()
	a.runCallback()
}

// Start begins a cycle: it arms the timeout (if any was set with
// SetTimeout), records cancelFn/cancelArg for later Stop/Abort, and
// returns true if the cycle was armed successfully. It returns false
// without arming anything if Stop or Close was already called, or if an
// Abort arrived before this Start (per spec.md §8 property 2 and §4.1);
// in both cases the callback is dispatched synchronously with the
// appropriate result code before Start returns.
func (a *AIO) Start(cancelFn CancelFunc, cancelArg any) bool {
	a.mu.Lock()
	if a.closed || a.stopped {
		a.mu.Unlock()
		a.dispatchSyncResult(errs.New(errs.Stopped))
		return false
	}
	if a.preStartAbort {
		reason := a.preStartAbortReason
		a.preStartAbort = false
		a.preStartAbortReason = nil
		a.mu.Unlock()
		a.dispatchSyncResult(reason)
		return false
	}
	assertf(!a.started || a.finished, "aio.Start: previous cycle has not finished")
	a.started = true
	a.finished = false
	a.cancelFn = cancelFn
	a.cancelArg = cancelArg
	if a.timeout > 0 {
		a.hasDeadline = true
		a.deadline = time.Now().Add(a.timeout)
		a.useExpire = true
	}
	deadline, useExpire := a.deadline, a.useExpire
	a.mu.Unlock()

	if useExpire {
		a.pool.arm(a, deadline)
		vv("start shard=%d armed, timeout=%v", a.shard, deadline.Sub(time.Now()))
	}
	return true
}

// runCallback invokes cb and then closes cbDone, so Wait/Stop can block
// on cbDone and be certain the callback has actually returned rather than
// merely been recorded. Every path that ultimately calls a.cb must go
// through here instead of calling a.cb directly.
func (a *AIO) runCallback() {
	a.mu.Lock()
	cbDone := a.cbDone
	a.mu.Unlock()
	a.cb(a)
	cbDone.Close()
}

// finishLocked records the outcome and schedules the callback. Called
// with a.mu held; unlocks before returning.
func (a *AIO) finishLocked(result error, count int) {
	if a.finished {
		a.mu.Unlock()
		return
	}
	a.finished = true
	a.result = result
	a.count = count
	useExpire := a.useExpire
	a.useExpire = false
	item := a.expireItem
	a.expireItem = nil
	done := a.done
	a.mu.Unlock()

	if useExpire {
		a.pool.disarm(item)
	}
	done.Close()
	a.pool.dispatch(a)
}

// Finish records a successful (or failed, if result != nil) completion
// with a byte/message count. It is the general-purpose completion path;
// FinishError, FinishMsg and FinishSync are conveniences over it.
//
// Finish is idempotent: only the first call in a Start/Finish cycle has
// any effect, matching spec.md §8 property 1 (exactly one finish is
// observed per start).
func (a *AIO) Finish(result error, count int) {
	a.mu.Lock()
	a.finishLocked(result, count)
}

// FinishError finishes the cycle with err and a zero count.
func (a *AIO) FinishError(err error) {
	a.Finish(err, 0)
}

// FinishMsg attaches msg and finishes the cycle successfully.
func (a *AIO) FinishMsg(msg any) {
	a.mu.Lock()
	a.msg = msg
	a.finishLocked(nil, 0)
}

// FinishSync finishes the cycle inline on the calling goroutine's stack,
// bypassing the worker pool dispatch, for providers that are already
// running on a goroutine dedicated to this AIO and want to avoid the
// extra hop. The callback contract (called exactly once, after Finish)
// is unchanged.
func (a *AIO) FinishSync(result error, count int) {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return
	}
	a.finished = true
	a.result = result
	a.count = count
	useExpire := a.useExpire
	a.useExpire = false
	item := a.expireItem
	a.expireItem = nil
	done := a.done
	a.mu.Unlock()

	if useExpire {
		a.pool.disarm(item)
	}
	done.Close()
	a.runCallback()
}

// Abort cancels an in-progress cycle: it invokes the provider's cancelFn
// (if any) and, if the provider does not itself call Finish promptly,
// guarantees eventual completion with reason (errs.Canceled when reason
// is nil). Per
// spec.md §8 property 3, Abort always leads to a bounded completion.
func (a *AIO) Abort(reason error) {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return
	}
	if !a.started {
		// No provider is engaged yet: latch the abort so the next Start
		// fails with reason instead of silently arming, per spec.md §4.1.
		if reason == nil {
			reason = errs.New(errs.Canceled)
		}
		a.preStartAbort = true
		a.preStartAbortReason = reason
		a.mu.Unlock()
		return
	}
	fn, arg := a.cancelFn, a.cancelArg
	a.mu.Unlock()

	vv("abort shard=%d reason=%v", a.shard, reason)
	if fn != nil {
		fn(a, arg)
	}
	if reason == nil {
		reason = errs.New(errs.Canceled)
	}
	a.Finish(reason, 0)
}

// Stop permanently disables this AIO: any Start called after Stop returns
// false, and Stop itself blocks (via Wait) until the current cycle, if
// any, has finished and its callback has returned. Stop is idempotent.
func (a *AIO) Stop() {
	a.mu.Lock()
	already := a.stopped
	a.stopped = true
	started, finished := a.started, a.finished
	a.mu.Unlock()

	if already {
		a.Wait()
		return
	}
	if started && !finished {
		a.Abort(errs.New(errs.Stopped))
	}
	a.Wait()
}

// Close permanently releases a. After Close, Start always returns false
// and no further method except Wait/Done may be called.
func (a *AIO) Close() {
	a.Stop()
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

// Wait blocks until any outstanding callback for the current cycle has
// returned (spec.md §4.1). If no cycle has ever started, Wait returns
// immediately.
func (a *AIO) Wait() {
	a.mu.Lock()
	started := a.started
	cbDone := a.cbDone
	a.mu.Unlock()
	if !started {
		return
	}
	<-cbDone.WhenClosed()
}

// pool exposes the worker pool this AIO dispatches its callback through,
// for tests that want to synchronize on pool-wide draining.
func (a *AIO) Pool() *Pool { return a.pool }

// idemHalterFor is a small helper used by Pool to name per-shard halters
// consistently; kept here since it is purely cosmetic (idem.Halter names
// show up in stack dumps and metrics, per the teacher's convention of
// naming every Halter it creates).
func idemHalterFor(kind string, shard int) *idem.Halter {
	return idem.NewHalterNamed(kind + "-shard-" + strconv.Itoa(shard))
}
