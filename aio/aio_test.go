package aio

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensp/spio/errs"
)

func TestFinishCalledExactlyOnce(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	var calls int32
	var wg sync.WaitGroup
	wg.Add(1)
	a := New(pool, func(a *AIO) {
		atomic.AddInt32(&calls, 1)
		wg.Done()
	}, nil)

	if !a.Start(nil, nil) {
		t.Fatal("Start should succeed")
	}
	a.Finish(nil, 3)
	a.Finish(nil, 99)  // must be ignored
	a.FinishError(nil) // must also be ignored

	wg.Wait()
	time.Sleep(20 * time.Millisecond) // let any duplicate dispatch land

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("callback fired %d times, want exactly 1", got)
	}
	if a.Count() != 3 {
		t.Fatalf("Count = %d, want 3", a.Count())
	}
}

func TestStopDrainsThenRejectsFurtherStarts(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	var finished int32
	a := New(pool, func(a *AIO) {
		atomic.StoreInt32(&finished, 1)
	}, nil)

	if !a.Start(nil, nil) {
		t.Fatal("Start should succeed")
	}
	a.Finish(nil, 0)
	a.Stop()

	if atomic.LoadInt32(&finished) != 1 {
		t.Fatal("Stop returned before the pending callback ran")
	}
	if a.Start(nil, nil) {
		t.Fatal("Start after Stop must return false")
	}
}

func TestAbortGuaranteesBoundedCompletion(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	done := make(chan struct{})
	var cancelCalled int32
	a := New(pool, func(a *AIO) { close(done) }, nil)

	cancel := func(a *AIO, arg any) {
		atomic.StoreInt32(&cancelCalled, 1)
		// a well-behaved provider still calls Finish itself after being
		// asked to cancel; Abort must not race it.
	}
	if !a.Start(cancel, nil) {
		t.Fatal("Start should succeed")
	}
	a.Abort(nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Abort did not lead to a bounded completion")
	}
	if atomic.LoadInt32(&cancelCalled) != 1 {
		t.Fatal("Abort did not invoke the provider's cancel function")
	}
	if !errs.Is(a.Result(), errs.Canceled) {
		t.Fatalf("Result = %v, want errs.Canceled", a.Result())
	}
}

func TestTimeoutExpiresAndAborts(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	done := make(chan struct{})
	a := New(pool, func(a *AIO) { close(done) }, nil)
	a.SetTimeout(10 * time.Millisecond)

	if !a.Start(nil, nil) {
		t.Fatal("Start should succeed")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}
	if !errs.Is(a.Result(), errs.TimedOut) {
		t.Fatalf("Result = %v, want errs.TimedOut", a.Result())
	}
}

func TestResetAllowsReuse(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	var n int32
	a := New(pool, func(a *AIO) { atomic.AddInt32(&n, 1) }, nil)

	a.Start(nil, nil)
	a.Finish(nil, 0)
	a.Wait()

	a.Reset()
	a.Start(nil, nil)
	a.Finish(nil, 0)
	a.Wait()

	if atomic.LoadInt32(&n) != 2 {
		t.Fatalf("callback ran %d times across two cycles, want 2", n)
	}
}

func TestIOVRejectsTooManyEntries(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()
	a := New(pool, func(*AIO) {}, nil)

	defer func() {
		if recover() == nil {
			t.Fatal("SetIOV with 9 entries should panic")
		}
	}()
	iov := make([][]byte, maxIOV+1)
	a.SetIOV(iov)
}
