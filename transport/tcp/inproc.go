package tcp

import (
	"net"
	"sync"

	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/errs"
)

// inprocRegistry pairs inproc dialers with the listener of the same
// name, entirely in-process, using net.Pipe for the byte stream --
// there is no real socket involved, matching spec.md's inproc:// scheme.
var inprocRegistry = struct {
	mu        sync.Mutex
	listeners map[string]chan net.Conn
}{listeners: make(map[string]chan net.Conn)}

// InprocListener implements spio.StreamListener for inproc://name.
type InprocListener struct {
	name string
	ch   chan net.Conn
}

func NewInprocListener(name string) *InprocListener {
	return &InprocListener{name: name}
}

func (l *InprocListener) Listen() error {
	inprocRegistry.mu.Lock()
	defer inprocRegistry.mu.Unlock()
	if _, exists := inprocRegistry.listeners[l.name]; exists {
		return errs.Wrap(errs.AlreadyInUse, l.name, nil)
	}
	l.ch = make(chan net.Conn)
	inprocRegistry.listeners[l.name] = l.ch
	return nil
}

func (l *InprocListener) Accept(a *aio.AIO) {
	nc, ok := <-l.ch
	if !ok {
		a.FinishError(errs.New(errs.Closed))
		return
	}
	a.SetOutput(0, New(nc))
	a.Finish(nil, 0)
}

func (l *InprocListener) Close() error {
	inprocRegistry.mu.Lock()
	defer inprocRegistry.mu.Unlock()
	if ch, ok := inprocRegistry.listeners[l.name]; ok {
		delete(inprocRegistry.listeners, l.name)
		close(ch)
	}
	return nil
}

// InprocDialer implements spio.StreamDialer for inproc://name.
type InprocDialer struct {
	name string
}

func NewInprocDialer(name string) *InprocDialer {
	return &InprocDialer{name: name}
}

func (d *InprocDialer) Dial(a *aio.AIO) {
	inprocRegistry.mu.Lock()
	ch, ok := inprocRegistry.listeners[d.name]
	inprocRegistry.mu.Unlock()
	if !ok {
		a.FinishError(errs.Wrap(errs.ConnectionRefused, d.name, nil))
		return
	}
	client, server := net.Pipe()
	select {
	case ch <- server:
		a.SetOutput(0, New(client))
		a.Finish(nil, 0)
	default:
		// listener not actively accepting right now; block briefly on a
		// goroutine so Dial itself never blocks the caller's AIO thread
		// indefinitely without the possibility of abort.
		go func() {
			ch <- server
		}()
		a.SetOutput(0, New(client))
		a.Finish(nil, 0)
	}
}

func (d *InprocDialer) Close() error { return nil }
