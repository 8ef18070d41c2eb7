package tcp

import "github.com/opensp/spio"

// init registers every scheme this package serves into spio's process-local
// transport registry (spio.RegisterTransport), per spec.md §9.
func init() {
	for _, scheme := range []string{"tcp", "tcp4", "tcp6"} {
		s := scheme
		spio.RegisterTransport(s,
			func(addr string) (spio.StreamDialer, error) { return NewDialer(s, addr) },
			func(addr string) (spio.StreamListener, error) { return NewListener(s, addr) },
		)
	}
	for _, scheme := range []string{"ipc", "unix", "abstract"} {
		s := scheme
		spio.RegisterTransport(s,
			func(addr string) (spio.StreamDialer, error) { return NewDialer(s, addr) },
			func(addr string) (spio.StreamListener, error) { return NewListener(s, addr) },
		)
	}
	spio.RegisterTransport("inproc",
		func(addr string) (spio.StreamDialer, error) { return NewInprocDialer(addr), nil },
		func(addr string) (spio.StreamListener, error) { return NewInprocListener(addr), nil },
	)
}
