package tls

import "github.com/opensp/spio"

// init registers the tls+tcp[46] schemes into spio's process-local
// transport registry (spio.RegisterTransport), per spec.md §9, deriving
// the underlying network family from spio.Underlay via resolveNetwork
// and falling back to a self-signed dev certificate (devcert.go)
// when the caller supplies no *Config of its own by going through
// Socket.Dial/Listen instead of constructing a Dialer/Listener
// directly.
func init() {
	for _, scheme := range []string{"tls+tcp", "tls+tcp4", "tls+tcp6"} {
		s := scheme
		spio.RegisterTransport(s,
			func(addr string) (spio.StreamDialer, error) {
				cfg, err := devClientConfig()
				if err != nil {
					return nil, err
				}
				return NewDialer(s, addr, cfg)
			},
			func(addr string) (spio.StreamListener, error) {
				cfg, err := devServerConfig()
				if err != nil {
					return nil, err
				}
				return NewListener(s, addr, cfg)
			},
		)
	}
}
