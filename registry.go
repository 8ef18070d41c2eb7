package spio

import (
	"sync"

	"github.com/opensp/spio/errs"
)

// DialerFactory builds a StreamDialer for addr (the scheme-stripped
// portion of an SP URL).
type DialerFactory func(addr string) (StreamDialer, error)

// ListenerFactory builds a StreamListener for addr.
type ListenerFactory func(addr string) (StreamListener, error)

// transportRegistry is the process-local registry of pluggable
// transports, per spec.md §9's "trait-style interfaces ... registered
// into a process-local registry at startup". Each of transport/tcp,
// transport/tls, and transport/ws registers its schemes from an init()
// in the importing binary; this package places no import-time
// dependency on any of them, avoiding an import cycle.
var transportRegistry = struct {
	mu        sync.RWMutex
	dialers   map[string]DialerFactory
	listeners map[string]ListenerFactory
}{
	dialers:   make(map[string]DialerFactory),
	listeners: make(map[string]ListenerFactory),
}

// RegisterTransport installs the dialer/listener factories for scheme.
// Re-registering the same scheme overwrites the previous factories,
// which is convenient for tests that swap in fakes.
func RegisterTransport(scheme string, d DialerFactory, l ListenerFactory) {
	transportRegistry.mu.Lock()
	defer transportRegistry.mu.Unlock()
	transportRegistry.dialers[scheme] = d
	transportRegistry.listeners[scheme] = l
}

func lookupDialerFactory(scheme string) (DialerFactory, error) {
	transportRegistry.mu.RLock()
	defer transportRegistry.mu.RUnlock()
	f, ok := transportRegistry.dialers[scheme]
	if !ok {
		return nil, errs.Wrap(errs.NotSupported, scheme, nil)
	}
	return f, nil
}

func lookupListenerFactory(scheme string) (ListenerFactory, error) {
	transportRegistry.mu.RLock()
	defer transportRegistry.mu.RUnlock()
	f, ok := transportRegistry.listeners[scheme]
	if !ok {
		return nil, errs.Wrap(errs.NotSupported, scheme, nil)
	}
	return f, nil
}
