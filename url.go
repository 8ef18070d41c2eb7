package spio

import (
	"strings"

	"github.com/opensp/spio/errs"
)

// ParseURL splits an SP endpoint URL into its scheme and the
// scheme-specific address, validating against the scheme table of
// spec.md §6: tcp, tcp4, tcp6, ipc, unix (alias for ipc), abstract,
// inproc, tls+tcp[46], ws[46], wss[46].
func ParseURL(raw string) (scheme, addr string, err error) {
	i := strings.Index(raw, "://")
	if i < 0 {
		return "", "", errs.Wrap(errs.InvalidAddress, raw, nil)
	}
	scheme = raw[:i]
	addr = raw[i+3:]
	if !validScheme(scheme) {
		return "", "", errs.Wrap(errs.InvalidAddress, raw, nil)
	}
	if addr == "" {
		return "", "", errs.Wrap(errs.InvalidAddress, raw, nil)
	}
	return scheme, addr, nil
}

var schemes = map[string]bool{
	"tcp": true, "tcp4": true, "tcp6": true,
	"ipc": true, "unix": true, "abstract": true,
	"inproc": true,
	"tls+tcp": true, "tls+tcp4": true, "tls+tcp6": true,
	"ws": true, "ws4": true, "ws6": true,
	"wss": true, "wss4": true, "wss6": true,
}

func validScheme(s string) bool { return schemes[s] }

// Underlay reports the byte-stream family a scheme rides on, stripping
// the tls+ and ws[s] layering so transport selection and TLS/WS wrapping
// can be decided independently of the base network family.
func Underlay(scheme string) (network string, useTLS, useWS bool) {
	switch {
	case strings.HasPrefix(scheme, "tls+"):
		return strings.TrimPrefix(scheme, "tls+"), true, false
	case strings.HasPrefix(scheme, "wss"):
		return "tcp" + strings.TrimPrefix(scheme, "wss"), true, true
	case strings.HasPrefix(scheme, "ws"):
		return "tcp" + strings.TrimPrefix(scheme, "ws"), false, true
	default:
		return scheme, false, false
	}
}
