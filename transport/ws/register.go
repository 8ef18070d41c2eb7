package ws

import (
	"strings"

	"github.com/opensp/spio"
)

// init registers ws, ws4, ws6, wss, wss4, and wss6 into spio's
// process-local transport registry with the library's defaults (no
// sub-protocol negotiation, DefaultRecvMax); resolveWSNetwork derives
// each scheme's address family and TLS requirement from spio.Underlay.
// wss[46] always use the self-signed dev certificate from devcert.go;
// Dialer and Listener take no *tls.Config of their own.
// Endpoints that need a sub-protocol list or a custom recvmax construct
// a Dialer/Listener directly instead of going through Socket.Dial/
// Listen.
func init() {
	for _, scheme := range []string{"ws", "ws4", "ws6", "wss", "wss4", "wss6"} {
		s := scheme
		spio.RegisterTransport(s,
			func(addr string) (spio.StreamDialer, error) {
				urlScheme := "ws"
				if strings.HasPrefix(s, "wss") {
					urlScheme = "wss"
				}
				return NewDialer(s, urlScheme+"://"+addr+"/", nil, DefaultRecvMax)
			},
			func(addr string) (spio.StreamListener, error) {
				return NewListener(s, addr, nil, DefaultRecvMax)
			},
		)
	}
}
