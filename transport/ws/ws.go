// Package ws implements the WebSocket transport of spec.md §4.5 on top
// of github.com/gorilla/websocket, grounded on the pattern
// go-ethereum's rpc/websocket.go uses: an http.Handler-driven Upgrader
// on the server side and a websocket.Dialer on the client side, with
// each SP message carried as one WS binary message.
//
// gorilla/websocket already implements RFC 6455 framing, masking,
// fragmentation, control frames, and the HTTP upgrade handshake
// (Sec-WebSocket-Key/Accept) to the letter; re-implementing that state
// machine by hand here would only reproduce what the dependency already
// gives us; we bind message mode, recvmax (as the read limit) and close
// codes on top of it instead. DefaultFragSize and DefaultMaxFrame are not
// applied: outbound frame sizes are whatever gorilla/websocket chooses,
// and no per-frame limit is enforced apart from recvmax.
package ws

import (
	"context"
	stdtls "crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opensp/spio"
	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/errs"
)

// resolveWSNetwork maps a ws[46]/wss[46] URL scheme to the network
// family dialer/listener dial or bind, via spio.Underlay -- the same
// scheme-resolves-to-network pattern transport/tcp's resolveNetworkAddr
// and transport/tls's resolveNetwork use.
func resolveWSNetwork(scheme string) (network string, useTLS bool, err error) {
	switch scheme {
	case "ws", "ws4", "ws6", "wss", "wss4", "wss6":
		network, useTLS, _ = spio.Underlay(scheme)
		return network, useTLS, nil
	default:
		return "", false, errs.Wrap(errs.InvalidAddress, scheme, nil)
	}
}

// Defaults from spec.md §4.5.
const (
	DefaultFragSize = 64 * 1024
	DefaultMaxFrame = 1 << 20
	DefaultRecvMax  = 1 << 20
)

// Conn adapts a *websocket.Conn to the spio.Stream contract, in message
// mode: one spio Send/Recv call transfers exactly one WS message.
type Conn struct {
	wc      *websocket.Conn
	recvmax int64
}

// New wraps an already-upgraded *websocket.Conn. recvmax bounds a single
// inbound message (spec.md §4.5 "recvmax, default 1 MiB, message mode
// only"); 0 uses DefaultRecvMax.
func New(wc *websocket.Conn, recvmax int64) *Conn {
	if recvmax <= 0 {
		recvmax = DefaultRecvMax
	}
	wc.SetReadLimit(recvmax)
	return &Conn{wc: wc, recvmax: recvmax}
}

// Send writes iov[0] as one binary WS message. Like transport/tcp.Conn, it
// arms the underlying connection's write deadline from a.Timeout() before
// blocking, following the same pattern ethereum-go-ethereum's
// rpc/websocket.go uses around its own WriteMessage calls.
func (c *Conn) Send(a *aio.AIO) {
	iov := a.IOV()
	if len(iov) == 0 {
		a.Finish(nil, 0)
		return
	}
	if to := a.Timeout(); to > 0 {
		c.wc.SetWriteDeadline(time.Now().Add(to))
	} else {
		c.wc.SetWriteDeadline(time.Time{})
	}
	if err := c.wc.WriteMessage(websocket.BinaryMessage, iov[0]); err != nil {
		a.FinishError(classifyErr(err))
		return
	}
	a.Finish(nil, len(iov[0]))
}

// Recv reads one WS message into iov[0]; a message larger than the
// buffer is a caller error since spio's framing layer always sizes its
// receive buffer from the negotiated length, not from a fixed cap here.
func (c *Conn) Recv(a *aio.AIO) {
	iov := a.IOV()
	if to := a.Timeout(); to > 0 {
		c.wc.SetReadDeadline(time.Now().Add(to))
	} else {
		c.wc.SetReadDeadline(time.Time{})
	}
	_, data, err := c.wc.ReadMessage()
	if err != nil {
		a.FinishError(classifyErr(err))
		return
	}
	if len(iov) == 0 {
		a.Finish(nil, 0)
		return
	}
	n := copy(iov[0], data)
	a.Finish(nil, n)
}

// classifyErr maps a gorilla/websocket error to this library's error
// taxonomy, including the close-code cases of spec.md §4.5: 1009
// (message too big), 1002 (protocol error), 1006 (abnormal, surfaced as
// connection-shut).
func classifyErr(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return errs.New(errs.TimedOut)
	}
	if ce, ok := err.(*websocket.CloseError); ok {
		switch ce.Code {
		case websocket.CloseMessageTooBig:
			return errs.New(errs.MessageTooBig)
		case websocket.CloseProtocolError:
			return errs.New(errs.ProtocolError)
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			return errs.New(errs.Closed)
		default:
			return errs.Wrap(errs.ConnectionShut, "ws close", err)
		}
	}
	return errs.Wrap(errs.ConnectionShut, "ws", err)
}

func (c *Conn) Close() error {
	c.wc.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.wc.Close()
}

func (c *Conn) Stop() { c.Close() }

func (c *Conn) Get(name string) (any, error) {
	switch name {
	case "local-addr":
		return c.wc.LocalAddr(), nil
	case "remote-addr":
		return c.wc.RemoteAddr(), nil
	case "subprotocol":
		return c.wc.Subprotocol(), nil
	default:
		return nil, errs.New(errs.NotSupported)
	}
}

func (c *Conn) Set(name string, val any) error {
	return errs.New(errs.NotSupported)
}

// Dialer performs the client-side HTTP upgrade handshake of spec.md
// §4.5 via websocket.Dialer.
type Dialer struct {
	network  string
	useTLS   bool
	url      string
	subproto []string
	recvmax  int64
}

// NewDialer builds a Dialer for scheme (ws/ws4/ws6/wss/wss4/wss6)
// dialing url.
func NewDialer(scheme, url string, subproto []string, recvmax int64) (*Dialer, error) {
	network, useTLS, err := resolveWSNetwork(scheme)
	if err != nil {
		return nil, err
	}
	return &Dialer{network: network, useTLS: useTLS, url: url, subproto: subproto, recvmax: recvmax}, nil
}

func (d *Dialer) Dial(a *aio.AIO) {
	timeout := a.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dialer := &websocket.Dialer{
		Subprotocols:     d.subproto,
		HandshakeTimeout: timeout,
	}
	if d.network != "" && d.network != "tcp" {
		nf := d.network
		dialer.NetDialContext = func(ctx context.Context, _, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, nf, addr)
		}
	}
	if d.useTLS {
		cfg, err := devClientTLSConfig()
		if err != nil {
			a.FinishError(errs.Wrap(errs.InvalidArgument, "wss dev tls config", err))
			return
		}
		dialer.TLSClientConfig = cfg
	}
	wc, resp, err := dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		status := ""
		if resp != nil {
			status = resp.Status
		}
		a.FinishError(errs.Wrap(errs.ConnectionRefused, status, err))
		return
	}
	a.SetOutput(0, New(wc, d.recvmax))
	a.Finish(nil, 0)
}

func (d *Dialer) Close() error { return nil }

// Listener accepts WebSocket upgrades over an http.Server: Listen binds
// the TCP socket and starts serving; Accept blocks until an upgrade
// completes and hands back the resulting Conn.
type Listener struct {
	network  string
	useTLS   bool
	addr     string
	upgrader websocket.Upgrader
	recvmax  int64
	nl       net.Listener
	srv      *http.Server
	accepted chan *websocket.Conn
}

// NewListener builds a Listener for scheme (ws/ws4/ws6/wss/wss4/wss6)
// and addr; subproto lists the sub-protocols this server supports
// (spec.md §4.5's optional Sec-WebSocket-Protocol negotiation).
func NewListener(scheme, addr string, subproto []string, recvmax int64) (*Listener, error) {
	network, useTLS, err := resolveWSNetwork(scheme)
	if err != nil {
		return nil, err
	}
	return &Listener{
		network: network,
		useTLS:  useTLS,
		addr:    addr,
		upgrader: websocket.Upgrader{
			Subprotocols:    subproto,
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		recvmax:  recvmax,
		accepted: make(chan *websocket.Conn),
	}, nil
}

func (l *Listener) Listen() error {
	network := l.network
	if network == "" {
		network = "tcp"
	}
	nl, err := net.Listen(network, l.addr)
	if err != nil {
		return errs.Wrap(errs.InvalidAddress, l.addr, err)
	}
	if l.useTLS {
		cfg, err := devServerTLSConfig()
		if err != nil {
			return errs.Wrap(errs.InvalidArgument, "wss dev tls config", err)
		}
		nl = stdtls.NewListener(nl, cfg)
	}
	l.nl = nl
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		wc, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		l.accepted <- wc
	})
	l.srv = &http.Server{Handler: mux}
	go l.srv.Serve(nl)
	return nil
}

func (l *Listener) Accept(a *aio.AIO) {
	wc, ok := <-l.accepted
	if !ok {
		a.FinishError(errs.New(errs.Closed))
		return
	}
	a.SetOutput(0, New(wc, l.recvmax))
	a.Finish(nil, 0)
}

func (l *Listener) Close() error {
	if l.srv != nil {
		l.srv.Close()
	}
	return nil
}
