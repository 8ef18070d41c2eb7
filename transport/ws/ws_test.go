package ws

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/errs"
)

func TestWSDialListenRoundTrip(t *testing.T) {
	pool := aio.NewPool(2)
	defer pool.Close()

	ln, err := NewListener("ws", "127.0.0.1:0", nil, DefaultRecvMax)
	if err != nil {
		t.Fatal(err)
	}
	if err := ln.Listen(); err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	addr := ln.nl.Addr().String()

	acceptDone := make(chan *aio.AIO, 1)
	aa := aio.New(pool, func(a *aio.AIO) { acceptDone <- a }, nil)
	aa.Start(nil, nil)
	go ln.Accept(aa)

	dialer, err := NewDialer("ws", "ws://"+addr+"/", nil, DefaultRecvMax)
	if err != nil {
		t.Fatal(err)
	}
	dialDone := make(chan *aio.AIO, 1)
	da := aio.New(pool, func(a *aio.AIO) { dialDone <- a }, nil)
	da.SetTimeout(2 * time.Second)
	da.Start(nil, nil)
	go dialer.Dial(da)

	var clientConn, serverConn *Conn
	select {
	case a := <-dialDone:
		if a.Result() != nil {
			t.Fatalf("dial failed: %v", a.Result())
		}
		clientConn = a.Output(0).(*Conn)
	case <-time.After(2 * time.Second):
		t.Fatal("dial never completed")
	}
	select {
	case a := <-acceptDone:
		if a.Result() != nil {
			t.Fatalf("accept failed: %v", a.Result())
		}
		serverConn = a.Output(0).(*Conn)
	case <-time.After(2 * time.Second):
		t.Fatal("accept never completed")
	}
	defer clientConn.Close()
	defer serverConn.Close()

	want := []byte("hello over websocket")
	sendDone := make(chan struct{})
	sa := aio.New(pool, func(*aio.AIO) { close(sendDone) }, nil)
	sa.SetIOV([][]byte{want})
	sa.Start(nil, nil)
	go clientConn.Send(sa)
	<-sendDone

	recvBuf := make([]byte, len(want))
	recvDone := make(chan struct{})
	ra := aio.New(pool, func(*aio.AIO) { close(recvDone) }, nil)
	ra.SetIOV([][]byte{recvBuf})
	ra.Start(nil, nil)
	go serverConn.Recv(ra)
	<-recvDone

	if string(recvBuf) != string(want) {
		t.Fatalf("got %q, want %q", recvBuf, want)
	}
}

func TestWSSDialListenRoundTrip(t *testing.T) {
	pool := aio.NewPool(2)
	defer pool.Close()

	ln, err := NewListener("wss", "127.0.0.1:0", nil, DefaultRecvMax)
	if err != nil {
		t.Fatal(err)
	}
	if err := ln.Listen(); err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	addr := ln.nl.Addr().String()

	acceptDone := make(chan *aio.AIO, 1)
	aa := aio.New(pool, func(a *aio.AIO) { acceptDone <- a }, nil)
	aa.Start(nil, nil)
	go ln.Accept(aa)

	dialer, err := NewDialer("wss", "wss://"+addr+"/", nil, DefaultRecvMax)
	if err != nil {
		t.Fatal(err)
	}
	dialDone := make(chan *aio.AIO, 1)
	da := aio.New(pool, func(a *aio.AIO) { dialDone <- a }, nil)
	da.SetTimeout(2 * time.Second)
	da.Start(nil, nil)
	go dialer.Dial(da)

	var clientConn, serverConn *Conn
	select {
	case a := <-dialDone:
		if a.Result() != nil {
			t.Fatalf("dial failed: %v", a.Result())
		}
		clientConn = a.Output(0).(*Conn)
	case <-time.After(2 * time.Second):
		t.Fatal("dial never completed")
	}
	select {
	case a := <-acceptDone:
		if a.Result() != nil {
			t.Fatalf("accept failed: %v", a.Result())
		}
		serverConn = a.Output(0).(*Conn)
	case <-time.After(2 * time.Second):
		t.Fatal("accept never completed")
	}
	defer clientConn.Close()
	defer serverConn.Close()

	want := []byte("hello over tls-wrapped websocket")
	sendDone := make(chan struct{})
	sa := aio.New(pool, func(*aio.AIO) { close(sendDone) }, nil)
	sa.SetIOV([][]byte{want})
	sa.Start(nil, nil)
	go clientConn.Send(sa)
	<-sendDone

	recvBuf := make([]byte, len(want))
	recvDone := make(chan struct{})
	ra := aio.New(pool, func(*aio.AIO) { close(recvDone) }, nil)
	ra.SetIOV([][]byte{recvBuf})
	ra.Start(nil, nil)
	go serverConn.Recv(ra)
	<-recvDone

	if string(recvBuf) != string(want) {
		t.Fatalf("got %q, want %q", recvBuf, want)
	}
}

func TestClassifyErrMapsCloseCodes(t *testing.T) {
	cases := []struct {
		code int
		want errs.Code
	}{
		{websocket.CloseMessageTooBig, errs.MessageTooBig},
		{websocket.CloseProtocolError, errs.ProtocolError},
		{websocket.CloseNormalClosure, errs.Closed},
	}
	for _, c := range cases {
		err := classifyErr(&websocket.CloseError{Code: c.code})
		if !errs.Is(err, c.want) {
			t.Fatalf("code %d: got %v, want %v", c.code, err, c.want)
		}
	}
}
