package tcp

import (
	"net"
	"testing"
	"time"

	"github.com/opensp/spio/aio"
)

func TestConnSendRecvRoundTrip(t *testing.T) {
	pool := aio.NewPool(2)
	defer pool.Close()

	client, server := net.Pipe()
	cc := New(client)
	sc := New(server)
	defer cc.Close()
	defer sc.Close()

	want := []byte("hello, pipe")
	sendDone := make(chan struct{})
	sa := aio.New(pool, func(*aio.AIO) { close(sendDone) }, nil)
	sa.SetIOV([][]byte{want})
	sa.Start(nil, nil)

	recvBuf := make([]byte, len(want))
	recvDone := make(chan struct{})
	ra := aio.New(pool, func(*aio.AIO) { close(recvDone) }, nil)
	ra.SetIOV([][]byte{recvBuf})
	ra.Start(nil, nil)

	go cc.Send(sa)
	go sc.Recv(ra)

	<-sendDone
	<-recvDone

	if string(recvBuf) != string(want) {
		t.Fatalf("got %q, want %q", recvBuf, want)
	}
}

func TestTCPDialListenRoundTrip(t *testing.T) {
	pool := aio.NewPool(2)
	defer pool.Close()

	ln, err := NewListener("tcp", "127.0.0.1:0")
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

	dialer, err := NewDialer("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	dialDone := make(chan *aio.AIO, 1)
	da := aio.New(pool, func(a *aio.AIO) { dialDone <- a }, nil)
	da.SetTimeout(time.Second)
	da.Start(nil, nil)
	go dialer.Dial(da)

	select {
	case a := <-dialDone:
		if a.Result() != nil {
			t.Fatalf("dial failed: %v", a.Result())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dial never completed")
	}
	select {
	case a := <-acceptDone:
		if a.Result() != nil {
			t.Fatalf("accept failed: %v", a.Result())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("accept never completed")
	}
}
