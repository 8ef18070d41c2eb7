package tls

import (
	"testing"
	"time"

	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/selfcert"
)

func TestTLSDialListenRoundTrip(t *testing.T) {
	pool := aio.NewPool(2)
	defer pool.Close()

	ca, err := selfcert.NewCA("test-ca")
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := ca.IssueLeaf("test-leaf", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	srvRaw, err := selfcert.ServerConfig(leaf, ca, false)
	if err != nil {
		t.Fatal(err)
	}
	cliRaw, err := selfcert.ClientConfig(ca, nil, "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	srvCfg, err := NewConfig(srvRaw)
	if err != nil {
		t.Fatal(err)
	}
	cliCfg, err := NewConfig(cliRaw)
	if err != nil {
		t.Fatal(err)
	}

	ln, err := NewListener("tls+tcp", "127.0.0.1:0", srvCfg)
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

	dialer, err := NewDialer("tls+tcp", addr, cliCfg)
	if err != nil {
		t.Fatal(err)
	}
	dialDone := make(chan *aio.AIO, 1)
	da := aio.New(pool, func(a *aio.AIO) { dialDone <- a }, nil)
	da.SetTimeout(2 * time.Second)
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

func TestResolveNetworkRejectsUnknownScheme(t *testing.T) {
	if _, err := resolveNetwork("tls+udp"); err == nil {
		t.Fatal("expected an error for an unknown scheme")
	}
}
