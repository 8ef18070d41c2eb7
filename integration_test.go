package spio_test

import (
	"testing"
	"time"

	"github.com/opensp/spio"
	_ "github.com/opensp/spio/transport/tcp"
	_ "github.com/opensp/spio/transport/tls"
)

// TestInprocRoundTrip exercises spec.md §8 scenario S2 end to end (minus
// the specific REQ/REP protocol ids, which belong to a layer this
// package does not implement): dial and listen negotiate, then a
// message sent on one pipe arrives byte-for-byte on the other.
func TestInprocRoundTrip(t *testing.T) {
	serverSock := spio.NewSocket(0x0031)
	defer serverSock.Close()
	clientSock := spio.NewSocket(0x0030)
	defer clientSock.Close()

	name := "inproc-round-trip-test"
	if _, err := serverSock.Listen("inproc://" + name); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if _, err := clientSock.Dial("inproc://" + name); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if len(clientSock.Pipes()) == 1 && len(serverSock.Pipes()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("pipes never negotiated")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cp := clientSock.Pipes()[0]
	sp := serverSock.Pipes()[0]

	msg := spio.NewMessage(0)
	msg.SetBody([]byte{0x41})
	// inproc is backed by net.Pipe, whose writes complete only as the
	// peer reads, so the send runs alongside the receive.
	sendErr := make(chan error, 1)
	go func() { sendErr <- cp.Send(msg) }()

	got, err := sp.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-sendErr; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(got.Body()) != "\x41" {
		t.Fatalf("got body %v, want [0x41]", got.Body())
	}
}

// TestTLSTCPRoundTrip exercises the tls+tcp scheme through Socket.Dial/
// Listen end to end, proving spio.Underlay actually drives scheme
// resolution in the registered transport/tls factories (registry.go,
// url.go) rather than sitting unused.
func TestTLSTCPRoundTrip(t *testing.T) {
	serverSock := spio.NewSocket(0x0031)
	defer serverSock.Close()
	clientSock := spio.NewSocket(0x0030)
	defer clientSock.Close()

	addr := "127.0.0.1:18443"
	if _, err := serverSock.Listen("tls+tcp://" + addr); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if _, err := clientSock.Dial("tls+tcp://" + addr); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if len(clientSock.Pipes()) == 1 && len(serverSock.Pipes()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("pipes never negotiated")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cp := clientSock.Pipes()[0]
	sp := serverSock.Pipes()[0]

	msg := spio.NewMessage(0)
	msg.SetBody([]byte{0x42})
	if err := cp.Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := sp.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(got.Body()) != "\x42" {
		t.Fatalf("got body %v, want [0x42]", got.Body())
	}
}
