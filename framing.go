package spio

import (
	"encoding/binary"
	"time"

	"github.com/opensp/spio/aio"
	"github.com/opensp/spio/errs"
)

// negotiationTimeout is the fixed deadline for the 8-byte handshake, per
// spec.md §4.2/§4.3.
const negotiationTimeout = 10 * time.Second

// negotiationMagic is the fixed prefix of the 8-byte negotiation frame:
// 00 53 50 00 <proto_hi> <proto_lo> 00 00.
var negotiationMagic = [4]byte{0x00, 'S', 'P', 0x00}

// buildNegotiation encodes the 8-byte negotiation frame for protoID.
func buildNegotiation(protoID uint16) [8]byte {
	var b [8]byte
	copy(b[0:4], negotiationMagic[:])
	binary.BigEndian.PutUint16(b[4:6], protoID)
	return b
}

// negotiate performs the SP negotiation handshake over stream: send our
// 8 bytes, read the peer's 8 bytes, validate its magic, and return the
// peer's protocol id. Per spec.md §4.3 either order (write-then-read or
// read-then-write) is valid; we send and receive concurrently, so the
// handshake also completes over an unbuffered stream such as the
// net.Pipe behind inproc://, where a write blocks until the peer reads.
func negotiate(pool *aio.Pool, stream Stream, myProtoID uint16) (peerProtoID uint16, err error) {
	vv("negotiate: sending proto 0x%04x", myProtoID)
	out := buildNegotiation(myProtoID)
	sendErr := make(chan error, 1)
	go func() { sendErr <- streamSendAll(pool, stream, out[:], negotiationTimeout) }()

	in := make([]byte, 8)
	if err := streamRecvAll(pool, stream, in, negotiationTimeout); err != nil {
		return 0, errs.Wrap(errs.ProtocolError, "negotiation recv", err)
	}
	if err := <-sendErr; err != nil {
		return 0, errs.Wrap(errs.ProtocolError, "negotiation send", err)
	}
	if in[0] != negotiationMagic[0] || in[1] != negotiationMagic[1] ||
		in[2] != negotiationMagic[2] || in[3] != negotiationMagic[3] ||
		in[6] != 0 || in[7] != 0 {
		return 0, errs.New(errs.ProtocolError)
	}
	peerProtoID = binary.BigEndian.Uint16(in[4:6])
	vv("negotiate: peer proto 0x%04x", peerProtoID)
	return peerProtoID, nil
}

// lengthPrefixSize is the width of the message-phase length prefix,
// spec.md §4.3: an 8-byte big-endian unsigned length.
const lengthPrefixSize = 8

// sendMessage writes msg's header then body, preceded by an 8-byte
// big-endian length of header+body combined.
func sendMessage(pool *aio.Pool, stream Stream, msg *Message, timeout time.Duration) error {
	header := msg.Header()
	body := msg.Body()
	total := uint64(len(header) + len(body))

	var lenBuf [lengthPrefixSize]byte
	binary.BigEndian.PutUint64(lenBuf[:], total)

	if err := streamSendAll(pool, stream, lenBuf[:], timeout); err != nil {
		return err
	}
	if len(header) > 0 {
		if err := streamSendAll(pool, stream, header, timeout); err != nil {
			return err
		}
	}
	if len(body) > 0 {
		if err := streamSendAll(pool, stream, body, timeout); err != nil {
			return err
		}
	}
	return nil
}

// recvMessage reads the 8-byte length prefix followed by that many
// bytes, enforcing recvmax (0 disables the check) per spec.md §4.3.
// Exceeding recvmax returns errs.MessageTooBig without closing the pipe;
// the caller decides whether to close.
func recvMessage(pool *aio.Pool, stream Stream, recvmax int, timeout time.Duration) (*Message, error) {
	var lenBuf [lengthPrefixSize]byte
	if err := streamRecvAll(pool, stream, lenBuf[:], timeout); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint64(lenBuf[:])
	if recvmax > 0 && n > uint64(recvmax) {
		return nil, errs.New(errs.MessageTooBig)
	}
	body := make([]byte, n)
	if n > 0 {
		if err := streamRecvAll(pool, stream, body, timeout); err != nil {
			return nil, err
		}
	}
	m := NewMessage(0)
	m.SetBody(body)
	return m, nil
}
