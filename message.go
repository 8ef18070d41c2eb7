package spio

import "sync"

// Message is a refcounted SP datagram with independently sized header and
// body regions, per spec.md §3. It plays the role the teacher's own
// Message (hdr.go) plays for its RPC frames, generalized here to a plain
// two-region buffer with no RPC-specific fields: SP protocol layers
// attach their own framing bytes to the header region, leaving the body
// untouched for the application payload.
type Message struct {
	mu     sync.Mutex
	header []byte
	body   []byte
	refs   int32
}

// NewMessage allocates a Message with an empty header and a body of the
// given length, and an initial refcount of 1.
func NewMessage(bodyLen int) *Message {
	return &Message{
		body: make([]byte, bodyLen),
		refs: 1,
	}
}

// Header returns the header region.
func (m *Message) Header() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.header
}

// SetHeader replaces the header region.
func (m *Message) SetHeader(h []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.header = h
}

// Body returns the body region.
func (m *Message) Body() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.body
}

// SetBody replaces the body region.
func (m *Message) SetBody(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = b
}

// Len returns the total wire length: header plus body.
func (m *Message) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.header) + len(m.body)
}

// Dup increments the refcount and returns m, for a caller that hands the
// same Message to more than one queue (e.g. a pipe's send queue and a
// retry timer).
func (m *Message) Dup() *Message {
	m.mu.Lock()
	m.refs++
	m.mu.Unlock()
	return m
}

// Free decrements the refcount, releasing the backing arrays once it
// reaches zero. Calling Free more times than the Message was Dup'd or
// created is a programming error.
func (m *Message) Free() {
	m.mu.Lock()
	defer m.mu.Unlock()
	assertf(m.refs > 0, "Message.Free: refcount already zero")
	m.refs--
	if m.refs == 0 {
		m.header = nil
		m.body = nil
	}
}
