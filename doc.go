// Package spio implements the Scalability Protocols messaging core: a
// transport-agnostic pipe/endpoint lifecycle built on the AIO async I/O
// primitive (package aio), SP wire framing, and pluggable stream
// transports (see transport/tcp, transport/tls, transport/ws).
//
// A Socket owns a protocol id, a set of dialers and listeners, and the
// pipes they produce, one per live connection; the SP protocol logic
// itself is left to a package built on top. Every blocking send or
// receive on a pipe is driven through an *aio.AIO so that callers get consistent
// timeout, cancellation, and completion semantics regardless of which
// transport is underneath.
//
// Errors returned anywhere in this module carry one of the stable codes
// in package errs; callers should compare with errs.Is rather than
// string-matching error text.
package spio
