package spio

// PipeStat is a point-in-time snapshot of one pipe's introspection
// counters (SPEC_FULL.md supplemental feature 2). Plain Go structs: no
// wire codec runs over these, so there is nothing here for greenpack (the
// teacher's msgp-family generator) to generate against -- see DESIGN.md.
type PipeStat struct {
	ID           uint32
	PeerProtocol uint16
	MessagesSent uint64
	MessagesRecv uint64
	SendErrors   uint64
	RecvErrors   uint64
}

// SocketStat aggregates a Socket's endpoints and pipes for introspection.
type SocketStat struct {
	ProtoID      uint16
	NumPipes     int
	NumDialers   int
	NumListeners int
	Pipes        []PipeStat
	Rejects      uint64
}
