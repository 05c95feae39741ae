package state

import "fmt"

// Addr is a 16-bit mesh element address
type Addr uint16

const (
	// AddrUnassigned doubles as the wildcard in route table queries
	AddrUnassigned Addr = 0x0000
	AddrAllNodes   Addr = 0xffff
)

func (a Addr) String() string {
	return fmt.Sprintf("0x%04x", uint16(a))
}

func (a Addr) IsUnicast() bool {
	return a != AddrUnassigned && a < 0x8000
}

// InRange reports whether addr lies within [base, base+count)
func InRange(addr, base Addr, count uint16) bool {
	if count == 0 {
		count = 1
	}
	return addr >= base && uint32(addr) < uint32(base)+uint32(count)
}

type NetIdx uint16

// RxCtx describes the network layer context of a received control message
type RxCtx struct {
	Src     Addr // the neighbour that transmitted the message
	Dst     Addr
	NetIdx  NetIdx
	RecvTTL uint8
	Rssi    int8
}

// TxCtx describes where an outgoing message is addressed
type TxCtx struct {
	NetIdx  NetIdx
	Dst     Addr
	SendTTL uint8
	Src     Addr
}

func (t TxCtx) String() string {
	return fmt.Sprintf("(net: %d, src: %s, dst: %s, ttl: %d)", t.NetIdx, t.Src, t.Dst, t.SendTTL)
}

// Node exposes the local element layout and sequence numbers, owned by the transport
type Node interface {
	PrimaryAddr() Addr
	ElemCount() uint16
	// FindElement reports whether addr is one of our own elements
	FindElement(addr Addr) bool
	NextSeq() uint32
	RelayEnabled() bool
}
