package state

import "sync/atomic"

// LocalNode is the Node backing a configured (or simulated) device
type LocalNode struct {
	Address  Addr
	Elements uint16
	Relay    bool
	seq      atomic.Uint32
}

func NewLocalNode(address Addr, elements uint16, relay bool) *LocalNode {
	return &LocalNode{
		Address:  address,
		Elements: max(elements, 1),
		Relay:    relay,
	}
}

func (n *LocalNode) PrimaryAddr() Addr {
	return n.Address
}

func (n *LocalNode) ElemCount() uint16 {
	return n.Elements
}

func (n *LocalNode) FindElement(addr Addr) bool {
	return InRange(addr, n.Address, n.Elements)
}

// NextSeq hands out 24-bit sequence numbers, as carried by the RREQ
func (n *LocalNode) NextSeq() uint32 {
	return n.seq.Add(1) & 0xffffff
}

// Seq returns the last sequence number handed out
func (n *LocalNode) Seq() uint32 {
	return n.seq.Load() & 0xffffff
}

func (n *LocalNode) SetSeq(seq uint32) {
	n.seq.Store(seq)
}

func (n *LocalNode) RelayEnabled() bool {
	return n.Relay
}
