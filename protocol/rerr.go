package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/encodeous/weft/state"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

const rerrDestSize = 5

// RERR lists destinations that are no longer reachable through the sender
type RERR struct {
	layers.BaseLayer
	Dests []state.RerrDest
}

func (r *RERR) Opcode() Opcode {
	return OpRERR
}

func (r *RERR) LayerType() gopacket.LayerType {
	return LayerTypeRERR
}

func (r *RERR) CanDecode() gopacket.LayerClass {
	return LayerTypeRERR
}

func (r *RERR) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func (r *RERR) Size() int {
	return 1 + rerrDestSize*len(r.Dests)
}

func (r *RERR) SerializeToSizedBuffer(b []byte) error {
	if len(r.Dests) > 0xff {
		return fmt.Errorf("%w: %d", ErrTooManyDestinations, len(r.Dests))
	}
	if len(b) < r.Size() {
		return ErrBufferLengthTooShort
	}
	b[0] = uint8(len(r.Dests))
	for i, d := range r.Dests {
		off := 1 + i*rerrDestSize
		binary.LittleEndian.PutUint16(b[off:off+2], uint16(d.Dst))
		putUint24(b[off+2:off+5], d.DstSeq)
	}
	return nil
}

func (r *RERR) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	return serializeTo(r, b)
}

func (r *RERR) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 1 {
		df.SetTruncated()
		return fmt.Errorf("%w: empty RERR", ErrTruncated)
	}
	n := int(data[0])
	size := 1 + n*rerrDestSize
	if len(data) < size {
		df.SetTruncated()
		return fmt.Errorf("%w: RERR with %d destinations is %d bytes", ErrTruncated, n, len(data))
	}
	r.Dests = make([]state.RerrDest, n)
	for i := range n {
		off := 1 + i*rerrDestSize
		r.Dests[i] = state.RerrDest{
			Dst:    state.Addr(binary.LittleEndian.Uint16(data[off : off+2])),
			DstSeq: uint24(data[off+2 : off+5]),
		}
	}
	r.BaseLayer = layers.BaseLayer{Contents: data[:size], Payload: data[size:]}
	return nil
}

func (r *RERR) String() string {
	parts := make([]string, 0, len(r.Dests))
	for _, d := range r.Dests {
		parts = append(parts, fmt.Sprintf("%s@%d", d.Dst, d.DstSeq))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func decodeRERR(data []byte, p gopacket.PacketBuilder) error {
	r := &RERR{}
	if err := r.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(r)
	return nil
}
