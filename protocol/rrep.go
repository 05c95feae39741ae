package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/encodeous/weft/state"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

const rrepSize = 12

// RREP travels from the destination back to the originator of a request. Src is the
// originator, Dst is the primary address of the replying node.
type RREP struct {
	layers.BaseLayer
	Rssi     int8
	Src      state.Addr
	Dst      state.Addr
	DstSeq   uint32
	HopCount uint8
	DstElems uint16
}

func (r *RREP) Opcode() Opcode {
	return OpRREP
}

func (r *RREP) LayerType() gopacket.LayerType {
	return LayerTypeRREP
}

func (r *RREP) CanDecode() gopacket.LayerClass {
	return LayerTypeRREP
}

func (r *RREP) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func (r *RREP) Size() int {
	return rrepSize
}

func (r *RREP) SerializeToSizedBuffer(b []byte) error {
	if len(b) < r.Size() {
		return ErrBufferLengthTooShort
	}
	b[0] = uint8(r.Rssi)
	binary.LittleEndian.PutUint16(b[1:3], uint16(r.Src))
	binary.LittleEndian.PutUint16(b[3:5], uint16(r.Dst))
	binary.LittleEndian.PutUint32(b[5:9], r.DstSeq)
	b[9] = r.HopCount
	binary.LittleEndian.PutUint16(b[10:12], r.DstElems)
	return nil
}

func (r *RREP) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	return serializeTo(r, b)
}

func (r *RREP) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < rrepSize {
		df.SetTruncated()
		return fmt.Errorf("%w: RREP is %d bytes", ErrTruncated, len(data))
	}
	r.Rssi = int8(data[0])
	r.Src = state.Addr(binary.LittleEndian.Uint16(data[1:3]))
	r.Dst = state.Addr(binary.LittleEndian.Uint16(data[3:5]))
	r.DstSeq = binary.LittleEndian.Uint32(data[5:9])
	r.HopCount = data[9]
	r.DstElems = binary.LittleEndian.Uint16(data[10:12])
	r.BaseLayer = layers.BaseLayer{Contents: data[:rrepSize], Payload: data[rrepSize:]}
	return nil
}

func (r *RREP) String() string {
	return fmt.Sprintf("(src: %s, dst: %s, elems: %d, hops: %d, rssi: %d, dst_seq: %d)",
		r.Src, r.Dst, r.DstElems, r.HopCount, r.Rssi, r.DstSeq)
}

func decodeRREP(data []byte, p gopacket.PacketBuilder) error {
	r := &RREP{}
	if err := r.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(r)
	return nil
}
