package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/encodeous/weft/state"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

const rwaitSize = 9

// RWAIT tells the originator of a request that a route is known and it should keep waiting
type RWAIT struct {
	layers.BaseLayer
	Dst      state.Addr
	Src      state.Addr
	SrcSeq   uint32
	HopCount uint8
}

func (r *RWAIT) Opcode() Opcode {
	return OpRWAIT
}

func (r *RWAIT) LayerType() gopacket.LayerType {
	return LayerTypeRWAIT
}

func (r *RWAIT) CanDecode() gopacket.LayerClass {
	return LayerTypeRWAIT
}

func (r *RWAIT) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func (r *RWAIT) Size() int {
	return rwaitSize
}

func (r *RWAIT) SerializeToSizedBuffer(b []byte) error {
	if len(b) < r.Size() {
		return ErrBufferLengthTooShort
	}
	binary.LittleEndian.PutUint16(b[0:2], uint16(r.Dst))
	binary.LittleEndian.PutUint16(b[2:4], uint16(r.Src))
	binary.LittleEndian.PutUint32(b[4:8], r.SrcSeq)
	b[8] = r.HopCount
	return nil
}

func (r *RWAIT) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	return serializeTo(r, b)
}

func (r *RWAIT) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < rwaitSize {
		df.SetTruncated()
		return fmt.Errorf("%w: RWAIT is %d bytes", ErrTruncated, len(data))
	}
	r.Dst = state.Addr(binary.LittleEndian.Uint16(data[0:2]))
	r.Src = state.Addr(binary.LittleEndian.Uint16(data[2:4]))
	r.SrcSeq = binary.LittleEndian.Uint32(data[4:8])
	r.HopCount = data[8]
	r.BaseLayer = layers.BaseLayer{Contents: data[:rwaitSize], Payload: data[rwaitSize:]}
	return nil
}

func (r *RWAIT) String() string {
	return fmt.Sprintf("(src: %s, dst: %s, hops: %d, src_seq: %d)", r.Src, r.Dst, r.HopCount, r.SrcSeq)
}

func decodeRWAIT(data []byte, p gopacket.PacketBuilder) error {
	r := &RWAIT{}
	if err := r.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(r)
	return nil
}
