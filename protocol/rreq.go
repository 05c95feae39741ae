package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/encodeous/weft/state"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

const (
	flagG = 1 << iota // gratuitous reply
	flagD             // only the destination may answer
	flagU             // destination sequence number unknown
	flagI             // directed request, sent along a known route
)

const rreqBaseSize = 12

type RREQ struct {
	layers.BaseLayer
	Src      state.Addr
	Dst      state.Addr
	SrcElems uint16
	HopCount uint8
	Rssi     int8
	G        bool
	D        bool
	U        bool
	I        bool
	SrcSeq   uint32 // 24 bits on the wire
	DstSeq   uint32 // only carried when U is unset
}

func (r *RREQ) Opcode() Opcode {
	return OpRREQ
}

func (r *RREQ) LayerType() gopacket.LayerType {
	return LayerTypeRREQ
}

func (r *RREQ) CanDecode() gopacket.LayerClass {
	return LayerTypeRREQ
}

func (r *RREQ) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func (r *RREQ) Size() int {
	if r.U {
		return rreqBaseSize
	}
	return rreqBaseSize + 3
}

func (r *RREQ) flags() uint8 {
	var f uint8
	if r.G {
		f |= flagG
	}
	if r.D {
		f |= flagD
	}
	if r.U {
		f |= flagU
	}
	if r.I {
		f |= flagI
	}
	return f
}

func (r *RREQ) SerializeToSizedBuffer(b []byte) error {
	if len(b) < r.Size() {
		return ErrBufferLengthTooShort
	}
	binary.LittleEndian.PutUint16(b[0:2], uint16(r.Src))
	binary.LittleEndian.PutUint16(b[2:4], uint16(r.Dst))
	binary.LittleEndian.PutUint16(b[4:6], r.SrcElems)
	b[6] = r.HopCount
	b[7] = uint8(r.Rssi)
	b[8] = r.flags()
	putUint24(b[9:12], r.SrcSeq)
	if !r.U {
		putUint24(b[12:15], r.DstSeq)
	}
	return nil
}

// SerializeTo writes the serialized form of this layer into the
// SerializationBuffer, implementing gopacket.SerializableLayer.
func (r *RREQ) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	return serializeTo(r, b)
}

func (r *RREQ) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < rreqBaseSize {
		df.SetTruncated()
		return fmt.Errorf("%w: RREQ is %d bytes", ErrTruncated, len(data))
	}
	r.Src = state.Addr(binary.LittleEndian.Uint16(data[0:2]))
	r.Dst = state.Addr(binary.LittleEndian.Uint16(data[2:4]))
	r.SrcElems = binary.LittleEndian.Uint16(data[4:6])
	r.HopCount = data[6]
	r.Rssi = int8(data[7])
	r.G = data[8]&flagG != 0
	r.D = data[8]&flagD != 0
	r.U = data[8]&flagU != 0
	r.I = data[8]&flagI != 0
	r.SrcSeq = uint24(data[9:12])
	r.DstSeq = 0
	if !r.U {
		if len(data) < rreqBaseSize+3 {
			df.SetTruncated()
			return fmt.Errorf("%w: RREQ without U flag is %d bytes", ErrTruncated, len(data))
		}
		r.DstSeq = uint24(data[12:15])
	}
	n := r.Size()
	r.BaseLayer = layers.BaseLayer{Contents: data[:n], Payload: data[n:]}
	return nil
}

func (r *RREQ) String() string {
	flags := ""
	for _, f := range []struct {
		set  bool
		name string
	}{{r.G, "G"}, {r.D, "D"}, {r.U, "U"}, {r.I, "I"}} {
		if f.set {
			flags += f.name
		}
	}
	if flags == "" {
		flags = "-"
	}
	return fmt.Sprintf("(src: %s, dst: %s, elems: %d, hops: %d, rssi: %d, flags: %s, src_seq: %d, dst_seq: %d)",
		r.Src, r.Dst, r.SrcElems, r.HopCount, r.Rssi, flags, r.SrcSeq, r.DstSeq)
}

func decodeRREQ(data []byte, p gopacket.PacketBuilder) error {
	r := &RREQ{}
	if err := r.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(r)
	return nil
}
