// Package protocol implements the wire format of the route discovery control messages.
// All multi-byte fields are little endian.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gopacket/gopacket"
)

type Opcode uint8

const (
	OpRREQ  Opcode = 0x0B
	OpRREP  Opcode = 0x0C
	OpRWAIT Opcode = 0x0D
	OpRERR  Opcode = 0x0E
)

func (o Opcode) String() string {
	switch o {
	case OpRREQ:
		return "RREQ"
	case OpRREP:
		return "RREP"
	case OpRWAIT:
		return "RWAIT"
	case OpRERR:
		return "RERR"
	}
	return fmt.Sprintf("op(0x%02x)", uint8(o))
}

// ParseOpcode accepts a message name such as "rreq" or a numeric opcode
func ParseOpcode(s string) (Opcode, error) {
	s = strings.TrimSpace(s)
	for _, op := range []Opcode{OpRREQ, OpRREP, OpRWAIT, OpRERR} {
		if strings.EqualFold(s, op.String()) {
			return op, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOpcode, s)
	}
	op := Opcode(v)
	if _, err := LayerTypeFor(op); err != nil {
		return 0, err
	}
	return op, nil
}

var (
	ErrBufferLengthTooShort = errors.New("err buffer length too short")
	ErrTruncated            = errors.New("truncated control message")
	ErrUnknownOpcode        = errors.New("unknown control opcode")
	ErrTooManyDestinations  = errors.New("too many destinations for one RERR")
)

// Message is a control PDU
type Message interface {
	gopacket.SerializableLayer
	Opcode() Opcode
	Size() int
	SerializeToSizedBuffer(b []byte) error
}

var (
	LayerTypeRREQ = gopacket.RegisterLayerType(4400, gopacket.LayerTypeMetadata{
		Name: "RREQ", Decoder: gopacket.DecodeFunc(decodeRREQ),
	})
	LayerTypeRREP = gopacket.RegisterLayerType(4401, gopacket.LayerTypeMetadata{
		Name: "RREP", Decoder: gopacket.DecodeFunc(decodeRREP),
	})
	LayerTypeRWAIT = gopacket.RegisterLayerType(4402, gopacket.LayerTypeMetadata{
		Name: "RWAIT", Decoder: gopacket.DecodeFunc(decodeRWAIT),
	})
	LayerTypeRERR = gopacket.RegisterLayerType(4403, gopacket.LayerTypeMetadata{
		Name: "RERR", Decoder: gopacket.DecodeFunc(decodeRERR),
	})
)

func LayerTypeFor(op Opcode) (gopacket.LayerType, error) {
	switch op {
	case OpRREQ:
		return LayerTypeRREQ, nil
	case OpRREP:
		return LayerTypeRREP, nil
	case OpRWAIT:
		return LayerTypeRWAIT, nil
	case OpRERR:
		return LayerTypeRERR, nil
	}
	return gopacket.LayerTypeZero, fmt.Errorf("%w: %s", ErrUnknownOpcode, op)
}

// Marshal serializes m into a new buffer
func Marshal(m Message) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{
		FixLengths: true,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("err serialize %s: %w", m.Opcode(), err)
	}
	return buf.Bytes(), nil
}

// Decode parses the payload of a control message with the given opcode
func Decode(op Opcode, payload []byte) (Message, error) {
	lt, err := LayerTypeFor(op)
	if err != nil {
		return nil, err
	}
	pkt := gopacket.NewPacket(payload, lt, gopacket.DecodeOptions{NoCopy: true})
	if el := pkt.ErrorLayer(); el != nil {
		return nil, el.Error()
	}
	m, ok := pkt.Layer(lt).(Message)
	if !ok {
		return nil, fmt.Errorf("expecting %s but got %T", op, pkt.Layer(lt))
	}
	return m, nil
}

func serializeTo(m Message, b gopacket.SerializeBuffer) error {
	p, err := b.AppendBytes(m.Size())
	if err != nil {
		return err
	}
	return m.SerializeToSizedBuffer(p)
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}
