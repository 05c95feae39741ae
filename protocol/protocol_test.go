package protocol

import (
	"testing"

	"github.com/encodeous/weft/state"
	"github.com/gopacket/gopacket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRREQWireLayout(t *testing.T) {
	req := &RREQ{
		Src:      0x0102,
		Dst:      0x0304,
		SrcElems: 2,
		HopCount: 1,
		Rssi:     -40,
		D:        true,
		SrcSeq:   0x0a0b0c,
		DstSeq:   0x000102,
	}
	b, err := Marshal(req)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x02, 0x01, // src
		0x04, 0x03, // dst
		0x02, 0x00, // elems
		0x01,       // hops
		0xd8,       // rssi
		0x02,       // flags
		0x0c, 0x0b, 0x0a,
		0x02, 0x01, 0x00,
	}, b)

	m, err := Decode(OpRREQ, b)
	require.NoError(t, err)
	got := m.(*RREQ)
	assert.Equal(t, req.Src, got.Src)
	assert.Equal(t, req.Dst, got.Dst)
	assert.Equal(t, req.Rssi, got.Rssi)
	assert.True(t, got.D)
	assert.False(t, got.U)
	assert.Equal(t, uint32(0x0a0b0c), got.SrcSeq)
	assert.Equal(t, uint32(0x000102), got.DstSeq)
}

func TestRREQUnknownSeqOmitsDstSeq(t *testing.T) {
	req := &RREQ{Src: 1, Dst: 2, SrcElems: 1, U: true, I: true, SrcSeq: 7, DstSeq: 99}
	b, err := Marshal(req)
	require.NoError(t, err)
	assert.Len(t, b, 12)
	assert.Equal(t, uint8(flagU|flagI), b[8])

	m, err := Decode(OpRREQ, b)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), m.(*RREQ).DstSeq)
}

func TestRREQSeqTruncatedTo24Bits(t *testing.T) {
	req := &RREQ{Src: 1, Dst: 2, U: true, SrcSeq: 0x12345678}
	b, err := Marshal(req)
	require.NoError(t, err)
	m, err := Decode(OpRREQ, b)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x345678), m.(*RREQ).SrcSeq)
}

func TestRREPWireLayout(t *testing.T) {
	rep := &RREP{Rssi: -1, Src: 0x0001, Dst: 0x0010, DstSeq: 0x01020304, HopCount: 3, DstElems: 4}
	b, err := Marshal(rep)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0x01, 0x00, 0x10, 0x00, 0x04, 0x03, 0x02, 0x01, 0x03, 0x04, 0x00}, b)
	m, err := Decode(OpRREP, b)
	require.NoError(t, err)
	got := m.(*RREP)
	assert.Equal(t, rep.DstSeq, got.DstSeq)
	assert.Equal(t, rep.DstElems, got.DstElems)
	assert.Equal(t, rep.Rssi, got.Rssi)
}

func TestRWAITWireLayout(t *testing.T) {
	w := &RWAIT{Dst: 0x0020, Src: 0x0001, SrcSeq: 42, HopCount: 2}
	b, err := Marshal(w)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x20, 0x00, 0x01, 0x00, 42, 0, 0, 0, 2}, b)
	m, err := Decode(OpRWAIT, b)
	require.NoError(t, err)
	assert.Equal(t, w.SrcSeq, m.(*RWAIT).SrcSeq)
}

func TestRERRWireLayout(t *testing.T) {
	rerr := &RERR{Dests: []state.RerrDest{
		{Dst: 0x0005, DstSeq: 9},
		{Dst: 0x0100, DstSeq: 0x010203},
	}}
	b, err := Marshal(rerr)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0x05, 0x00, 9, 0, 0, 0x00, 0x01, 0x03, 0x02, 0x01}, b)
	m, err := Decode(OpRERR, b)
	require.NoError(t, err)
	assert.Equal(t, rerr.Dests, m.(*RERR).Dests)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode(OpRREQ, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrTruncated)

	// U unset but no destination sequence number
	_, err = Decode(OpRREQ, make([]byte, 12))
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = Decode(OpRERR, []byte{3, 1, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = Decode(OpRWAIT, nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode(Opcode(0x42), []byte{1})
	assert.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestSerializeShortBuffer(t *testing.T) {
	rep := &RREP{}
	assert.ErrorIs(t, rep.SerializeToSizedBuffer(make([]byte, 4)), ErrBufferLengthTooShort)
}

func TestRERRTooManyDestinations(t *testing.T) {
	rerr := &RERR{Dests: make([]state.RerrDest, 300)}
	_, err := Marshal(rerr)
	assert.ErrorIs(t, err, ErrTooManyDestinations)
}

func TestDecodeFromBytesKeepsTrailingPayload(t *testing.T) {
	w := &RWAIT{}
	data := []byte{1, 0, 2, 0, 3, 0, 0, 0, 4, 0xaa}
	require.NoError(t, w.DecodeFromBytes(data, gopacket.NilDecodeFeedback))
	assert.Equal(t, []byte{0xaa}, w.LayerPayload())
	assert.Equal(t, state.Addr(1), w.Dst)
}

func TestParseOpcode(t *testing.T) {
	for in, want := range map[string]Opcode{
		"rreq":  OpRREQ,
		"RREP":  OpRREP,
		"RWait": OpRWAIT,
		"0x0e":  OpRERR,
		"11":    OpRREQ,
	} {
		op, err := ParseOpcode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, op, in)
	}
	_, err := ParseOpcode("0x01")
	assert.ErrorIs(t, err, ErrUnknownOpcode)
	_, err = ParseOpcode("hello")
	assert.ErrorIs(t, err, ErrUnknownOpcode)
	_, err = ParseOpcode("0x100")
	assert.ErrorIs(t, err, ErrUnknownOpcode)
}
