package wire

import "encoding/binary"

// ProtoNum is the IP protocol number this transport runs over (spec.md
// §4.1/§6): reserved, unassigned, used here to keep the segment header off
// of UDP/TCP port space entirely.
const ProtoNum = 222

// ChunkSize is P, the fixed payload size of every non-final DATA segment.
// The final DATA segment of a stream carries 1..ChunkSize bytes; carrying
// fewer than ChunkSize bytes is the in-band end-of-stream marker.
const ChunkSize = 64

// Valid header lengths, one per SACK block count (0, 1, 2, 3 blocks).
const (
	HLenNoBlocks  = 6
	HLen1Block    = 9
	HLen2Blocks   = 12
	HLen3Blocks   = 15
	MaxSACKBlocks = 3
)

// Frame is a byte-view over a segment header (and trailing payload),
// following the teacher's Frame pattern (udp.Frame): field accessors read
// directly out of the backing buffer with encoding/binary, nothing is
// copied out, and a frame's validity is only as good as the last call to
// ValidateSize.
type Frame struct {
	buf []byte
}

// NewFrame wraps buf, requiring at least the smallest possible header
// (HLenNoBlocks bytes). Call ValidateSize before trusting variable-length
// fields.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < HLenNoBlocks {
		return Frame{}, newMalformed("buffer shorter than minimum header (%d < %d)", len(buf), HLenNoBlocks)
	}
	return Frame{buf: buf}, nil
}

// RawData returns the full underlying buffer the frame was created with.
func (f Frame) RawData() []byte { return f.buf }

// IsACK reports the type bit: false is DATA, true is ACK.
func (f Frame) IsACK() bool { return f.buf[0]&0x80 != 0 }

// SetType sets the type bit (isACK=false -> DATA, true -> ACK).
func (f Frame) SetType(isACK bool) {
	if isACK {
		f.buf[0] |= 0x80
	} else {
		f.buf[0] &^= 0x80
	}
}

// Options returns the 7-bit options field (bit 0 is SACK-capable, rest reserved).
func (f Frame) Options() uint8 { return f.buf[0] & 0x7f }

// SetOptions sets the 7-bit options field, leaving the type bit untouched.
func (f Frame) SetOptions(opts uint8) {
	f.buf[0] = f.buf[0]&0x80 | (opts & 0x7f)
}

// SACKCapable reports option bit 0.
func (f Frame) SACKCapable() bool { return f.buf[0]&0x01 != 0 }

// SetSACKCapable sets or clears option bit 0, leaving other option bits and
// the type bit untouched.
func (f Frame) SetSACKCapable(capable bool) {
	if capable {
		f.buf[0] |= 0x01
	} else {
		f.buf[0] &^= 0x01
	}
}

// Len returns the payload length field in bytes (0 for ACKs).
func (f Frame) Len() uint16 { return binary.BigEndian.Uint16(f.buf[1:3]) }

// SetLen sets the payload length field.
func (f Frame) SetLen(n uint16) { binary.BigEndian.PutUint16(f.buf[1:3], n) }

// HLen returns the header length in bytes.
func (f Frame) HLen() uint8 { return f.buf[3] }

// SetHLen sets the header length in bytes. Callers should only use valid
// values (HLenNoBlocks, HLen1Block, HLen2Blocks, HLen3Blocks).
func (f Frame) SetHLen(hlen uint8) { f.buf[3] = hlen }

// Num returns the sequence/ack number field.
func (f Frame) Num() uint8 { return f.buf[4] }

// SetNum sets the sequence/ack number field.
func (f Frame) SetNum(n uint8) { f.buf[4] = n }

// Win returns the advertised window field.
func (f Frame) Win() uint8 { return f.buf[5] }

// SetWin sets the advertised window field.
func (f Frame) SetWin(w uint8) { f.buf[5] = w }

// BLen returns the number of SACK blocks (0-3). Only valid if HLen() >= 7;
// callers must not read this field otherwise (it is undefined, per
// spec.md §4: "decoders MUST treat fields whose hlen threshold is unmet as
// absent"). Decode never reads it: it takes the block count from HLen.
func (f Frame) BLen() uint8 { return f.buf[6] }

// SetBLen sets the number of SACK blocks. Caller must have sized buf for
// the corresponding hlen first.
func (f Frame) SetBLen(n uint8) { f.buf[6] = n }

// blockOffsets returns the (left, length) byte offsets of SACK block i
// (0-indexed, i in [0,3)) within the header, per spec.md §3's table.
// Block 0 has no leading pad byte; blocks 1 and 2 are preceded by a pad byte.
func blockOffsets(i int) (left, length int) {
	switch i {
	case 0:
		return 7, 8
	case 1:
		return 10, 11
	case 2:
		return 13, 14
	default:
		panic("wire: block index out of range")
	}
}

// Block returns the (left, length) pair of SACK block i (0-indexed). The
// caller is responsible for only requesting blocks present given HLen().
func (f Frame) Block(i int) (left, length uint8) {
	lo, ho := blockOffsets(i)
	return f.buf[lo], f.buf[ho]
}

// SetBlock sets the (left, length) pair of SACK block i (0-indexed).
func (f Frame) SetBlock(i int, left, length uint8) {
	lo, ho := blockOffsets(i)
	f.buf[lo] = left
	f.buf[ho] = length
	// Reserved pad byte(s) preceding blocks 1 and 2 are left zeroed by the
	// caller's buffer allocation; nothing to do here for block 0.
}

// Payload returns the payload section of the frame, sized by HLen()+Len().
// Call ValidateSize first.
func (f Frame) Payload() []byte {
	hlen := int(f.HLen())
	l := int(f.Len())
	return f.buf[hlen : hlen+l]
}

// ValidateSize checks that HLen is one of the four valid values and that
// the backing buffer is large enough to hold the declared header and
// payload. It is the single gate between "bytes off the wire" and every
// other accessor on Frame and Segment.
func (f Frame) ValidateSize() error {
	hlen := f.HLen()
	switch hlen {
	case HLenNoBlocks, HLen1Block, HLen2Blocks, HLen3Blocks:
	default:
		return newMalformed("hlen=%d is not one of {6,9,12,15}", hlen)
	}
	if len(f.buf) < int(hlen) {
		return newMalformed("buffer shorter than declared hlen (%d < %d)", len(f.buf), hlen)
	}
	need := int(hlen) + int(f.Len())
	if len(f.buf) < need {
		return newMalformed("buffer shorter than hlen+len (%d < %d)", len(f.buf), need)
	}
	return nil
}

// blockCountFromHLen returns how many SACK blocks a valid hlen encodes.
func blockCountFromHLen(hlen uint8) int {
	switch hlen {
	case HLenNoBlocks:
		return 0
	case HLen1Block:
		return 1
	case HLen2Blocks:
		return 2
	case HLen3Blocks:
		return 3
	default:
		return -1
	}
}

// hlenFromBlockCount is the inverse of blockCountFromHLen.
func hlenFromBlockCount(n int) uint8 {
	switch n {
	case 0:
		return HLenNoBlocks
	case 1:
		return HLen1Block
	case 2:
		return HLen2Blocks
	case 3:
		return HLen3Blocks
	default:
		panic("wire: block count out of range")
	}
}
