package wire

// Block identifies a contiguous run of out-of-order sequence numbers the
// receiver holds: (left, length), per spec.md's SACK block definition.
type Block struct {
	Left   uint8
	Length uint8
}

// Segment is the decoded, in-memory form of a header+payload, the
// counterpart to the raw byte-view Frame (same split as tcp.Frame vs
// tcp.Segment in the teacher). Sender and receiver logic is written
// entirely in terms of Segment; Frame only exists at the wire boundary.
type Segment struct {
	IsACK       bool
	SACKCapable bool
	Num         uint8
	Win         uint8
	Payload     []byte
	Blocks      []Block
}

// Encode writes seg into dst and returns the number of bytes written
// (header + payload). dst must be at least HeaderLen(seg)+len(seg.Payload)
// bytes. Len and HLen are derived from seg, never taken from the caller.
func Encode(dst []byte, seg Segment) (int, error) {
	hlen := hlenFromBlockCount(min(len(seg.Blocks), MaxSACKBlocks))
	total := int(hlen) + len(seg.Payload)
	if len(dst) < total {
		return 0, newMalformed("dst too small: need %d, have %d", total, len(dst))
	}
	f, err := NewFrame(dst[:total])
	if err != nil {
		return 0, err
	}
	f.SetType(seg.IsACK)
	f.SetSACKCapable(seg.SACKCapable)
	f.SetLen(uint16(len(seg.Payload)))
	f.SetHLen(hlen)
	f.SetNum(seg.Num)
	f.SetWin(seg.Win)
	nblocks := min(len(seg.Blocks), MaxSACKBlocks)
	if nblocks > 0 {
		f.SetBLen(uint8(nblocks))
		for i := 0; i < nblocks; i++ {
			f.SetBlock(i, seg.Blocks[i].Left, seg.Blocks[i].Length)
		}
	}
	copy(f.Payload(), seg.Payload)
	return total, nil
}

// Decode parses a Segment out of buf. The returned Segment's Payload
// aliases buf; callers that retain it across buffer reuse must copy.
func Decode(buf []byte) (Segment, error) {
	f, err := NewFrame(buf)
	if err != nil {
		return Segment{}, err
	}
	if err := f.ValidateSize(); err != nil {
		return Segment{}, err
	}
	seg := Segment{
		IsACK:       f.IsACK(),
		SACKCapable: f.SACKCapable(),
		Num:         f.Num(),
		Win:         f.Win(),
		Payload:     f.Payload(),
	}
	n := blockCountFromHLen(f.HLen())
	if n > 0 {
		seg.Blocks = make([]Block, n)
		for i := 0; i < n; i++ {
			left, length := f.Block(i)
			seg.Blocks[i] = Block{Left: left, Length: length}
		}
	}
	return seg, nil
}

// HeaderLen returns the header size in bytes a Segment will encode to,
// given its current number of blocks (clamped to MaxSACKBlocks).
func HeaderLen(seg Segment) int {
	return int(hlenFromBlockCount(min(len(seg.Blocks), MaxSACKBlocks)))
}
