package receiver

import (
	"sort"

	"github.com/alksarioglou/reliable-transport-tcp-networking/seq"
	"github.com/alksarioglou/reliable-transport-tcp-networking/wire"
)

// buildSACKBlocks computes the SACK block list for the out-of-order keys in
// outOfOrder, per spec.md §4.3.
//
// spec.md documents a split-then-wrap heuristic (partition K by M/2,
// conditionally swap the two halves) for producing a single
// modular-ascending run rooted at expected. Per §9's Open Question, that
// heuristic has documented corner cases where blocks straddle the M/2
// boundary without tripping the wrap condition, misordering the result. We
// take the Open Question's suggested fix instead: sort K directly by
// modular distance from expected (space.Sub(k, expected)), which produces
// the same single ascending run rooted at expected by construction and has
// no boundary case to get wrong.
func buildSACKBlocks(space seq.Space, expected seq.Num, outOfOrder map[seq.Num][]byte) []wire.Block {
	if len(outOfOrder) == 0 {
		return nil
	}
	keys := make([]seq.Num, 0, len(outOfOrder))
	for k := range outOfOrder {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return space.Sub(keys[i], expected) < space.Sub(keys[j], expected)
	})

	var blocks []wire.Block
	runStart := keys[0]
	runLen := 1
	for i := 1; i < len(keys); i++ {
		prev, cur := keys[i-1], keys[i]
		if space.Next(prev) == cur {
			runLen++
			continue
		}
		blocks = append(blocks, wire.Block{Left: uint8(runStart), Length: uint8(runLen)})
		if len(blocks) == wire.MaxSACKBlocks {
			return blocks
		}
		runStart = cur
		runLen = 1
	}
	blocks = append(blocks, wire.Block{Left: uint8(runStart), Length: uint8(runLen)})
	if len(blocks) > wire.MaxSACKBlocks {
		blocks = blocks[:wire.MaxSACKBlocks]
	}
	return blocks
}
