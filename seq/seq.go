// Package seq implements modular arithmetic and windowed comparisons over
// an n-bit cyclic sequence number space, n <= 8.
//
// Every comparison between two sequence numbers in this repository goes
// through this package. Naive integer comparison on a wrapped sequence
// space is wrong by construction, so Num deliberately exposes no <, <=, ==
// helpers beyond the modular ones below.
package seq

import "fmt"

// Num is a sequence or ack number. Only the low Space.Bits bits are
// significant; callers are expected to keep values already reduced mod M.
type Num uint8

// MaxBits is the largest sequence-number width this package supports,
// matching the 8-bit num/win wire fields of the header.
const MaxBits = 8

// Space describes an n-bit cyclic sequence number space, M = 2^Bits.
type Space struct {
	Bits uint8
}

// NewSpace validates bits and returns a ready-to-use Space.
func NewSpace(bits uint8) (Space, error) {
	if bits == 0 || bits > MaxBits {
		return Space{}, fmt.Errorf("seq: n_bits must be in [1, %d], got %d", MaxBits, bits)
	}
	return Space{Bits: bits}, nil
}

// M returns the size of the sequence number space, 2^Bits.
func (s Space) M() int { return 1 << s.Bits }

// mask reduces a value modulo M by keeping only the low Bits bits.
func (s Space) mask(v int) Num {
	return Num(v & (s.M() - 1))
}

// Reduce reduces an arbitrary int into the sequence space.
func (s Space) Reduce(v int) Num { return s.mask(v) }

// Next returns (s + 1) mod M.
func (s Space) Next(n Num) Num { return s.mask(int(n) + 1) }

// Add returns (n + delta) mod M for a non-negative delta.
func (s Space) Add(n Num, delta int) Num { return s.mask(int(n) + delta) }

// Sub returns the modular distance (a - b) mod M, i.e. the forward distance
// from b to a walking around the cycle. Always in [0, M).
func (s Space) Sub(a, b Num) Num { return s.mask(int(a) - int(b)) }

// InWindow reports whether s lies in the half-open modular range
// [left, left+width) mod M. width == 0 means the range is empty.
func (s Space) InWindow(n, left Num, width int) bool {
	if width <= 0 {
		return false
	}
	if width > s.M() {
		width = s.M()
	}
	return int(s.Sub(n, left)) < width
}

// Less reports whether a comes strictly before b within a half-window of
// the space, i.e. whether advancing forward from a reaches b without
// wrapping past it. This is the modular analogue of a < b and is undefined
// (by construction, since any point has both a "before" and "after"
// half) once the true distance exceeds M/2; it is only meaningful for
// comparing points known to lie within a window of less than M/2 of one
// another, which holds for every comparison this protocol makes.
func (s Space) Less(a, b Num) bool {
	d := s.Sub(b, a)
	return d != 0 && int(d) <= s.M()/2
}
