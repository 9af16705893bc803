// Package loss implements the Bernoulli drop gate used to simulate
// unreliable delivery on both the receiver's ingress (data) and egress
// (ack) paths, per spec.md §4.5.
package loss

import "github.com/alksarioglou/reliable-transport-tcp-networking/internal"

// Gate is a per-instance, seeded Bernoulli trial: each call to Drop
// succeeds (returns true) with probability p. Two independent Gates (one
// for incoming DATA, one for outgoing ACK) keep the streams
// uncorrelated, matching spec.md's "used symmetrically".
//
// Determinism is by construction: the generator is a per-instance xorshift
// PRNG (internal.Prand32, the same helper the teacher's stack code uses
// wherever it needs a cheap non-cryptographic random value), not the
// process-global math/rand source, so two Gates seeded identically produce
// identical drop sequences regardless of what else is running — the
// requirement from spec.md §9 ("given seed and inputs, outputs are
// identical").
type Gate struct {
	p     float64
	state uint32
}

// NewGate returns a Gate that drops with probability p (p in [0,1)) and is
// seeded deterministically from seed. A zero seed is remapped to a fixed
// non-zero value since a zero xorshift state never advances.
func NewGate(p float64, seed uint32) *Gate {
	if seed == 0 {
		seed = 0x9e3779b9 // arbitrary non-zero odd constant, same role as splitmix's golden-ratio seed.
	}
	return &Gate{p: p, state: seed}
}

// next advances the xorshift state and returns the new value.
func (g *Gate) next() uint32 {
	g.state = internal.Prand32(g.state)
	return g.state
}

// Drop performs one Bernoulli trial and reports whether this call should be
// treated as a loss. Always advances the internal state, even when p is 0
// or 1, so call sequences stay deterministic regardless of p.
func (g *Gate) Drop() bool {
	if g.p <= 0 {
		g.next()
		return false
	}
	if g.p >= 1 {
		g.next()
		return true
	}
	r := g.next()
	// Normalize to [0,1) the same way a 32-bit LCG-style float conversion
	// would: divide by 2^32.
	frac := float64(r) / 4294967296.0
	return frac < g.p
}
