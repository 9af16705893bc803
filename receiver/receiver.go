// Package receiver implements the receiving endpoint's in-order delivery
// engine: out-of-order buffering within the receive window, cumulative or
// SACK acknowledgment construction, and end-of-stream detection, per
// spec.md §4.3.
package receiver

import (
	"io"
	"log/slog"

	"github.com/alksarioglou/reliable-transport-tcp-networking/internal"
	"github.com/alksarioglou/reliable-transport-tcp-networking/loss"
	"github.com/alksarioglou/reliable-transport-tcp-networking/seq"
	"github.com/alksarioglou/reliable-transport-tcp-networking/wire"
)

// Receiver reassembles a sender's stream in order into Output and
// acknowledges progress, in cumulative or SACK mode depending on what the
// sender advertises per-segment. It owns no network I/O: the caller
// (cmd/receiver's event loop) decodes incoming wire.Segment values and
// passes them to Step, and is responsible for transmitting whatever Step
// returns.
type Receiver struct {
	space seq.Space
	window int // W, configured receive window

	expected   seq.Num
	outOfOrder map[seq.Num][]byte
	endSeen    bool
	endSeq     seq.Num

	state  State
	Output io.Writer

	dataGate *loss.Gate
	ackGate  *loss.Gate

	log internal.Logger
}

// New constructs a Receiver. window must be <= space.M() per spec.md §6.
func New(space seq.Space, window int, output io.Writer, dataGate, ackGate *loss.Gate) *Receiver {
	return &Receiver{
		space:      space,
		window:     window,
		outOfOrder: make(map[seq.Num][]byte),
		state:      StateBegin,
		Output:     output,
		dataGate:   dataGate,
		ackGate:    ackGate,
	}
}

// SetLogger attaches a structured logger; a nil logger (the zero value) is
// valid and silently drops all logging.
func (r *Receiver) SetLogger(log *slog.Logger) { r.log = internal.Logger{Log: log} }

// State returns the receiver's current automaton state.
func (r *Receiver) State() State { return r.state }

// Done reports whether the receiver has reached its terminal state
// (spec.md §3's lifecycle: the final short DATA delivered, expected caught
// up to end_seq, and the corresponding ack actually transmitted).
func (r *Receiver) Done() bool { return r.state == StateEnd }

// Step processes one incoming segment per spec.md §4.3's per-segment
// handling, steps 1-9. It returns the ack segment to transmit and whether
// it should actually be sent (false if the egress loss gate swallowed it,
// or if nothing should be sent at all because the ingress loss gate
// dropped the incoming segment before any processing occurred, or because
// the segment was itself an ACK and receivers never reply to those).
func (r *Receiver) Step(in wire.Segment) (ack wire.Segment, send bool) {
	r.state = StateDataIn

	// Step 1: ingress loss simulation. A dropped segment is as if it never
	// arrived: no ack is built, no state changes.
	if r.dataGate.Drop() {
		r.log.Trace("rcv:data-dropped")
		r.state = StateWaitSegment
		return wire.Segment{}, false
	}

	// Step 2: a receiver never processes ACKs.
	if in.IsACK {
		r.log.Debug("rcv:protocol-violation: receiver got ACK")
		r.state = StateWaitSegment
		return wire.Segment{}, false
	}

	num := seq.Num(in.Num)
	payload := in.Payload

	// Step 4: short DATA is the in-band end-of-stream marker.
	if len(payload) < wire.ChunkSize {
		r.endSeen = true
		r.endSeq = r.space.Next(num)
		r.log.Debug("rcv:end-seen", slog.Int("end_seq", int(r.endSeq)))
	}

	if num == r.expected {
		// Step 5: in-order arrival, deliver it and drain any contiguous run
		// already buffered.
		r.deliver(payload)
		r.expected = r.space.Next(r.expected)
		for {
			buffered, ok := r.outOfOrder[r.expected]
			if !ok {
				break
			}
			delete(r.outOfOrder, r.expected)
			r.deliver(buffered)
			r.expected = r.space.Next(r.expected)
		}
	} else {
		// Step 6: out-of-order arrival. Accept into the buffer only if it
		// falls in (expected, expected+W-1] mod M (the window starting just
		// after expected — expected itself is handled by the branch above,
		// so no double-write is possible) and is not a duplicate.
		_, dup := r.outOfOrder[num]
		inWindow := r.space.InWindow(num, r.space.Next(r.expected), r.window-1)
		if inWindow && !dup {
			r.outOfOrder[num] = append([]byte(nil), payload...)
			r.log.Trace("rcv:buffered-ooo", slog.Int("num", int(num)))
		} else {
			r.log.Trace("rcv:dropped", slog.Int("num", int(num)), slog.Bool("dup", dup), slog.Bool("in_window", inWindow))
		}
	}

	// Step 7: construct the ack, unconditionally.
	ack = r.buildAck(in.SACKCapable)

	// Step 8: egress loss simulation.
	if r.ackGate.Drop() {
		r.log.Trace("rcv:ack-dropped", slog.Int("num", int(ack.Num)))
		r.state = StateWaitSegment
		return ack, false
	}

	// Step 9: terminal transition, only once the ack actually went out.
	if r.endSeen && r.expected == r.endSeq {
		r.state = StateEnd
		r.log.Info("rcv:done")
	} else {
		r.state = StateWaitSegment
	}
	return ack, true
}

func (r *Receiver) deliver(payload []byte) {
	if r.Output != nil {
		r.Output.Write(payload)
	}
}

func (r *Receiver) buildAck(sackCapable bool) wire.Segment {
	ack := wire.Segment{
		IsACK: true,
		Num:   uint8(r.expected),
		Win:   uint8(r.window),
	}
	if sackCapable {
		ack.SACKCapable = true
		ack.Blocks = buildSACKBlocks(r.space, r.expected, r.outOfOrder)
	}
	return ack
}
