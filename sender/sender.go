// Package sender implements the sending endpoint's sliding-window state
// machine: payload queueing, per-window in-flight buffer, cumulative-ack
// advancement, timeout retransmission, duplicate-ack fast retransmit, and
// SACK-driven selective retransmit, per spec.md §4.4.
package sender

import (
	"errors"
	"log/slog"

	"github.com/alksarioglou/reliable-transport-tcp-networking/internal"
	"github.com/alksarioglou/reliable-transport-tcp-networking/seq"
	"github.com/alksarioglou/reliable-transport-tcp-networking/wire"
)

// errUnsupported is returned by New when congestion control is requested.
// spec.md §9's Open Question on the reserved Q_CC flag: "implementations
// should reject a true value with unsupported rather than silently ignore."
var errUnsupported = errors.New("unsupported")

// Sender delivers a finite payload sequence reliably and in order,
// respecting a sliding window bounded by the minimum of its own configured
// window and the last advertised receiver window. It owns no network I/O:
// the caller (cmd/sender's event loop) is responsible for transmitting
// whatever FillWindow/OnTimeout/OnAck return and for arming/disarming the
// one-shot retransmission timer around calls to this type.
type Sender struct {
	space seq.Space
	wSend int // W_s, this sender's configured window
	wRecv int // W_r, last advertised receiver window

	mode        Mode
	sackCapable bool // current SACK-capable flag: advertised in outgoing DATA, adopted from incoming ACKs

	unack   seq.Num
	current seq.Num
	buffer  map[seq.Num][]byte
	order   []seq.Num // insertion order of buffer keys; also ascending sequence order

	dupAckValid bool
	dupAckValue seq.Num
	dupAckCount int

	queue    [][]byte
	queueIdx int

	state State
	stats Stats
	log   internal.Logger
}

// New constructs a Sender. window is W_s and must be < space.M() per
// spec.md §6. queue is the full ordered list of payload chunks to deliver
// (the process driver produces these by chunking the input file up front —
// spec.md's payload queue is finite and does not grow at runtime).
// congestionControl must be false; spec.md reserves the flag but defines
// no behavior for it, and per §9 we reject rather than silently ignore it.
func New(space seq.Space, window int, mode Mode, congestionControl bool, queue [][]byte) (*Sender, error) {
	if congestionControl {
		return nil, errUnsupported
	}
	if window <= 0 || window >= space.M() {
		return nil, errors.New("sender: window_size must be in [1, 2^n_bits)")
	}
	return &Sender{
		space:       space,
		wSend:       window,
		wRecv:       window, // assume the full window open until the first ack says otherwise
		mode:        mode,
		sackCapable: mode == ModeSACK,
		buffer:      make(map[seq.Num][]byte),
		queue:       queue,
		state:       StateBegin,
	}, nil
}

// SetLogger attaches a structured logger; nil is valid and silently drops
// all logging.
func (s *Sender) SetLogger(log *slog.Logger) { s.log = internal.Logger{Log: log} }

// State returns the sender's current automaton state.
func (s *Sender) State() State { return s.state }

// Done reports whether the sender has reached its terminal state: the
// payload queue is empty and every transmitted segment has been
// cumulatively acknowledged.
func (s *Sender) Done() bool { return s.state == StateEnd }

// Stats returns a snapshot of the sender's retransmission counters.
func (s *Sender) Stats() Stats { return s.stats }

// InFlight returns the number of segments currently in the in-flight
// buffer, i.e. sent but not yet cumulatively acknowledged.
func (s *Sender) InFlight() int { return len(s.buffer) }

// FillWindow implements the SEND state's dequeue loop (spec.md §4.4):
// while the in-flight buffer has room under min(W_s, W_r) and the payload
// queue is non-empty, dequeue the next chunk, record it in the buffer, and
// produce a DATA segment for it. Transitions to the terminal state once
// the queue is drained and every segment sent has been acknowledged.
func (s *Sender) FillWindow() []wire.Segment {
	var out []wire.Segment
	limit := min(s.wSend, s.wRecv)
	for len(s.buffer) < limit && s.queueIdx < len(s.queue) {
		chunk := s.queue[s.queueIdx]
		s.queueIdx++
		num := s.current
		s.buffer[num] = chunk
		s.order = append(s.order, num)
		out = append(out, s.dataSegment(num, chunk))
		s.stats.Sent++
		s.current = s.space.Next(s.current)
	}
	if s.queueIdx >= len(s.queue) && s.unack == s.current {
		s.state = StateEnd
		s.log.Info("snd:done")
	} else {
		s.state = StateSend
	}
	return out
}

// OnTimeout implements the retransmission-timer fire handler: reset the
// duplicate-ack counter and retransmit every payload currently in the
// buffer, in the order it was originally added, then return to SEND. Not
// an error condition (spec.md §7): the timer firing simply means no ack
// has arrived within the timeout.
func (s *Sender) OnTimeout() []wire.Segment {
	s.dupAckValid = false
	s.dupAckCount = 0
	out := make([]wire.Segment, 0, len(s.order))
	for _, num := range s.order {
		out = append(out, s.dataSegment(num, s.buffer[num]))
		s.stats.TimeoutRetransmits++
	}
	s.log.Debug("snd:timeout-retransmit", slog.Int("n", len(out)))
	s.state = StateSend
	return out
}

// OnAck implements the ACK_IN state (spec.md §4.4): updates the advertised
// receiver window and adopted SACK capability, runs whichever of
// fast-retransmit or SACK-driven retransmit is configured, advances
// cumulative ack, and evicts newly-acknowledged entries from the buffer.
// Returns the segments that must be retransmitted, in the order they were
// originally added to the buffer (spec.md §5's ordering requirement).
func (s *Sender) OnAck(ack wire.Segment) []wire.Segment {
	s.state = StateAckIn
	if !ack.IsACK {
		s.log.Debug("snd:protocol-violation: sender got DATA")
		s.state = StateSend
		return nil
	}

	s.wRecv = int(ack.Win)
	s.sackCapable = ack.SACKCapable
	ackVal := seq.Num(ack.Num)

	// Advance cumulative ack and evict newly-covered entries *before*
	// computing fast/SACK retransmits: otherwise already-acknowledged
	// buffer entries below ackVal (not yet evicted on this call) would be
	// misread as gaps and retransmitted spuriously.
	oldUnack := s.unack
	s.unack = ackVal
	s.evict(oldUnack, ackVal)

	var retransmits []wire.Segment

	if s.mode == ModeSelectiveRepeat {
		retransmits = append(retransmits, s.fastRetransmit(ackVal)...)
	}
	if s.mode == ModeSACK && len(ack.Blocks) >= 1 {
		retransmits = append(retransmits, s.sackRetransmit(ack.Blocks)...)
	}

	s.state = StateSend
	return retransmits
}

// fastRetransmit implements spec.md §4.4 step 5: a 3rd consecutive
// identical cumulative ack retransmits the single segment at that ack
// value.
func (s *Sender) fastRetransmit(ackVal seq.Num) []wire.Segment {
	if s.dupAckValid && ackVal == s.dupAckValue {
		s.dupAckCount++
	} else {
		s.dupAckValue = ackVal
		s.dupAckCount = 0
		s.dupAckValid = true
	}
	if s.dupAckCount < 2 {
		return nil
	}
	s.dupAckCount = 0
	s.dupAckValid = false
	payload, ok := s.buffer[ackVal]
	if !ok {
		return nil
	}
	s.stats.FastRetransmits++
	s.log.Debug("snd:fast-retransmit", slog.Int("num", int(ackVal)))
	return []wire.Segment{s.dataSegment(ackVal, payload)}
}

// sackRetransmit implements spec.md §4.4 step 6: expand the ack's SACK
// blocks into the set R of individually acknowledged sequence numbers,
// find the highest-indexed buffered segment covered by R, and retransmit
// every gap below it.
func (s *Sender) sackRetransmit(blocks []wire.Block) []wire.Segment {
	r := make(map[seq.Num]bool)
	for _, b := range blocks {
		for i := 0; i < int(b.Length); i++ {
			r[s.space.Add(seq.Num(b.Left), i)] = true
		}
	}
	finalIdx := -1
	for i, k := range s.order {
		if r[k] {
			finalIdx = i
		}
	}
	if finalIdx < 0 {
		return nil
	}
	var out []wire.Segment
	for i := 0; i < finalIdx; i++ {
		k := s.order[i]
		if r[k] {
			continue
		}
		out = append(out, s.dataSegment(k, s.buffer[k]))
		s.stats.SACKRetransmits++
	}
	if len(out) > 0 {
		s.log.Debug("snd:sack-retransmit", slog.Int("n", len(out)))
	}
	return out
}

// evict removes every buffer entry whose key lies in [oldUnack, newUnack)
// mod M. Per spec.md §9's Open Question, this corrects the source's
// [ack-W_r, ack) formulation (which can leave acknowledged entries behind
// when W_r < current-unack) by evicting exactly the range the cumulative
// ack actually covers.
func (s *Sender) evict(oldUnack, newUnack seq.Num) {
	width := int(s.space.Sub(newUnack, oldUnack))
	if width == 0 {
		return
	}
	kept := s.order[:0]
	for _, k := range s.order {
		if int(s.space.Sub(k, oldUnack)) < width {
			delete(s.buffer, k)
		} else {
			kept = append(kept, k)
		}
	}
	s.order = kept
}

func (s *Sender) dataSegment(num seq.Num, payload []byte) wire.Segment {
	return wire.Segment{
		IsACK:       false,
		SACKCapable: s.sackCapable,
		Num:         uint8(num),
		Win:         uint8(s.wSend),
		Payload:     payload,
	}
}
