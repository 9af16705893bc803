package receiver

import (
	"bytes"
	"testing"

	"github.com/alksarioglou/reliable-transport-tcp-networking/loss"
	"github.com/alksarioglou/reliable-transport-tcp-networking/seq"
	"github.com/alksarioglou/reliable-transport-tcp-networking/wire"
)

func newTestReceiver(t *testing.T, bits uint8, window int) (*Receiver, *bytes.Buffer) {
	t.Helper()
	space, err := seq.NewSpace(bits)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	return New(space, window, &out, loss.NewGate(0, 1), loss.NewGate(0, 2)), &out
}

func TestInOrderDelivery(t *testing.T) {
	r, out := newTestReceiver(t, 5, 4)
	ack, send := r.Step(wire.Segment{Num: 0, Payload: []byte("HELLOWORLD")})
	if !send {
		t.Fatal("expected ack to be sent")
	}
	if ack.Num != 1 {
		t.Fatalf("ack.Num = %d, want 1", ack.Num)
	}
	if out.String() != "HELLOWORLD" {
		t.Fatalf("output = %q, want HELLOWORLD", out.String())
	}
	if !r.Done() {
		t.Fatal("expected receiver to be done after short final segment delivered")
	}
}

func TestOutOfOrderBufferAndDrain(t *testing.T) {
	r, out := newTestReceiver(t, 5, 4)
	// num=1 arrives before num=0: buffered, not delivered yet.
	ack, _ := r.Step(wire.Segment{Num: 1, Payload: make([]byte, wire.ChunkSize)})
	if ack.Num != 0 {
		t.Fatalf("ack.Num = %d, want 0 (still expecting 0)", ack.Num)
	}
	if out.Len() != 0 {
		t.Fatalf("nothing should be delivered yet, got %q", out.String())
	}
	// num=0 arrives: delivers 0 then drains buffered 1.
	r.Step(wire.Segment{Num: 0, Payload: bytes.Repeat([]byte{'A'}, wire.ChunkSize)})
	if out.Len() != 2*wire.ChunkSize {
		t.Fatalf("expected both chunks delivered, got %d bytes", out.Len())
	}
}

func TestDuplicateOutOfOrderIgnored(t *testing.T) {
	r, _ := newTestReceiver(t, 5, 4)
	r.Step(wire.Segment{Num: 1, Payload: make([]byte, wire.ChunkSize)})
	if len(r.outOfOrder) != 1 {
		t.Fatal("expected one buffered segment")
	}
	r.Step(wire.Segment{Num: 1, Payload: make([]byte, wire.ChunkSize)})
	if len(r.outOfOrder) != 1 {
		t.Fatal("duplicate out-of-order segment must not change buffer size")
	}
}

func TestOutsideWindowDropped(t *testing.T) {
	r, _ := newTestReceiver(t, 5, 4) // W=4, window is (expected, expected+3]
	// expected=0, window accepts {1,2,3}. num=10 is way outside.
	r.Step(wire.Segment{Num: 10, Payload: make([]byte, wire.ChunkSize)})
	if len(r.outOfOrder) != 0 {
		t.Fatal("segment outside receive window must be dropped")
	}
}

func TestReceiverNeverProcessesACKs(t *testing.T) {
	r, out := newTestReceiver(t, 5, 4)
	_, send := r.Step(wire.Segment{IsACK: true, Num: 3})
	if send {
		t.Fatal("receiver must not reply to an ACK")
	}
	if out.Len() != 0 {
		t.Fatal("receiver must not treat an ACK as data")
	}
}

func TestCumulativeAckNoBlocksWhenNotSACKCapable(t *testing.T) {
	r, _ := newTestReceiver(t, 5, 10)
	r.Step(wire.Segment{Num: 1, Payload: make([]byte, wire.ChunkSize)}) // buffered OOO
	ack, _ := r.Step(wire.Segment{Num: 5, SACKCapable: false, Payload: make([]byte, wire.ChunkSize)})
	if len(ack.Blocks) != 0 {
		t.Fatalf("expected no SACK blocks when sender isn't SACK-capable, got %v", ack.Blocks)
	}
}

func TestSACKBlocksScenario(t *testing.T) {
	// n=5, W=10, losses drop segments {2,5,7}: after receiving up to seq 9
	// the SACK should describe out-of-order segments {3,4},{6},{8,9}.
	r, _ := newTestReceiver(t, 5, 10)
	for _, n := range []int{1, 3, 4, 6, 8, 9} {
		r.Step(wire.Segment{Num: uint8(n), SACKCapable: true, Payload: make([]byte, wire.ChunkSize)})
	}
	ack, _ := r.Step(wire.Segment{Num: 0, SACKCapable: true, Payload: make([]byte, wire.ChunkSize)})
	if ack.Num != 2 {
		t.Fatalf("ack.Num = %d, want 2", ack.Num)
	}
	want := []wire.Block{{Left: 3, Length: 2}, {Left: 6, Length: 1}, {Left: 8, Length: 2}}
	if len(ack.Blocks) != len(want) {
		t.Fatalf("blocks = %+v, want %+v", ack.Blocks, want)
	}
	for i, b := range want {
		if ack.Blocks[i] != b {
			t.Fatalf("block %d = %+v, want %+v", i, ack.Blocks[i], b)
		}
	}
}

func TestSequenceWrapAcrossReceive(t *testing.T) {
	r, out := newTestReceiver(t, 3, 4) // M=8
	for i := 0; i < 9; i++ {
		n := uint8(i % 8)
		payload := make([]byte, wire.ChunkSize)
		if i == 8 {
			payload = payload[:10] // final short segment
		}
		r.Step(wire.Segment{Num: n, Payload: payload})
	}
	if !r.Done() {
		t.Fatal("expected receiver done after wrap-around stream completes")
	}
	if out.Len() != 8*wire.ChunkSize+10 {
		t.Fatalf("output length = %d, want %d", out.Len(), 8*wire.ChunkSize+10)
	}
}
