package seq

import "testing"

func TestNewSpace(t *testing.T) {
	tests := []struct {
		bits    uint8
		wantErr bool
	}{
		{0, true},
		{1, false},
		{8, false},
		{9, true},
		{255, true},
	}
	for _, tt := range tests {
		_, err := NewSpace(tt.bits)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewSpace(%d): err=%v, wantErr=%v", tt.bits, err, tt.wantErr)
		}
	}
}

func TestNext(t *testing.T) {
	s := Space{Bits: 3} // M=8
	if got := s.Next(7); got != 0 {
		t.Errorf("Next(7) = %d, want 0 (wrap)", got)
	}
	if got := s.Next(3); got != 4 {
		t.Errorf("Next(3) = %d, want 4", got)
	}
}

func TestSub(t *testing.T) {
	s := Space{Bits: 3} // M=8
	tests := []struct{ a, b Num; want Num }{
		{5, 3, 2},
		{1, 7, 2}, // wraps: 1 - 7 = -6 -> mod 8 = 2
		{0, 0, 0},
		{7, 0, 7},
	}
	for _, tt := range tests {
		if got := s.Sub(tt.a, tt.b); got != tt.want {
			t.Errorf("Sub(%d,%d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestInWindow(t *testing.T) {
	s := Space{Bits: 3} // M=8
	// window [2, 2+3) = {2,3,4}
	cases := []struct {
		n    Num
		want bool
	}{
		{2, true},
		{3, true},
		{4, true},
		{5, false},
		{1, false},
		{0, false},
	}
	for _, c := range cases {
		if got := s.InWindow(c.n, 2, 3); got != c.want {
			t.Errorf("InWindow(%d, left=2, width=3) = %v, want %v", c.n, got, c.want)
		}
	}

	// window wraps past M.
	if !s.InWindow(0, 7, 3) { // [7, 7+3) mod 8 = {7,0,1}
		t.Error("expected 0 to be in wrapped window [7,10)")
	}
	if s.InWindow(2, 7, 3) {
		t.Error("expected 2 to be outside wrapped window [7,10)")
	}
}

func TestInWindowZeroWidth(t *testing.T) {
	s := Space{Bits: 3}
	if s.InWindow(0, 0, 0) {
		t.Error("zero-width window must never contain anything")
	}
}

func TestLess(t *testing.T) {
	s := Space{Bits: 3} // M=8
	if !s.Less(1, 2) {
		t.Error("1 should be less than 2")
	}
	if s.Less(2, 1) {
		t.Error("2 should not be less than 1")
	}
	if s.Less(5, 5) {
		t.Error("a value is not less than itself")
	}
	// wrap case: 7 is "less than" 1 (1 comes after 7 walking forward by 2).
	if !s.Less(7, 1) {
		t.Error("7 should be less than 1 across the wrap")
	}
}

func TestAddReduce(t *testing.T) {
	s := Space{Bits: 3}
	if got := s.Add(6, 5); got != 3 {
		t.Errorf("Add(6,5) = %d, want 3", got)
	}
	if got := s.Reduce(-1); got != 7 {
		t.Errorf("Reduce(-1) = %d, want 7", got)
	}
}
