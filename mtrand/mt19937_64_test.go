package mtrand

import "testing"

func TestSeedDeterministic(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 1000; i++ {
		av, bv := a.Uint64(), b.Uint64()
		if av != bv {
			t.Fatalf("draw %d diverged: %d != %d", i, av, bv)
		}
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := New(1)
	b := New(2)
	same := 0
	for i := 0; i < 64; i++ {
		if a.Uint64() == b.Uint64() {
			same++
		}
	}
	if same > 2 {
		t.Fatalf("two different seeds produced %d identical draws out of 64", same)
	}
}

func TestUint64NotConstant(t *testing.T) {
	m := New(7)
	first := m.Uint64()
	allSame := true
	for i := 0; i < 256; i++ {
		if m.Uint64() != first {
			allSame = false
			break
		}
	}
	if allSame {
		t.Fatal("generator produced a constant stream")
	}
}

func TestNextInt64CoversBothSigns(t *testing.T) {
	m := New(9)
	sawNeg, sawPos := false, false
	for i := 0; i < 4096; i++ {
		v := m.NextInt64()
		if v < 0 {
			sawNeg = true
		} else {
			sawPos = true
		}
	}
	if !sawNeg || !sawPos {
		t.Fatalf("expected both signs across 4096 draws, sawNeg=%v sawPos=%v", sawNeg, sawPos)
	}
}
