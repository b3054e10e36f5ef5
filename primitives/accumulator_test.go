package primitives

import "testing"

func TestIntSumAccumulatorIsAssociative(t *testing.T) {
	acc := IntSumAccumulator()
	if !acc.Associative() {
		t.Fatal("expected IntSumAccumulator to be associative")
	}
	sum := acc.Combine(EncodeInt64(3), EncodeInt64(4))
	if decodeInt64(sum) != 7 {
		t.Fatalf("expected 3+4=7, got %d", decodeInt64(sum))
	}
}

func TestLastWriteWinsIsNonAssociative(t *testing.T) {
	acc := LastWriteWinsAccumulator()
	if acc.Associative() {
		t.Fatal("expected LastWriteWinsAccumulator to be non-associative")
	}
	got := acc.Combine(EncodeInt64(1), EncodeInt64(2))
	if decodeInt64(got) != 2 {
		t.Fatalf("expected last-write value 2, got %d", decodeInt64(got))
	}
}
