package repository

import "testing"

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	if DirectKey(7, 42) != DirectKey(42, 7) {
		t.Fatalf("expected same key for both orders, got %q and %q", DirectKey(7, 42), DirectKey(42, 7))
	}
	if DirectKey(7, 42) != "7:42" {
		t.Fatalf("expected canonical low:high key, got %q", DirectKey(7, 42))
	}
}

func TestDirectKeyDistinguishesPairs(t *testing.T) {
	if DirectKey(1, 23) == DirectKey(12, 3) {
		t.Fatalf("expected distinct keys for distinct pairs")
	}
}
