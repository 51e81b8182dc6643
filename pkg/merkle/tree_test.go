package merkle

import (
	"errors"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// leaf builds a deterministic commitment for tests.
func leaf(n uint64) fr.Element {
	var e fr.Element
	e.SetUint64(n + 1000)
	return e
}

func TestEmptyTreesAgreeOnRoot(t *testing.T) {
	a, b := NewTree(), NewTree()
	ra, rb := a.Root(), b.Root()
	if !ra.Equal(&rb) {
		t.Fatal("empty trees disagree on the root")
	}
}

func TestRootChangesWithEveryLeaf(t *testing.T) {
	tree := NewTree()
	seen := make(map[string]bool)
	root := tree.Root()
	seen[root.String()] = true

	for i := uint64(0); i < 8; i++ {
		tree.Add(leaf(i))
		root = tree.Root()
		if seen[root.String()] {
			t.Fatalf("root repeated after adding leaf %d", i)
		}
		seen[root.String()] = true
	}
}

func TestRootIsDeterministic(t *testing.T) {
	a, b := NewTree(), NewTree()
	for i := uint64(0); i < 5; i++ {
		a.Add(leaf(i))
		b.Add(leaf(i))
	}
	ra, rb := a.Root(), b.Root()
	if !ra.Equal(&rb) {
		t.Fatal("same leaves produced different roots")
	}
}

func TestWitnessVerifies(t *testing.T) {
	tree := NewTree()
	const count = 7
	for i := uint64(0); i < count; i++ {
		tree.Add(leaf(i))
	}

	for i := uint64(0); i < count; i++ {
		w, err := tree.Witness(i)
		if err != nil {
			t.Fatalf("Witness(%d): %v", i, err)
		}
		if w.TreeSize != count {
			t.Fatalf("witness tree size = %d, want %d", w.TreeSize, count)
		}
		if !w.Verify(leaf(i)) {
			t.Fatalf("witness for leaf %d failed to verify", i)
		}
		if w.Verify(leaf(i + 100)) {
			t.Fatalf("witness for leaf %d verified a foreign commitment", i)
		}
	}
}

func TestWitnessRejectsTamperedPath(t *testing.T) {
	tree := NewTree()
	for i := uint64(0); i < 4; i++ {
		tree.Add(leaf(i))
	}
	w, err := tree.Witness(2)
	if err != nil {
		t.Fatalf("Witness: %v", err)
	}

	var poison fr.Element
	poison.SetUint64(0xdead)
	w.AuthPath[0].Add(&w.AuthPath[0], &poison)

	if w.Verify(leaf(2)) {
		t.Fatal("tampered path still verifies")
	}
}

func TestWitnessSnapshotsOldRoot(t *testing.T) {
	tree := NewTree()
	tree.Add(leaf(0))
	w, err := tree.Witness(0)
	if err != nil {
		t.Fatalf("Witness: %v", err)
	}

	tree.Add(leaf(1))
	newRoot := tree.Root()
	if w.Root.Equal(&newRoot) {
		t.Fatal("root did not move after append")
	}
	if !w.Verify(leaf(0)) {
		t.Fatal("witness must keep authenticating its snapshot root")
	}
}

func TestWitnessPositionOutOfRange(t *testing.T) {
	tree := NewTree()
	tree.Add(leaf(0))
	if _, err := tree.Witness(1); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("want ErrInvalidPosition, got %v", err)
	}
}
