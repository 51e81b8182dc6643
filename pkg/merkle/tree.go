// Package merkle maintains the append-only note commitment tree and issues
// the membership witnesses that spend proofs are built against.
//
// The tree has a fixed depth of 32 with MiMC as the node hash. Leaves hold
// note commitments in insertion order and absent subtrees hash as chains of
// zero leaves, so the root is defined for any number of notes, including
// none.
package merkle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/mimc"
)

// TreeDepth is the height of the note commitment tree. Positions are
// addressable with TreeDepth bits.
const TreeDepth = 32

// ErrInvalidPosition reports a witness request beyond the current tree size.
var ErrInvalidPosition = errors.New("merkle: position exceeds tree size")

// HashNodes combines two child digests into their parent.
func HashNodes(left, right fr.Element) fr.Element {
	h := mimc.NewMiMC()
	lb := left.Bytes()
	rb := right.Bytes()
	h.Write(lb[:])
	h.Write(rb[:])
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

var (
	emptyOnce  sync.Once
	emptyRoots [TreeDepth + 1]fr.Element
)

// emptyRoot returns the digest of a complete empty subtree of the given
// height. Height zero is the zero leaf.
func emptyRoot(height int) fr.Element {
	emptyOnce.Do(func() {
		for i := 0; i < TreeDepth; i++ {
			emptyRoots[i+1] = HashNodes(emptyRoots[i], emptyRoots[i])
		}
	})
	return emptyRoots[height]
}

// Tree is the in-memory note commitment tree. It only ever grows; leaves
// are never removed or rewritten. Not safe for concurrent use.
type Tree struct {
	leaves []fr.Element
	levels [][]fr.Element
	dirty  bool
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{dirty: true}
}

// Add appends a note commitment as the next leaf.
func (t *Tree) Add(commitment fr.Element) {
	t.leaves = append(t.leaves, commitment)
	t.dirty = true
}

// Size returns the number of leaves.
func (t *Tree) Size() uint64 {
	return uint64(len(t.leaves))
}

// Root returns the current tree root.
func (t *Tree) Root() fr.Element {
	t.rebuild()
	return t.node(TreeDepth, 0)
}

// Witness builds the membership witness for the leaf at position against
// the current root. Witnesses are snapshots: once more leaves are added the
// root moves on and the witness keeps authenticating the old one.
func (t *Tree) Witness(position uint64) (*Witness, error) {
	if position >= t.Size() {
		return nil, fmt.Errorf("%w: position %d, size %d", ErrInvalidPosition, position, t.Size())
	}
	t.rebuild()

	w := &Witness{
		TreeSize: t.Size(),
		Root:     t.node(TreeDepth, 0),
		Position: position,
	}
	for depth := 0; depth < TreeDepth; depth++ {
		sibling := (position >> uint(depth)) ^ 1
		w.AuthPath[depth] = t.node(depth, sibling)
	}
	return w, nil
}

// rebuild recomputes the populated part of every level.
func (t *Tree) rebuild() {
	if !t.dirty {
		return
	}
	t.levels = make([][]fr.Element, TreeDepth+1)
	t.levels[0] = t.leaves
	for depth := 0; depth < TreeDepth; depth++ {
		prev := t.levels[depth]
		next := make([]fr.Element, (len(prev)+1)/2)
		for i := range next {
			left := prev[2*i]
			right := emptyRoot(depth)
			if 2*i+1 < len(prev) {
				right = prev[2*i+1]
			}
			next[i] = HashNodes(left, right)
		}
		t.levels[depth+1] = next
	}
	t.dirty = false
}

// node returns the digest at (depth, index), falling back to the empty
// subtree digest right of the populated region.
func (t *Tree) node(depth int, index uint64) fr.Element {
	level := t.levels[depth]
	if index < uint64(len(level)) {
		return level[index]
	}
	return emptyRoot(depth)
}
