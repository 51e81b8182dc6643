package merkle

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Witness authenticates one leaf against a specific tree root. TreeSize
// records how many notes the tree held when the witness was taken, which
// lets verifiers locate the matching historical root.
type Witness struct {
	TreeSize uint64
	Root     fr.Element
	Position uint64
	AuthPath [TreeDepth]fr.Element
}

// Verify folds commitment up the authentication path and compares the
// result with the witness root.
func (w *Witness) Verify(commitment fr.Element) bool {
	node := commitment
	for depth := 0; depth < TreeDepth; depth++ {
		if (w.Position>>uint(depth))&1 == 0 {
			node = HashNodes(node, w.AuthPath[depth])
		} else {
			node = HashNodes(w.AuthPath[depth], node)
		}
	}
	return node.Equal(&w.Root)
}

// RootBytes returns the canonical encoding of the witness root.
func (w *Witness) RootBytes() [32]byte {
	return w.Root.Bytes()
}
