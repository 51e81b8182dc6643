package sapling

import (
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/suffix-labs/sapling-tx/pkg/circuits"
	"github.com/suffix-labs/sapling-tx/pkg/keys"
	"github.com/suffix-labs/sapling-tx/pkg/merkle"
	"github.com/suffix-labs/sapling-tx/pkg/note"
	"github.com/suffix-labs/sapling-tx/pkg/redjubjub"
)

var (
	testParamsOnce sync.Once
	testParams     *Params
	testParamsErr  error
)

// loadTestParams builds one parameter set for the whole test binary; the
// Groth16 setup is far too slow to repeat per test.
func loadTestParams(t *testing.T) *Params {
	t.Helper()
	testParamsOnce.Do(func() {
		dir, err := os.MkdirTemp("", "sapling-params-*")
		if err != nil {
			testParamsErr = err
			return
		}
		testParams, testParamsErr = New(dir)
	})
	if testParamsErr != nil {
		t.Fatalf("building test parameters: %v", testParamsErr)
	}
	return testParams
}

func feBig(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

func TestParamsCachePersistsKeys(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(dir); err != nil {
		t.Fatalf("cold New: %v", err)
	}

	for _, name := range []string{
		spendProvingKeyFile, spendVerifyingKeyFile,
		outputProvingKeyFile, outputVerifyingKeyFile,
	} {
		if !fileExists(filepath.Join(dir, name)) {
			t.Fatalf("key file %s was not written", name)
		}
	}

	// Second construction must load the cache rather than regenerate.
	if _, err := New(dir); err != nil {
		t.Fatalf("warm New: %v", err)
	}
}

func TestOutputProofRoundTrip(t *testing.T) {
	params := loadTestParams(t)

	key, err := keys.GenerateSpendingKey()
	if err != nil {
		t.Fatalf("GenerateSpendingKey: %v", err)
	}
	n, err := note.New(key.PublicAddress(), 9, "output proof")
	if err != nil {
		t.Fatalf("New note: %v", err)
	}
	vc, err := redjubjub.NewValueCommitment(n.Value())
	if err != nil {
		t.Fatalf("NewValueCommitment: %v", err)
	}
	cv := vc.Commitment()
	owner := key.PublicAddress().Point()
	cm := n.Commitment()

	assignment := &circuits.OutputCircuit{
		Commitment:           feBig(cm),
		ValueCommitmentX:     feBig(cv.X),
		ValueCommitmentY:     feBig(cv.Y),
		OwnerX:               feBig(owner.X),
		OwnerY:               feBig(owner.Y),
		Value:                new(big.Int).SetUint64(n.Value()),
		CommitmentRandomness: feBig(n.CommitmentRandomness()),
		ValueRandomness:      feBig(vc.Randomness),
	}
	proof, err := params.ProveOutput(assignment)
	if err != nil {
		t.Fatalf("ProveOutput: %v", err)
	}

	public := &circuits.OutputCircuit{
		Commitment:       feBig(cm),
		ValueCommitmentX: feBig(cv.X),
		ValueCommitmentY: feBig(cv.Y),
	}
	if err := params.VerifyOutput(proof, public); err != nil {
		t.Fatalf("VerifyOutput: %v", err)
	}

	// A different public commitment must not verify.
	var wrong fr.Element
	wrong.SetUint64(1)
	wrong.Add(&wrong, &cm)
	bad := &circuits.OutputCircuit{
		Commitment:       feBig(wrong),
		ValueCommitmentX: feBig(cv.X),
		ValueCommitmentY: feBig(cv.Y),
	}
	if err := params.VerifyOutput(proof, bad); err == nil {
		t.Fatal("VerifyOutput accepted a foreign commitment")
	}
}

func TestSpendProofRoundTrip(t *testing.T) {
	params := loadTestParams(t)

	key, err := keys.GenerateSpendingKey()
	if err != nil {
		t.Fatalf("GenerateSpendingKey: %v", err)
	}
	n, err := note.New(key.PublicAddress(), 50, "spend proof")
	if err != nil {
		t.Fatalf("New note: %v", err)
	}

	tree := merkle.NewTree()
	tree.Add(n.Commitment())
	w, err := tree.Witness(0)
	if err != nil {
		t.Fatalf("Witness: %v", err)
	}

	var alpha fr.Element
	if _, err := alpha.SetRandom(); err != nil {
		t.Fatalf("sampling alpha: %v", err)
	}
	vc, err := redjubjub.NewValueCommitment(n.Value())
	if err != nil {
		t.Fatalf("NewValueCommitment: %v", err)
	}
	cv := vc.Commitment()
	ak := key.AuthorizingKey()
	rk := redjubjub.RandomizePublicKey(&ak, alpha)
	nf := n.Nullifier(key, w.Position)

	assignment := &circuits.SpendCircuit{
		Anchor:               feBig(w.Root),
		Nullifier:            feBig(nf),
		ValueCommitmentX:     feBig(cv.X),
		ValueCommitmentY:     feBig(cv.Y),
		RandomizedKeyX:       feBig(rk.X),
		RandomizedKeyY:       feBig(rk.Y),
		Value:                new(big.Int).SetUint64(n.Value()),
		CommitmentRandomness: feBig(n.CommitmentRandomness()),
		SpendAuthorizingKey:  feBig(key.SpendAuthorizingKey()),
		ProofAuthorizingKey:  feBig(key.ProofAuthorizingKey()),
		Alpha:                feBig(alpha),
		ValueRandomness:      feBig(vc.Randomness),
		Position:             new(big.Int).SetUint64(w.Position),
	}
	for i := range w.AuthPath {
		assignment.AuthPath[i] = feBig(w.AuthPath[i])
	}

	proof, err := params.ProveSpend(assignment)
	if err != nil {
		t.Fatalf("ProveSpend: %v", err)
	}

	public := &circuits.SpendCircuit{
		Anchor:           feBig(w.Root),
		Nullifier:        feBig(nf),
		ValueCommitmentX: feBig(cv.X),
		ValueCommitmentY: feBig(cv.Y),
		RandomizedKeyX:   feBig(rk.X),
		RandomizedKeyY:   feBig(rk.Y),
	}
	if err := params.VerifySpend(proof, public); err != nil {
		t.Fatalf("VerifySpend: %v", err)
	}

	// A shifted anchor must not verify.
	var wrong fr.Element
	wrong.SetUint64(1)
	wrong.Add(&wrong, &w.Root)
	bad := &circuits.SpendCircuit{
		Anchor:           feBig(wrong),
		Nullifier:        feBig(nf),
		ValueCommitmentX: feBig(cv.X),
		ValueCommitmentY: feBig(cv.Y),
		RandomizedKeyX:   feBig(rk.X),
		RandomizedKeyY:   feBig(rk.Y),
	}
	if err := params.VerifySpend(proof, bad); err == nil {
		t.Fatal("VerifySpend accepted a foreign anchor")
	}
}
