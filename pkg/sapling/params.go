// Package sapling owns the proving parameter set every transaction in the
// process shares: the compiled spend and output constraint systems and
// their Groth16 key pairs.
//
// Parameters are expensive to build, so they initialize lazily exactly once
// and are read-only afterwards. Generated keys persist in a cache directory
// and later processes load them instead of running setup again. Proving and
// verifying against the same Params value from many goroutines is safe.
package sapling

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/logger"
	"github.com/pkg/errors"

	"github.com/suffix-labs/sapling-tx/pkg/circuits"
)

// ParamsDirEnv names the environment variable that overrides the parameter
// cache directory.
const ParamsDirEnv = "SAPLING_TX_PARAMS"

// Key cache file names.
const (
	spendProvingKeyFile    = "spend.pk"
	spendVerifyingKeyFile  = "spend.vk"
	outputProvingKeyFile   = "output.pk"
	outputVerifyingKeyFile = "output.vk"
)

// Params bundles the proving machinery for both circuits.
type Params struct {
	spendSystem       constraint.ConstraintSystem
	spendProvingKey   groth16.ProvingKey
	spendVerifyingKey groth16.VerifyingKey

	outputSystem       constraint.ConstraintSystem
	outputProvingKey   groth16.ProvingKey
	outputVerifyingKey groth16.VerifyingKey
}

var (
	loadOnce sync.Once
	shared   *Params
	loadErr  error
)

// Load returns the process-wide parameter set, building it on first use.
// Every builder and every verification in the process shares the result.
func Load() (*Params, error) {
	loadOnce.Do(func() {
		shared, loadErr = New(DefaultDir())
	})
	return shared, loadErr
}

// DefaultDir resolves the parameter cache directory: the ParamsDirEnv
// override if set, otherwise a sapling-tx directory under the user cache.
func DefaultDir() string {
	if dir := os.Getenv(ParamsDirEnv); dir != "" {
		return dir
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "sapling-tx-params"
	}
	return filepath.Join(cache, "sapling-tx")
}

// New compiles both circuits and loads their Groth16 keys from dir,
// generating and persisting fresh ones when the cache is cold.
func New(dir string) (*Params, error) {
	log := logger.Logger()
	start := time.Now()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating parameter directory")
	}

	p := &Params{}

	var err error
	p.spendSystem, err = frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, &circuits.SpendCircuit{})
	if err != nil {
		return nil, errors.Wrap(err, "compiling spend circuit")
	}
	p.spendProvingKey, p.spendVerifyingKey, err = setupOrLoad(
		p.spendSystem,
		filepath.Join(dir, spendProvingKeyFile),
		filepath.Join(dir, spendVerifyingKeyFile),
	)
	if err != nil {
		return nil, errors.Wrap(err, "preparing spend keys")
	}

	p.outputSystem, err = frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, &circuits.OutputCircuit{})
	if err != nil {
		return nil, errors.Wrap(err, "compiling output circuit")
	}
	p.outputProvingKey, p.outputVerifyingKey, err = setupOrLoad(
		p.outputSystem,
		filepath.Join(dir, outputProvingKeyFile),
		filepath.Join(dir, outputVerifyingKeyFile),
	)
	if err != nil {
		return nil, errors.Wrap(err, "preparing output keys")
	}

	log.Info().
		Str("dir", dir).
		Int("spendConstraints", p.spendSystem.GetNbConstraints()).
		Int("outputConstraints", p.outputSystem.GetNbConstraints()).
		Dur("took", time.Since(start)).
		Msg("sapling parameters ready")
	return p, nil
}

// setupOrLoad loads a cached key pair when both files exist, otherwise runs
// the Groth16 setup and writes the pair out.
func setupOrLoad(cs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	if fileExists(pkPath) && fileExists(vkPath) {
		pk, err := loadProvingKey(pkPath)
		if err != nil {
			return nil, nil, err
		}
		vk, err := loadVerifyingKey(vkPath)
		if err != nil {
			return nil, nil, err
		}
		return pk, vk, nil
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "groth16 setup")
	}
	if err := saveKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := saveKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func loadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening proving key")
	}
	defer f.Close()

	pk := groth16.NewProvingKey(ecc.BLS12_381)
	if _, err := pk.ReadFrom(f); err != nil {
		return nil, errors.Wrapf(err, "reading proving key %s", path)
	}
	return pk, nil
}

func loadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening verifying key")
	}
	defer f.Close()

	vk := groth16.NewVerifyingKey(ecc.BLS12_381)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, errors.Wrapf(err, "reading verifying key %s", path)
	}
	return vk, nil
}

// saveKey persists any of the groth16 key types, which all serialize
// through WriteTo.
func saveKey(path string, key io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	if _, err := key.WriteTo(f); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
