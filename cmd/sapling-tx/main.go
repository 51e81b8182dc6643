// sapling-tx CLI - Shielded transaction builder
//
// This CLI demonstrates the sapling-tx library's capabilities for creating
// and verifying shielded transactions carrying zero-knowledge proofs.
//
// Example usage:
//   # Generate a spending key
//   sapling-tx keygen
//
//   # Mint a miner's fee transaction paying 100 to the key's address
//   sapling-tx mine <key-hex> 100 reward.stx
//
//   # Spend a note received in reward.stx, paying 30 to another address
//   sapling-tx spend <key-hex> reward.stx <to-address> 30 1 payment.stx
//
//   # Verify the proofs and signatures of a posted transaction
//   sapling-tx verify reward.stx
//
//   # Show transaction contents, decrypting note records with a key
//   sapling-tx inspect reward.stx <key-hex>
package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark/logger"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/suffix-labs/sapling-tx/pkg/api"
	"github.com/suffix-labs/sapling-tx/pkg/keys"
	"github.com/suffix-labs/sapling-tx/pkg/merkle"
	"github.com/suffix-labs/sapling-tx/pkg/note"
	"github.com/suffix-labs/sapling-tx/pkg/sapling"
	"github.com/suffix-labs/sapling-tx/pkg/transaction"
)

const (
	// ConfigPathEnv names the environment variable that points at the
	// YAML config file. The file is created with defaults when missing.
	ConfigPathEnv = "SAPLING_TX_CONFIG"

	// DefaultConfigPath is consulted when ConfigPathEnv is unset. Unlike
	// an env-provided path it is never created automatically.
	DefaultConfigPath = "sapling-tx.yaml"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadCLIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg)
	if cfg.ParamsDir != "" {
		os.Setenv(sapling.ParamsDirEnv, cfg.ParamsDir)
	}

	command := os.Args[1]

	switch command {
	case "keygen":
		cmdKeygen()
	case "address":
		cmdAddress()
	case "mine":
		cmdMine()
	case "spend":
		cmdSpend()
	case "verify":
		cmdVerify()
	case "inspect":
		cmdInspect()
	case "version":
		cmdVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// loadCLIConfig resolves the config file. An env-provided path is
// loaded or created; the default path is only loaded when it already
// exists, so plain invocations leave no files behind.
func loadCLIConfig() (*Config, error) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return LoadConfig(path)
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return LoadConfig(DefaultConfigPath)
	}
	return DefaultConfig(), nil
}

// setupLogging routes the proving backend's log output through a
// console writer at the configured level.
func setupLogging(cfg *Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().Level(level)
	logger.Set(log)
}

func printUsage() {
	fmt.Println(`sapling-tx - Shielded transaction builder

Usage:
  sapling-tx <command> [arguments]

Commands:
  keygen                         Generate a new spending key
  address <key-hex>              Derive the public address of a spending key
  mine <key-hex> <value> [file]  Create a miner's fee transaction minting <value>
  spend <key-hex> <tx-file> <to-address> <value> <fee> [file]
                                 Spend a note received in <tx-file>, paying
                                 <value> to <to-address>; change returns to the key
  verify <file>                  Verify a posted transaction
  inspect <file> [key-hex]       Display a transaction, decrypting notes when a key is given
  version                        Show version information
  help                           Show this help message

Environment:
  SAPLING_TX_PARAMS              Directory for the Groth16 parameter cache
  SAPLING_TX_CONFIG              Path to a YAML config file (created when missing)

Examples:
  # Generate a key and mint a block reward to it
  sapling-tx keygen
  sapling-tx mine 8f3b... 100 reward.stx

  # Pay 30 from the minted note to another address, fee 1
  sapling-tx spend 8f3b... reward.stx 4ac2... 30 1 payment.stx

  # Check the transaction and read its notes
  sapling-tx verify payment.stx
  sapling-tx inspect payment.stx 8f3b...

The first proving command compiles the spend and output circuits and
caches their keys under the parameter directory; later runs reuse them.

For more information, see: https://github.com/suffix-labs/sapling-tx`)
}

func cmdVersion() {
	fmt.Println("sapling-tx v0.1.0")
	fmt.Println("Shielded transaction builder for Sapling-style notes")
	fmt.Println("Proof system: Groth16 over BLS12-381 (gnark)")
}

func cmdKeygen() {
	keyHex, err := api.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
		os.Exit(1)
	}
	addressHex, err := api.PublicAddressOf(keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to derive address: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Spending key:", keyHex)
	fmt.Println("Address:     ", addressHex)
}

func cmdAddress() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: spending key argument required")
		fmt.Fprintln(os.Stderr, "Usage: sapling-tx address <key-hex>")
		os.Exit(1)
	}

	addressHex, err := api.PublicAddressOf(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to derive address: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(addressHex)
}

func cmdMine() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "Error: key and value arguments required")
		fmt.Fprintln(os.Stderr, "Usage: sapling-tx mine <key-hex> <value> [file]")
		os.Exit(1)
	}

	keyHex := os.Args[2]
	value, err := strconv.ParseUint(os.Args[3], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid value %q: %v\n", os.Args[3], err)
		os.Exit(1)
	}

	addressHex, err := api.PublicAddressOf(keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to derive address: %v\n", err)
		os.Exit(1)
	}

	n, err := api.CreateNote(addressHex, value, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create note: %v\n", err)
		os.Exit(1)
	}

	builder, err := api.NewBuilder()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize builder: %v\n", err)
		os.Exit(1)
	}
	if err := builder.Receive(keyHex, n); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to add output: %v\n", err)
		os.Exit(1)
	}

	raw, err := builder.PostMinersFee()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to post transaction: %v\n", err)
		os.Exit(1)
	}

	hash, err := api.TransactionHash(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash transaction: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Minted %d to %s\n", value, addressHex)
	fmt.Printf("Hash: %s\n", hash)

	if len(os.Args) >= 5 {
		path := os.Args[4]
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(raw), path)
	} else {
		fmt.Println(hex.EncodeToString(raw))
	}
}

func cmdSpend() {
	if len(os.Args) < 7 {
		fmt.Fprintln(os.Stderr, "Error: key, transaction file, recipient, value and fee arguments required")
		fmt.Fprintln(os.Stderr, "Usage: sapling-tx spend <key-hex> <tx-file> <to-address> <value> <fee> [file]")
		os.Exit(1)
	}

	keyHex := os.Args[2]
	toHex := os.Args[4]
	value, err := strconv.ParseUint(os.Args[5], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid value %q: %v\n", os.Args[5], err)
		os.Exit(1)
	}
	fee, err := strconv.ParseUint(os.Args[6], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid fee %q: %v\n", os.Args[6], err)
		os.Exit(1)
	}

	key, err := keys.SpendingKeyFromHex(keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse spending key: %v\n", err)
		os.Exit(1)
	}

	raw, err := readTransactionFile(os.Args[3])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read transaction: %v\n", err)
		os.Exit(1)
	}
	tx, err := api.ParseTransaction(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse transaction: %v\n", err)
		os.Exit(1)
	}

	// Rebuild the commitment tree over the source transaction's receipts
	// and pick the first note the key can read.
	tree := merkle.NewTree()
	var owned *note.Note
	var position uint64
	for i := 0; i < tx.ReceiptsLength(); i++ {
		record := tx.ReceiptAt(i)
		var cm fr.Element
		cm.SetBytes(record.NoteCommitment[:])
		tree.Add(cm)
		if owned == nil {
			if n, err := record.DecryptNoteForOwner(key.IncomingViewKey()); err == nil {
				owned = n
				position = uint64(i)
			}
		}
	}
	if owned == nil {
		fmt.Fprintln(os.Stderr, "No note in the transaction is readable with the given key")
		os.Exit(1)
	}

	w, err := tree.Witness(position)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build witness: %v\n", err)
		os.Exit(1)
	}

	builder, err := api.NewBuilder()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize builder: %v\n", err)
		os.Exit(1)
	}
	if err := builder.Spend(keyHex, owned, w); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to add spend: %v\n", err)
		os.Exit(1)
	}

	payment, err := api.CreateNote(toHex, value, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create note: %v\n", err)
		os.Exit(1)
	}
	if err := builder.Receive(keyHex, payment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to add output: %v\n", err)
		os.Exit(1)
	}

	posted, err := builder.Post(keyHex, key.PublicAddress().Hex(), fee)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to post transaction: %v\n", err)
		os.Exit(1)
	}

	hash, err := api.TransactionHash(posted)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash transaction: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Spent note of value %d\n", owned.Value())
	fmt.Printf("Paid %d to %s, fee %d, change %d\n", value, toHex, fee, owned.Value()-value-fee)
	fmt.Printf("Hash: %s\n", hash)

	if len(os.Args) >= 8 {
		path := os.Args[7]
		if err := os.WriteFile(path, posted, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(posted), path)
	} else {
		fmt.Println(hex.EncodeToString(posted))
	}
}

func cmdVerify() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: transaction file argument required")
		fmt.Fprintln(os.Stderr, "Usage: sapling-tx verify <file>")
		os.Exit(1)
	}

	raw, err := readTransactionFile(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read transaction: %v\n", err)
		os.Exit(1)
	}

	ok, err := api.VerifyTransaction(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse transaction: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("Transaction is INVALID")
		os.Exit(1)
	}

	fee, _ := api.TransactionFee(raw)
	hash, _ := api.TransactionHash(raw)
	fmt.Println("Transaction is valid")
	fmt.Printf("  Fee:  %d\n", fee)
	fmt.Printf("  Hash: %s\n", hash)
}

func cmdInspect() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: transaction file argument required")
		fmt.Fprintln(os.Stderr, "Usage: sapling-tx inspect <file> [key-hex]")
		os.Exit(1)
	}

	raw, err := readTransactionFile(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read transaction: %v\n", err)
		os.Exit(1)
	}

	tx, err := api.ParseTransaction(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse transaction: %v\n", err)
		os.Exit(1)
	}

	var key *keys.SpendingKey
	if len(os.Args) >= 4 {
		key, err = keys.SpendingKeyFromHex(os.Args[3])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse spending key: %v\n", err)
			os.Exit(1)
		}
	}

	sig := tx.Signature()
	hash := tx.Hash()

	fmt.Println("Transaction:")
	fmt.Printf("  Fee:      %d\n", tx.Fee())
	fmt.Printf("  Spends:   %d\n", tx.SpendsLength())
	fmt.Printf("  Receipts: %d\n", tx.ReceiptsLength())
	fmt.Printf("  Hash:     %s\n", hex.EncodeToString(hash[:]))
	fmt.Printf("  Binding:  %s\n", hex.EncodeToString(sig[:]))
	fmt.Println()

	for i := 0; i < tx.SpendsLength(); i++ {
		spend := tx.SpendAt(i)
		fmt.Printf("Spend %d:\n", i)
		fmt.Printf("  Nullifier: %s\n", hex.EncodeToString(spend.Nullifier[:]))
		fmt.Printf("  Root:      %s\n", hex.EncodeToString(spend.RootHash[:]))
		fmt.Printf("  Tree size: %d\n", spend.TreeSize)
		fmt.Println()
	}

	for i := 0; i < tx.ReceiptsLength(); i++ {
		record := tx.ReceiptAt(i)
		fmt.Printf("Receipt %d:\n", i)
		fmt.Printf("  Commitment: %s\n", hex.EncodeToString(record.NoteCommitment[:]))

		if key != nil {
			if n, err := record.DecryptNoteForOwner(key.IncomingViewKey()); err == nil {
				fmt.Printf("  Owned note: value %d, memo %q\n", n.Value(), n.Memo().String())
			} else if n, err := record.DecryptNoteForSpender(key.OutgoingViewKey()); err == nil {
				fmt.Printf("  Sent note:  value %d, memo %q\n", n.Value(), n.Memo().String())
			} else {
				fmt.Println("  Not readable with the given key")
			}
		}
		fmt.Println()
	}
}

// readTransactionFile loads a posted transaction from disk, accepting
// either the raw serialization or its hex encoding as printed by mine.
func readTransactionFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if bytes.HasPrefix(raw, []byte(transaction.MagicBytes)) {
		return raw, nil
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, errors.Wrap(err, "file holds neither a raw transaction nor hex")
	}
	return decoded, nil
}
