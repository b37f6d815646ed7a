package main

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/manuelog-udc/tfm-munics/cmd/flags"
	"github.com/manuelog-udc/tfm-munics/cryptoutils"
	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/manuelog-udc/tfm-munics/keygen"
	"github.com/manuelog-udc/tfm-munics/storage"
	"github.com/urfave/cli/v2"
)

var (
	flagCount = &cli.IntFlag{
		Name:  "count",
		Value: 1,
		Usage: "number of recovery identities to generate",
	}
	flagPassphrase = &cli.StringFlag{
		Name:     "passphrase",
		Usage:    "passphrase sealing the circuit inputs",
		EnvVars:  []string{"KEYGEN_PASSPHRASE"},
		Required: true,
	}
	flagOutDir = &cli.StringFlag{
		Name:  "out-dir",
		Usage: "directory to write sealed inputs and shares to",
	}
	flagShares = &cli.IntFlag{
		Name:  "shares",
		Usage: "split each sealed input into this many Shamir shares (0 disables)",
	}
	flagShareThreshold = &cli.IntFlag{
		Name:  "share-threshold",
		Value: 2,
		Usage: "shares needed to reconstruct a sealed input",
	}
	flagRecipients = &cli.StringSliceFlag{
		Name:  "recipient",
		Usage: "custodian secp256k1 public key (hex) sealing the share of the same position, may be repeated",
	}
	flagShareFiles = &cli.StringSliceFlag{
		Name:     "share",
		Usage:    "share file to combine, may be repeated",
		Required: true,
	}
	flagInputID = &cli.StringFlag{
		Name:     "id",
		Usage:    "content id of the sealed input",
		Required: true,
	}
)

// identity is the public summary printed for each generated key pair.
type identity struct {
	Index     int       `json:"index"`
	PublicKey [2]string `json:"public_key"`
	ContentID string    `json:"content_id,omitempty"`
	File      string    `json:"file,omitempty"`
	Shares    []string  `json:"shares,omitempty"`
}

func main() {
	app := &cli.App{
		Name:  "keygen",
		Usage: "Generate and back up Baby Jubjub recovery identities",
		Flags: flags.LogFlags,
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "generate identities, seal their circuit inputs and store them",
				Flags: []cli.Flag{
					flagCount,
					flagPassphrase,
					flagOutDir,
					flagShares,
					flagShareThreshold,
					flagRecipients,
					flags.StorageFlag,
				},
				Action: generate,
			},
			{
				Name:  "combine",
				Usage: "reconstruct a sealed input from shares and print the circuit input",
				Flags: []cli.Flag{
					flagShareFiles,
					flagPassphrase,
					flags.PrivateKeyFlag,
				},
				Action: combine,
			},
			{
				Name:  "fetch",
				Usage: "fetch a sealed input from storage and print the circuit input",
				Flags: []cli.Flag{
					flagInputID,
					flagPassphrase,
					flags.StorageFlag,
				},
				Action: fetch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func generate(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	passphrase := []byte(cCtx.String(flagPassphrase.Name))
	outDir := cCtx.String(flagOutDir.Name)
	storageURIs := cCtx.StringSlice(flags.StorageFlag.Name)
	nShares := cCtx.Int(flagShares.Name)

	if outDir == "" && len(storageURIs) == 0 {
		return errors.New("nowhere to keep the sealed inputs: set --out-dir or --storage")
	}
	if nShares > 0 && outDir == "" {
		return errors.New("--shares requires --out-dir")
	}

	recipients, err := parseRecipients(cCtx.StringSlice(flagRecipients.Name), nShares)
	if err != nil {
		return err
	}

	var backend interfaces.StorageBackend
	if len(storageURIs) > 0 {
		backend, err = storage.NewStorageBackendFactory(logger).FromURIs(storageURIs)
		if err != nil {
			return err
		}
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o700); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	pairs, err := keygen.GenerateBatch(nil, cCtx.Int(flagCount.Name))
	if err != nil {
		return err
	}

	summary := make([]identity, 0, len(pairs))
	for i, kp := range pairs {
		input, err := kp.MarshalInput()
		if err != nil {
			return err
		}
		sealed, err := cryptoutils.Seal(passphrase, input)
		if err != nil {
			return err
		}

		id := identity{Index: i, PublicKey: kp.Input().PublicKeys}
		if backend != nil {
			cid, err := backend.Store(cCtx.Context, sealed, interfaces.KeyInputType)
			if err != nil {
				return fmt.Errorf("failed to store input %d: %w", i, err)
			}
			id.ContentID = cid.String()
		}
		if outDir != "" {
			id.File = filepath.Join(outDir, fmt.Sprintf("identity-%d.json", i))
			if err := os.WriteFile(id.File, sealed, 0o600); err != nil {
				return err
			}
		}
		if nShares > 0 {
			id.Shares, err = writeShares(outDir, i, sealed, nShares, cCtx.Int(flagShareThreshold.Name), recipients)
			if err != nil {
				return err
			}
		}
		logger.Info("Recovery identity generated", "index", i, "contentID", id.ContentID)
		summary = append(summary, id)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func writeShares(outDir string, index int, sealed []byte, parts, threshold int, recipients []*ecdsa.PublicKey) ([]string, error) {
	shares, err := keygen.SplitSecret(sealed, parts, threshold)
	if err != nil {
		return nil, err
	}

	files := make([]string, len(shares))
	for j, share := range shares {
		if recipients != nil {
			share, err = cryptoutils.SealForRecipient(recipients[j], share)
			if err != nil {
				return nil, err
			}
		}
		files[j] = filepath.Join(outDir, fmt.Sprintf("identity-%d-share-%d.hex", index, j))
		if err := os.WriteFile(files[j], []byte(hex.EncodeToString(share)), 0o600); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func parseRecipients(values []string, nShares int) ([]*ecdsa.PublicKey, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if len(values) != nShares {
		return nil, fmt.Errorf("got %d recipients for %d shares", len(values), nShares)
	}
	recipients := make([]*ecdsa.PublicKey, len(values))
	for i, v := range values {
		pub, err := cryptoutils.ParseRecipient(v)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %d: %w", i, err)
		}
		recipients[i] = pub
	}
	return recipients, nil
}

func combine(cCtx *cli.Context) error {
	var key *ecdsa.PrivateKey
	if v := cCtx.String(flags.PrivateKeyFlag.Name); v != "" {
		var err error
		if key, err = flags.LoadKey(v); err != nil {
			return err
		}
	}

	var shares [][]byte
	for _, path := range cCtx.StringSlice(flagShareFiles.Name) {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		share, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if key != nil {
			// each custodian opens their own share before handing it over
			if share, err = cryptoutils.OpenAsRecipient(key, share); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		shares = append(shares, share)
	}

	sealed, err := keygen.CombineShares(shares)
	if err != nil {
		return err
	}
	return printInput(cCtx, sealed)
}

func fetch(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	id, err := interfaces.NewContentIDFromHex(cCtx.String(flagInputID.Name))
	if err != nil {
		return err
	}
	backend, err := storage.NewStorageBackendFactory(logger).FromURIs(cCtx.StringSlice(flags.StorageFlag.Name))
	if err != nil {
		return err
	}
	sealed, err := backend.Fetch(cCtx.Context, id, interfaces.KeyInputType)
	if err != nil {
		return err
	}
	return printInput(cCtx, sealed)
}

func printInput(cCtx *cli.Context, sealed []byte) error {
	data, err := cryptoutils.Open([]byte(cCtx.String(flagPassphrase.Name)), sealed)
	if err != nil {
		return err
	}
	input, err := keygen.ParseInput(data)
	if err != nil {
		return err
	}
	if !input.Consistent() {
		slog.Warn("Circuit input public key does not match its private key")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(input)
}
