package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/manuelog-udc/tfm-munics/api"
	"github.com/manuelog-udc/tfm-munics/api/clients"
	"github.com/manuelog-udc/tfm-munics/cmd/flags"
	"github.com/manuelog-udc/tfm-munics/verifier"
	"github.com/urfave/cli/v2"
)

var (
	flagPayment = &cli.StringFlag{
		Name:  "payment",
		Usage: "declared payment in wei (memory-mode servers)",
	}
	flagPaymentTx = &cli.StringFlag{
		Name:  "payment-tx",
		Usage: "hash of the transfer paying the module (chain-mode servers)",
	}
	flagIndex = &cli.IntFlag{
		Name:     "index",
		Usage:    "verifying key registry index",
		Required: true,
	}
	flagProof = &cli.StringFlag{
		Name:     "proof",
		Usage:    "snarkjs proof.json, or a calldata document with a, b, c and input when --public is not set",
		Required: true,
	}
	flagPublic = &cli.StringFlag{
		Name:  "public",
		Usage: "snarkjs public.json holding the public inputs",
	}
	flagKeyFile = &cli.StringFlag{
		Name:     "file",
		Usage:    "verification key JSON file (one key or an array)",
		Required: true,
	}
)

func main() {
	app := &cli.App{
		Name:  "recoveryctl",
		Usage: "Drive a recovery module through its HTTP API",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.PrivateKeyFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "show the recovery request, votes and balances",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, false)
					if err != nil {
						return err
					}
					return printJSON(c.Status(cCtx.Context))
				},
			},
			{
				Name:  "events",
				Usage: "show the module event journal",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, false)
					if err != nil {
						return err
					}
					return printJSON(c.Events(cCtx.Context))
				},
			},
			{
				Name:  "start",
				Usage: "open a recovery request as the --private-key address",
				Flags: []cli.Flag{flagPayment, flagPaymentTx},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					return printJSON(c.Start(cCtx.Context, payment(cCtx)))
				},
			},
			{
				Name:  "cancel",
				Usage: "vote to cancel the active request as a wallet owner",
				Flags: []cli.Flag{flagPayment, flagPaymentTx},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					return printJSON(c.Cancel(cCtx.Context, payment(cCtx)))
				},
			},
			{
				Name:  "complete",
				Usage: "submit a recovery proof against a registry entry",
				Flags: []cli.Flag{flagIndex, flagProof, flagPublic, flagPayment, flagPaymentTx},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					proof, err := loadProof(cCtx.String(flagProof.Name), cCtx.String(flagPublic.Name))
					if err != nil {
						return err
					}
					return printJSON(c.Complete(cCtx.Context, cCtx.Int(flagIndex.Name), proof, payment(cCtx)))
				},
			},
			{
				Name:  "keys",
				Usage: "list and manage the verifying key registry",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, false)
					if err != nil {
						return err
					}
					return printJSON(c.Keys(cCtx.Context))
				},
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "append verifying keys (owners only)",
						Flags: []cli.Flag{flagKeyFile},
						Action: func(cCtx *cli.Context) error {
							c, err := newClient(cCtx, true)
							if err != nil {
								return err
							}
							keys, err := loadKeys(cCtx.String(flagKeyFile.Name))
							if err != nil {
								return err
							}
							indices := make([]int, 0, len(keys))
							for _, vk := range keys {
								index, err := c.AddKey(cCtx.Context, vk)
								if err != nil {
									return err
								}
								indices = append(indices, index)
							}
							return printJSON(map[string][]int{"indices": indices}, nil)
						},
					},
					{
						Name:  "substitute",
						Usage: "replace the active key set (owners only)",
						Flags: []cli.Flag{flagKeyFile},
						Action: func(cCtx *cli.Context) error {
							c, err := newClient(cCtx, true)
							if err != nil {
								return err
							}
							keys, err := loadKeys(cCtx.String(flagKeyFile.Name))
							if err != nil {
								return err
							}
							return printJSON(c.SubstituteKeys(cCtx.Context, keys))
						},
					},
					{
						Name:  "invalidate",
						Usage: "disable one registry entry (owners only)",
						Flags: []cli.Flag{flagIndex},
						Action: func(cCtx *cli.Context) error {
							c, err := newClient(cCtx, true)
							if err != nil {
								return err
							}
							return printJSON(c.InvalidateKey(cCtx.Context, cCtx.Int(flagIndex.Name)))
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(cCtx *cli.Context, signed bool) (*clients.RecoveryClient, error) {
	serverAddr := cCtx.String(flags.ServerAddrFlag.Name)
	if !signed {
		return clients.NewRecoveryClient(serverAddr, nil), nil
	}
	key, err := flags.LoadKey(cCtx.String(flags.PrivateKeyFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flags.PrivateKeyFlag.Name, err)
	}
	return clients.NewRecoveryClient(serverAddr, key), nil
}

func payment(cCtx *cli.Context) api.Payment {
	return api.Payment{
		Amount: cCtx.String(flagPayment.Name),
		Tx:     cCtx.String(flagPaymentTx.Name),
	}
}

func loadProof(proofPath, publicPath string) (*verifier.Proof, error) {
	proofJSON, err := os.ReadFile(proofPath)
	if err != nil {
		return nil, err
	}
	if publicPath == "" {
		var proof verifier.Proof
		if err := json.Unmarshal(proofJSON, &proof); err != nil {
			return nil, fmt.Errorf("failed to parse proof calldata: %w", err)
		}
		return &proof, nil
	}
	publicJSON, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, err
	}
	return verifier.ParseSnarkJSProof(proofJSON, publicJSON)
}

func loadKeys(path string) ([]*verifier.VerifyingKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	keys, err := verifier.ParseVerifyingKeys(data)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.New("no verifying keys in file")
	}
	return keys, nil
}

func printJSON(v any, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
