package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/manuelog-udc/tfm-munics/cmd/flags"
	"github.com/manuelog-udc/tfm-munics/common"
	"github.com/manuelog-udc/tfm-munics/httpserver"
	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/manuelog-udc/tfm-munics/metrics"
	"github.com/manuelog-udc/tfm-munics/recovery"
	"github.com/manuelog-udc/tfm-munics/storage"
	"github.com/manuelog-udc/tfm-munics/verifier"
	"github.com/manuelog-udc/tfm-munics/wallet"
	"github.com/urfave/cli/v2"
)

var (
	flagListenAddr = &cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	}
	flagMode = &cli.StringFlag{
		Name:  "mode",
		Value: "memory",
		Usage: "wallet mode: 'memory' for an in-process multisig, 'chain' for a deployed Safe",
	}
	flagSafeAddress = &cli.StringFlag{
		Name:  "safe-address",
		Usage: "wallet address; required in chain mode",
	}
	flagModuleAddress = &cli.StringFlag{
		Name:  "module-address",
		Usage: "module account address in memory mode",
	}
	flagOwners = &cli.StringSliceFlag{
		Name:  "owner",
		Usage: "initial owner address in memory mode, may be repeated",
	}
	flagThreshold = &cli.Uint64Flag{
		Name:  "threshold",
		Value: 1,
		Usage: "owner threshold in memory mode",
	}
	flagChainTimeout = &cli.DurationFlag{
		Name:  "chain-timeout",
		Value: 2 * time.Minute,
		Usage: "timeout of one chain call, including waiting for a receipt",
	}
	flagDeposit = &cli.StringFlag{
		Name:  "deposit",
		Value: big.NewInt(params.Ether).String(),
		Usage: "required deposit in wei for start and complete",
	}
	flagWaitingPeriod = &cli.Uint64Flag{
		Name:  "waiting-period",
		Value: 2 * 24 * 60 * 60,
		Usage: "seconds between start and complete",
	}
	flagVerifyingKeys = &cli.StringSliceFlag{
		Name:  "verifying-key",
		Usage: "verification key JSON file (one key or an array), may be repeated",
	}
	flagVerifyingKeyIDs = &cli.StringSliceFlag{
		Name:  "verifying-key-id",
		Usage: "content id of a verification key document in --storage, may be repeated",
	}
)

func main() {
	app := &cli.App{
		Name:  "recoveryserver",
		Usage: "Serve the social recovery module API",
		Flags: append([]cli.Flag{
			flagListenAddr,
			flagMode,
			flagSafeAddress,
			flagModuleAddress,
			flagOwners,
			flagThreshold,
			flagChainTimeout,
			flagDeposit,
			flagWaitingPeriod,
			flagVerifyingKeys,
			flagVerifyingKeyIDs,
			flags.StorageFlag,
			flags.RpcAddrFlag,
			flags.PrivateKeyFlag,
		}, flags.CommonFlags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flagListenAddr.Name))

	deposit, ok := new(big.Int).SetString(cCtx.String(flagDeposit.Name), 10)
	if !ok {
		return fmt.Errorf("invalid deposit %q", cCtx.String(flagDeposit.Name))
	}

	keys, err := loadVerifyingKeys(cCtx, logger)
	if err != nil {
		logger.Error("Failed to load verifying keys", "err", err)
		return err
	}
	logger.Info("Verifying keys loaded", "count", len(keys))

	metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
	if err != nil {
		return err
	}
	recoveryMetrics, err := metrics.NewRecoveryMetrics(metricsSrv.Namespace(), metricsSrv.Registry())
	if err != nil {
		return err
	}

	env, err := setupWallet(cCtx, logger)
	if err != nil {
		logger.Error("Failed to set up wallet", "err", err)
		return err
	}

	module, err := recovery.New(recovery.Config{
		Wallet:          env.wallet,
		Treasury:        env.treasury,
		Clock:           env.clock,
		RequiredDeposit: deposit,
		WaitingPeriod:   cCtx.Uint64(flagWaitingPeriod.Name),
		VerifyingKeys:   keys,
		Sink:            recoveryMetrics,
		Log:             logger,
	})
	if err != nil {
		logger.Error("Failed to create recovery module", "err", err)
		return err
	}

	handler := httpserver.NewHandler(module, env.payments, recoveryMetrics, logger)
	handler.SyncMetrics()

	server, err := httpserver.New(cfg, handler, metricsSrv)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting server",
		"mode", cCtx.String(flagMode.Name),
		"wallet", env.wallet.Address().String(),
		"module", env.module.String())
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

type walletEnv struct {
	wallet   interfaces.WalletAdapter
	treasury interfaces.Treasury
	clock    interfaces.Clock
	payments httpserver.Payments
	module   interfaces.Address
}

func setupWallet(cCtx *cli.Context, logger *slog.Logger) (*walletEnv, error) {
	switch mode := cCtx.String(flagMode.Name); mode {
	case "memory":
		return setupMemoryWallet(cCtx, logger)
	case "chain":
		return setupChainWallet(cCtx, logger)
	default:
		return nil, fmt.Errorf("invalid mode: %s", mode)
	}
}

func setupMemoryWallet(cCtx *cli.Context, logger *slog.Logger) (*walletEnv, error) {
	var owners []interfaces.Address
	for _, s := range cCtx.StringSlice(flagOwners.Name) {
		owner, err := interfaces.NewAddressFromHex(s)
		if err != nil {
			return nil, fmt.Errorf("invalid owner %q: %w", s, err)
		}
		owners = append(owners, owner)
	}
	if len(owners) == 0 {
		return nil, errors.New("memory mode needs at least one --owner")
	}

	walletAddr, err := addressOrDefault(cCtx.String(flagSafeAddress.Name), 0xAA)
	if err != nil {
		return nil, err
	}
	moduleAddr, err := addressOrDefault(cCtx.String(flagModuleAddress.Name), 0xBB)
	if err != nil {
		return nil, err
	}

	threshold := cCtx.Uint64(flagThreshold.Name)
	safe, err := wallet.NewSafe(walletAddr, owners, threshold)
	if err != nil {
		return nil, err
	}
	signers := owners[:threshold]
	if err := safe.ExecTransaction(signers, wallet.EnableModuleOp(moduleAddr)); err != nil {
		return nil, fmt.Errorf("failed to enable module: %w", err)
	}
	logger.Info("Memory wallet created", "owners", len(owners), "threshold", threshold)

	adapter := safe.ModuleAdapter(moduleAddr)
	return &walletEnv{
		wallet:   adapter,
		treasury: adapter,
		clock:    &wallet.SystemClock{},
		payments: httpserver.NewMemoryPayments(adapter),
		module:   moduleAddr,
	}, nil
}

func setupChainWallet(cCtx *cli.Context, logger *slog.Logger) (*walletEnv, error) {
	safeAddr, err := interfaces.NewAddressFromHex(cCtx.String(flagSafeAddress.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid --safe-address: %w", err)
	}
	key, err := flags.LoadKey(cCtx.String(flags.PrivateKeyFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("module key: %w", err)
	}

	rpcAddress := cCtx.String(flags.RpcAddrFlag.Name)
	logger.Info("Connecting to Ethereum RPC", "address", rpcAddress)
	client, err := ethclient.Dial(rpcAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}

	ctx, cancel := context.WithTimeout(cCtx.Context, 10*time.Second)
	defer cancel()
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}

	chainCfg := wallet.ChainConfig{
		Backend: client,
		Key:     key,
		ChainID: chainID,
		Timeout: cCtx.Duration(flagChainTimeout.Name),
	}
	safe, err := wallet.NewSafeClient(safeAddr, chainCfg, logger)
	if err != nil {
		return nil, err
	}
	treasury, err := wallet.NewEthTreasury(chainCfg, logger)
	if err != nil {
		return nil, err
	}

	balance, err := treasury.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read module balance: %w", err)
	}
	logger.Info("Chain wallet connected",
		"chainID", chainID.String(),
		"safe", safeAddr.String(),
		"module", safe.Module().String(),
		"moduleBalance", balance.String())

	return &walletEnv{
		wallet:   safe,
		treasury: treasury,
		clock:    wallet.NewChainClock(client, 5*time.Second, logger),
		payments: httpserver.NewChainPayments(wallet.NewPaymentVerifier(client, safe.Module(), chainID)),
		module:   safe.Module(),
	}, nil
}

func addressOrDefault(s string, def byte) (interfaces.Address, error) {
	if s == "" {
		var addr interfaces.Address
		addr[19] = def
		return addr, nil
	}
	return interfaces.NewAddressFromHex(s)
}

func loadVerifyingKeys(cCtx *cli.Context, logger *slog.Logger) ([]*verifier.VerifyingKey, error) {
	var keys []*verifier.VerifyingKey
	for _, path := range cCtx.StringSlice(flagVerifyingKeys.Name) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		parsed, err := verifier.ParseVerifyingKeys(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		keys = append(keys, parsed...)
	}

	ids := cCtx.StringSlice(flagVerifyingKeyIDs.Name)
	if len(ids) == 0 {
		return keys, nil
	}

	backend, err := storage.NewStorageBackendFactory(logger).FromURIs(cCtx.StringSlice(flags.StorageFlag.Name))
	if err != nil {
		return nil, err
	}
	for _, s := range ids {
		id, err := interfaces.NewContentIDFromHex(s)
		if err != nil {
			return nil, fmt.Errorf("invalid content id %q: %w", s, err)
		}
		data, err := backend.Fetch(cCtx.Context, id, interfaces.VerifyingKeyType)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch verifying keys %s: %w", s, err)
		}
		parsed, err := verifier.ParseVerifyingKeys(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s, err)
		}
		keys = append(keys, parsed...)
	}
	return keys, nil
}
