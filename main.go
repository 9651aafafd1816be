package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"swap-deposit-example/core"
	"swap-deposit-example/display"
	"syscall"
)

func main() {
	var (
		configFile    = flag.String("f", "./config.yaml", "the config file")
		skipSwap      = flag.Bool("skip-swap", false, "skip the USDC -> LINK swap")
		skipDeposit   = flag.Bool("skip-deposit", false, "skip the LINK deposit")
		depositAmount = flag.String("deposit", "", "LINK amount to deposit, overrides deposit.amount")
	)
	flag.Parse()

	err := run(*configFile, core.RunOptions{
		SkipSwap:      *skipSwap,
		SkipDeposit:   *skipDeposit,
		DepositAmount: *depositAmount,
	})
	if err != nil {
		display.Fail("%v", err)
		display.Sync()
		os.Exit(1)
	}
	display.Sync()
}

func run(configFile string, opts core.RunOptions) error {
	config, err := core.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if err := display.InitLogger(config.Logger.ToLogOption()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := core.NewPoolBackend(ctx, config.Network.Rpc, config.Network.MaxConnect)
	defer backend.Close()

	signer, err := core.NewSigner(config, backend)
	if err != nil {
		return err
	}

	display.Info("account: %s", signer.Address().Hex())
	display.Logger().Infow("starting", "network", config.Network.Name, "signer", config.Signer, "lendingMethod", config.Contracts.LendingMethod)

	return core.NewRunner(config, backend, signer).Run(ctx, opts)
}
