package main

import (
	"fmt"
	"net"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/blockberries/ptb/example/gamecards"
	ptbgrpc "github.com/blockberries/ptb/grpc"
	"github.com/blockberries/ptb/internal/logging"
	ptbtest "github.com/blockberries/ptb/testing"
	"github.com/blockberries/ptb/types"
)

var cmdServe = &cobra.Command{
	Use:   "serve",
	Short: "Run an in-memory dev ledger over gRPC",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var flagServe struct {
	Fund      uint64
	GameCards string
}

func init() {
	cmdMain.AddCommand(cmdServe)
	cmdServe.Flags().Uint64Var(&flagServe.Fund, "fund", ptbtest.DefaultGas, "Gas minted for every configured key, 0 to skip")
	cmdServe.Flags().StringVar(&flagServe.GameCards, "gamecards", "", "Package ID to install the gamecards module under")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ledger := ptbtest.NewLedger(
		ptbtest.WithReferencePrice(cfg.Server.ReferencePrice),
		ptbtest.WithLogger(logger.Named("ledger")),
	)
	if cfg.Server.Genesis != "" {
		g, err := ptbtest.LoadGenesisFile(cfg.Server.Genesis)
		if err != nil {
			return err
		}
		if err := ledger.Apply(g); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
	}
	if flagServe.GameCards != "" {
		pkg, err := types.ParseObjectID(flagServe.GameCards)
		if err != nil {
			return fmt.Errorf("gamecards package: %w", err)
		}
		gamecards.Register(ledger, pkg)
	}

	ks, err := loadKeystore(cfg.Keystore.Seeds)
	if err != nil {
		return err
	}
	if flagServe.Fund > 0 {
		for _, addr := range ks.Addresses() {
			coin := ledger.Mint(addr, flagServe.Fund)
			cmd.Printf("funded %s with %s (%s)\n", addr, humanize.Comma(int64(flagServe.Fund)), coin.Ref.ID)
		}
	}

	lis, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Listen, err)
	}
	gs := grpc.NewServer()
	ptbgrpc.NewGRPCServer(ledger, ptbgrpc.WithServerLogger(logger.Named("grpc"))).Register(gs)

	errc := make(chan error, 1)
	go func() { errc <- gs.Serve(lis) }()
	cmd.Println(color.GreenString("ledger listening on %s", lis.Addr()))
	logger.Info("serving", zap.Stringer("addr", lis.Addr()), zap.Uint64("reference_price", cfg.Server.ReferencePrice))

	select {
	case err := <-errc:
		return err
	case <-cmd.Context().Done():
		logger.Info("shutting down", zap.Int("transactions", ledger.Transactions()))
		gs.GracefulStop()
		return nil
	}
}
