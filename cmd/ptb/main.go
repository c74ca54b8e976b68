package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blockberries/ptb/config"
	ptbgrpc "github.com/blockberries/ptb/grpc"
	"github.com/blockberries/ptb/internal/logging"
	"github.com/blockberries/ptb/resolver"
	"github.com/blockberries/ptb/session"
	"github.com/blockberries/ptb/signing"
	"github.com/blockberries/ptb/submit"
)

var cmdMain = &cobra.Command{
	Use:           "ptb",
	Short:         "Build, sign and submit programmable transactions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var flagMain struct {
	Config string
	Ledger string
}

func init() {
	cmdMain.PersistentFlags().StringVarP(&flagMain.Config, "config", "c", "", "YAML configuration file")
	cmdMain.PersistentFlags().StringVarP(&flagMain.Ledger, "ledger", "l", "", "Ledger node address, overrides the configuration")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmdMain.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is everything a client command needs.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   *ptbgrpc.Client
	keystore *signing.MemoryKeystore
	resolver *resolver.Resolver
	submit   *submit.Submitter
	session  *session.Session
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagMain.Config)
	if err != nil {
		return nil, err
	}
	if flagMain.Ledger != "" {
		cfg.Ledger.Address = flagMain.Ledger
	}
	return cfg, nil
}

func loadKeystore(seeds []string) (*signing.MemoryKeystore, error) {
	ks := signing.NewMemoryKeystore()
	for i, s := range seeds {
		seed, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", i, err)
		}
		if _, err := ks.FromSeed(seed); err != nil {
			return nil, fmt.Errorf("seed %d: %w", i, err)
		}
	}
	return ks, nil
}

// connect loads the configuration and wires the pipeline to the
// configured ledger. The caller closes env.client.
func connect(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	ks, err := loadKeystore(cfg.Keystore.Seeds)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Ledger.DialTimeout)
	defer cancel()
	client, err := ptbgrpc.Dial(dialCtx, cfg.Ledger.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, logger: logger, client: client, keystore: ks}
	e.resolver = resolver.New(client, resolver.WithLogger(logger))
	e.submit = submit.New(client,
		submit.WithLogger(logger),
		submit.WithTimeout(cfg.Submit.Timeout),
		submit.WithAwait(cfg.Submit.AwaitInterval, cfg.Submit.AwaitTimeout),
	)
	e.session = session.New(e.resolver, e.submit, ks,
		session.WithLogger(logger),
		session.WithGasBudget(cfg.Session.GasBudget),
		session.WithMaxAttempts(cfg.Session.MaxAttempts),
		session.WithRetryWait(cfg.Session.RetryWait),
		session.WithRequestMode(cfg.Session.Mode()),
	)
	return e, nil
}

func (e *env) close() {
	_ = e.client.Close()
	_ = e.logger.Sync()
}
