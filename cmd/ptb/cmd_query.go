package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"
)

var cmdStatus = &cobra.Command{
	Use:   "status <digest>",
	Short: "Look up a transaction by digest",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var cmdAddress = &cobra.Command{
	Use:   "address",
	Short: "List the configured addresses and their gas balances",
	Args:  cobra.NoArgs,
	RunE:  runAddress,
}

var flagAddress struct {
	Offline bool
}

func init() {
	cmdMain.AddCommand(cmdStatus, cmdAddress)
	cmdAddress.Flags().BoolVar(&flagAddress.Offline, "offline", false, "Print addresses without querying balances")
}

func runStatus(cmd *cobra.Command, args []string) error {
	digest, err := types.ParseDigest(args[0])
	if err != nil {
		return err
	}
	e, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.submit.Status(cmd.Context(), digest)
	if errors.Is(err, ptb.ErrTransactionNotFound) {
		cmd.Println(color.YellowString("%s: unknown to the ledger", digest))
		return nil
	}
	if err != nil {
		return err
	}
	printResult(cmd, res)
	return nil
}

func runAddress(cmd *cobra.Command, _ []string) error {
	if flagAddress.Offline {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ks, err := loadKeystore(cfg.Keystore.Seeds)
		if err != nil {
			return err
		}
		for _, addr := range ks.Addresses() {
			cmd.Println(addr)
		}
		return nil
	}

	e, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	for _, addr := range e.keystore.Addresses() {
		objs, err := e.client.GetOwnedObjects(cmd.Context(), addr)
		if err != nil {
			return err
		}
		var total uint64
		var coins int
		for _, o := range objs {
			if o.IsGasCoin() {
				total += o.Balance
				coins++
			}
		}
		cmd.Printf("%s  %s in %d coins, %d objects\n", addr, humanize.Comma(int64(total)), coins, len(objs))
	}
	return nil
}

// printResult writes a one-line summary followed by the changed objects.
func printResult(cmd *cobra.Command, res types.ExecutionResult) {
	if res.Effects == nil {
		cmd.Println(color.YellowString("%s: accepted, effects pending", res.Digest))
		return
	}
	fx := res.Effects
	status := color.GreenString("success")
	if !fx.Status.Success {
		status = color.RedString("failed: %s", failure(fx.Status))
	}
	cmd.Printf("%s: %s, gas %s\n", res.Digest, status, humanize.Comma(int64(fx.GasUsed.Net())))
	for _, o := range fx.Created {
		cmd.Printf("  created  %s\n", o.Ref)
	}
	for _, o := range fx.Mutated {
		cmd.Printf("  mutated  %s\n", o.Ref)
	}
	for _, ref := range fx.Deleted {
		cmd.Printf("  deleted  %s\n", ref)
	}
	for _, ev := range res.Events {
		cmd.Printf("  event    %s\n", ev.Type)
	}
}

func failure(s types.ExecutionStatus) string {
	if cmd, ok := s.FailedCommand(); ok {
		return fmt.Sprintf("command %d: %s", cmd, s.Error)
	}
	return s.Error
}
