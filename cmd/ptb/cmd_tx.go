package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blockberries/ptb/example/gamecards"
	"github.com/blockberries/ptb/example/transfer"
	"github.com/blockberries/ptb/types"
)

var cmdCreateRoom = &cobra.Command{
	Use:   "create-room <sender> <package> <room> <card>...",
	Short: "Move cards into a shared game room",
	Args:  cobra.MinimumNArgs(4),
	RunE:  runCreateRoom,
}

var cmdTransfer = &cobra.Command{
	Use:   "transfer <sender> <recipient> <amount>",
	Short: "Split an amount off a coin and send it",
	Args:  cobra.ExactArgs(3),
	RunE:  runTransfer,
}

var flagTransfer struct {
	Coin string
}

func init() {
	cmdMain.AddCommand(cmdCreateRoom, cmdTransfer)
	cmdTransfer.Flags().StringVar(&flagTransfer.Coin, "coin", "", "Coin to split, defaults to the gas coin")
}

func parseIDs(args []string) ([]types.ObjectID, error) {
	ids := make([]types.ObjectID, len(args))
	for i, a := range args {
		id, err := types.ParseObjectID(a)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", a, err)
		}
		ids[i] = id
	}
	return ids, nil
}

func runCreateRoom(cmd *cobra.Command, args []string) error {
	sender, err := types.ParseAddress(args[0])
	if err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	ids, err := parseIDs(args[1:])
	if err != nil {
		return err
	}

	e, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	report, err := gamecards.CreateRoom(cmd.Context(), e.session, sender, ids[0], ids[1], ids[2:]...)
	if report != nil {
		for _, d := range report.Rejected {
			cmd.Println(color.YellowString("rejected %s", d))
		}
	}
	if err != nil {
		return err
	}
	printResult(cmd, report.Result)
	return nil
}

func runTransfer(cmd *cobra.Command, args []string) error {
	sender, err := types.ParseAddress(args[0])
	if err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	recipient, err := types.ParseAddress(args[1])
	if err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	amount, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	var coin types.ObjectID
	if flagTransfer.Coin != "" {
		if coin, err = types.ParseObjectID(flagTransfer.Coin); err != nil {
			return fmt.Errorf("coin: %w", err)
		}
	}

	e, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	res, err := transfer.SplitAndTransfer(cmd.Context(), e.session, sender, coin, amount, recipient)
	if err != nil {
		return err
	}
	printResult(cmd, res)
	return nil
}
