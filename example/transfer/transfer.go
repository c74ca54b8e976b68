// Package transfer splits an amount off a coin and sends it to a
// recipient.
package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockberries/ptb/builder"
	"github.com/blockberries/ptb/resolver"
	"github.com/blockberries/ptb/session"
	"github.com/blockberries/ptb/types"
)

// ErrZeroAmount is returned when asked to send nothing.
var ErrZeroAmount = errors.New("transfer: zero amount")

// SplitAndTransferBuild returns a BuildFunc that splits each amount off
// coin and transfers the new coins to recipient. A zero coin splits off
// the gas coin.
func SplitAndTransferBuild(coin types.ObjectID, recipient types.Address, amounts ...uint64) session.BuildFunc {
	return func(ctx context.Context, r *resolver.Resolver, b *builder.Builder) error {
		if len(amounts) == 0 {
			return ErrZeroAmount
		}
		src := types.GasCoin()
		if !coin.IsZero() {
			arg, err := r.Owned(ctx, coin)
			if err != nil {
				return err
			}
			src = b.Object(arg).Arg()
		}
		args := make([]types.Argument, len(amounts))
		for i, amt := range amounts {
			if amt == 0 {
				return ErrZeroAmount
			}
			args[i] = b.Pure(builder.PureU64(amt)).Arg()
		}
		split, err := b.SplitCoins(src, args...)
		if err != nil {
			return err
		}
		coins := make([]types.Argument, len(amounts))
		for i := range coins {
			coins[i] = split.Nested(uint32(i))
		}
		to := b.Pure(builder.PureAddress(recipient))
		_, err = b.TransferObjects(to.Arg(), coins...)
		return err
	}
}

// SplitAndTransfer sends amount from coin to recipient through s.
func SplitAndTransfer(ctx context.Context, s *session.Session, sender types.Address, coin types.ObjectID, amount uint64, recipient types.Address) (types.ExecutionResult, error) {
	report, err := s.Execute(ctx, sender, SplitAndTransferBuild(coin, recipient, amount))
	if err != nil {
		return types.ExecutionResult{}, fmt.Errorf("transfer %d to %s: %w", amount, recipient, err)
	}
	return report.Result, nil
}
