package resolver

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"
)

// SelectGas chooses coins owned by owner whose combined balance covers
// budget. Coins listed in exclude, typically every object the plan
// already uses as an input, are never chosen. Larger coins are taken
// first so the payment stays short.
//
// Fails with ResolutionInsufficientGas when the eligible coins do not
// add up to budget, and with ResolutionUnreadable when the owner's
// objects cannot be listed.
func (r *Resolver) SelectGas(ctx context.Context, owner types.Address, budget uint64, exclude ...types.ObjectID) ([]types.ObjectRef, error) {
	objs, err := r.reader.GetOwnedObjects(ctx, owner)
	if err != nil {
		return nil, ptb.NewResolutionError(ptb.ResolutionUnreadable, types.ObjectID(owner), err)
	}

	skip := make(map[types.ObjectID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	var coins []types.ObjectMetadata
	for _, md := range objs {
		if _, ok := skip[md.Ref.ID]; ok || !md.IsGasCoin() {
			continue
		}
		coins = append(coins, md)
	}
	sort.SliceStable(coins, func(i, j int) bool { return coins[i].Balance > coins[j].Balance })

	var (
		total   uint64
		payment []types.ObjectRef
	)
	for _, c := range coins {
		if total >= budget && len(payment) > 0 {
			break
		}
		payment = append(payment, c.Ref)
		total += c.Balance
	}
	if len(payment) == 0 || total < budget {
		e := ptb.NewResolutionError(ptb.ResolutionInsufficientGas, types.ObjectID(owner), nil)
		e.Detail = insufficientDetail(len(coins), total, budget)
		return nil, e
	}
	r.logger.Debug("selected gas",
		zap.Stringer("owner", owner),
		zap.Int("coins", len(payment)),
		zap.Uint64("total", total),
		zap.Uint64("budget", budget))
	return payment, nil
}

// Exclusions returns the IDs of every object input of the plan.
func Exclusions(plan types.ProgrammableTransaction) []types.ObjectID {
	var ids []types.ObjectID
	for _, in := range plan.Inputs {
		if in.Object != nil {
			ids = append(ids, in.Object.ID())
		}
	}
	return ids
}

func insufficientDetail(eligible int, total, budget uint64) string {
	return fmt.Sprintf("%d eligible coins hold %d, budget is %d", eligible, total, budget)
}
