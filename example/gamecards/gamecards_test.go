package gamecards_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/builder"
	"github.com/blockberries/ptb/example/gamecards"
	"github.com/blockberries/ptb/resolver"
	ptbtest "github.com/blockberries/ptb/testing"
	"github.com/blockberries/ptb/types"
)

var pkg = types.MustObjectID("0xc74620c25579b75ac8f6d0d670a4663944ff7f29d6e856f6b33e0a35a34c5a06")

type fixture struct {
	h     *ptbtest.Harness
	alice types.Address
	room  types.ObjectMetadata
	card  types.ObjectMetadata
}

func setup(t *testing.T) fixture {
	h := ptbtest.NewHarness(t)
	gamecards.Register(h.Ledger, pkg)
	alice := h.Account(1)
	return fixture{
		h:     h,
		alice: alice,
		room:  h.Ledger.CreateShared(gamecards.RoomType(pkg)),
		card:  h.Ledger.Create(gamecards.CardType(pkg), types.AddressOwner(alice), 0),
	}
}

func TestCreateRoom_PlanLayout(t *testing.T) {
	f := setup(t)
	// The room's live version moves on; its reference must not.
	_, err := f.h.Ledger.Touch(f.room.Ref.ID)
	require.NoError(t, err)

	plan := f.h.Plan(gamecards.CreateRoomBuild(pkg, f.room.Ref.ID, f.card.Ref.ID))
	require.Len(t, plan.Inputs, 2)
	shared := plan.Inputs[0].Object.Shared
	require.NotNil(t, shared)
	assert.Equal(t, f.room.Ref.ID, shared.ID)
	assert.Equal(t, types.SequenceNumber(1), shared.InitialSharedVersion)
	assert.True(t, shared.Mutable)
	owned := plan.Inputs[1].Object.ImmOrOwned
	require.NotNil(t, owned)
	assert.Equal(t, f.card.Ref, *owned)

	require.Len(t, plan.Commands, 2)
	vec := plan.Commands[0].MakeMoveVec
	require.NotNil(t, vec)
	assert.Equal(t, []types.Argument{types.Input(1)}, vec.Elements)
	call := plan.Commands[1].MoveCall
	require.NotNil(t, call)
	assert.Equal(t, "gamecards", call.Module)
	assert.Equal(t, "create_room", call.Function)
	assert.Equal(t, []types.Argument{types.Input(0), types.Result(0)}, call.Arguments)
}

func TestCreateRoom_Executes(t *testing.T) {
	f := setup(t)
	report, err := gamecards.CreateRoom(context.Background(), f.h.Session, f.alice, pkg, f.room.Ref.ID, f.card.Ref.ID)
	require.NoError(t, err)
	require.True(t, report.Result.OK(), "status %+v", report.Result.Effects.Status)
	assert.Equal(t, 1, report.Attempts)

	card := f.h.MustObject(f.card.Ref.ID)
	require.NotNil(t, card.Owner.Object)
	assert.Equal(t, f.room.Ref.ID, *card.Owner.Object)
	assert.Greater(t, card.Ref.Version, f.card.Ref.Version)

	room := f.h.MustObject(f.room.Ref.ID)
	assert.Equal(t, uint64(1), room.Balance)
	require.NotNil(t, room.Owner.Shared)
	assert.Equal(t, types.SequenceNumber(1), room.Owner.Shared.InitialSharedVersion)

	require.Len(t, report.Result.Events, 1)
	assert.Contains(t, report.Result.Events[0].Type, "::gamecards::RoomCreated")
}

// TestCreateRoom_RebuildsOnStaleCard covers the canonical recovery: the
// card moves between resolution and submission, the payload is rejected,
// and the rebuilt plan with the card's new version goes through.
func TestCreateRoom_RebuildsOnStaleCard(t *testing.T) {
	f := setup(t)
	build := gamecards.CreateRoomBuild(pkg, f.room.Ref.ID, f.card.Ref.ID)
	first := true
	report, err := f.h.Session.Execute(context.Background(), f.alice, func(ctx context.Context, r *resolver.Resolver, b *builder.Builder) error {
		if err := build(ctx, r, b); err != nil {
			return err
		}
		if first {
			first = false
			_, err := f.h.Ledger.Touch(f.card.Ref.ID)
			return err
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, report.Result.OK())
	assert.Equal(t, 2, report.Attempts)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "Rejected", f.h.Submit.PayloadState(report.Rejected[0]))
}

func TestCreateRoom_Errors(t *testing.T) {
	t.Run("card is shared", func(t *testing.T) {
		f := setup(t)
		other := f.h.Ledger.CreateShared(gamecards.CardType(pkg))
		_, err := gamecards.CreateRoom(context.Background(), f.h.Session, f.alice, pkg, f.room.Ref.ID, other.Ref.ID)
		re, ok := ptb.IsResolution(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, ptb.ResolutionUnexpected, re.Kind)
	})

	t.Run("room is not shared", func(t *testing.T) {
		f := setup(t)
		_, err := gamecards.CreateRoom(context.Background(), f.h.Session, f.alice, pkg, f.card.Ref.ID, f.card.Ref.ID)
		re, ok := ptb.IsResolution(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, ptb.ResolutionUnexpected, re.Kind)
	})

	t.Run("wrong object type aborts in execution", func(t *testing.T) {
		f := setup(t)
		coin := f.h.Ledger.Mint(f.alice, 10)
		report, err := gamecards.CreateRoom(context.Background(), f.h.Session, f.alice, pkg, f.room.Ref.ID, coin.Ref.ID)
		require.NoError(t, err)
		assert.False(t, report.Result.OK())
		cmd, ok := report.Result.Effects.Status.FailedCommand()
		require.True(t, ok)
		assert.Equal(t, uint32(1), cmd)
		assert.Contains(t, report.Result.Effects.Status.Error, "EInvalidCard")
	})
}
