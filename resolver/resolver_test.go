package resolver_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/resolver"
	ptbtest "github.com/blockberries/ptb/testing"
	"github.com/blockberries/ptb/types"
)

var alice = types.MustAddress("0xa11ce")

func requireResolutionKind(t *testing.T, err error, kind ptb.ResolutionKind) {
	t.Helper()
	re, ok := ptb.IsResolution(err)
	require.True(t, ok, "expected ResolutionError, got %v", err)
	require.Equal(t, kind, re.Kind, re.Error())
}

func TestOwned(t *testing.T) {
	l := ptbtest.NewLedger()
	card := l.Create("0x2::test::Card", types.AddressOwner(alice), 0)
	r := resolver.New(l)

	arg, err := r.Owned(context.Background(), card.Ref.ID)
	require.NoError(t, err)
	require.NotNil(t, arg.ImmOrOwned)
	assert.Equal(t, card.Ref, *arg.ImmOrOwned)

	// Resolution is point in time: after a mutation the new version is seen.
	touched, err := l.Touch(card.Ref.ID)
	require.NoError(t, err)
	arg, err = r.Owned(context.Background(), card.Ref.ID)
	require.NoError(t, err)
	assert.Equal(t, touched.Ref, *arg.ImmOrOwned)
}

func TestSharedUsesInitialVersion(t *testing.T) {
	l := ptbtest.NewLedger()
	room := l.CreateShared("0x2::test::Room")
	for i := 0; i < 3; i++ {
		_, err := l.Touch(room.Ref.ID)
		require.NoError(t, err)
	}
	r := resolver.New(l)

	arg, err := r.Shared(context.Background(), room.Ref.ID, true)
	require.NoError(t, err)
	require.NotNil(t, arg.Shared)
	assert.Equal(t, types.SequenceNumber(1), arg.Shared.InitialSharedVersion)
	assert.True(t, arg.Shared.Mutable)

	live, err := l.GetObject(context.Background(), room.Ref.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SequenceNumber(4), live.Ref.Version)
}

func TestOwnershipMismatch(t *testing.T) {
	l := ptbtest.NewLedger()
	room := l.CreateShared("0x2::test::Room")
	card := l.Create("0x2::test::Card", types.AddressOwner(alice), 0)
	r := resolver.New(l)
	ctx := context.Background()

	_, err := r.Owned(ctx, room.Ref.ID)
	requireResolutionKind(t, err, ptb.ResolutionUnexpected)

	_, err = r.Shared(ctx, card.Ref.ID, false)
	requireResolutionKind(t, err, ptb.ResolutionUnexpected)

	// Resolve picks the form by ownership.
	arg, err := r.Resolve(ctx, room.Ref.ID, false)
	require.NoError(t, err)
	require.NotNil(t, arg.Shared)
	assert.False(t, arg.Shared.Mutable)
	arg, err = r.Resolve(ctx, card.Ref.ID, true)
	require.NoError(t, err)
	require.NotNil(t, arg.ImmOrOwned)
}

func TestNotFoundAndUnreadable(t *testing.T) {
	ctx := context.Background()
	r := resolver.New(ptbtest.NewLedger())
	_, err := r.Owned(ctx, types.MustObjectID("0x404"))
	requireResolutionKind(t, err, ptb.ResolutionNotFound)
	require.ErrorIs(t, err, ptb.ErrObjectNotFound)

	down := errors.New("connection refused")
	mock := &ptbtest.MockLedger{
		GetObjectFn: func(context.Context, types.ObjectID) (types.ObjectMetadata, error) {
			return types.ObjectMetadata{}, down
		},
	}
	r = resolver.New(mock)
	_, err = r.Shared(ctx, types.MustObjectID("0x5"), true)
	requireResolutionKind(t, err, ptb.ResolutionUnreadable)
	require.ErrorIs(t, err, down)
	assert.Equal(t, int64(1), mock.GetObjectCalls.Load(), "resolver must not retry")
}

func TestResolveAll(t *testing.T) {
	l := ptbtest.NewLedger()
	room := l.CreateShared("0x2::test::Room")
	cards := make([]types.ObjectMetadata, 5)
	for i := range cards {
		cards[i] = l.Create("0x2::test::Card", types.AddressOwner(alice), 0)
	}
	r := resolver.New(l, resolver.WithConcurrency(2))

	reqs := []resolver.Request{{ID: room.Ref.ID, Mode: resolver.Shared, Mutable: true}}
	for _, c := range cards {
		reqs = append(reqs, resolver.Request{ID: c.Ref.ID, Mode: resolver.Owned})
	}
	args, err := r.ResolveAll(context.Background(), reqs...)
	require.NoError(t, err)
	require.Len(t, args, len(reqs))
	assert.Equal(t, room.Ref.ID, args[0].ID())
	for i, c := range cards {
		assert.Equal(t, c.Ref.ID, args[i+1].ID(), "results must keep request order")
	}

	// One failure fails the batch.
	reqs = append(reqs, resolver.Request{ID: types.MustObjectID("0x404")})
	_, err = r.ResolveAll(context.Background(), reqs...)
	requireResolutionKind(t, err, ptb.ResolutionNotFound)
}

func TestResolveAllFailsFast(t *testing.T) {
	var calls atomic.Int64
	mock := &ptbtest.MockLedger{
		GetObjectFn: func(ctx context.Context, id types.ObjectID) (types.ObjectMetadata, error) {
			calls.Add(1)
			if id == types.MustObjectID("0x1") {
				return types.ObjectMetadata{}, ptb.ErrObjectNotFound
			}
			<-ctx.Done()
			return types.ObjectMetadata{}, ctx.Err()
		},
	}
	r := resolver.New(mock)
	_, err := r.ResolveAll(context.Background(),
		resolver.Request{ID: types.MustObjectID("0x1")},
		resolver.Request{ID: types.MustObjectID("0x2")},
		resolver.Request{ID: types.MustObjectID("0x3")},
	)
	requireResolutionKind(t, err, ptb.ResolutionNotFound)
}

func TestSelectGas(t *testing.T) {
	l := ptbtest.NewLedger()
	small := l.Mint(alice, 100)
	mid := l.Mint(alice, 400)
	big := l.Mint(alice, 1000)
	l.Create("0x2::test::Card", types.AddressOwner(alice), 5000)
	r := resolver.New(l)
	ctx := context.Background()

	gas, err := r.SelectGas(ctx, alice, 900)
	require.NoError(t, err)
	assert.Equal(t, []types.ObjectRef{big.Ref}, gas)

	// An excluded coin is never chosen, even when it is the best fit.
	gas, err = r.SelectGas(ctx, alice, 450, big.Ref.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.ObjectRef{mid.Ref, small.Ref}, gas)

	_, err = r.SelectGas(ctx, alice, 600, big.Ref.ID)
	requireResolutionKind(t, err, ptb.ResolutionInsufficientGas)

	_, err = r.SelectGas(ctx, types.MustAddress("0xb0b"), 1)
	requireResolutionKind(t, err, ptb.ResolutionInsufficientGas)
}

func TestExclusions(t *testing.T) {
	x, y := types.MustObjectID("0x1"), types.MustObjectID("0x2")
	plan := types.ProgrammableTransaction{Inputs: []types.CallArg{
		types.ObjectInput(types.OwnedObject(types.ObjectRef{ID: x})),
		types.PureInput([]byte{1}),
		types.ObjectInput(types.SharedObject(y, 1, false)),
	}}
	assert.Equal(t, []types.ObjectID{x, y}, resolver.Exclusions(plan))
}
