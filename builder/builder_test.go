package builder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/builder"
	"github.com/blockberries/ptb/types"
)

var (
	objX    = types.MustObjectID("0x440b328ba3c90f203f439f6fc4c5aa40b7ca41d28317d5bb9b6c0207cfebc693")
	objY    = types.MustObjectID("0x52509952e7b80b08880238e9737e8f70e223418816e5a85bf82575ef84ecc545")
	pkg     = types.MustObjectID("0xc74620c25579b75ac8f6d0d670a4663944ff7f29d6e856f6b33e0a35a34c5a06")
	digestD = types.Digest{0xD}
)

func requireBuildKind(t *testing.T, err error, kind ptb.BuildKind) *ptb.BuildError {
	t.Helper()
	require.Error(t, err)
	be, ok := ptb.IsBuild(err)
	require.True(t, ok, "expected BuildError, got %T: %v", err, err)
	require.Equal(t, kind, be.Kind, be.Error())
	return be
}

func TestIndicesDenseAndIncreasing(t *testing.T) {
	b := builder.New()
	for i := 0; i < 5; i++ {
		idx := b.Pure(builder.PureU64(uint64(i)))
		require.Equal(t, builder.InputIndex(i), idx)
	}
	for i := 0; i < 4; i++ {
		idx, err := b.SplitCoins(types.GasCoin(), builder.InputIndex(i).Arg())
		require.NoError(t, err)
		require.Equal(t, builder.CommandIndex(i), idx)
	}
	in, cmds := b.Len()
	assert.Equal(t, 5, in)
	assert.Equal(t, 4, cmds)
}

func TestOwnedAndSharedInvoke(t *testing.T) {
	b := builder.New()
	owned := b.Object(types.OwnedObject(types.ObjectRef{ID: objX, Version: 5, Digest: digestD}))
	shared := b.Object(types.SharedObject(objY, 3, true))

	_, err := b.MoveCall(pkg, "gamecards", "play", nil, owned.Arg(), shared.Arg())
	require.NoError(t, err)

	plan, err := b.Finish()
	require.NoError(t, err)
	require.Len(t, plan.Inputs, 2)
	require.Len(t, plan.Commands, 1)

	args := plan.Commands[0].MoveCall.Arguments
	require.Equal(t, []types.Argument{types.Input(0), types.Input(1)}, args)

	first := plan.Inputs[args[0].Index].Object
	require.NotNil(t, first.ImmOrOwned)
	assert.Equal(t, objX, first.ImmOrOwned.ID)
	assert.Equal(t, types.SequenceNumber(5), first.ImmOrOwned.Version)
	assert.Equal(t, digestD, first.ImmOrOwned.Digest)

	second := plan.Inputs[args[1].Index].Object
	require.NotNil(t, second.Shared)
	assert.Equal(t, objY, second.Shared.ID)
	assert.Equal(t, types.SequenceNumber(3), second.Shared.InitialSharedVersion)
	assert.True(t, second.Shared.Mutable)
}

func TestInvalidArgumentReference(t *testing.T) {
	tests := []struct {
		name string
		arg  types.Argument
	}{
		{"input at count", types.Input(1)},
		{"input beyond count", types.Input(7)},
		{"self reference", types.Result(1)},
		{"forward reference", types.Result(2)},
		{"nested forward reference", types.NestedResult(1, 0)},
		{"nested result out of arity", types.NestedResult(0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := builder.New()
			amt := b.Pure(builder.PureU64(10))
			_, err := b.SplitCoins(types.GasCoin(), amt.Arg())
			require.NoError(t, err)

			_, err = b.TransferObjects(types.Input(0), tt.arg)
			be := requireBuildKind(t, err, ptb.BuildInvalidArgumentReference)
			assert.Equal(t, 1, be.Command)

			// A failed Command leaves the builder unchanged and usable.
			_, cmds := b.Len()
			assert.Equal(t, 1, cmds)
			_, err = b.TransferObjects(types.Input(0), types.NestedResult(0, 0))
			require.NoError(t, err)
		})
	}
}

func TestResultOfCommandWithoutResults(t *testing.T) {
	b := builder.New()
	coin := b.Object(types.OwnedObject(types.ObjectRef{ID: objX, Version: 1}))
	other := b.Object(types.OwnedObject(types.ObjectRef{ID: objY, Version: 1}))
	merge, err := b.MergeCoins(coin.Arg(), other.Arg())
	require.NoError(t, err)

	_, err = b.SplitCoins(merge.Result(), b.Pure(builder.PureU64(1)).Arg())
	be := requireBuildKind(t, err, ptb.BuildInvalidArgumentReference)
	assert.Equal(t, 1, be.Command)
	_, cmds := b.Len()
	assert.Equal(t, 1, cmds)
}

func TestMoveCallResultsAreNotArityChecked(t *testing.T) {
	b := builder.New()
	call, err := b.MoveCall(pkg, "gamecards", "draw", nil)
	require.NoError(t, err)
	_, err = b.TransferObjects(b.Pure(builder.PureAddress(types.MustAddress("0xb0b"))).Arg(), call.Nested(3))
	require.NoError(t, err)
}

func TestInvalidIdentifier(t *testing.T) {
	for _, name := range []string{"", "_", "1abc", "create-room", "café"} {
		b := builder.New()
		_, err := b.MoveCall(pkg, name, "create_room", nil)
		requireBuildKind(t, err, ptb.BuildInvalidIdentifier)

		_, err = b.MoveCall(pkg, "gamecards", name, nil)
		requireBuildKind(t, err, ptb.BuildInvalidIdentifier)
	}
	assert.True(t, builder.ValidIdentifier("create_room"))
	assert.True(t, builder.ValidIdentifier("_private2"))
}

func TestEmptyVector(t *testing.T) {
	b := builder.New()
	_, err := b.MakeMoveVec(nil)
	requireBuildKind(t, err, ptb.BuildEmptyVector)

	typ := types.TypeTag("u64")
	_, err = b.MakeMoveVec(&typ)
	require.NoError(t, err)
}

func TestInvalidCommand(t *testing.T) {
	b := builder.New()
	_, err := b.Command(types.Command{})
	requireBuildKind(t, err, ptb.BuildInvalidCommand)

	_, err = b.Command(types.Command{
		SplitCoins: &types.SplitCoins{Coin: types.GasCoin()},
		MergeCoins: &types.MergeCoins{Destination: types.GasCoin()},
	})
	requireBuildKind(t, err, ptb.BuildInvalidCommand)
}

func TestLimits(t *testing.T) {
	b := builder.New(builder.WithMaxInputs(1), builder.WithMaxCommands(1))
	b.Pure(builder.PureU8(1))
	b.Pure(builder.PureU8(2))
	_, err := b.SplitCoins(types.GasCoin(), types.Input(0))
	requireBuildKind(t, err, ptb.BuildLimitExceeded)

	b = builder.New(builder.WithMaxCommands(1))
	amt := b.Pure(builder.PureU64(1))
	_, err = b.SplitCoins(types.GasCoin(), amt.Arg())
	require.NoError(t, err)
	_, err = b.SplitCoins(types.GasCoin(), amt.Arg())
	requireBuildKind(t, err, ptb.BuildLimitExceeded)
}

func TestInvalidInputReportedLater(t *testing.T) {
	b := builder.New()
	b.Input(types.CallArg{})
	_, err := b.SplitCoins(types.GasCoin())
	requireBuildKind(t, err, ptb.BuildInvalidCommand)
	_, err = b.Finish()
	requireBuildKind(t, err, ptb.BuildInvalidCommand)
}

func TestEmptyPureRejected(t *testing.T) {
	tests := []struct {
		name string
		add  func(b *builder.Builder)
	}{
		{"nil bytes", func(b *builder.Builder) { b.Pure(nil) }},
		{"empty bytes", func(b *builder.Builder) { b.Pure([]byte{}) }},
		{"raw input", func(b *builder.Builder) { b.Input(types.PureInput(nil)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := builder.New()
			tt.add(b)
			_, err := b.SplitCoins(types.GasCoin(), types.Input(0))
			requireBuildKind(t, err, ptb.BuildEncoding)
			_, err = b.Finish()
			requireBuildKind(t, err, ptb.BuildEncoding)
		})
	}

	// The empty string still encodes to one length byte.
	b := builder.New()
	b.PureString("")
	_, err := b.Finish()
	require.NoError(t, err)
}

func TestPureStringRejectsInvalidUTF8(t *testing.T) {
	b := builder.New()
	b.PureString("\xff")
	_, err := b.Finish()
	requireBuildKind(t, err, ptb.BuildEncoding)
}

func TestFinishEmptyPlan(t *testing.T) {
	b := builder.New()
	b.Pure(builder.PureBool(true))
	plan, err := b.Finish()
	require.NoError(t, err)
	assert.Len(t, plan.Inputs, 1)
	assert.Empty(t, plan.Commands)
}

func TestFinishConsumesBuilder(t *testing.T) {
	b := builder.New()
	amt := b.Pure(builder.PureU64(1000))
	split, err := b.SplitCoins(types.GasCoin(), amt.Arg())
	require.NoError(t, err)

	plan, err := b.Finish()
	require.NoError(t, err)
	wantInputs := append([]types.CallArg(nil), plan.Inputs...)
	wantCommands := append([]types.Command(nil), plan.Commands...)

	// Every later call fails and the plan is untouched.
	_, err = b.Finish()
	requireBuildKind(t, err, ptb.BuildFinished)
	_, err = b.TransferObjects(amt.Arg(), split.Nested(0))
	requireBuildKind(t, err, ptb.BuildFinished)
	b.Pure(builder.PureU64(2))
	_, err = b.SplitCoins(types.GasCoin(), types.Input(0))
	requireBuildKind(t, err, ptb.BuildFinished)

	assert.Equal(t, wantInputs, plan.Inputs)
	assert.Equal(t, wantCommands, plan.Commands)
	in, cmds := b.Len()
	assert.Zero(t, in)
	assert.Zero(t, cmds)
}

func TestPureCopiesInput(t *testing.T) {
	raw := builder.PureU64(5)
	b := builder.New()
	b.Pure(raw)
	raw[0] = 0xFF
	plan, err := b.Finish()
	require.NoError(t, err)
	assert.Equal(t, byte(5), plan.Inputs[0].Pure.Bytes[0])
}

func TestDuplicateInputsPermitted(t *testing.T) {
	b := builder.New()
	ref := types.OwnedObject(types.ObjectRef{ID: objX, Version: 1})
	first := b.Object(ref)
	second := b.Object(ref)
	assert.NotEqual(t, first, second)
	_, err := b.MergeCoins(first.Arg(), second.Arg())
	require.NoError(t, err)
}

func TestPureEncoding(t *testing.T) {
	assert.Equal(t, []byte{0xe8, 0x03, 0, 0, 0, 0, 0, 0}, builder.PureU64(1000))
	assert.Equal(t, []byte{0x34, 0x12}, builder.PureU16(0x1234))
	assert.Equal(t, []byte{1}, builder.PureBool(true))
	assert.Equal(t, []byte{3, 'a', 'b', 'c'}, builder.PureString("abc"))
	assert.Equal(t, []byte{2, 1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0}, builder.PureU64s([]uint64{1, 2}))

	long := make([]byte, 200)
	enc := builder.PureBytes(long)
	assert.Equal(t, []byte{0xc8, 0x01}, enc[:2])
	assert.Len(t, enc, 202)

	addr := types.MustAddress("0xb0b")
	assert.Equal(t, addr[:], builder.PureAddress(addr))
}
