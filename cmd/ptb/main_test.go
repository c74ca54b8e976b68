package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	ptbgrpc "github.com/blockberries/ptb/grpc"
	"github.com/blockberries/ptb/signing"
	ptbtest "github.com/blockberries/ptb/testing"
)

// devnet serves a funded in-memory ledger and writes a config file
// pointing at it. It returns the config path and the funded address.
func devnet(t *testing.T) (string, string) {
	t.Helper()
	seed := bytes.Repeat([]byte{7}, 32)
	ks := signing.NewMemoryKeystore()
	addr, err := ks.FromSeed(seed)
	require.NoError(t, err)

	ledger := ptbtest.NewLedger()
	ledger.Mint(addr, ptbtest.DefaultGas)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := grpc.NewServer()
	ptbgrpc.NewGRPCServer(ledger).Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.GracefulStop)

	path := filepath.Join(t.TempDir(), "ptb.yaml")
	body := "ledger:\n  address: " + lis.Addr().String() + "\n" +
		"keystore:\n  seeds: [\"" + hex.EncodeToString(seed) + "\"]\n" +
		"log:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, addr.String()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmdMain.SetOut(&out)
	cmdMain.SetErr(&out)
	cmdMain.SetArgs(args)
	err := cmdMain.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddressAndTransfer(t *testing.T) {
	cfg, alice := devnet(t)

	out, err := run(t, "address", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, alice)
	assert.Contains(t, out, "1,000,000,000 in 1 coins")

	bob := "0x" + strings.Repeat("0b", 32)
	out, err = run(t, "transfer", "--config", cfg, alice, bob, "2500")
	require.NoError(t, err)
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "created")

	digest := strings.SplitN(out, ":", 2)[0]
	out, err = run(t, "status", "--config", cfg, digest)
	require.NoError(t, err)
	assert.Contains(t, out, "success")
}

func TestTransferUnknownSender(t *testing.T) {
	cfg, _ := devnet(t)
	stranger := "0x" + strings.Repeat("5a", 32)
	_, err := run(t, "transfer", "--config", cfg, stranger, stranger, "1")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}
