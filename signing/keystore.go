package signing

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"
)

// MemoryKeystore holds ed25519 keys in memory. Nothing is persisted.
type MemoryKeystore struct {
	mu   sync.RWMutex
	keys map[types.Address]ed25519.PrivateKey
}

var _ ptb.Keystore = (*MemoryKeystore)(nil)

// NewMemoryKeystore creates an empty keystore.
func NewMemoryKeystore() *MemoryKeystore {
	return &MemoryKeystore{keys: make(map[types.Address]ed25519.PrivateKey)}
}

// Generate adds a fresh random key and returns its address.
func (k *MemoryKeystore) Generate() (types.Address, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return types.Address{}, fmt.Errorf("generate key: %w", err)
	}
	return k.add(priv), nil
}

// FromSeed adds the key derived from a 32-byte seed and returns its
// address. The same seed always yields the same address.
func (k *MemoryKeystore) FromSeed(seed []byte) (types.Address, error) {
	if len(seed) != ed25519.SeedSize {
		return types.Address{}, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return k.add(ed25519.NewKeyFromSeed(seed)), nil
}

func (k *MemoryKeystore) add(priv ed25519.PrivateKey) types.Address {
	addr := DeriveAddress(types.SchemeEd25519, priv.Public().(ed25519.PublicKey))
	k.mu.Lock()
	k.keys[addr] = priv
	k.mu.Unlock()
	return addr
}

// Addresses lists the addresses with a key, in ascending byte order.
func (k *MemoryKeystore) Addresses() []types.Address {
	k.mu.RLock()
	out := make([]types.Address, 0, len(k.keys))
	for a := range k.keys {
		out = append(out, a)
	}
	k.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return string(out[i][:]) < string(out[j][:]) })
	return out
}

// PublicKey returns the public key for addr.
func (k *MemoryKeystore) PublicKey(addr types.Address) (ed25519.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	priv, ok := k.keys[addr]
	if !ok {
		return nil, false
	}
	return priv.Public().(ed25519.PublicKey), true
}

// Sign signs the blake2b-256 digest of msg with the key for addr.
func (k *MemoryKeystore) Sign(ctx context.Context, addr types.Address, msg []byte, intent types.Intent) (types.Signature, error) {
	if err := ctx.Err(); err != nil {
		return types.Signature{}, err
	}
	if intent.Version != types.IntentV0 {
		return types.Signature{}, ptb.NewSigningError(ptb.SigningInvalidSignature, addr,
			fmt.Errorf("unsupported intent version %d", intent.Version))
	}
	k.mu.RLock()
	priv, ok := k.keys[addr]
	k.mu.RUnlock()
	if !ok {
		return types.Signature{}, ptb.NewSigningError(ptb.SigningKeyUnavailable, addr, nil)
	}
	digest := MessageDigest(msg)
	return types.Signature{
		Scheme:    types.SchemeEd25519,
		Signature: ed25519.Sign(priv, digest[:]),
		PublicKey: append([]byte(nil), priv.Public().(ed25519.PublicKey)...),
	}, nil
}
