package ptbtest

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blockberries/ptb/types"
)

// Genesis seeds an in-memory ledger. It is read from YAML:
//
//	reference_price: 1000
//	epoch: 0
//	objects:
//	  - id: "0x5250"
//	    type: "0xc746::gamecards::Room"
//	    owner: shared
//	  - type: "0x2::coin::Coin<0x2::sui::SUI>"
//	    owner: "0xa11ce"
//	    balance: 1000000000
//
// owner is an address, "shared" or "immutable". Objects without an id
// get a generated one.
type Genesis struct {
	ReferencePrice uint64          `yaml:"reference_price"`
	Epoch          uint64          `yaml:"epoch"`
	Objects        []GenesisObject `yaml:"objects"`
}

// GenesisObject is one seeded object.
type GenesisObject struct {
	ID      string `yaml:"id,omitempty"`
	Type    string `yaml:"type"`
	Owner   string `yaml:"owner"`
	Version uint64 `yaml:"version,omitempty"`
	Balance uint64 `yaml:"balance,omitempty"`
}

// LoadGenesis decodes a genesis document. Unknown fields are errors.
func LoadGenesis(r io.Reader) (Genesis, error) {
	var g Genesis
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil && err != io.EOF {
		return Genesis{}, fmt.Errorf("decode genesis: %w", err)
	}
	return g, nil
}

// LoadGenesisFile reads a genesis document from path.
func LoadGenesisFile(path string) (Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}
	return LoadGenesis(bytes.NewReader(data))
}

// Apply seeds l with the genesis objects and settings. Objects whose
// owner or ID does not parse leave l unchanged.
func (l *Ledger) Apply(g Genesis) error {
	mds := make([]types.ObjectMetadata, 0, len(g.Objects))
	for i, o := range g.Objects {
		owner, err := parseOwner(o.Owner)
		if err != nil {
			return fmt.Errorf("genesis object %d: %w", i, err)
		}
		var id types.ObjectID
		if o.ID != "" {
			if id, err = types.ParseObjectID(o.ID); err != nil {
				return fmt.Errorf("genesis object %d: %w", i, err)
			}
		}
		version := types.SequenceNumber(max(o.Version, 1))
		if owner.Shared != nil {
			owner.Shared.InitialSharedVersion = version
		}
		mds = append(mds, types.ObjectMetadata{
			Ref:     types.ObjectRef{ID: id, Version: version},
			Type:    o.Type,
			Owner:   owner,
			Balance: o.Balance,
		})
	}

	if g.ReferencePrice > 0 {
		l.mu.Lock()
		l.price = g.ReferencePrice
		l.mu.Unlock()
	}
	l.SetEpoch(g.Epoch)
	for _, md := range mds {
		if md.Ref.ID.IsZero() {
			created := l.Create(md.Type, md.Owner, md.Balance)
			md.Ref.ID = created.Ref.ID
		}
		md.Ref.Digest = objectDigest(md.Ref.ID, md.Ref.Version, types.Digest{})
		l.Put(md)
	}
	return nil
}

func parseOwner(s string) (types.Owner, error) {
	switch s {
	case "shared":
		return types.SharedSince(1), nil
	case "immutable":
		return types.Owner{Immutable: true}, nil
	}
	addr, err := types.ParseAddress(s)
	if err != nil {
		return types.Owner{}, fmt.Errorf("owner %q: %w", s, err)
	}
	return types.AddressOwner(addr), nil
}
