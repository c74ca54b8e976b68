// Package gamecards opens a game room: a shared room object takes
// custody of a vector of the sender's cards in a single transaction.
//
// Plan layout:
//
//	Input(0)  shared room, mutable, by initial shared version
//	Input(1)  owned card
//	Result(0) MakeMoveVec([Input(1)])
//	          gamecards::create_room(Input(0), Result(0))
package gamecards

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockberries/ptb/builder"
	"github.com/blockberries/ptb/resolver"
	"github.com/blockberries/ptb/session"
	ptbtest "github.com/blockberries/ptb/testing"
	"github.com/blockberries/ptb/types"
)

const (
	Module             = "gamecards"
	CreateRoomFunction = "create_room"
	// RoomCreatedEvent is the event type suffix emitted by create_room.
	RoomCreatedEvent = "RoomCreated"
)

// RoomType and CardType are the Move types create_room accepts, given
// the package that defines them.
func RoomType(pkg types.ObjectID) string { return fmt.Sprintf("%s::%s::Room", pkg, Module) }
func CardType(pkg types.ObjectID) string { return fmt.Sprintf("%s::%s::Card", pkg, Module) }

// CreateRoomBuild returns a BuildFunc that moves cards into room.
func CreateRoomBuild(pkg, room types.ObjectID, cards ...types.ObjectID) session.BuildFunc {
	return func(ctx context.Context, r *resolver.Resolver, b *builder.Builder) error {
		if len(cards) == 0 {
			return errors.New("gamecards: no cards")
		}
		reqs := make([]resolver.Request, 0, len(cards)+1)
		reqs = append(reqs, resolver.Request{ID: room, Mode: resolver.Shared, Mutable: true})
		for _, c := range cards {
			reqs = append(reqs, resolver.Request{ID: c, Mode: resolver.Owned})
		}
		args, err := r.ResolveAll(ctx, reqs...)
		if err != nil {
			return err
		}

		in := b.Object(args[0])
		elems := make([]types.Argument, 0, len(cards))
		for _, arg := range args[1:] {
			elems = append(elems, b.Object(arg).Arg())
		}
		typ := types.TypeTag(CardType(pkg))
		vec, err := b.MakeMoveVec(&typ, elems...)
		if err != nil {
			return err
		}
		_, err = b.MoveCall(pkg, Module, CreateRoomFunction, nil, in.Arg(), vec.Result())
		return err
	}
}

// CreateRoom moves the sender's cards into room through s.
func CreateRoom(ctx context.Context, s *session.Session, sender types.Address, pkg, room types.ObjectID, cards ...types.ObjectID) (*session.Report, error) {
	report, err := s.Execute(ctx, sender, CreateRoomBuild(pkg, room, cards...))
	if err != nil {
		return report, fmt.Errorf("create room %s: %w", room, err)
	}
	return report, nil
}

// Register installs create_room for pkg on an in-memory ledger. The
// room becomes the owner of every card and its balance counts them.
func Register(l *ptbtest.Ledger, pkg types.ObjectID) {
	l.Register(pkg, Module, CreateRoomFunction, func(c *ptbtest.Call) ([]ptbtest.Value, error) {
		roomArg, err := c.Arg(0)
		if err != nil {
			return nil, err
		}
		cardsArg, err := c.Arg(1)
		if err != nil {
			return nil, err
		}
		room, err := c.Object(roomArg)
		if err != nil {
			return nil, err
		}
		if room.Type != RoomType(pkg) || room.Owner.Shared == nil {
			return nil, fmt.Errorf("EInvalidRoom: %s", room.Type)
		}
		if len(cardsArg.Elems) == 0 {
			return nil, errors.New("ENoCards")
		}
		for _, v := range cardsArg.Elems {
			card, err := c.Object(v)
			if err != nil {
				return nil, err
			}
			if card.Type != CardType(pkg) {
				return nil, fmt.Errorf("EInvalidCard: %s", card.Type)
			}
			id := room.Ref.ID
			card.Owner = types.Owner{Object: &id}
			if err := c.Update(card); err != nil {
				return nil, err
			}
		}
		room.Balance += uint64(len(cardsArg.Elems))
		if err := c.Update(room); err != nil {
			return nil, err
		}
		c.Emit(RoomCreatedEvent, builder.PureID(room.Ref.ID))
		return nil, nil
	})
}
