package router

import (
	"github.com/slabdex/slabdex/pkg/slab"
	"github.com/slabdex/slabdex/pkg/wire"
)

// Program adapts a Router to the host's instruction surface for the
// client-facing router discriminators (§6). ExecuteCrossSlab,
// RouterReserve and RouterRelease run through the typed MultiReserve/
// MultiCommit/Release methods rather than the byte surface — they are
// driven by the gateway with structured allocation lists, and their
// variable-length payloads have no fixed frame in §6's table.
type Program struct {
	Router *Router
}

func (p *Program) HandleInstruction(ix []byte) ([]byte, error) {
	if len(ix) == 0 {
		return wire.EncodeStatus(wire.InvalidArgument), nil
	}
	switch ix[0] {
	case wire.RouterInitializePortfolio:
		pl, err := wire.DecodeRouterInitPayload(ix)
		if err != nil {
			return wire.EncodeStatus(wire.InvalidArgument), nil
		}
		return statusFrame(p.Router.InitializePortfolio(pl.ID)), nil

	case wire.RouterInitializeVault:
		pl, err := wire.DecodeRouterInitPayload(ix)
		if err != nil {
			return wire.EncodeStatus(wire.InvalidArgument), nil
		}
		return statusFrame(p.Router.InitializeVault(pl.ID)), nil

	case wire.RouterDeposit:
		pl, err := wire.DecodeRouterMovePayload(ix)
		if err != nil {
			return wire.EncodeStatus(wire.InvalidArgument), nil
		}
		return statusFrame(p.Router.Deposit(pl.User, pl.Mint, pl.Amount)), nil

	case wire.RouterWithdraw:
		pl, err := wire.DecodeRouterMovePayload(ix)
		if err != nil {
			return wire.EncodeStatus(wire.InvalidArgument), nil
		}
		return statusFrame(p.Router.Withdraw(pl.User, pl.Mint, pl.Amount)), nil

	case wire.RouterSeatInit:
		pl, err := wire.DecodeRouterSeatInitPayload(ix)
		if err != nil {
			return wire.EncodeStatus(wire.InvalidArgument), nil
		}
		return statusFrame(p.Router.SeatInit(pl.User, pl.Slab, slab.AccountIdx(pl.AccountIdx))), nil

	default:
		return wire.EncodeStatus(wire.InvalidArgument), nil
	}
}

func statusFrame(err error) []byte {
	if err != nil {
		return wire.EncodeStatus(wire.StatusOf(err))
	}
	return wire.EncodeStatus(wire.Ok)
}
