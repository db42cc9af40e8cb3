package slab

import (
	"github.com/slabdex/slabdex/pkg/host"
	"github.com/slabdex/slabdex/pkg/wire"
	"github.com/slabdex/slabdex/pkg/xsign"
)

// Program adapts a Slab to the host's program-to-program instruction
// surface: one entry point keyed by discriminator byte, fixed-size
// little-endian payloads in, a status-framed result out. Reserve,
// Commit, and reservation-Cancel are not dispatched here — those are
// the matcher capability set the router drives directly (§9's tagged
// variant design note); this handler carries the client-facing
// instructions of §6's slab table.
type Program struct {
	Slab    *Slab
	Clock   host.Host
	Council *xsign.Council
}

// adminMsg is what the authority council signs to authorize a halt or
// resume; binding it to the slab's authority id stops a signature for
// one slab being replayed against another.
func (p *Program) adminMsg(verb byte) []byte {
	msg := make([]byte, 0, 40)
	msg = append(msg, "slab-admin:"...)
	msg = append(msg, verb)
	msg = append(msg, p.Slab.Header.Authority[:]...)
	return msg
}

func (p *Program) HandleInstruction(ix []byte) ([]byte, error) {
	if len(ix) == 0 {
		return wire.EncodeStatus(wire.InvalidArgument), nil
	}
	now := p.Clock.Now()

	switch ix[0] {
	case wire.SlabPlaceOrder:
		pl, err := wire.DecodePlaceOrderPayload(ix)
		if err != nil {
			return wire.EncodeStatus(wire.InvalidArgument), nil
		}
		res, perr := p.Slab.PlaceOrder(AccountIdx(pl.AccountIdx), pl.InstrumentIdx, Side(pl.Side), pl.Price, pl.Qty, MakerClass(pl.MakerClass), now)
		if perr != nil {
			return wire.EncodeStatus(wire.StatusOf(perr)), nil
		}
		out := wire.PlaceOrderResult{
			OrderID:       res.OrderID,
			Pending:       res.State == OrderPending,
			EligibleEpoch: res.EligibleEpoch,
		}
		return out.Encode(), nil

	case wire.SlabCancelOrder:
		pl, err := wire.DecodeCancelOrderPayload(ix)
		if err != nil {
			return wire.EncodeStatus(wire.InvalidArgument), nil
		}
		if cerr := p.Slab.CancelOrder(pl.OrderID, AccountIdx(pl.AccountIdx), now); cerr != nil {
			return wire.EncodeStatus(wire.StatusOf(cerr)), nil
		}
		return wire.EncodeStatus(wire.Ok), nil

	case wire.SlabModifyOrder:
		pl, err := wire.DecodeModifyOrderPayload(ix)
		if err != nil {
			return wire.EncodeStatus(wire.InvalidArgument), nil
		}
		res, merr := p.Slab.ModifyOrder(pl.OrderID, AccountIdx(pl.AccountIdx), pl.NewPrice, pl.NewQty, now)
		if merr != nil {
			return wire.EncodeStatus(wire.StatusOf(merr)), nil
		}
		out := wire.PlaceOrderResult{
			OrderID:       res.OrderID,
			Pending:       res.State == OrderPending,
			EligibleEpoch: res.EligibleEpoch,
		}
		return out.Encode(), nil

	case wire.SlabUpdateFunding:
		pl, err := wire.DecodeUpdateFundingPayload(ix)
		if err != nil {
			return wire.EncodeStatus(wire.InvalidArgument), nil
		}
		if uerr := p.Slab.UpdateFunding(pl.InstrumentIdx, pl.IndexPrice, pl.FundingDelta, now); uerr != nil {
			return wire.EncodeStatus(wire.StatusOf(uerr)), nil
		}
		return wire.EncodeStatus(wire.Ok), nil

	case wire.SlabHaltTrading:
		if !p.adminAuthorized('h', ix[1:]) {
			return wire.EncodeStatus(wire.Unauthorized), nil
		}
		p.Slab.Halt()
		return wire.EncodeStatus(wire.Ok), nil

	case wire.SlabResumeTrading:
		if !p.adminAuthorized('r', ix[1:]) {
			return wire.EncodeStatus(wire.Unauthorized), nil
		}
		p.Slab.Resume()
		return wire.EncodeStatus(wire.Ok), nil

	default:
		// Includes any byte claiming to be a second PlaceOrder variant:
		// §6's discriminator table is the only accepted set.
		return wire.EncodeStatus(wire.InvalidArgument), nil
	}
}

// adminAuthorized verifies a council aggregate signature over the
// admin message. A program constructed without a council (tests,
// devnet) accepts admin instructions unsigned.
func (p *Program) adminAuthorized(verb byte, aggSig []byte) bool {
	if p.Council == nil {
		return true
	}
	return p.Council.VerifyAggregate(p.Council.Members, p.adminMsg(verb), aggSig)
}
