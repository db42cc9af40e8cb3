package router

import (
	"github.com/slabdex/slabdex/pkg/capability"
	"github.com/slabdex/slabdex/pkg/wire"
)

// Escrow is per (router, slab, user, mint) pledged balance (§3, §4.6):
// collateral staged from the vault on reserve and released on cancel
// or consumed on commit. The monotonic nonce is the anti-replay gate —
// every successful debit advances it, and a capability minted for an
// older nonce can never debit again.
type Escrow struct {
	Slab    [32]byte
	User    [32]byte
	Mint    [32]byte
	Balance int64
	Nonce   uint64
	Frozen  bool
}

// Debit consumes amount from the escrow under cap's authority (§4.6):
// the cap must be scoped to this escrow's slab and mint, carry enough
// remaining, and present exactly the escrow's next nonce.
func (e *Escrow) Debit(cap *capability.Cap, callingSlab [32]byte, amount, nowTS int64) error {
	if e.Frozen {
		return wire.New(wire.Halted, "escrow is frozen")
	}
	if cap.ScopeSlab != callingSlab || cap.ScopeSlab != e.Slab {
		return wire.New(wire.BadCapability, "capability is scoped to a different slab")
	}
	if cap.ScopeMint != e.Mint {
		return wire.New(wire.BadCapability, "capability is scoped to a different mint")
	}
	if cap.Nonce != e.Nonce {
		return wire.New(wire.BadCapability, "capability nonce does not match escrow nonce")
	}
	if !cap.Live(nowTS) {
		return wire.New(wire.BadCapability, "capability is not live")
	}
	if amount > cap.Remaining {
		return wire.New(wire.CapExhausted, "debit exceeds capability remaining")
	}
	if amount > e.Balance {
		return wire.New(wire.InsufficientCollateral, "debit exceeds escrow balance")
	}
	// The capability burn and the escrow movement are one event: every
	// check above has passed, so neither side can fail alone.
	if err := cap.Debit(amount); err != nil {
		return wire.New(wire.CapExhausted, err.Error())
	}
	e.Balance -= amount
	e.Nonce++
	return nil
}

// release returns unspent escrow balance on cancel/expiry without
// advancing the nonce (nothing was debited).
func (e *Escrow) release(amount int64) {
	e.Balance -= amount
	if e.Balance < 0 {
		e.Balance = 0
	}
}
