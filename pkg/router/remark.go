package router

import (
	"github.com/slabdex/slabdex/pkg/persist"
	"github.com/slabdex/slabdex/pkg/wire"
)

// Remark recomputes the user's cross-slab aggregate (§3's portfolio
// invariant): equity is router cash plus each seat's slab-local equity,
// margin requirements sum across seats, and free_collateral follows
// the equity − max(im, 0) identity. MultiCommit calls this after its
// fills; Deposit, Withdraw and ProvideLiquidity do not, so their
// changes reach the aggregate on the next Remark call.
func (r *Router) Remark(user [32]byte) error {
	p, ok := r.portfolios[user]
	if !ok {
		return wire.New(wire.InvalidArgument, "portfolio not initialized")
	}
	equity := p.Cash
	var im, mm int64
	for key, acct := range r.seats {
		if key.user != user {
			continue
		}
		m, ok := r.matchers[key.slab]
		if !ok {
			continue
		}
		e, i, mmn := m.AccountRisk(acct)
		equity += e
		im += i
		mm += mmn
	}
	p.Equity = equity
	p.IM = im
	p.MM = mm
	effIM := im
	if effIM < 0 {
		effIM = 0
	}
	p.FreeCollateral = equity - effIM
	p.LastMarkTS = r.Host.Now()
	return nil
}

// ProvideLiquidity moves collateral from the user's router-side cash
// into their seat's slab-local ledger (RouterLiquidity, §6), backing
// resting-order margin on that slab. A negative amount pulls unused
// slab-side collateral back; the slab refuses if that would breach its
// own margin check.
func (r *Router) ProvideLiquidity(user, slabID, mint [32]byte, amount int64) error {
	if amount == 0 {
		return wire.New(wire.InvalidArgument, "amount must be nonzero")
	}
	p, v, err := r.portfolioVault(user, mint)
	if err != nil {
		return err
	}
	m, ok := r.matchers[slabID]
	if !ok {
		return wire.New(wire.InvalidArgument, "unknown slab")
	}
	acct, ok := r.seats[seatKey{user: user, slab: slabID}]
	if !ok {
		return wire.New(wire.Unauthorized, "no seat on target slab")
	}
	if amount > 0 {
		if amount > p.FreeNow() {
			return wire.New(wire.InsufficientCollateral, "liquidity move exceeds free collateral")
		}
		if err := v.withdraw(amount); err != nil {
			return err
		}
	}
	if err := m.Credit(acct, amount); err != nil {
		if amount > 0 {
			v.deposit(amount)
		}
		return err
	}
	p.Cash -= amount
	if amount < 0 {
		v.deposit(-amount)
	}
	return nil
}

// Snapshot checkpoints the router's portfolios, vaults, and escrows
// into the local durable cache. The host chain owns the canonical
// copies; this exists so a restarted process resumes without a full
// replay.
func (r *Router) Snapshot(store *persist.Store) error {
	for user, p := range r.portfolios {
		if err := store.SavePortfolio(r.ID, user, p); err != nil {
			return err
		}
	}
	for mint, v := range r.vaults {
		if err := store.SaveVault(r.ID, mint, v); err != nil {
			return err
		}
	}
	for key, e := range r.escrows {
		if err := store.SaveEscrow(r.ID, key.slab, key.user, key.mint, e); err != nil {
			return err
		}
	}
	return nil
}
