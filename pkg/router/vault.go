package router

import (
	"fmt"

	"github.com/slabdex/slabdex/pkg/wire"
)

// Vault is per (router, mint) custody: the pooled token balance and
// how much of it is pledged behind live escrows/capabilities (§3).
// balance ≥ total_pledged at all times (I5) — the vault never promises
// collateral it doesn't hold.
type Vault struct {
	Mint         [32]byte
	Balance      int64
	TotalPledged int64
}

func (v *Vault) deposit(amount int64) { v.Balance += amount }

func (v *Vault) withdraw(amount int64) error {
	if amount > v.Balance-v.TotalPledged {
		return wire.New(wire.InsufficientCollateral, "withdrawal exceeds unpledged vault balance")
	}
	v.Balance -= amount
	return nil
}

func (v *Vault) pledge(amount int64) error {
	if v.TotalPledged+amount > v.Balance {
		return wire.New(wire.InsufficientCollateral, "pledge exceeds vault balance")
	}
	v.TotalPledged += amount
	return nil
}

// unpledge releases a pledge without moving tokens (cancel/expiry).
func (v *Vault) unpledge(amount int64) {
	v.TotalPledged -= amount
}

// settle consumes a pledged amount for good: spent leaves the vault
// toward the slab's settlement flow, the rest of the pledge unlocks.
func (v *Vault) settle(pledged, spent int64) {
	v.TotalPledged -= pledged
	v.Balance -= spent
}

// CheckInvariant verifies I5: balance ≥ total_pledged ≥ 0.
func (v *Vault) CheckInvariant() error {
	if v.TotalPledged < 0 || v.Balance < v.TotalPledged {
		return fmt.Errorf("vault %x: balance=%d, pledged=%d", v.Mint[:4], v.Balance, v.TotalPledged)
	}
	return nil
}
