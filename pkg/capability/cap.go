// Package capability implements the Cap token: a scoped, time-bounded,
// single-use debit authorization minted by the router on RouterReserve
// and burned by a slab's Commit. A Cap never moves tokens itself — it
// only gates whether a slab is allowed to ask an escrow to debit a
// user, mirroring the vault/escrow split the teacher's account package
// draws between "balance" and "what's locked against it".
package capability

import "fmt"

// Cap is immutable except Remaining and Burned, per spec §3. All scope
// fields are set once at mint time and never change.
type Cap struct {
	RouteID    uint64
	ScopeUser  [32]byte
	ScopeSlab  [32]byte
	ScopeMint  [32]byte
	AmountMax  int64
	Remaining  int64
	ExpiryTS   int64
	Nonce      uint64
	Burned     bool
}

// Mint constructs a new, live Cap scoped to exactly one (user, slab,
// mint) triple for up to amountMax, expiring at expiryTS.
func Mint(routeID uint64, user, slab, mint [32]byte, amountMax, expiryTS int64, nonce uint64) *Cap {
	return &Cap{
		RouteID:   routeID,
		ScopeUser: user,
		ScopeSlab: slab,
		ScopeMint: mint,
		AmountMax: amountMax,
		Remaining: amountMax,
		ExpiryTS:  expiryTS,
		Nonce:     nonce,
	}
}

// Live reports whether the cap can still authorize a debit: not
// burned, not expired, and still carrying a positive remaining amount.
func (c *Cap) Live(nowTS int64) bool {
	return !c.Burned && c.ExpiryTS > nowTS && c.Remaining > 0
}

// Authorize validates a proposed debit of amount against this cap's
// scope, erroring with the same detail a slab's Commit surfaces as
// BadCapability/CapExhausted. It does not mutate the cap — callers
// commit the debit with Debit once every other precondition (e.g. the
// escrow nonce check) has also passed, so a failed commit never
// partially consumes the cap.
func (c *Cap) Authorize(user, slab, mint [32]byte, amount, nowTS int64) error {
	if c.Burned {
		return fmt.Errorf("capability: already burned")
	}
	if c.ExpiryTS <= nowTS {
		return fmt.Errorf("capability: expired at %d (now %d)", c.ExpiryTS, nowTS)
	}
	if c.ScopeUser != user || c.ScopeSlab != slab || c.ScopeMint != mint {
		return fmt.Errorf("capability: scope mismatch")
	}
	if amount > c.Remaining {
		return fmt.Errorf("capability: amount %d exceeds remaining %d", amount, c.Remaining)
	}
	return nil
}

// Debit atomically decrements Remaining by amount and burns the cap if
// it is now exhausted. Callers must have already called Authorize (or
// equivalent checks) for the same amount; Debit itself re-validates
// Remaining to avoid ever driving it negative.
func (c *Cap) Debit(amount int64) error {
	if amount > c.Remaining {
		return fmt.Errorf("capability: debit %d exceeds remaining %d", amount, c.Remaining)
	}
	c.Remaining -= amount
	if c.Remaining == 0 {
		c.Burned = true
	}
	return nil
}

// Release returns any unused Remaining to the caller (Cancel or
// Expiry unwind) and burns the cap so it can never be debited again.
// Returns the amount released.
func (c *Cap) Release() int64 {
	released := c.Remaining
	c.Remaining = 0
	c.Burned = true
	return released
}

// Invariant reports whether I6 holds: remaining <= amount_max, and
// burned implies remaining == 0.
func (c *Cap) Invariant() bool {
	if c.Remaining > c.AmountMax {
		return false
	}
	if c.Burned && c.Remaining != 0 {
		return false
	}
	return true
}
