package router

import (
	"github.com/slabdex/slabdex/pkg/capability"
	"github.com/slabdex/slabdex/pkg/slab"
)

// Matcher is the capability set the router depends on for any matcher
// variant — order-book slab today, AMM adapter tomorrow (§9's tagged
// variant design note). The router never reaches past this interface
// into a slab's internals.
type Matcher interface {
	// ID is the matcher's 32-byte program/account identifier, the value
	// capabilities are slab-scoped to.
	ID() [32]byte

	// SettlementMint is the mint this matcher settles in.
	SettlementMint() [32]byte

	// Quote prices qty against current liquidity without reserving.
	Quote(instrument uint16, side slab.Side, qty int64) (vwap int64, ok bool)

	Reserve(acct slab.AccountIdx, instrument uint16, side slab.Side, qty, limitPrice, ttlMs int64, tif slab.TIF, commitment [32]byte, routeID uint64, nowMs int64) (*slab.ReserveResult, error)

	// PrecheckCommit validates every Commit precondition without
	// mutating; the multi-slab commit barrier runs it on every leg
	// before committing any.
	PrecheckCommit(holdID uint64, cap *capability.Cap, nowMs int64) error

	Commit(holdID uint64, cap *capability.Cap, esc slab.Debiter, nowMs int64) (*slab.CommitResult, error)

	CancelHold(holdID uint64, acct slab.AccountIdx, nowMs int64) error

	// AccountRisk reports the seat's slab-local equity and margin
	// requirements, the inputs to the router's cross-slab remark.
	AccountRisk(acct slab.AccountIdx) (equity, im, mm int64)

	// Credit moves collateral into (positive) or out of (negative) the
	// seat's slab-local cash ledger.
	Credit(acct slab.AccountIdx, amount int64) error
}

// SlabMatcher adapts one *slab.Slab to the Matcher interface, binding
// it to its account identifier and settlement mint.
type SlabMatcher struct {
	slab *slab.Slab
	id   [32]byte
	mint [32]byte
}

func NewSlabMatcher(s *slab.Slab, id, mint [32]byte) *SlabMatcher {
	return &SlabMatcher{slab: s, id: id, mint: mint}
}

func (m *SlabMatcher) ID() [32]byte             { return m.id }
func (m *SlabMatcher) SettlementMint() [32]byte { return m.mint }
func (m *SlabMatcher) Slab() *slab.Slab         { return m.slab }

// Quote walks the opposing book the same way Reserve would, but
// touches nothing — the router's pre-trade sizing read.
func (m *SlabMatcher) Quote(instrument uint16, side slab.Side, qty int64) (int64, bool) {
	return m.slab.Quote(instrument, side, qty)
}

func (m *SlabMatcher) Reserve(acct slab.AccountIdx, instrument uint16, side slab.Side, qty, limitPrice, ttlMs int64, tif slab.TIF, commitment [32]byte, routeID uint64, nowMs int64) (*slab.ReserveResult, error) {
	return m.slab.Reserve(acct, instrument, side, qty, limitPrice, ttlMs, tif, commitment, routeID, nowMs)
}

func (m *SlabMatcher) PrecheckCommit(holdID uint64, cap *capability.Cap, nowMs int64) error {
	return m.slab.PrecheckCommit(holdID, cap, m.id, m.mint, nowMs)
}

func (m *SlabMatcher) Commit(holdID uint64, cap *capability.Cap, esc slab.Debiter, nowMs int64) (*slab.CommitResult, error) {
	return m.slab.Commit(holdID, cap, esc, m.id, m.mint, nowMs)
}

func (m *SlabMatcher) CancelHold(holdID uint64, acct slab.AccountIdx, nowMs int64) error {
	return m.slab.CancelHold(holdID, acct, nowMs)
}

func (m *SlabMatcher) AccountRisk(acct slab.AccountIdx) (int64, int64, int64) {
	return m.slab.Equity(acct), m.slab.InitialMarginTotal(acct), m.slab.MaintenanceMarginTotal(acct)
}

func (m *SlabMatcher) Credit(acct slab.AccountIdx, amount int64) error {
	return m.slab.Credit(acct, amount)
}
