// Package market holds the per-instrument configuration descriptor
// embedded in a slab's header (spec §6: 16 entries × 64 B) and the
// margin/tick/lot arithmetic every slab component shares, generalized
// from the teacher's spot/margin market.go to the fixed-point perpetual
// scale this system uses.
package market

import "fmt"

// Scale is the fixed-point denominator every price and quantity field
// uses: 1 × 10⁶.
const Scale = 1_000_000

// Market is one instrument's configuration — the slab-header descriptor
// plus the deployment configuration surface named in spec §6.
type Market struct {
	Symbol string

	Tick     int64 // minimum price increment
	Lot      int64 // minimum quantity increment
	MinOrder int64 // minimum order quantity

	IMRBps int64 // initial margin requirement, basis points
	MMRBps int64 // maintenance margin requirement, basis points

	MakerFeeBps int64 // signed: negative is a maker rebate
	TakerFeeBps int64

	BatchMs      int64 // batch-epoch width for JIT Penalty / ARG tracking
	FreezeLevels int64 // reserved: number of price levels frozen from new epoch orders

	KillBandBps   int64 // max tolerated |mark - index| / index before Reserve rejects
	ArgTaxBps     int64 // surcharge on a same-epoch round-trip by one account
	TTLMaxMs      int64 // max ttl_ms accepted by Reserve
	CapTTLMaxMs   int64 // max lifetime of a minted capability
	LiqPenaltyBps int64 // liquidation price penalty, basis points
	MarkBoundBps  int64 // max last-trade deviation from index allowed into mark_price
}

// Validate checks the market's configuration is internally consistent.
// Grounded on the teacher's Market.Validate, generalized to the fields
// this system's risk and guard components need.
func (m *Market) Validate() error {
	if m.Tick <= 0 {
		return fmt.Errorf("market %s: tick must be positive", m.Symbol)
	}
	if m.Lot <= 0 {
		return fmt.Errorf("market %s: lot must be positive", m.Symbol)
	}
	if m.MinOrder <= 0 {
		return fmt.Errorf("market %s: min_order must be positive", m.Symbol)
	}
	if m.IMRBps <= 0 || m.MMRBps <= 0 {
		return fmt.Errorf("market %s: imr_bps and mmr_bps must be positive", m.Symbol)
	}
	if m.MMRBps >= m.IMRBps {
		return fmt.Errorf("market %s: mmr_bps (%d) must be less than imr_bps (%d)", m.Symbol, m.MMRBps, m.IMRBps)
	}
	if m.KillBandBps <= 0 {
		return fmt.Errorf("market %s: kill_band_bps must be positive", m.Symbol)
	}
	if m.TTLMaxMs <= 0 || m.CapTTLMaxMs <= 0 {
		return fmt.Errorf("market %s: ttl_max_ms and cap_ttl_max_ms must be positive", m.Symbol)
	}
	return nil
}

// ValidateOrderShape enforces tick/lot alignment and minimum size; used
// by both PlaceOrder and Reserve.
func (m *Market) ValidateOrderShape(price, qty int64) error {
	if price <= 0 || qty <= 0 {
		return fmt.Errorf("price and qty must be positive")
	}
	if price%m.Tick != 0 {
		return fmt.Errorf("price %d is not a multiple of tick %d", price, m.Tick)
	}
	if qty%m.Lot != 0 {
		return fmt.Errorf("qty %d is not a multiple of lot %d", qty, m.Lot)
	}
	if qty < m.MinOrder {
		return fmt.Errorf("qty %d below min_order %d", qty, m.MinOrder)
	}
	return nil
}

// RequiredInitialMargin returns IM for a position of size qty (signed
// or absolute, caller's choice — only magnitude matters) at the given
// mark price. Formula: IMR_bps × |qty| × mark_price / (10_000 × Scale).
func (m *Market) RequiredInitialMargin(qty, markPrice int64) int64 {
	return bpsNotional(m.IMRBps, qty, markPrice)
}

// RequiredMaintenanceMargin is the MMR analogue of RequiredInitialMargin.
func (m *Market) RequiredMaintenanceMargin(qty, markPrice int64) int64 {
	return bpsNotional(m.MMRBps, qty, markPrice)
}

func bpsNotional(bps, qty, markPrice int64) int64 {
	if qty < 0 {
		qty = -qty
	}
	// notional = qty × markPrice / Scale; margin = notional × bps / 10_000.
	// Order of operations keeps intermediate magnitudes within int64 for
	// the qty/price ranges this system targets; callers needing wider
	// headroom route through slab.NotionalWide (128-bit, via uint256).
	notional := (qty * markPrice) / Scale
	return (notional * bps) / 10_000
}

// FeeCeiling returns the maximum possible fee on a fill of the given
// notional, used by Reserve to compute max_charge so Commit can never
// be surprised by a fee larger than what was reserved.
func (m *Market) FeeCeiling(notional int64) int64 {
	bps := m.TakerFeeBps
	if bps < 0 {
		return 0
	}
	return (notional * bps) / 10_000
}

// Fee returns the signed fee (negative = rebate) charged on notional,
// under the given fee rate in bps.
func Fee(notional, bps int64) int64 {
	return (notional * bps) / 10_000
}
