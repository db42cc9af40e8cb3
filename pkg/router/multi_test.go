package router

import (
	"testing"

	"github.com/slabdex/slabdex/pkg/slab"
	"github.com/slabdex/slabdex/pkg/wire"
)

func twoLegAllocs() []Allocation {
	return []Allocation{
		{SlabID: slab1ID, InstrumentIdx: 0, Side: slab.Buy, Qty: 700_000, LimitPrice: px101, TTLMs: 60_000, TIF: slab.AllowPartial},
		{SlabID: slab2ID, InstrumentIdx: 0, Side: slab.Buy, Qty: 300_000, LimitPrice: px101, TTLMs: 60_000, TIF: slab.AllowPartial},
	}
}

// Happy path: 0.7 on S1 and 0.3 on S2, reserve then commit, portfolio
// and vault settle to the debit and exposures fold in.
func TestMultiReserveCommit(t *testing.T) {
	f := newFixture(t)
	seedAsk(t, f.slab1, px100, qty1)
	seedAsk(t, f.slab2, px100, qty1)

	route, err := f.r.MultiReserve(alice, usdc, twoLegAllocs(), qty1)
	if err != nil {
		t.Fatalf("MultiReserve: %v", err)
	}
	if len(route.Reservations) != 2 {
		t.Fatalf("legs = %d, want 2", len(route.Reservations))
	}
	if route.BlendedVWAP != px100 {
		t.Fatalf("blended vwap = %d, want %d", route.BlendedVWAP, px100)
	}
	// total cost = Σ (notional + 5 bps fee) = 70_035_000 + 30_015_000.
	if route.TotalCost != 100_050_000 {
		t.Fatalf("total cost = %d, want 100_050_000", route.TotalCost)
	}
	p := f.r.Portfolio(alice)
	v := f.r.Vault(usdc)
	if p.Pledged != route.TotalCost || v.TotalPledged != route.TotalCost {
		t.Fatalf("pledges = %d/%d, want %d", p.Pledged, v.TotalPledged, route.TotalCost)
	}

	out, err := f.r.MultiCommit(route.RouteID)
	if err != nil {
		t.Fatalf("MultiCommit: %v", err)
	}
	if out.TotalQty != qty1 {
		t.Fatalf("committed qty = %d, want %d", out.TotalQty, qty1)
	}
	// Fees equal the ceiling here, so the full pledge is spent.
	if out.TotalDebit != 100_050_000 || out.Refunded != 0 {
		t.Fatalf("debit/refund = %d/%d, want 100_050_000/0", out.TotalDebit, out.Refunded)
	}
	if p.Pledged != 0 || v.TotalPledged != 0 {
		t.Fatalf("pledges after commit = %d/%d, want 0/0", p.Pledged, v.TotalPledged)
	}
	if p.Cash != 1_000_000_000-out.TotalDebit {
		t.Fatalf("cash = %d, want %d", p.Cash, 1_000_000_000-out.TotalDebit)
	}
	if len(p.Exposures) != 2 {
		t.Fatalf("exposures = %d, want 2", len(p.Exposures))
	}
	for _, e := range p.Exposures {
		want := int64(700_000)
		if e.SlabID == slab2ID {
			want = 300_000
		}
		if e.NetQty != want {
			t.Fatalf("exposure on %x = %d, want %d", e.SlabID[:1], e.NetQty, want)
		}
	}
	assertRouterInvariants(t, f.r)
}

// Scenario S5: the second leg's reservation expires between reserve
// and commit. The pre-check barrier rejects the whole route; neither
// slab publishes a fill and the pledge stays intact until release.
func TestMultiCommitAtomicityOnExpiredLeg(t *testing.T) {
	f := newFixture(t)
	seedAsk(t, f.slab1, px100, qty1)
	seedAsk(t, f.slab2, px100, qty1)

	allocs := twoLegAllocs()
	allocs[1].TTLMs = 1_000 // S2's hold dies first
	route, err := f.r.MultiReserve(alice, usdc, allocs, qty1)
	if err != nil {
		t.Fatal(err)
	}

	f.h.Advance(2_000) // past S2's expiry, inside S1's

	_, err = f.r.MultiCommit(route.RouteID)
	if wire.StatusOf(err) != wire.Expired {
		t.Fatalf("status = %v, want Expired", wire.StatusOf(err))
	}

	// Nothing committed anywhere: both makers still carry their full
	// size, S1's as reserved, and alice has no position.
	if f.slab1.Orders.Len() != 1 || f.slab2.Orders.Len() != 1 {
		t.Fatal("maker orders must survive the aborted commit")
	}
	p := f.r.Portfolio(alice)
	if len(p.Exposures) != 0 {
		t.Fatal("no exposure may appear from an aborted route")
	}
	if p.Cash != 1_000_000_000 {
		t.Fatalf("cash = %d, want untouched 1_000_000_000", p.Cash)
	}

	// Release unwinds the pledge and the surviving hold.
	if err := f.r.Release(route.RouteID); err != nil {
		t.Fatal(err)
	}
	if p.Pledged != 0 || f.r.Vault(usdc).TotalPledged != 0 {
		t.Fatal("release must return the full pledge")
	}
	if err := f.slab1.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
	assertRouterInvariants(t, f.r)
}

// A failing leg during MultiReserve unwinds the earlier legs
// best-effort and rejects the whole route.
func TestMultiReserveUnwindOnFailedLeg(t *testing.T) {
	f := newFixture(t)
	seedAsk(t, f.slab1, px100, qty1)
	// S2 has no liquidity; its fill-or-kill leg fails.
	allocs := twoLegAllocs()
	allocs[1].TIF = slab.FillOrKill

	_, err := f.r.MultiReserve(alice, usdc, allocs, 0)
	if wire.StatusOf(err) != wire.InsufficientLiquidity {
		t.Fatalf("status = %v, want InsufficientLiquidity", wire.StatusOf(err))
	}
	// S1's hold was canceled: nothing reserved, nothing pledged.
	if f.slab1.Reservations.Len() != 0 {
		t.Fatal("failed route leaked a reservation on S1")
	}
	p := f.r.Portfolio(alice)
	if p.Pledged != 0 {
		t.Fatalf("pledged = %d, want 0", p.Pledged)
	}
	assertRouterInvariants(t, f.r)
}

// An aggregate fill below min_fill rejects and unwinds.
func TestMultiReserveMinFill(t *testing.T) {
	f := newFixture(t)
	seedAsk(t, f.slab1, px100, 500_000) // only half the wanted size
	allocs := twoLegAllocs()[:1]
	allocs[0].Qty = qty1

	_, err := f.r.MultiReserve(alice, usdc, allocs, qty1)
	if wire.StatusOf(err) != wire.InsufficientLiquidity {
		t.Fatalf("status = %v, want InsufficientLiquidity", wire.StatusOf(err))
	}
	if f.slab1.Reservations.Len() != 0 {
		t.Fatal("under-min_fill route leaked a reservation")
	}
}

// The escrow nonce makes a second route's stale capability unusable
// once the first has debited.
func TestEscrowNonceAntiReplay(t *testing.T) {
	f := newFixture(t)
	seedAsk(t, f.slab1, px100, qty1)

	oneLeg := func(qty int64) []Allocation {
		return []Allocation{{SlabID: slab1ID, InstrumentIdx: 0, Side: slab.Buy, Qty: qty, LimitPrice: px101, TTLMs: 60_000, TIF: slab.AllowPartial}}
	}
	r1, err := f.r.MultiReserve(alice, usdc, oneLeg(300_000), 0)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := f.r.MultiReserve(alice, usdc, oneLeg(300_000), 0)
	if err != nil {
		t.Fatal(err)
	}

	// First commit advances the escrow nonce; the second route's cap
	// was minted against the old nonce and must be rejected whole.
	if _, err := f.r.MultiCommit(r1.RouteID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.r.MultiCommit(r2.RouteID); wire.StatusOf(err) != wire.BadCapability {
		t.Fatalf("status = %v, want BadCapability", wire.StatusOf(err))
	}
	// The superseded route releases cleanly.
	if err := f.r.Release(r2.RouteID); err != nil {
		t.Fatal(err)
	}
	assertRouterInvariants(t, f.r)
}

// Release is idempotent and returns collateral exactly (router-level
// round-trip law).
func TestReleaseRestoresCollateral(t *testing.T) {
	f := newFixture(t)
	seedAsk(t, f.slab1, px100, qty1)
	allocs := twoLegAllocs()[:1]

	p := f.r.Portfolio(alice)
	before := p.FreeNow()
	route, err := f.r.MultiReserve(alice, usdc, allocs, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p.FreeNow() >= before {
		t.Fatal("reserve must reduce free collateral")
	}
	if err := f.r.Release(route.RouteID); err != nil {
		t.Fatal(err)
	}
	if p.FreeNow() != before {
		t.Fatalf("free = %d, want restored %d", p.FreeNow(), before)
	}
	if err := f.r.Release(route.RouteID); err != nil {
		t.Fatal(err)
	}
}
