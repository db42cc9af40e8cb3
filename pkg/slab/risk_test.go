package slab

import (
	"testing"

	"github.com/slabdex/slabdex/pkg/wire"
)

// openPosition fills taker long / maker short 1.0 @ 100 and returns
// the slab ready for risk assertions.
func openPosition(t *testing.T, s *Slab) {
	t.Helper()
	mustPlace(t, s, acctMaker, Sell, px100, qty1)
	res := mustReserve(t, s, acctTaker, Buy, qty1, px101)
	cap := mintCapFor(acctTaker, res.MaxCharge, t0+100_000)
	if _, err := s.Commit(res.HoldID, cap, nil, testSlabID, testMint, t0); err != nil {
		t.Fatal(err)
	}
}

func TestEquityTracksMark(t *testing.T) {
	s := newTestSlab(t)
	openPosition(t, s)

	cash := s.Cash(acctTaker)
	// Mark == entry: no unrealized PnL.
	if got := s.Equity(acctTaker); got != cash {
		t.Fatalf("equity at entry = %d, want cash %d", got, cash)
	}

	// Mark +2: long 1.0 gains 2.0 = 2_000_000.
	s.Instruments[0].MarkPrice = px102
	if got := s.Equity(acctTaker); got != cash+2_000_000 {
		t.Fatalf("equity at mark 102 = %d, want %d", got, cash+2_000_000)
	}
	// The short side loses the same.
	makerCash := s.Cash(acctMaker)
	if got := s.Equity(acctMaker); got != makerCash-2_000_000 {
		t.Fatalf("maker equity = %d, want %d", got, makerCash-2_000_000)
	}
}

func TestLiquidationFlow(t *testing.T) {
	s := newTestSlab(t)
	// A thin account shorts 1.0 @ 100 on cash 2_100_000, just over the
	// 2_000_000 IM. At entry, equity 2_100_000 sits above the
	// 1_000_000 MM; a mark move to 102 costs 2_000_000 unrealized,
	// leaving equity 100_000 < MM 1_020_000.
	thin := AccountIdx(7)
	_ = s.Credit(thin, 2_100_000)
	if _, err := s.PlaceOrder(thin, 0, Sell, px100, qty1, DLP, t0); err != nil {
		t.Fatal(err)
	}
	res := mustReserve(t, s, acctTaker, Buy, qty1, px101)
	cap := mintCapFor(acctTaker, res.MaxCharge, t0+100_000)
	if _, err := s.Commit(res.HoldID, cap, nil, testSlabID, testMint, t0); err != nil {
		t.Fatal(err)
	}

	if s.Liquidatable(thin) {
		t.Fatal("short at entry mark should still be above MM")
	}
	if _, err := s.Liquidate(acctMaker, thin, qty1, t0); wire.StatusOf(err) != wire.InvalidArgument {
		t.Fatalf("liquidation above MM: status %v, want InvalidArgument", wire.StatusOf(err))
	}

	s.Instruments[0].MarkPrice = px102
	if !s.Liquidatable(thin) {
		t.Fatalf("equity %d below MM %d expected", s.Equity(thin), s.MaintenanceMarginTotal(thin))
	}

	insuranceBefore := s.InsuranceFund
	out, err := s.Liquidate(acctMaker, thin, qty1, t0)
	if err != nil {
		t.Fatalf("Liquidate: %v", err)
	}
	// Closing a short buys above mark: 102 × (1 + 250 bps) = 104.55.
	if out.LiqPrice != 104_550_000 {
		t.Fatalf("liq price = %d, want 104_550_000", out.LiqPrice)
	}
	// Penalty = notional at mark × 250 bps = 102_000_000 × 0.025.
	if out.Penalty != 2_550_000 {
		t.Fatalf("penalty = %d, want 2_550_000", out.Penalty)
	}
	if s.InsuranceFund != insuranceBefore+out.Penalty {
		t.Fatal("penalty not routed to insurance fund")
	}

	// The target's short is closed; the liquidator inherited it.
	if _, p, _ := s.getPosition(acctMaker, 0); p.NetQty >= 0 {
		t.Fatalf("liquidator position = %d, want short", p.NetQty)
	}
	assertInvariants(t, s)
}

func TestCreditWithdrawGuard(t *testing.T) {
	s := newTestSlab(t)
	openPosition(t, s)

	// The taker's long 1.0 @ mark 100 needs IM 2_000_000; everything
	// above that is withdrawable, one unit more is not.
	free := s.FreeCollateral(acctTaker)
	if err := s.Credit(acctTaker, -(free + 1)); err == nil {
		t.Fatal("over-withdrawal should be refused")
	}
	if err := s.Credit(acctTaker, -free); err != nil {
		t.Fatalf("exact free withdrawal: %v", err)
	}
}
