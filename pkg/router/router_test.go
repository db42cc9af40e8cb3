package router

import (
	"testing"

	"github.com/slabdex/slabdex/pkg/host"
	"github.com/slabdex/slabdex/pkg/market"
	"github.com/slabdex/slabdex/pkg/slab"
)

// Fixture: one router, two slabs (S1, S2), one settlement mint, two
// users (alice trades, bob makes markets on both slabs). Prices and
// quantities use the 1e6 fixed-point scale.

var (
	routerID = [32]byte{0x01}
	slab1ID  = [32]byte{0x51}
	slab2ID  = [32]byte{0x52}
	usdc     = [32]byte{0xC0}
	alice    = [32]byte{0xA1}
	bob      = [32]byte{0xB0}
)

const (
	aliceSeat slab.AccountIdx = 1
	bobSeat   slab.AccountIdx = 2

	px100 = 100_000_000
	px101 = 101_000_000
	qty1  = 1_000_000

	t0 = int64(1_700_000_000_000)
)

func testMarket() market.Market {
	return market.Market{
		Symbol:        "PERP-USDC",
		Tick:          1_000_000,
		Lot:           100_000,
		MinOrder:      100_000,
		IMRBps:        200,
		MMRBps:        100,
		MakerFeeBps:   -2,
		TakerFeeBps:   5,
		BatchMs:       1_000,
		KillBandBps:   100,
		ArgTaxBps:     10,
		TTLMaxMs:      120_000,
		CapTTLMaxMs:   150_000,
		LiqPenaltyBps: 250,
		MarkBoundBps:  500,
	}
}

type fixture struct {
	h     *host.SimHost
	r     *Router
	slab1 *slab.Slab
	slab2 *slab.Slab
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := host.NewSimHost(t0)
	r := New(routerID, h, nil)

	mkSlab := func(id [32]byte) *slab.Slab {
		s := slab.New(slab.Config{Router: routerID})
		if err := s.AddInstrument(0, testMarket()); err != nil {
			t.Fatal(err)
		}
		// Bob's making margin lives slab-side.
		_ = s.Credit(bobSeat, 1_000_000_000_000)
		r.RegisterMatcher(NewSlabMatcher(s, id, usdc))
		return s
	}
	s1 := mkSlab(slab1ID)
	s2 := mkSlab(slab2ID)

	if err := r.InitializeVault(usdc); err != nil {
		t.Fatal(err)
	}
	if err := r.InitializePortfolio(alice); err != nil {
		t.Fatal(err)
	}
	for _, sid := range [][32]byte{slab1ID, slab2ID} {
		if err := r.SeatInit(alice, sid, aliceSeat); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Deposit(alice, usdc, 1_000_000_000); err != nil {
		t.Fatal(err)
	}
	return &fixture{h: h, r: r, slab1: s1, slab2: s2}
}

// seedAsk rests bob's sell so alice's route has liquidity to take.
func seedAsk(t *testing.T, s *slab.Slab, price, qty int64) {
	t.Helper()
	if _, err := s.PlaceOrder(bobSeat, 0, slab.Sell, price, qty, slab.DLP, t0); err != nil {
		t.Fatal(err)
	}
}

func assertRouterInvariants(t *testing.T, r *Router) {
	t.Helper()
	if err := r.CheckInvariants(); err != nil {
		t.Fatalf("router invariants broken: %v", err)
	}
}

func TestDepositWithdraw(t *testing.T) {
	f := newFixture(t)

	p := f.r.Portfolio(alice)
	v := f.r.Vault(usdc)
	if p.Cash != 1_000_000_000 || v.Balance != 1_000_000_000 {
		t.Fatalf("post-deposit cash/balance = %d/%d", p.Cash, v.Balance)
	}

	if err := f.r.Withdraw(alice, usdc, 400_000_000); err != nil {
		t.Fatal(err)
	}
	if p.Cash != 600_000_000 || v.Balance != 600_000_000 {
		t.Fatalf("post-withdraw cash/balance = %d/%d", p.Cash, v.Balance)
	}
	if err := f.r.Withdraw(alice, usdc, 600_000_001); err == nil {
		t.Fatal("over-withdrawal should fail")
	}
	if err := f.r.Deposit(alice, usdc, -5); err == nil {
		t.Fatal("negative deposit should fail")
	}
	assertRouterInvariants(t, f.r)
}

func TestRemarkIdentity(t *testing.T) {
	f := newFixture(t)
	if err := f.r.Remark(alice); err != nil {
		t.Fatal(err)
	}
	p := f.r.Portfolio(alice)
	if p.Equity != p.Cash || p.FreeCollateral != p.Equity {
		t.Fatalf("flat portfolio: equity=%d free=%d cash=%d", p.Equity, p.FreeCollateral, p.Cash)
	}
	if err := p.CheckInvariant(); err != nil {
		t.Fatal(err)
	}
}

func TestProvideLiquidityMovesCashToSlab(t *testing.T) {
	f := newFixture(t)
	if err := f.r.ProvideLiquidity(alice, slab1ID, usdc, 50_000_000); err != nil {
		t.Fatal(err)
	}
	if got := f.slab1.Cash(aliceSeat); got != 50_000_000 {
		t.Fatalf("slab-side cash = %d, want 50_000_000", got)
	}
	p := f.r.Portfolio(alice)
	if p.Cash != 950_000_000 {
		t.Fatalf("router-side cash = %d, want 950_000_000", p.Cash)
	}
	// Remark folds the slab-side equity back in: the total is unchanged.
	if err := f.r.Remark(alice); err != nil {
		t.Fatal(err)
	}
	if p.Equity != 1_000_000_000 {
		t.Fatalf("remarked equity = %d, want 1_000_000_000", p.Equity)
	}
	// Pull it back.
	if err := f.r.ProvideLiquidity(alice, slab1ID, usdc, -50_000_000); err != nil {
		t.Fatal(err)
	}
	if f.slab1.Cash(aliceSeat) != 0 || p.Cash != 1_000_000_000 {
		t.Fatal("return leg did not restore balances")
	}
	assertRouterInvariants(t, f.r)
}

func TestQuoteReadsWithoutReserving(t *testing.T) {
	f := newFixture(t)
	seedAsk(t, f.slab1, px100, qty1)

	m := f.r.matchers[slab1ID]
	vwap, full := m.Quote(0, slab.Buy, 500_000)
	if !full || vwap != px100 {
		t.Fatalf("quote = %d (full=%v), want %d, true", vwap, full, px100)
	}
	// Quoting more than the book holds reports a partial.
	if _, full := m.Quote(0, slab.Buy, 2*qty1); full {
		t.Fatal("over-size quote must report partial availability")
	}
	if f.slab1.Reservations.Len() != 0 {
		t.Fatal("quote must not create claims")
	}
}

func TestInsuranceFundMoves(t *testing.T) {
	f := newFixture(t)
	if err := f.r.TopUpInsurance(usdc, 100_000_000); err != nil {
		t.Fatal(err)
	}
	if f.r.InsuranceFund != 100_000_000 {
		t.Fatalf("insurance = %d", f.r.InsuranceFund)
	}
	if f.r.Vault(usdc).Balance != 900_000_000 {
		t.Fatalf("vault = %d", f.r.Vault(usdc).Balance)
	}
	if err := f.r.WithdrawInsurance(usdc, 100_000_000, nil); err != nil {
		t.Fatal(err)
	}
	if f.r.InsuranceFund != 0 || f.r.Vault(usdc).Balance != 1_000_000_000 {
		t.Fatal("insurance withdrawal did not restore vault")
	}
	assertRouterInvariants(t, f.r)
}
