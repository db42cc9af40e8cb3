package market

import "testing"

func TestValidateRejectsInvertedMarginTiers(t *testing.T) {
	m := DefaultPerp("TEST-USDC")
	m.MMRBps = m.IMRBps // mmr must be strictly less than imr
	if err := m.Validate(); err == nil {
		t.Fatalf("expected error when mmr_bps >= imr_bps")
	}
}

func TestValidateOrderShape(t *testing.T) {
	m := DefaultPerp("TEST-USDC")
	m.Tick = 1_000_000 // default tick of 1 accepts any integer price
	if err := m.ValidateOrderShape(100_000_000, 1_000_000); err != nil {
		t.Fatalf("expected valid order, got %v", err)
	}
	if err := m.ValidateOrderShape(100_000_001, 1_000_000); err == nil {
		t.Fatalf("expected tick-misaligned price to fail")
	}
	if err := m.ValidateOrderShape(100_000_000, 1_000_050); err == nil {
		t.Fatalf("expected lot-misaligned qty to fail")
	}
	m.MinOrder = 1_000 // 500 is a whole number of lots but below min_order
	if err := m.ValidateOrderShape(100_000_000, 500); err == nil {
		t.Fatalf("expected below-min-order qty to fail")
	}
}

func TestRequiredInitialMargin(t *testing.T) {
	m := DefaultPerp("TEST-USDC")
	// qty = 50_000 lots (in 1e6 scale qty units is irrelevant here — this
	// mirrors the teacher's worked margin arithmetic style), mark = 100.
	// notional = 50_000 * 100 / 1e6 ... scaled for readability, use round
	// numbers: qty=1_000_000 (1.0 unit), mark=100_000_000 (100.0)
	// notional = 1_000_000 * 100_000_000 / 1_000_000 = 100_000_000
	// IM = 100_000_000 * 200 / 10_000 = 2_000_000
	got := m.RequiredInitialMargin(1_000_000, 100_000_000)
	want := int64(2_000_000)
	if got != want {
		t.Fatalf("IM = %d, want %d", got, want)
	}
}

func TestFeeCeilingZeroForNegativeTakerFee(t *testing.T) {
	m := DefaultPerp("TEST-USDC")
	m.TakerFeeBps = -1
	if got := m.FeeCeiling(1_000_000); got != 0 {
		t.Fatalf("FeeCeiling = %d, want 0 for negative taker fee", got)
	}
}
