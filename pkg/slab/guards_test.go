package slab

import (
	"testing"

	"github.com/slabdex/slabdex/pkg/wire"
)

// Scenario S3: with index 100 and mark 102 against a 1% band, Reserve
// rejects; after funding drags mark back inside the band it succeeds.
func TestKillBand(t *testing.T) {
	s := newTestSlab(t)
	mustPlace(t, s, acctMaker, Sell, px100, qty1)

	inst := s.Instruments[0]
	inst.IndexPrice = px100
	inst.MarkPrice = px102 // 200 bps divergence > 100 bps band

	_, err := s.Reserve(acctTaker, 0, Buy, qty1, px101, 60_000, AllowPartial, [32]byte{}, 0, t0)
	if wire.StatusOf(err) != wire.KillBandBreached {
		t.Fatalf("status = %v, want KillBandBreached", wire.StatusOf(err))
	}

	// UpdateFunding re-clamps mark toward the index: with a 50 bps mark
	// bound, 102 clamps to 100 × 1.005 = 100.5, back inside the band.
	inst.Market.MarkBoundBps = 50
	if err := s.UpdateFunding(0, px100, 0, t0); err != nil {
		t.Fatal(err)
	}
	if inst.MarkPrice != 100_500_000 {
		t.Fatalf("mark after funding = %d, want 100_500_000", inst.MarkPrice)
	}
	if _, err := s.Reserve(acctTaker, 0, Buy, qty1, px101, 60_000, AllowPartial, [32]byte{}, 0, t0); err != nil {
		t.Fatalf("reserve inside band: %v", err)
	}
}

// The per-epoch reserve budget trips RateLimited and resets on epoch
// rollover.
func TestReserveRateLimit(t *testing.T) {
	s := newTestSlab(t)
	mustPlace(t, s, acctMaker, Sell, px100, int64(2*ReserveRateLimit)*qty1)

	for i := 0; i < ReserveRateLimit; i++ {
		if _, err := s.Reserve(acctTaker, 0, Buy, 100_000, px101, 60_000, AllowPartial, [32]byte{}, 0, t0); err != nil {
			t.Fatalf("reserve %d inside budget: %v", i, err)
		}
	}
	_, err := s.Reserve(acctTaker, 0, Buy, 100_000, px101, 60_000, AllowPartial, [32]byte{}, 0, t0)
	if wire.StatusOf(err) != wire.RateLimited {
		t.Fatalf("status = %v, want RateLimited", wire.StatusOf(err))
	}
	// Next epoch: the budget is fresh.
	if _, err := s.Reserve(acctTaker, 0, Buy, 100_000, px101, 60_000, AllowPartial, [32]byte{}, 0, t0+1_000); err != nil {
		t.Fatalf("reserve after rollover: %v", err)
	}
}

// Boundary B3: a Regular-class order priced to cross waits one epoch
// Pending; a DLP order at the same price is Live immediately.
func TestJITPenalty(t *testing.T) {
	s := newTestSlab(t)
	mustPlace(t, s, acctMaker, Sell, px100, qty1)

	reg, err := s.PlaceOrder(acctTaker, 0, Buy, px100, qty1, Regular, t0)
	if err != nil {
		t.Fatal(err)
	}
	if reg.State != OrderPending {
		t.Fatalf("regular crossing order state = %v, want Pending", reg.State)
	}
	if reg.EligibleEpoch != t0/1_000+1 {
		t.Fatalf("eligible_epoch = %d, want next epoch %d", reg.EligibleEpoch, t0/1_000+1)
	}

	dlp, err := s.PlaceOrder(acctThird, 0, Buy, px100, qty1, DLP, t0)
	if err != nil {
		t.Fatal(err)
	}
	if dlp.State != OrderLive {
		t.Fatalf("DLP crossing order state = %v, want Live", dlp.State)
	}

	// A non-crossing Regular order is Live immediately.
	away, err := s.PlaceOrder(acctTaker, 0, Buy, 99_000_000, qty1, Regular, t0)
	if err != nil {
		t.Fatal(err)
	}
	if away.State != OrderLive {
		t.Fatalf("non-crossing regular order state = %v, want Live", away.State)
	}
}

// A Pending order is invisible to reservation walks until its epoch
// begins, then promotes lazily.
func TestPendingInvisibleUntilEpoch(t *testing.T) {
	s := newTestSlab(t)
	mustPlace(t, s, acctMaker, Buy, px100, qty1) // bid so the ask crosses
	pend, err := s.PlaceOrder(acctThird, 0, Sell, px100, qty1, Regular, t0)
	if err != nil {
		t.Fatal(err)
	}
	if pend.State != OrderPending {
		t.Fatalf("state = %v, want Pending", pend.State)
	}

	// Same epoch: the taker's buy sees no ask liquidity.
	if _, err := s.Reserve(acctTaker, 0, Buy, qty1, px101, 60_000, FillOrKill, [32]byte{}, 0, t0); err == nil {
		t.Fatal("pending order should be invisible in its arrival epoch")
	}

	// Next epoch: the same reserve fills against the promoted order.
	next := (t0/1_000 + 1) * 1_000
	res, err := s.Reserve(acctTaker, 0, Buy, qty1, px101, 60_000, FillOrKill, [32]byte{}, 0, next)
	if err != nil {
		t.Fatalf("reserve after epoch rollover: %v", err)
	}
	if res.FilledQty != qty1 {
		t.Fatalf("filled = %d, want %d", res.FilledQty, qty1)
	}
	assertInvariants(t, s)
}
