package slab

import (
	"testing"

	"github.com/slabdex/slabdex/pkg/host"
	"github.com/slabdex/slabdex/pkg/wire"
	"github.com/slabdex/slabdex/pkg/xsign"
)

func newTestProgram(t *testing.T) (*Program, *host.SimHost) {
	t.Helper()
	h := host.NewSimHost(t0)
	s := newTestSlab(t)
	return &Program{Slab: s, Clock: h}, h
}

func TestHandlerPlaceAndCancel(t *testing.T) {
	p, _ := newTestProgram(t)

	ix := (&wire.PlaceOrderPayload{
		AccountIdx:    uint32(acctMaker),
		InstrumentIdx: 0,
		Side:          uint8(Sell),
		MakerClass:    uint8(DLP),
		Price:         px100,
		Qty:           qty1,
	}).Encode()
	out, err := p.HandleInstruction(ix)
	if err != nil {
		t.Fatal(err)
	}
	status, payload, err := wire.DecodeStatus(out)
	if err != nil || status != wire.Ok {
		t.Fatalf("place status = %v (%v)", status, err)
	}
	res, err := wire.DecodePlaceOrderResult(payload)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pending {
		t.Fatal("DLP order should be live")
	}

	cancel := (&wire.CancelOrderPayload{OrderID: res.OrderID, AccountIdx: uint32(acctMaker)}).Encode()
	out, err = p.HandleInstruction(cancel)
	if err != nil {
		t.Fatal(err)
	}
	if status, _, _ := wire.DecodeStatus(out); status != wire.Ok {
		t.Fatalf("cancel status = %v", status)
	}
}

func TestHandlerRejectsUnknownDiscriminator(t *testing.T) {
	p, _ := newTestProgram(t)
	out, err := p.HandleInstruction([]byte{0xEE, 1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if status, _, _ := wire.DecodeStatus(out); status != wire.InvalidArgument {
		t.Fatalf("status = %v, want InvalidArgument", status)
	}
}

func TestHandlerCouncilGatesAdmin(t *testing.T) {
	p, _ := newTestProgram(t)
	member := xsign.NewCouncilKeyFromSeed([]byte("council-seed-0123456789abcdef012"))
	p.Council = &xsign.Council{Members: []*xsign.CouncilPubKey{member.PublicKey()}, Threshold: 1}

	// Unsigned halt bounces.
	if out, _ := p.HandleInstruction([]byte{wire.SlabHaltTrading}); out[0] != byte(wire.Unauthorized) {
		t.Fatalf("unsigned halt status = %d, want Unauthorized", out[0])
	}
	if p.Slab.Halted() {
		t.Fatal("unauthorized halt must not freeze the slab")
	}

	// A threshold aggregate over the admin message authorizes it.
	agg := xsign.AggregateShares([][]byte{member.Sign(p.adminMsg('h'))})
	ix := append([]byte{wire.SlabHaltTrading}, agg...)
	if out, _ := p.HandleInstruction(ix); out[0] != byte(wire.Ok) {
		t.Fatalf("signed halt status = %d, want Ok", out[0])
	}
	if !p.Slab.Halted() {
		t.Fatal("signed halt must freeze the slab")
	}
}

func TestHandlerHaltResumeRoundtrip(t *testing.T) {
	p, _ := newTestProgram(t)
	if out, _ := p.HandleInstruction([]byte{wire.SlabHaltTrading}); out[0] != byte(wire.Ok) {
		t.Fatalf("halt status = %d", out[0])
	}
	if !p.Slab.Halted() {
		t.Fatal("slab should be frozen")
	}
	// Non-admin instructions bounce while halted.
	ix := (&wire.UpdateFundingPayload{InstrumentIdx: 0, IndexPrice: px100}).Encode()
	if out, _ := p.HandleInstruction(ix); out[0] != byte(wire.Halted) {
		t.Fatalf("funding-while-halted status = %d, want Halted", out[0])
	}
	if out, _ := p.HandleInstruction([]byte{wire.SlabResumeTrading}); out[0] != byte(wire.Ok) {
		t.Fatalf("resume status = %d", out[0])
	}
	if p.Slab.Halted() {
		t.Fatal("slab should be live again")
	}
}
