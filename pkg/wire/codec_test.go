package wire

import (
	"bytes"
	"testing"
)

func TestReservePayloadRoundtrip(t *testing.T) {
	in := &ReservePayload{
		AccountIdx:    7,
		InstrumentIdx: 3,
		Side:          1,
		Qty:           1_000_000,
		LimitPx:       101_000_000,
		TTLMs:         60_000,
		RouteID:       42,
	}
	copy(in.CommitmentHash[:], bytes.Repeat([]byte{0xAB}, 32))

	buf := in.Encode()
	if len(buf) != 72 {
		t.Fatalf("reserve frame = %d bytes, want 72", len(buf))
	}
	out, err := DecodeReservePayload(buf)
	if err != nil {
		t.Fatal(err)
	}
	if *out != *in {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", out, in)
	}
}

func TestCommitPayloadRoundtrip(t *testing.T) {
	in := &CommitPayload{HoldID: 99, NowTS: 1_700_000_000_000}
	buf := in.Encode()
	if len(buf) != 17 {
		t.Fatalf("commit frame = %d bytes, want 17", len(buf))
	}
	out, err := DecodeCommitPayload(buf)
	if err != nil {
		t.Fatal(err)
	}
	if *out != *in {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", out, in)
	}
}

func TestDecodeRejectsWrongDiscriminator(t *testing.T) {
	buf := (&CancelPayload{HoldID: 1}).Encode()
	buf[0] = SlabPlaceOrder
	if _, err := DecodeCancelPayload(buf); err == nil {
		t.Fatal("discriminator mismatch must be rejected")
	}

	po := (&PlaceOrderPayload{AccountIdx: 1, Price: 100, Qty: 100}).Encode()
	po[0] = 2 // the source's alternate PlaceOrder byte is not accepted
	if _, err := DecodePlaceOrderPayload(po); err == nil {
		t.Fatal("alternate place-order discriminator must be rejected")
	}
}

func TestDecodeRejectsTruncatedFrames(t *testing.T) {
	full := (&PlaceOrderPayload{AccountIdx: 1, Price: 100, Qty: 100}).Encode()
	if _, err := DecodePlaceOrderPayload(full[:len(full)-1]); err == nil {
		t.Fatal("short frame must be rejected")
	}
	if _, err := DecodeReservePayload(nil); err == nil {
		t.Fatal("empty frame must be rejected")
	}
}

func TestStatusFraming(t *testing.T) {
	res := &ReserveResult{HoldID: 5, VWAPPrice: 100_000_000, MaxCharge: 100_050_000, FilledQty: 1_000_000, ExpiryMs: 1}
	status, payload, err := DecodeStatus(res.Encode())
	if err != nil || status != Ok {
		t.Fatalf("status = %v (%v)", status, err)
	}
	out, err := DecodeReserveResult(payload)
	if err != nil {
		t.Fatal(err)
	}
	if *out != *res {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", out, res)
	}

	if s, _, _ := DecodeStatus(EncodeStatus(KillBandBreached)); s != KillBandBreached {
		t.Fatalf("bare status roundtrip = %v", s)
	}
}

func TestStatusOfFallsBackToInvariantViolation(t *testing.T) {
	if StatusOf(nil) != Ok {
		t.Fatal("nil error must map to Ok")
	}
	if StatusOf(New(Expired, "x")) != Expired {
		t.Fatal("typed error must unwrap")
	}
	if StatusOf(bytes.ErrTooLarge) != InvariantViolation {
		t.Fatal("foreign error must map to InvariantViolation")
	}
}
