package xsign

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}
	if len(signer.PrivateKeyHex()) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(signer.PrivateKeyHex()))
	}
}

func TestFromPrivateKeyHexRoundtrip(t *testing.T) {
	signer1, _ := GenerateKey()
	signer2, err := FromPrivateKeyHex(signer1.PrivateKeyHex())
	if err != nil {
		t.Fatalf("failed to load key: %v", err)
	}
	if signer2.Address() != signer1.Address() {
		t.Errorf("address = %s, want %s", signer2.Address().Hex(), signer1.Address().Hex())
	}
}

func TestReserveSignRecover(t *testing.T) {
	signer, _ := GenerateKey()
	e := NewEIP712Signer(DefaultDomain())

	r := &ReserveTyped{
		InstrumentIdx: 0,
		Side:          1,
		Qty:           big.NewInt(1_000_000),
		LimitPrice:    big.NewInt(101_000_000),
		TTLMs:         big.NewInt(60_000),
		RouteID:       big.NewInt(7),
		Owner:         signer.Address(),
	}
	sig, err := e.SignReserve(signer, r)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	hash, err := e.HashReserve(r)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	recovered, err := RecoverAddress(hash, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered %s, want %s", recovered.Hex(), signer.Address().Hex())
	}
	if !VerifySignature(signer.Address(), hash, sig) {
		t.Error("signature must verify against the signer's address")
	}

	// A different payload must not verify under the same signature.
	r.Qty = big.NewInt(2_000_000)
	hash2, _ := e.HashReserve(r)
	if VerifySignature(signer.Address(), hash2, sig) {
		t.Error("tampered payload must not verify")
	}
}

func TestCouncilThreshold(t *testing.T) {
	k1 := NewCouncilKeyFromSeed([]byte("seed-one-0123456789abcdef0123456"))
	k2 := NewCouncilKeyFromSeed([]byte("seed-two-0123456789abcdef0123456"))
	msg := []byte("slab-admin:h")

	c := &Council{Members: []*CouncilPubKey{k1.PublicKey()}, Threshold: 1}
	agg := AggregateShares([][]byte{k1.Sign(msg)})
	if !c.VerifyAggregate(c.Members, msg, agg) {
		t.Fatal("threshold aggregate must verify")
	}
	if c.VerifyAggregate(c.Members, []byte("other message"), agg) {
		t.Fatal("aggregate over a different message must be rejected")
	}

	// A two-member council refuses a single-signer set before touching
	// the curve.
	wide := &Council{Members: []*CouncilPubKey{k1.PublicKey(), k2.PublicKey()}, Threshold: 2}
	if wide.VerifyAggregate(wide.Members[:1], msg, agg) {
		t.Fatal("sub-threshold signer set must be rejected")
	}
}
