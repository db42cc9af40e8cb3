package xsign

import (
	bls "github.com/cloudflare/circl/sign/bls"
)

// scheme pins the BLS signature variant (keys in G1, signatures in
// G2), the same choice the teacher's pkg/crypto/bls.go makes.
type scheme = bls.KeyG1SigG2

// CouncilPubKey is the exported member-key type callers hold when
// assembling a Council.
type CouncilPubKey = bls.PublicKey[scheme]

// CouncilKey is one council member's BLS key pair. A slab's authority
// and a router's seat list (RouterSeatInit, §6) are verified against
// an aggregate of these rather than a single ECDSA key, so that
// HaltTrading/ResumeTrading and seat changes require a threshold of
// the council rather than one operator's key.
type CouncilKey struct {
	sk *bls.PrivateKey[scheme]
	pk *bls.PublicKey[scheme]
}

// NewCouncilKeyFromSeed derives a deterministic council key from seed,
// for test harnesses that need reproducible council membership.
func NewCouncilKeyFromSeed(seed []byte) *CouncilKey {
	sk, _ := bls.KeyGen[scheme](seed, nil, nil)
	return &CouncilKey{sk: sk, pk: sk.PublicKey()}
}

func (k *CouncilKey) PublicKey() *bls.PublicKey[scheme] { return k.pk }

func (k *CouncilKey) Sign(msg []byte) []byte { return bls.Sign(k.sk, msg) }

// VerifyShare checks one council member's signature over msg.
func VerifyShare(pk *bls.PublicKey[scheme], sig, msg []byte) bool {
	return bls.Verify(pk, msg, bls.Signature(sig))
}

// AggregateShares combines per-member signatures over the same message
// into one aggregate signature, the BLS analogue of collecting a
// threshold of ECDSA signatures without needing every member's
// signature to be individually re-verified downstream.
func AggregateShares(shares [][]byte) []byte {
	sigs := make([]bls.Signature, 0, len(shares))
	for _, sh := range shares {
		if len(sh) == 0 {
			continue
		}
		sigs = append(sigs, bls.Signature(sh))
	}
	agg, err := bls.Aggregate(bls.G1{}, sigs)
	if err != nil {
		return nil
	}
	return agg
}

// Council is a fixed authority set plus the minimum number of member
// signatures required to authorize an admin action.
type Council struct {
	Members   []*bls.PublicKey[scheme]
	Threshold int
}

// VerifyAggregate reports whether aggSig is a valid aggregate
// signature over msg by the given signers, and refuses any signer set
// smaller than c.Threshold. It does not check that the signers are
// members of c.Members; the slab and router handlers pass c.Members
// itself as the signer set.
func (c *Council) VerifyAggregate(signers []*bls.PublicKey[scheme], msg, aggSig []byte) bool {
	if len(signers) < c.Threshold {
		return false
	}
	return bls.VerifyAggregate(signers, [][]byte{msg}, bls.Signature(aggSig))
}
