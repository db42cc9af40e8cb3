// Package xsign carries the teacher's pkg/crypto signing tooling
// (ECDSA secp256k1 + EIP-712 typed data + BLS council multisig) forward
// as the ambient "instruction signing" layer spec.md §1 calls out as
// part of the opaque host environment ("signer verification"). Only
// the signing/verification side lives here — replay-nonce bookkeeping
// beyond the capability/escrow nonce already in spec.md §4.6 is the
// host chain's concern and stays out of scope.
package xsign

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer manages one secp256k1 key pair, identical in shape to the
// teacher's crypto.Signer — this system's account/slab/router
// identifiers are go-ethereum common.Hash/common.Address values, so the
// signing primitive carries over unchanged.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	address    common.Address
}

func GenerateKey() (*Signer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("xsign: generate key: %w", err)
	}
	return fromKey(privateKey)
}

func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("xsign: parse private key: %w", err)
	}
	return fromKey(privateKey)
}

func fromKey(privateKey *ecdsa.PrivateKey) (*Signer, error) {
	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("xsign: failed to cast public key to ECDSA")
	}
	return &Signer{
		privateKey: privateKey,
		publicKey:  publicKeyECDSA,
		address:    crypto.PubkeyToAddress(*publicKeyECDSA),
	}, nil
}

func (s *Signer) Address() common.Address { return s.address }

func (s *Signer) PrivateKeyHex() string { return fmt.Sprintf("%x", crypto.FromECDSA(s.privateKey)) }

// AccountID is the 32-byte arena-addressable identifier derived from
// this signer's address, left-padded the way go-ethereum's common.Hash
// pads a 20-byte address.
func (s *Signer) AccountID() [32]byte {
	return common.BytesToHash(s.address.Bytes())
}

// Sign signs a 32-byte digest, returning a 65-byte [R||S||V] signature.
func (s *Signer) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("xsign: hash must be 32 bytes, got %d", len(hash))
	}
	return crypto.Sign(hash, s.privateKey)
}

// VerifySignature checks that signature over hash was produced by
// address.
func VerifySignature(address common.Address, hash, signature []byte) bool {
	if len(signature) != 65 || len(hash) != 32 {
		return false
	}
	pub, err := crypto.Ecrecover(hash, signature)
	if err != nil {
		return false
	}
	pubkey, err := crypto.UnmarshalPubkey(pub)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pubkey) == address
}

// RecoverAddress recovers the signer's address from (hash, signature),
// the pure function form of verification spec.md §4.11 describes the
// host chain performing at the network edge.
func RecoverAddress(hash, signature []byte) (common.Address, error) {
	if len(signature) != 65 || len(hash) != 32 {
		return common.Address{}, fmt.Errorf("xsign: invalid hash/signature length")
	}
	pub, err := crypto.Ecrecover(hash, signature)
	if err != nil {
		return common.Address{}, err
	}
	pubkey, err := crypto.UnmarshalPubkey(pub)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}

// SignatureToRSV / RSVToSignature round-trip a 65-byte signature
// through its R, S and V components.
func SignatureToRSV(signature []byte) (r, s *big.Int, v uint8, err error) {
	if len(signature) != 65 {
		return nil, nil, 0, fmt.Errorf("xsign: invalid signature length: %d", len(signature))
	}
	return new(big.Int).SetBytes(signature[:32]), new(big.Int).SetBytes(signature[32:64]), signature[64], nil
}

func RSVToSignature(r, s *big.Int, v uint8) []byte {
	sig := make([]byte, 65)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = v
	return sig
}

// GenerateNonce produces a random replay-protection nonce for test
// harnesses driving signed instructions end to end.
func GenerateNonce() (uint64, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return 0, err
	}
	var n uint64
	for i, b := range buf {
		n |= uint64(b) << (8 * i)
	}
	return n, nil
}
