// sign-order is a small operator utility: generate (or load) a
// secp256k1 key, EIP-712-sign a PlaceOrder and a Reserve payload, and
// print the wire frame plus signature a gateway would submit. It
// exists so integrators can verify their own signing against this
// module's exact hashes without standing up the full stack.
package main

import (
	"fmt"
	"math/big"
	"os"

	"github.com/slabdex/slabdex/pkg/wire"
	"github.com/slabdex/slabdex/pkg/xsign"
)

func main() {
	var signer *xsign.Signer
	var err error
	if key := os.Getenv("SIGNER_KEY"); key != "" {
		signer, err = xsign.FromPrivateKeyHex(key)
	} else {
		fmt.Println("Generating new keypair (set SIGNER_KEY to reuse one)...")
		signer, err = xsign.GenerateKey()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	nonce, err := xsign.GenerateNonce()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	e := xsign.NewEIP712Signer(xsign.DefaultDomain())

	// A resting ask: 1.0 @ 100 in the 1e6 fixed-point scale.
	order := &xsign.PlaceOrderTyped{
		InstrumentIdx: 0,
		Side:          2, // sell
		Price:         big.NewInt(100_000_000),
		Qty:           big.NewInt(1_000_000),
		TIF:           0,
		MakerClass:    0,
		Nonce:         new(big.Int).SetUint64(nonce),
		Deadline:      big.NewInt(0),
		Owner:         signer.Address(),
	}
	orderSig, err := e.SignPlaceOrder(signer, order)
	if err != nil {
		fmt.Printf("Error signing order: %v\n", err)
		os.Exit(1)
	}
	frame := (&wire.PlaceOrderPayload{
		InstrumentIdx: order.InstrumentIdx,
		Side:          order.Side,
		MakerClass:    order.MakerClass,
		Price:         order.Price.Int64(),
		Qty:           order.Qty.Int64(),
	}).Encode()
	fmt.Printf("PlaceOrder frame: 0x%x\n", frame)
	fmt.Printf("PlaceOrder signature: 0x%x\n\n", orderSig)

	// The matching taker-side reserve.
	reserve := &xsign.ReserveTyped{
		InstrumentIdx: 0,
		Side:          1, // buy
		Qty:           big.NewInt(1_000_000),
		LimitPrice:    big.NewInt(101_000_000),
		TTLMs:         big.NewInt(60_000),
		RouteID:       big.NewInt(1),
		Owner:         signer.Address(),
	}
	reserveSig, err := e.SignReserve(signer, reserve)
	if err != nil {
		fmt.Printf("Error signing reserve: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reserve signature: 0x%x\n", reserveSig)

	hash, err := e.HashReserve(reserve)
	if err != nil {
		fmt.Printf("Error hashing reserve: %v\n", err)
		os.Exit(1)
	}
	recovered, err := xsign.RecoverAddress(hash, reserveSig)
	if err != nil {
		fmt.Printf("Error recovering signer: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Recovered signer: %s (match=%v)\n", recovered.Hex(), recovered == signer.Address())
}
