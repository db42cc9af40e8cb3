package wire

import (
	"encoding/binary"
	"fmt"
)

// Router payloads. The router's client-facing money movement uses
// fixed-size frames like the slab's: discriminator, then 32-byte
// identifiers, then little-endian amounts.

// RouterMovePayload encodes Deposit and Withdraw (discriminators 3, 4):
// user, mint, amount.
type RouterMovePayload struct {
	Discriminator uint8
	User          [32]byte
	Mint          [32]byte
	Amount        int64
}

const routerMovePayloadLen = 1 + 32 + 32 + 8 // 73

func (p *RouterMovePayload) Encode() []byte {
	buf := make([]byte, routerMovePayloadLen)
	buf[0] = p.Discriminator
	copy(buf[1:33], p.User[:])
	copy(buf[33:65], p.Mint[:])
	binary.LittleEndian.PutUint64(buf[65:], uint64(p.Amount))
	return buf
}

func DecodeRouterMovePayload(buf []byte) (*RouterMovePayload, error) {
	if len(buf) != routerMovePayloadLen {
		return nil, fmt.Errorf("wire: router move payload must be %d bytes, got %d", routerMovePayloadLen, len(buf))
	}
	if buf[0] != RouterDeposit && buf[0] != RouterWithdraw {
		return nil, fmt.Errorf("wire: router move discriminator mismatch: got %d", buf[0])
	}
	p := &RouterMovePayload{Discriminator: buf[0]}
	copy(p.User[:], buf[1:33])
	copy(p.Mint[:], buf[33:65])
	p.Amount = int64(binary.LittleEndian.Uint64(buf[65:73]))
	return p, nil
}

// RouterInitPayload encodes InitializePortfolio and InitializeVault
// (discriminators 1, 2): one 32-byte identifier, user or mint.
type RouterInitPayload struct {
	Discriminator uint8
	ID            [32]byte
}

const routerInitPayloadLen = 1 + 32 // 33

func (p *RouterInitPayload) Encode() []byte {
	buf := make([]byte, routerInitPayloadLen)
	buf[0] = p.Discriminator
	copy(buf[1:], p.ID[:])
	return buf
}

func DecodeRouterInitPayload(buf []byte) (*RouterInitPayload, error) {
	if len(buf) != routerInitPayloadLen {
		return nil, fmt.Errorf("wire: router init payload must be %d bytes, got %d", routerInitPayloadLen, len(buf))
	}
	if buf[0] != RouterInitializePortfolio && buf[0] != RouterInitializeVault {
		return nil, fmt.Errorf("wire: router init discriminator mismatch: got %d", buf[0])
	}
	p := &RouterInitPayload{Discriminator: buf[0]}
	copy(p.ID[:], buf[1:])
	return p, nil
}

// RouterSeatInitPayload encodes RouterSeatInit (discriminator 13):
// user, slab, and the user's dense account index on that slab.
type RouterSeatInitPayload struct {
	User       [32]byte
	Slab       [32]byte
	AccountIdx uint32
}

const routerSeatInitPayloadLen = 1 + 32 + 32 + 4 // 69

func (p *RouterSeatInitPayload) Encode() []byte {
	buf := make([]byte, routerSeatInitPayloadLen)
	buf[0] = RouterSeatInit
	copy(buf[1:33], p.User[:])
	copy(buf[33:65], p.Slab[:])
	binary.LittleEndian.PutUint32(buf[65:], p.AccountIdx)
	return buf
}

func DecodeRouterSeatInitPayload(buf []byte) (*RouterSeatInitPayload, error) {
	if len(buf) != routerSeatInitPayloadLen {
		return nil, fmt.Errorf("wire: seat init payload must be %d bytes, got %d", routerSeatInitPayloadLen, len(buf))
	}
	if buf[0] != RouterSeatInit {
		return nil, fmt.Errorf("wire: seat init discriminator mismatch: got %d", buf[0])
	}
	p := &RouterSeatInitPayload{}
	copy(p.User[:], buf[1:33])
	copy(p.Slab[:], buf[33:65])
	p.AccountIdx = binary.LittleEndian.Uint32(buf[65:69])
	return p, nil
}
