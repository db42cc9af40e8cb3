package wire

import (
	"encoding/binary"
	"fmt"
)

// ReservePayload is the fixed 72-byte (1 discriminator + 71 payload)
// wire encoding of a Reserve instruction.
type ReservePayload struct {
	AccountIdx     uint32
	InstrumentIdx  uint16
	Side           uint8
	Qty            int64
	LimitPx        int64
	TTLMs          uint64
	CommitmentHash [32]byte
	RouteID        uint64
}

const reservePayloadLen = 1 + 4 + 2 + 1 + 8 + 8 + 8 + 32 + 8 // 72

// Encode writes the Reserve instruction including its discriminator
// byte as the first byte.
func (p *ReservePayload) Encode() []byte {
	buf := make([]byte, reservePayloadLen)
	buf[0] = SlabAdapterLiquidityReserveDiscriminator
	o := 1
	binary.LittleEndian.PutUint32(buf[o:], p.AccountIdx)
	o += 4
	binary.LittleEndian.PutUint16(buf[o:], p.InstrumentIdx)
	o += 2
	buf[o] = p.Side
	o += 1
	binary.LittleEndian.PutUint64(buf[o:], uint64(p.Qty))
	o += 8
	binary.LittleEndian.PutUint64(buf[o:], uint64(p.LimitPx))
	o += 8
	binary.LittleEndian.PutUint64(buf[o:], p.TTLMs)
	o += 8
	copy(buf[o:], p.CommitmentHash[:])
	o += 32
	binary.LittleEndian.PutUint64(buf[o:], p.RouteID)
	return buf
}

// DecodeReservePayload parses a wire-encoded Reserve instruction,
// including validating the leading discriminator byte.
func DecodeReservePayload(buf []byte) (*ReservePayload, error) {
	if len(buf) != reservePayloadLen {
		return nil, fmt.Errorf("wire: reserve payload must be %d bytes, got %d", reservePayloadLen, len(buf))
	}
	if buf[0] != SlabAdapterLiquidityReserveDiscriminator {
		return nil, fmt.Errorf("wire: reserve discriminator mismatch: got %d", buf[0])
	}
	p := &ReservePayload{}
	o := 1
	p.AccountIdx = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	p.InstrumentIdx = binary.LittleEndian.Uint16(buf[o:])
	o += 2
	p.Side = buf[o]
	o += 1
	p.Qty = int64(binary.LittleEndian.Uint64(buf[o:]))
	o += 8
	p.LimitPx = int64(binary.LittleEndian.Uint64(buf[o:]))
	o += 8
	p.TTLMs = binary.LittleEndian.Uint64(buf[o:])
	o += 8
	copy(p.CommitmentHash[:], buf[o:o+32])
	o += 32
	p.RouteID = binary.LittleEndian.Uint64(buf[o:])
	return p, nil
}

// SlabAdapterLiquidityReserveDiscriminator is the discriminator Reserve
// is carried under on the wire. Reserve is not itself a top-level slab
// discriminator in §6's table (Reserve/Commit/Cancel are invoked
// program-to-program by the router, never submitted directly by a
// client) — it reuses the AdapterLiquidity slot, the discriminator the
// spec allocates to the matcher-variant quote/reserve/commit/cancel
// capability set described in the design notes.
const SlabAdapterLiquidityReserveDiscriminator = SlabAdapterLiquidity

// CommitPayload is the fixed 17-byte (1 discriminator + 16 payload)
// wire encoding of a Commit instruction.
type CommitPayload struct {
	HoldID uint64
	NowTS  uint64
}

const commitPayloadLen = 1 + 8 + 8 // 17

func (p *CommitPayload) Encode() []byte {
	buf := make([]byte, commitPayloadLen)
	buf[0] = SlabCommitFill
	binary.LittleEndian.PutUint64(buf[1:], p.HoldID)
	binary.LittleEndian.PutUint64(buf[9:], p.NowTS)
	return buf
}

func DecodeCommitPayload(buf []byte) (*CommitPayload, error) {
	if len(buf) != commitPayloadLen {
		return nil, fmt.Errorf("wire: commit payload must be %d bytes, got %d", commitPayloadLen, len(buf))
	}
	if buf[0] != SlabCommitFill {
		return nil, fmt.Errorf("wire: commit discriminator mismatch: got %d", buf[0])
	}
	return &CommitPayload{
		HoldID: binary.LittleEndian.Uint64(buf[1:9]),
		NowTS:  binary.LittleEndian.Uint64(buf[9:17]),
	}, nil
}

// CancelPayload is the fixed 9-byte (1 discriminator + 8 payload) wire
// encoding of a reservation Cancel instruction. This is distinct from
// CancelOrder (discriminator 4), which cancels a resting book order.
type CancelPayload struct {
	HoldID uint64
}

const cancelPayloadLen = 1 + 8 // 9

// cancelReserveDiscriminator reuses the AdapterLiquidity byte itself;
// like Reserve, reservation-Cancel is a program-to-program call, not a
// client-facing top-level instruction, so it is encoded under the same
// quote/reserve/commit/cancel capability set rather than a distinct
// top-level discriminator byte.
const cancelReserveDiscriminator = SlabAdapterLiquidity

func (p *CancelPayload) Encode() []byte {
	buf := make([]byte, cancelPayloadLen)
	buf[0] = cancelReserveDiscriminator
	binary.LittleEndian.PutUint64(buf[1:], p.HoldID)
	return buf
}

func DecodeCancelPayload(buf []byte) (*CancelPayload, error) {
	if len(buf) != cancelPayloadLen {
		return nil, fmt.Errorf("wire: cancel payload must be %d bytes, got %d", cancelPayloadLen, len(buf))
	}
	if buf[0] != cancelReserveDiscriminator {
		return nil, fmt.Errorf("wire: cancel discriminator mismatch: got %d", buf[0])
	}
	return &CancelPayload{HoldID: binary.LittleEndian.Uint64(buf[1:9])}, nil
}
