package wire

import (
	"encoding/binary"
	"fmt"
)

// PlaceOrderPayload is the fixed 25-byte wire encoding of a PlaceOrder
// instruction (discriminator 3).
type PlaceOrderPayload struct {
	AccountIdx    uint32
	InstrumentIdx uint16
	Side          uint8
	MakerClass    uint8
	Price         int64
	Qty           int64
}

const placeOrderPayloadLen = 1 + 4 + 2 + 1 + 1 + 8 + 8 // 25

func (p *PlaceOrderPayload) Encode() []byte {
	buf := make([]byte, placeOrderPayloadLen)
	buf[0] = SlabPlaceOrder
	o := 1
	binary.LittleEndian.PutUint32(buf[o:], p.AccountIdx)
	o += 4
	binary.LittleEndian.PutUint16(buf[o:], p.InstrumentIdx)
	o += 2
	buf[o] = p.Side
	o++
	buf[o] = p.MakerClass
	o++
	binary.LittleEndian.PutUint64(buf[o:], uint64(p.Price))
	o += 8
	binary.LittleEndian.PutUint64(buf[o:], uint64(p.Qty))
	return buf
}

func DecodePlaceOrderPayload(buf []byte) (*PlaceOrderPayload, error) {
	if len(buf) != placeOrderPayloadLen {
		return nil, fmt.Errorf("wire: place-order payload must be %d bytes, got %d", placeOrderPayloadLen, len(buf))
	}
	if buf[0] != SlabPlaceOrder {
		return nil, fmt.Errorf("wire: place-order discriminator mismatch: got %d", buf[0])
	}
	p := &PlaceOrderPayload{}
	o := 1
	p.AccountIdx = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	p.InstrumentIdx = binary.LittleEndian.Uint16(buf[o:])
	o += 2
	p.Side = buf[o]
	o++
	p.MakerClass = buf[o]
	o++
	p.Price = int64(binary.LittleEndian.Uint64(buf[o:]))
	o += 8
	p.Qty = int64(binary.LittleEndian.Uint64(buf[o:]))
	return p, nil
}

// CancelOrderPayload is the fixed 13-byte wire encoding of a
// CancelOrder instruction (discriminator 4) — cancels a resting book
// order, not a reservation.
type CancelOrderPayload struct {
	OrderID    uint64
	AccountIdx uint32
}

const cancelOrderPayloadLen = 1 + 8 + 4 // 13

func (p *CancelOrderPayload) Encode() []byte {
	buf := make([]byte, cancelOrderPayloadLen)
	buf[0] = SlabCancelOrder
	binary.LittleEndian.PutUint64(buf[1:], p.OrderID)
	binary.LittleEndian.PutUint32(buf[9:], p.AccountIdx)
	return buf
}

func DecodeCancelOrderPayload(buf []byte) (*CancelOrderPayload, error) {
	if len(buf) != cancelOrderPayloadLen {
		return nil, fmt.Errorf("wire: cancel-order payload must be %d bytes, got %d", cancelOrderPayloadLen, len(buf))
	}
	if buf[0] != SlabCancelOrder {
		return nil, fmt.Errorf("wire: cancel-order discriminator mismatch: got %d", buf[0])
	}
	return &CancelOrderPayload{
		OrderID:    binary.LittleEndian.Uint64(buf[1:9]),
		AccountIdx: binary.LittleEndian.Uint32(buf[9:13]),
	}, nil
}

// ModifyOrderPayload is the fixed 29-byte wire encoding of a
// ModifyOrder instruction (discriminator 8).
type ModifyOrderPayload struct {
	OrderID    uint64
	AccountIdx uint32
	NewPrice   int64
	NewQty     int64
}

const modifyOrderPayloadLen = 1 + 8 + 4 + 8 + 8 // 29

func (p *ModifyOrderPayload) Encode() []byte {
	buf := make([]byte, modifyOrderPayloadLen)
	buf[0] = SlabModifyOrder
	binary.LittleEndian.PutUint64(buf[1:], p.OrderID)
	binary.LittleEndian.PutUint32(buf[9:], p.AccountIdx)
	binary.LittleEndian.PutUint64(buf[13:], uint64(p.NewPrice))
	binary.LittleEndian.PutUint64(buf[21:], uint64(p.NewQty))
	return buf
}

func DecodeModifyOrderPayload(buf []byte) (*ModifyOrderPayload, error) {
	if len(buf) != modifyOrderPayloadLen {
		return nil, fmt.Errorf("wire: modify-order payload must be %d bytes, got %d", modifyOrderPayloadLen, len(buf))
	}
	if buf[0] != SlabModifyOrder {
		return nil, fmt.Errorf("wire: modify-order discriminator mismatch: got %d", buf[0])
	}
	return &ModifyOrderPayload{
		OrderID:    binary.LittleEndian.Uint64(buf[1:9]),
		AccountIdx: binary.LittleEndian.Uint32(buf[9:13]),
		NewPrice:   int64(binary.LittleEndian.Uint64(buf[13:21])),
		NewQty:     int64(binary.LittleEndian.Uint64(buf[21:29])),
	}, nil
}

// UpdateFundingPayload is the fixed 19-byte wire encoding of an
// UpdateFunding instruction (discriminator 5): a fresh index price and
// a cumulative-funding delta per unit of position.
type UpdateFundingPayload struct {
	InstrumentIdx uint16
	IndexPrice    int64
	FundingDelta  int64
}

const updateFundingPayloadLen = 1 + 2 + 8 + 8 // 19

func (p *UpdateFundingPayload) Encode() []byte {
	buf := make([]byte, updateFundingPayloadLen)
	buf[0] = SlabUpdateFunding
	binary.LittleEndian.PutUint16(buf[1:], p.InstrumentIdx)
	binary.LittleEndian.PutUint64(buf[3:], uint64(p.IndexPrice))
	binary.LittleEndian.PutUint64(buf[11:], uint64(p.FundingDelta))
	return buf
}

func DecodeUpdateFundingPayload(buf []byte) (*UpdateFundingPayload, error) {
	if len(buf) != updateFundingPayloadLen {
		return nil, fmt.Errorf("wire: update-funding payload must be %d bytes, got %d", updateFundingPayloadLen, len(buf))
	}
	if buf[0] != SlabUpdateFunding {
		return nil, fmt.Errorf("wire: update-funding discriminator mismatch: got %d", buf[0])
	}
	return &UpdateFundingPayload{
		InstrumentIdx: binary.LittleEndian.Uint16(buf[1:3]),
		IndexPrice:    int64(binary.LittleEndian.Uint64(buf[3:11])),
		FundingDelta:  int64(binary.LittleEndian.Uint64(buf[11:19])),
	}, nil
}
