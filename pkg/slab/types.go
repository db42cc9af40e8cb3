// Package slab implements the single-account, fixed-size matching and
// risk engine: the arena-backed order book, the two-phase reserve/
// commit execution protocol, the anti-toxicity guards, and the risk
// and funding engine. One Slab value models one 10 MB account's worth
// of state, deserialized over a borrowed byte region for the duration
// of one instruction per the concurrency model — here that borrowing
// is simply "the caller holds *Slab for the call", since Go does not
// need an explicit byte-slice view to get the same single-writer
// guarantee the spec describes.
package slab

import (
	"github.com/slabdex/slabdex/pkg/arena"
	"github.com/slabdex/slabdex/pkg/book"
	"github.com/slabdex/slabdex/pkg/market"
)

type AccountIdx uint32

// Side re-exports book.Side so slab call sites don't need a second
// import just to spell Buy/Sell.
type Side = book.Side

const (
	Buy  = book.Buy
	Sell = book.Sell
)

// OrderState collapses onto the spec's {Live, Pending} for matching
// purposes, with a terminal Filled/Canceled used only for the
// freelist-return path — the teacher's OrderStatus enum shape
// (Open/PartiallyFilled/Filled/Cancelled/Rejected) adapted down to what
// an arena-resident order actually needs to track.
type OrderState uint8

const (
	OrderPending OrderState = iota
	OrderLive
	OrderFilled
	OrderCanceled
)

// MakerClass gates JIT Penalty eligibility.
type MakerClass uint8

const (
	Regular MakerClass = iota
	DLP                // designated liquidity provider: exempt from JIT Penalty
)

// TIF selects Reserve's partial-fill policy, per the spec's resolved
// design note that both allow-partial and fill-or-kill must be
// supported and chosen by the instruction's tif field.
type TIF uint8

const (
	AllowPartial TIF = iota
	FillOrKill
)

// Order is one resting (or pending) limit order, arena-addressed.
type Order struct {
	ID            uint64
	AccountIdx    AccountIdx
	InstrumentIdx uint16
	Side          book.Side
	Price         int64
	QtyOriginal   int64
	QtyRemaining  int64
	QtyReserved   int64
	MakerClass    MakerClass
	State         OrderState
	EligibleEpoch int64
	CreatedMs     int64

	// IMLocked is the initial margin locked behind the order's unfilled
	// remainder, released proportionally as it fills or is canceled.
	IMLocked int64
}

// ReservationState is the Hold lifecycle (§4.8).
type ReservationState uint8

const (
	Open ReservationState = iota
	Committed
	Canceled
	Expired
)

// Reservation is a Hold: a claim on specific maker liquidity, pending
// Commit or Cancel.
type Reservation struct {
	HoldID         uint64
	AccountIdx     AccountIdx
	InstrumentIdx  uint16
	Side           book.Side
	TIF            TIF
	RequestedQty   int64
	FilledQty      int64
	VWAPPrice      int64
	WorstPrice     int64
	MaxCharge      int64
	ExpiryMs       int64
	RouteID        uint64
	CommitmentHash [32]byte
	FirstSlice     arena.Handle
	State          ReservationState
}

// Slice is a claim by one reservation on one maker order; slices off a
// single reservation are threaded as a linked list via Next so a
// reservation's claims can be walked and released without a
// separately-allocated slice.
type Slice struct {
	ReservationIdx arena.Handle
	MakerOrderIdx  arena.Handle
	Qty            int64
	Price          int64
	Next           arena.Handle
}

// Position is per (account, instrument).
type Position struct {
	AccountIdx          AccountIdx
	InstrumentIdx       uint16
	NetQty              int64 // signed: + long, - short
	AvgEntryPrice       int64
	RealizedPnL         int64
	LastFundingSnapshot int64
}

// TradeRecord is one append-only (ring-buffer bounded) fill entry.
type TradeRecord struct {
	TS            int64
	InstrumentIdx uint16
	Side          book.Side
	Price         int64
	Qty           int64
	MakerOrder    arena.Handle
	TakerAccount  AccountIdx
}

// Instrument is the runtime, per-instrument state: the configuration
// descriptor from pkg/market plus the book and funding/mark state the
// slab header's instrument table tracks.
type Instrument struct {
	Market market.Market

	Book *book.Book

	MarkPrice     int64
	IndexPrice    int64
	CumFunding    int64
	LastFundingMs int64
	OpenInterest  int64
	BatchEpoch    int64
}
