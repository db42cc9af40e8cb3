package slab

import (
	"go.uber.org/zap"

	"github.com/slabdex/slabdex/pkg/arena"
	"github.com/slabdex/slabdex/pkg/book"
	"github.com/slabdex/slabdex/pkg/logx"
	"github.com/slabdex/slabdex/pkg/market"
	"github.com/slabdex/slabdex/pkg/wire"
)

// Default arena capacities. These are the "fixed-size" budgets every
// Reserve/PlaceOrder/Commit call is bounded by; ArenaFull is a normal,
// transient, retry-after-others-release outcome, never a panic.
const (
	DefaultOrderCapacity       = 8192
	DefaultReservationCapacity = 2048
	DefaultSliceCapacity       = 16384
	DefaultPositionCapacity    = 4096
	DefaultTradeLogCapacity    = 4096

	// MaxInstruments mirrors the header's fixed 16-entry instrument table.
	MaxInstruments = 16

	expirySweepBatch = 16 // K: bounded reservations reclaimed per call

	// ReserveRateLimit bounds how many Reserve calls one account may
	// issue per instrument per batch epoch; beyond it the call fails
	// RateLimited and the caller retries next epoch.
	ReserveRateLimit = 128
)

// Header mirrors the slab account's fixed 256-byte header (§6):
// magic, version, authority, router, sequence counter, freeze flag.
type Header struct {
	Magic        uint32
	Version      uint16
	Authority    [32]byte
	Router       [32]byte
	Seq          uint64
	NowCache     int64
	GlobalFreeze bool
}

const SlabMagic uint32 = 0x50455243

type posKey struct {
	account    AccountIdx
	instrument uint16
}

type argKey struct {
	account    AccountIdx
	instrument uint16
}

type argEntry struct {
	epoch int64
	side  Side
}

type rateEntry struct {
	epoch int64
	count int64
}

// Slab is the in-memory, deserialized view of one market's fixed
// account. It owns five arenas (orders, reservations, slices,
// positions, trade log) plus per-instrument book/funding state.
type Slab struct {
	Header Header

	Instruments [MaxInstruments]*Instrument

	Orders       *arena.Arena[Order]
	Reservations *arena.Arena[Reservation]
	Slices       *arena.Arena[Slice]
	Positions    *arena.Arena[Position]

	positionIndex map[posKey]arena.Handle
	argLast       map[argKey]argEntry
	holdIndex     map[uint64]arena.Handle
	orderIndex    map[uint64]arena.Handle

	// cash is the per-account collateral ledger PlaceOrder's margin
	// check and the risk engine read. Deposits/withdrawals land here via
	// the router's liquidity path; fills themselves move positions, not
	// cash (losses and gains settle through realized PnL on close).
	cash map[AccountIdx]int64

	// orderIM tracks initial margin locked behind each account's
	// resting orders, the slab-side analogue of the teacher account
	// manager's LockCollateral.
	orderIM map[AccountIdx]int64

	reserveRate map[argKey]rateEntry

	tradeLog    []TradeRecord
	tradeHead   int // next write position (ring buffer)
	tradeFilled bool

	expiryCursor int32 // round-robin slot index for the lazy expiry sweep

	InsuranceFund int64

	log *zap.Logger
}

// Config bundles construction-time sizing; zero values fall back to
// the Default* constants.
type Config struct {
	OrderCapacity       int
	ReservationCapacity int
	SliceCapacity       int
	PositionCapacity    int
	TradeLogCapacity    int
	Authority           [32]byte
	Router              [32]byte
	Logger              *zap.Logger
}

func New(cfg Config) *Slab {
	if cfg.OrderCapacity == 0 {
		cfg.OrderCapacity = DefaultOrderCapacity
	}
	if cfg.ReservationCapacity == 0 {
		cfg.ReservationCapacity = DefaultReservationCapacity
	}
	if cfg.SliceCapacity == 0 {
		cfg.SliceCapacity = DefaultSliceCapacity
	}
	if cfg.PositionCapacity == 0 {
		cfg.PositionCapacity = DefaultPositionCapacity
	}
	if cfg.TradeLogCapacity == 0 {
		cfg.TradeLogCapacity = DefaultTradeLogCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = logx.Nop()
	}

	return &Slab{
		Header: Header{
			Magic:     SlabMagic,
			Version:   1,
			Authority: cfg.Authority,
			Router:    cfg.Router,
		},
		Orders:        arena.New[Order](cfg.OrderCapacity),
		Reservations:  arena.New[Reservation](cfg.ReservationCapacity),
		Slices:        arena.New[Slice](cfg.SliceCapacity),
		Positions:     arena.New[Position](cfg.PositionCapacity),
		positionIndex: make(map[posKey]arena.Handle),
		argLast:       make(map[argKey]argEntry),
		holdIndex:     make(map[uint64]arena.Handle),
		orderIndex:    make(map[uint64]arena.Handle),
		cash:          make(map[AccountIdx]int64),
		orderIM:       make(map[AccountIdx]int64),
		reserveRate:   make(map[argKey]rateEntry),
		tradeLog:      make([]TradeRecord, cfg.TradeLogCapacity),
		log:           cfg.Logger,
	}
}

// AddInstrument installs a market configuration at idx (must be free
// and < MaxInstruments).
func (s *Slab) AddInstrument(idx uint16, m market.Market) error {
	if int(idx) >= MaxInstruments {
		return wire.New(wire.InvalidArgument, "instrument index out of range")
	}
	if s.Instruments[idx] != nil {
		return wire.New(wire.InvalidArgument, "instrument slot already initialized")
	}
	if err := m.Validate(); err != nil {
		return wire.New(wire.InvalidArgument, err.Error())
	}
	s.Instruments[idx] = &Instrument{
		Market:     m,
		Book:       newBook(),
		MarkPrice:  0,
		IndexPrice: 0,
	}
	return nil
}

func newBook() *book.Book { return book.New() }

func (s *Slab) instrument(idx uint16) (*Instrument, error) {
	if int(idx) >= MaxInstruments || s.Instruments[idx] == nil {
		return nil, wire.New(wire.InvalidArgument, "unknown instrument")
	}
	return s.Instruments[idx], nil
}

// Halted reports whether the slab is frozen (global_freeze); every
// non-admin entry point must check this first.
func (s *Slab) Halted() bool { return s.Header.GlobalFreeze }

// Halt sets global_freeze, halting all non-admin writes. Called when an
// invariant violation is detected (§4.9) or via HaltTrading by the
// authority.
func (s *Slab) Halt() { s.Header.GlobalFreeze = true }

// Resume clears global_freeze. Only the authority may call this, after
// external reconciliation; authorization is enforced by the caller
// (pkg/xsign council verification), not by Slab itself.
func (s *Slab) Resume() { s.Header.GlobalFreeze = false }

// NextOrderID assigns a monotonic id from the header's sequence
// counter, the same role the teacher's slab.seq increment plays for
// order_id assignment in PlaceOrder.
func (s *Slab) NextOrderID() uint64 {
	s.Header.Seq++
	return s.Header.Seq
}

func (s *Slab) getPosition(acct AccountIdx, instrument uint16) (arena.Handle, *Position, error) {
	key := posKey{acct, instrument}
	if h, ok := s.positionIndex[key]; ok {
		p, err := s.Positions.Get(h)
		if err == nil {
			return h, p, nil
		}
		// stale index entry pointing at a freed slot: fall through and
		// reallocate, which should not happen under correct bookkeeping
		// but is handled defensively since positionIndex is auxiliary.
		delete(s.positionIndex, key)
	}
	h, p, err := s.Positions.Alloc()
	if err != nil {
		return arena.Handle{}, nil, wire.New(wire.ArenaFull, "position arena exhausted")
	}
	p.AccountIdx = acct
	p.InstrumentIdx = instrument
	s.positionIndex[key] = h
	return h, p, nil
}

// closeFlatPositionIfEmpty frees any position slot whose net_qty has
// returned to zero, per the data model's "destroyed on flat close".
// Realized PnL (including accrued funding) settles into the cash
// ledger as the slot is destroyed so nothing is lost with the slot.
func (s *Slab) closeFlatPositionIfEmpty(acct AccountIdx, instrument uint16, h arena.Handle, p *Position) {
	if p.NetQty != 0 {
		return
	}
	s.cash[acct] += p.RealizedPnL
	delete(s.positionIndex, posKey{acct, instrument})
	_ = s.Positions.Free(h)
}

// Credit adds (or, negative, removes) collateral for an account. The
// router's liquidity path is the normal caller; tests seed balances
// directly. Withdrawals that would leave the account below its initial
// margin requirement are refused.
func (s *Slab) Credit(acct AccountIdx, amount int64) error {
	if amount < 0 {
		free := s.FreeCollateral(acct)
		if free+amount < 0 {
			return wire.New(wire.InsufficientCollateral, "withdrawal exceeds free collateral")
		}
	}
	s.cash[acct] += amount
	return nil
}

// Cash returns the account's raw cash balance (excluding any PnL still
// held inside open positions).
func (s *Slab) Cash(acct AccountIdx) int64 { return s.cash[acct] }

// recordTrade appends to the ring buffer, overwriting the oldest entry
// once full.
func (s *Slab) recordTrade(t TradeRecord) {
	s.tradeLog[s.tradeHead] = t
	s.tradeHead = (s.tradeHead + 1) % len(s.tradeLog)
	if s.tradeHead == 0 {
		s.tradeFilled = true
	}
}

// TradeLog returns the trade log's live entries, oldest first.
func (s *Slab) TradeLog() []TradeRecord {
	if !s.tradeFilled {
		return append([]TradeRecord(nil), s.tradeLog[:s.tradeHead]...)
	}
	out := make([]TradeRecord, 0, len(s.tradeLog))
	out = append(out, s.tradeLog[s.tradeHead:]...)
	out = append(out, s.tradeLog[:s.tradeHead]...)
	return out
}
