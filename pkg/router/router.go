package router

import (
	"go.uber.org/zap"

	"github.com/slabdex/slabdex/pkg/host"
	"github.com/slabdex/slabdex/pkg/logx"
	"github.com/slabdex/slabdex/pkg/slab"
	"github.com/slabdex/slabdex/pkg/wire"
	"github.com/slabdex/slabdex/pkg/xsign"
)

type escrowKey struct {
	slab [32]byte
	user [32]byte
	mint [32]byte
}

type seatKey struct {
	user [32]byte
	slab [32]byte
}

// Router is the control-plane aggregate: portfolios, vaults, escrows,
// seats, live routes, and the insurance fund. One Router value models
// one router account's worth of state, with the same single-writer-
// per-instruction ownership discipline a Slab has.
type Router struct {
	ID [32]byte

	Host    host.Host
	Council *xsign.Council

	portfolios map[[32]byte]*Portfolio
	vaults     map[[32]byte]*Vault
	escrows    map[escrowKey]*Escrow
	seats      map[seatKey]slab.AccountIdx
	matchers   map[[32]byte]Matcher
	routes     map[uint64]*route

	InsuranceFund int64

	nextRouteID uint64

	log *zap.Logger
}

func New(id [32]byte, h host.Host, logger *zap.Logger) *Router {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Router{
		ID:         id,
		Host:       h,
		portfolios: make(map[[32]byte]*Portfolio),
		vaults:     make(map[[32]byte]*Vault),
		escrows:    make(map[escrowKey]*Escrow),
		seats:      make(map[seatKey]slab.AccountIdx),
		matchers:   make(map[[32]byte]Matcher),
		routes:     make(map[uint64]*route),
		log:        logger,
	}
}

// RegisterMatcher installs a matcher (slab or adapter variant) so
// multi-slab routes can address it by its 32-byte id.
func (r *Router) RegisterMatcher(m Matcher) { r.matchers[m.ID()] = m }

// InitializePortfolio creates the user's empty portfolio; repeat calls
// fail rather than reset.
func (r *Router) InitializePortfolio(user [32]byte) error {
	if _, ok := r.portfolios[user]; ok {
		return wire.New(wire.InvalidArgument, "portfolio already initialized")
	}
	r.portfolios[user] = &Portfolio{RouterID: r.ID, User: user}
	return nil
}

// InitializeVault creates the (router, mint) vault.
func (r *Router) InitializeVault(mint [32]byte) error {
	if _, ok := r.vaults[mint]; ok {
		return wire.New(wire.InvalidArgument, "vault already initialized")
	}
	r.vaults[mint] = &Vault{Mint: mint}
	return nil
}

// SeatInit binds a user to their account index on one slab
// (RouterSeatInit, §6) — the router-side mapping between the 32-byte
// user identifier and the slab's dense arena index.
func (r *Router) SeatInit(user, slabID [32]byte, acct slab.AccountIdx) error {
	key := seatKey{user: user, slab: slabID}
	if _, ok := r.seats[key]; ok {
		return wire.New(wire.InvalidArgument, "seat already initialized")
	}
	if _, ok := r.matchers[slabID]; !ok {
		return wire.New(wire.InvalidArgument, "unknown slab")
	}
	r.seats[key] = acct
	return nil
}

// Deposit credits collateral into the user's portfolio and the mint's
// vault. The host chain has already moved the tokens when this runs;
// the router only records custody.
func (r *Router) Deposit(user, mint [32]byte, amount int64) error {
	if amount <= 0 {
		return wire.New(wire.InvalidArgument, "deposit must be positive")
	}
	p, v, err := r.portfolioVault(user, mint)
	if err != nil {
		return err
	}
	v.deposit(amount)
	p.Cash += amount
	return nil
}

// Withdraw releases unpledged collateral back to the user. Collateral
// behind live capabilities or margin stays locked.
func (r *Router) Withdraw(user, mint [32]byte, amount int64) error {
	if amount <= 0 {
		return wire.New(wire.InvalidArgument, "withdrawal must be positive")
	}
	p, v, err := r.portfolioVault(user, mint)
	if err != nil {
		return err
	}
	if amount > p.FreeNow() {
		return wire.New(wire.InsufficientCollateral, "withdrawal exceeds free collateral")
	}
	if err := v.withdraw(amount); err != nil {
		return err
	}
	p.Cash -= amount
	return nil
}

// TopUpInsurance moves unpledged vault balance into the insurance fund.
func (r *Router) TopUpInsurance(mint [32]byte, amount int64) error {
	v, ok := r.vaults[mint]
	if !ok {
		return wire.New(wire.InvalidArgument, "unknown vault")
	}
	if amount <= 0 {
		return wire.New(wire.InvalidArgument, "top-up must be positive")
	}
	if err := v.withdraw(amount); err != nil {
		return err
	}
	r.InsuranceFund += amount
	return nil
}

// WithdrawInsurance drains the insurance fund back to a vault; gated on
// the authority council, the same way a slab's Halt/Resume is.
func (r *Router) WithdrawInsurance(mint [32]byte, amount int64, aggSig []byte) error {
	if r.Council != nil {
		msg := append([]byte("router-insurance:"), r.ID[:]...)
		if !r.Council.VerifyAggregate(r.Council.Members, msg, aggSig) {
			return wire.New(wire.Unauthorized, "council signature invalid")
		}
	}
	v, ok := r.vaults[mint]
	if !ok {
		return wire.New(wire.InvalidArgument, "unknown vault")
	}
	if amount <= 0 || amount > r.InsuranceFund {
		return wire.New(wire.InvalidArgument, "amount exceeds insurance fund")
	}
	r.InsuranceFund -= amount
	v.deposit(amount)
	return nil
}

// Portfolio returns the user's portfolio for reads; nil if never
// initialized.
func (r *Router) Portfolio(user [32]byte) *Portfolio { return r.portfolios[user] }

// Vault returns the mint's vault for reads; nil if never initialized.
func (r *Router) Vault(mint [32]byte) *Vault { return r.vaults[mint] }

// Escrow returns the (slab, user, mint) escrow for reads; nil if the
// route that would create it never ran.
func (r *Router) Escrow(slabID, user, mint [32]byte) *Escrow {
	return r.escrows[escrowKey{slab: slabID, user: user, mint: mint}]
}

func (r *Router) portfolioVault(user, mint [32]byte) (*Portfolio, *Vault, error) {
	p, ok := r.portfolios[user]
	if !ok {
		return nil, nil, wire.New(wire.InvalidArgument, "portfolio not initialized")
	}
	v, ok := r.vaults[mint]
	if !ok {
		return nil, nil, wire.New(wire.InvalidArgument, "vault not initialized")
	}
	return p, v, nil
}

func (r *Router) escrowFor(slabID, user, mint [32]byte) *Escrow {
	key := escrowKey{slab: slabID, user: user, mint: mint}
	e, ok := r.escrows[key]
	if !ok {
		e = &Escrow{Slab: slabID, User: user, Mint: mint}
		r.escrows[key] = e
	}
	return e
}

// CheckInvariants audits I4 (portfolio identity, as of last remark) and
// I5 (vault solvency) across every portfolio and vault.
func (r *Router) CheckInvariants() error {
	for _, p := range r.portfolios {
		if err := p.CheckInvariant(); err != nil {
			return err
		}
	}
	for _, v := range r.vaults {
		if err := v.CheckInvariant(); err != nil {
			return err
		}
	}
	return nil
}
