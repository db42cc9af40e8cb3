// Package host models the narrow slice of the host chain that the
// slab and router actually depend on: wall-clock time, program-to-
// program invocation, and an atomic transaction scope. Everything else
// about a real host chain — consensus, gossip, signer verification at
// the network edge — is the opaque, out-of-scope collaborator spec.md
// §1 names.
//
// Grounded on the teacher's pkg/abci bridge (there: consensus engine to
// application), adapted here to model chain-to-program invocation
// instead of engine-to-app delivery.
package host

import "fmt"

// ProgramID addresses one deployed program (a slab or the router) the
// same way a slab/router account is addressed elsewhere: a 32-byte
// identifier.
type ProgramID [32]byte

// Program is anything Invoke can dispatch to: a slab or the router,
// each exposing one instruction entry point keyed by discriminator.
type Program interface {
	HandleInstruction(ix []byte) ([]byte, error)
}

// Tx is the atomic scope passed into Host.Atomic. Invoke within Tx
// composes with the outer Atomic call: if fn returns an error, the
// host guarantees none of the invocations inside it are observable
// afterward.
type Tx interface {
	Invoke(program ProgramID, ix []byte) ([]byte, error)
}

// Host is the minimal interface the router and slab are written
// against. Real deployments back this with the chain runtime; tests
// and the devnet harness back it with SimHost.
type Host interface {
	// Now returns the current wall-clock time as a millisecond epoch.
	// The slab/router never schedule their own timers; every
	// expiry/TTL check is driven from this value.
	Now() int64

	// Invoke performs a program-to-program call outside of any
	// explicit Atomic scope (used by single-slab instructions that
	// don't need cross-program atomicity beyond what the chain itself
	// provides per-transaction).
	Invoke(program ProgramID, ix []byte) ([]byte, error)

	// Atomic runs fn in an all-or-nothing scope: either every Invoke
	// call made through the Tx commits, or none of their effects are
	// observable. This is how MultiCommit gets its rollback guarantee
	// (§4.7, §5) without the router implementing its own undo log.
	Atomic(fn func(tx Tx) error) error
}

// SimHost is an in-process Host backing tests and the devnet harness.
// It is not a consensus engine or network stack — it exists purely so
// the router and slab entry points can be exercised deterministically
// without a real chain runtime.
type SimHost struct {
	nowMs    int64
	programs map[ProgramID]Program
}

func NewSimHost(nowMs int64) *SimHost {
	return &SimHost{nowMs: nowMs, programs: make(map[ProgramID]Program)}
}

// Register installs a Program under id so Invoke/Atomic can dispatch
// to it by ProgramID.
func (h *SimHost) Register(id ProgramID, p Program) { h.programs[id] = p }

// Advance moves the simulated wall clock forward by deltaMs, the same
// role a real chain's block timestamp advancing plays for TTL/expiry
// tests (spec §5: "the slab never schedules its own timers").
func (h *SimHost) Advance(deltaMs int64) { h.nowMs += deltaMs }

// SetNow pins the simulated wall clock to an exact value.
func (h *SimHost) SetNow(nowMs int64) { h.nowMs = nowMs }

func (h *SimHost) Now() int64 { return h.nowMs }

func (h *SimHost) Invoke(program ProgramID, ix []byte) ([]byte, error) {
	p, ok := h.programs[program]
	if !ok {
		return nil, fmt.Errorf("host: no program registered for %x", program[:4])
	}
	return p.HandleInstruction(ix)
}

// simTx is the Tx handed to Atomic's fn. It buffers nothing, and
// SimHost's Atomic is a pass-through with no rollback: whatever fn
// changed before failing stays changed. It exists so call sites are
// written against the Host interface rather than a concrete type; the
// router's MultiCommit avoids partial effects with its own pre-check
// barrier across legs before any leg commits.
type simTx struct{ h *SimHost }

func (t *simTx) Invoke(program ProgramID, ix []byte) ([]byte, error) {
	return t.h.Invoke(program, ix)
}

func (h *SimHost) Atomic(fn func(tx Tx) error) error {
	return fn(&simTx{h: h})
}
