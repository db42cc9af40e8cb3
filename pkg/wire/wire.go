// Package wire defines the fixed-size, little-endian instruction and
// result encodings and the status-code taxonomy every slab and router
// entry point returns. No entry point ever lets a Go error cross an
// instruction boundary; internal helpers still return error the way
// the teacher's account/market packages do, and the boundary translates
// to a single Status plus optional auxiliary data.
package wire

import "fmt"

// Status is the single typed result code every slab/router instruction
// returns, mirroring the exit/status codes a wire caller decodes
// bit-for-bit rather than unwinding a stack.
type Status uint8

const (
	Ok                     Status = 0
	InvalidArgument        Status = 1
	Unauthorized           Status = 2
	InsufficientLiquidity  Status = 3
	InsufficientCollateral Status = 4
	KillBandBreached       Status = 5
	Halted                 Status = 6
	Expired                Status = 7
	StaleHandle            Status = 8
	ArenaFull              Status = 9
	BadCapability          Status = 10
	CapExhausted           Status = 11
	AlreadyCommitted       Status = 12
	InvariantViolation     Status = 13
	RateLimited            Status = 14
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "Ok"
	case InvalidArgument:
		return "InvalidArgument"
	case Unauthorized:
		return "Unauthorized"
	case InsufficientLiquidity:
		return "InsufficientLiquidity"
	case InsufficientCollateral:
		return "InsufficientCollateral"
	case KillBandBreached:
		return "KillBandBreached"
	case Halted:
		return "Halted"
	case Expired:
		return "Expired"
	case StaleHandle:
		return "StaleHandle"
	case ArenaFull:
		return "ArenaFull"
	case BadCapability:
		return "BadCapability"
	case CapExhausted:
		return "CapExhausted"
	case AlreadyCommitted:
		return "AlreadyCommitted"
	case InvariantViolation:
		return "InvariantViolation"
	case RateLimited:
		return "RateLimited"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Fatal reports whether a status must halt the slab (global_freeze)
// rather than simply be surfaced to the caller for retry.
func (s Status) Fatal() bool {
	return s == InvariantViolation || s == StaleHandle
}

// Err adapts a Status to the standard error interface so internal
// plumbing that wants to propagate "this call failed with status X"
// through ordinary Go control flow (e.g. router fan-out unwind) can do
// so without inventing a parallel error type.
type Err struct {
	Status Status
	Detail string
}

func (e *Err) Error() string {
	if e.Detail == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Detail)
}

func New(status Status, detail string) *Err { return &Err{Status: status, Detail: detail} }

// StatusOf unwraps an error produced by New back into a Status,
// defaulting to InvariantViolation for anything it doesn't recognize —
// an unrecognized internal error reaching an instruction boundary is
// itself a bug worth halting over.
func StatusOf(err error) Status {
	if err == nil {
		return Ok
	}
	if we, ok := err.(*Err); ok {
		return we.Status
	}
	return InvariantViolation
}

// Slab instruction discriminators (§6). PlaceOrder is standardized on
// 3; a second PlaceOrder variant claiming a different byte is rejected
// with InvalidArgument rather than accepted as an alias.
const (
	SlabInitialize         uint8 = 0
	SlabCommitFill         uint8 = 1
	SlabAdapterLiquidity   uint8 = 2
	SlabPlaceOrder         uint8 = 3
	SlabCancelOrder        uint8 = 4
	SlabUpdateFunding      uint8 = 5
	SlabHaltTrading        uint8 = 6
	SlabResumeTrading      uint8 = 7
	SlabModifyOrder        uint8 = 8
	SlabInitializeReceipt  uint8 = 9
)

// Router instruction discriminators (§6).
const (
	RouterInitialize          uint8 = 0
	RouterInitializePortfolio uint8 = 1
	RouterInitializeVault     uint8 = 2
	RouterDeposit             uint8 = 3
	RouterWithdraw            uint8 = 4
	RouterExecuteCrossSlab    uint8 = 5
	RouterLiquidateUser       uint8 = 6
	RouterReserve             uint8 = 10
	RouterRelease             uint8 = 11
	RouterLiquidity           uint8 = 12
	RouterSeatInit            uint8 = 13
	RouterWithdrawInsurance   uint8 = 14
	RouterTopUpInsurance      uint8 = 15
)
