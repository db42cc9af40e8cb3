// Package router implements the control-plane side of the system:
// per-user cross-slab portfolios, vault custody, escrows, capability
// minting, and the multi-slab atomic reserve/commit fan-out. The
// data-plane (matching, reservations, fills) lives in pkg/slab; the
// router only ever talks to a slab through the matcher capability set.
package router

import (
	"fmt"
)

// Exposure is one (slab, instrument) leg of a portfolio's cross-slab
// position aggregate.
type Exposure struct {
	SlabID        [32]byte
	InstrumentIdx uint16
	NetQty        int64
}

// Portfolio is the per-user cross-slab aggregate (§3): collateral,
// margin requirements, and exposures. Cash and Pledged are the two
// moving parts — everything else is recomputed from exposures and the
// marks the owning slabs report.
type Portfolio struct {
	RouterID [32]byte
	User     [32]byte

	Cash    int64 // deposited collateral, net of settled fills
	Pledged int64 // locked behind live capability tokens

	Equity         int64
	IM             int64
	MM             int64
	FreeCollateral int64
	LastMarkTS     int64

	Exposures []Exposure
}

// FreeNow returns the collateral available to pledge right now without
// waiting for a remark: cash minus what's already locked. The fuller
// free_collateral = equity − max(im_total, 0) identity is recomputed by
// Remark, which needs the slabs' marks.
func (p *Portfolio) FreeNow() int64 { return p.Cash - p.Pledged }

func (p *Portfolio) exposure(slabID [32]byte, instrument uint16) *Exposure {
	for i := range p.Exposures {
		e := &p.Exposures[i]
		if e.SlabID == slabID && e.InstrumentIdx == instrument {
			return e
		}
	}
	p.Exposures = append(p.Exposures, Exposure{SlabID: slabID, InstrumentIdx: instrument})
	return &p.Exposures[len(p.Exposures)-1]
}

// applyFill folds a committed fill into the exposure aggregate,
// dropping the leg entirely when it returns to flat.
func (p *Portfolio) applyFill(slabID [32]byte, instrument uint16, signedQty int64) {
	e := p.exposure(slabID, instrument)
	e.NetQty += signedQty
	if e.NetQty == 0 {
		for i := range p.Exposures {
			if p.Exposures[i].SlabID == slabID && p.Exposures[i].InstrumentIdx == instrument {
				p.Exposures = append(p.Exposures[:i], p.Exposures[i+1:]...)
				break
			}
		}
	}
}

// CheckInvariant verifies I4's identity on the last remark:
// free_collateral == equity − max(im_total, 0).
func (p *Portfolio) CheckInvariant() error {
	im := p.IM
	if im < 0 {
		im = 0
	}
	if p.FreeCollateral != p.Equity-im {
		return fmt.Errorf("portfolio %x: free_collateral=%d, equity=%d, im=%d", p.User[:4], p.FreeCollateral, p.Equity, p.IM)
	}
	if p.Pledged < 0 {
		return fmt.Errorf("portfolio %x: negative pledge %d", p.User[:4], p.Pledged)
	}
	return nil
}
