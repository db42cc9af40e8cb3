package market

// DefaultPerp returns a representative instrument configuration sized
// the way the teacher's DefaultHYPLUSDC market parameters are: tick=1,
// lot=100, 50x max leverage via a 200 bps initial margin requirement,
// adapted with the anti-toxicity and capability-lifetime fields this
// system's slab adds on top of the teacher's spot/margin fields.
func DefaultPerp(symbol string) Market {
	return Market{
		Symbol:        symbol,
		Tick:          1,
		Lot:           100,
		MinOrder:      100,
		IMRBps:        200,
		MMRBps:        100,
		MakerFeeBps:   -2,
		TakerFeeBps:   5,
		BatchMs:       1_000,
		FreezeLevels:  0,
		KillBandBps:   100,
		ArgTaxBps:     10,
		TTLMaxMs:      120_000,
		CapTTLMaxMs:   150_000,
		LiqPenaltyBps: 250,
		MarkBoundBps:  500,
	}
}
