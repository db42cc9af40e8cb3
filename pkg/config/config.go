// Package config exposes the deployment configuration surface spec.md
// §6 names, loaded the same way the teacher's params.Config is:
// Default() gives a baseline, LoadFromEnv(path) layers a .env file and
// then real environment variables on top, ENV taking priority.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/slabdex/slabdex/pkg/market"
)

// Deployment is the full per-instrument configuration surface named in
// spec.md §6, plus the router-level knobs that aren't per-instrument.
type Deployment struct {
	Instrument market.Market

	// Router-level, not per-instrument.
	CapTTLMaxMs int64 // duplicated onto Instrument.CapTTLMaxMs for callers that only have one or the other
}

// Default returns a representative single-instrument deployment, the
// same role params.Default() plays for the teacher's consensus config.
func Default(symbol string) Deployment {
	m := market.DefaultPerp(symbol)
	return Deployment{
		Instrument:  m,
		CapTTLMaxMs: m.CapTTLMaxMs,
	}
}

// LoadFromEnv loads a Deployment starting from Default(symbol), then
// applies envPath's .env file (optional) and then real environment
// variables, in that priority order — ENV > .env file > defaults,
// exactly as params.LoadFromEnv documents for the teacher's consensus
// config.
func LoadFromEnv(symbol, envPath string) Deployment {
	d := Default(symbol)

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	overrideInt64(&d.Instrument.Tick, "SLAB_TICK")
	overrideInt64(&d.Instrument.Lot, "SLAB_LOT")
	overrideInt64(&d.Instrument.MinOrder, "SLAB_MIN_ORDER")
	overrideInt64(&d.Instrument.IMRBps, "SLAB_IMR_BPS")
	overrideInt64(&d.Instrument.MMRBps, "SLAB_MMR_BPS")
	overrideInt64(&d.Instrument.MakerFeeBps, "SLAB_MAKER_FEE_BPS")
	overrideInt64(&d.Instrument.TakerFeeBps, "SLAB_TAKER_FEE_BPS")
	overrideInt64(&d.Instrument.BatchMs, "SLAB_BATCH_MS")
	overrideInt64(&d.Instrument.FreezeLevels, "SLAB_FREEZE_LEVELS")
	overrideInt64(&d.Instrument.KillBandBps, "SLAB_KILL_BAND_BPS")
	overrideInt64(&d.Instrument.ArgTaxBps, "SLAB_ARG_TAX_BPS")
	overrideInt64(&d.Instrument.TTLMaxMs, "SLAB_TTL_MAX_MS")
	overrideInt64(&d.Instrument.CapTTLMaxMs, "SLAB_CAP_TTL_MAX_MS")
	overrideInt64(&d.Instrument.LiqPenaltyBps, "SLAB_LIQ_PENALTY_BPS")
	overrideInt64(&d.Instrument.MarkBoundBps, "SLAB_MARK_BOUND_BPS")
	d.CapTTLMaxMs = d.Instrument.CapTTLMaxMs

	return d
}

func overrideInt64(field *int64, envKey string) {
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*field = n
		}
	}
}
