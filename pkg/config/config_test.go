package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	d := Default("PERP-USDC")
	if err := d.Instrument.Validate(); err != nil {
		t.Fatalf("default deployment must validate: %v", err)
	}
	if d.CapTTLMaxMs != d.Instrument.CapTTLMaxMs {
		t.Fatal("router-level cap TTL must mirror the instrument's")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SLAB_KILL_BAND_BPS", "250")
	t.Setenv("SLAB_CAP_TTL_MAX_MS", "90000")

	d := LoadFromEnv("PERP-USDC", "")
	if d.Instrument.KillBandBps != 250 {
		t.Fatalf("kill_band_bps = %d, want env override 250", d.Instrument.KillBandBps)
	}
	if d.CapTTLMaxMs != 90_000 {
		t.Fatalf("cap_ttl_max_ms = %d, want env override 90000", d.CapTTLMaxMs)
	}
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("SLAB_TICK", "not-a-number")
	d := LoadFromEnv("PERP-USDC", "")
	if d.Instrument.Tick != Default("PERP-USDC").Instrument.Tick {
		t.Fatal("unparseable env value must leave the default intact")
	}
}
