package persist

import (
	"path/filepath"
	"testing"
)

type fakePortfolio struct {
	Cash    int64
	Pledged int64
}

func TestPortfolioRoundtrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "snap"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	router := [32]byte{1}
	user := [32]byte{2}
	in := fakePortfolio{Cash: 1_000_000_000, Pledged: 70_035_000}
	if err := store.SavePortfolio(router, user, in); err != nil {
		t.Fatal(err)
	}

	var out fakePortfolio
	found, err := store.LoadPortfolio(router, user, &out)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if out != in {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", out, in)
	}
}

func TestLoadMissingReportsNotFound(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "snap"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	var out fakePortfolio
	found, err := store.LoadPortfolio([32]byte{9}, [32]byte{9}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("missing key must report not-found, not a zero value")
	}
}

func TestEscrowKeyIsolation(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "snap"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	router, slab, user, mint := [32]byte{1}, [32]byte{2}, [32]byte{3}, [32]byte{4}
	if err := store.SaveEscrow(router, slab, user, mint, fakePortfolio{Cash: 7}); err != nil {
		t.Fatal(err)
	}
	var out fakePortfolio
	// Same tuple except the slab: must not collide.
	found, err := store.LoadEscrow(router, [32]byte{9}, user, mint, &out)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("escrow keys must be disjoint per (router, slab, user, mint)")
	}
}
