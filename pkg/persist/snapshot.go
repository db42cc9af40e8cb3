// Package persist is the local durable cache for router and slab
// state, grounded on the teacher's pkg/storage Pebble-backed store:
// same embedded-KV engine, same "prefix + key" schema idiom, same
// gob encoding helper. The host chain owns canonical account storage
// (spec.md §1); this package plays the role the teacher's
// account.Store already plays relative to the consensus engine's own
// canonical block storage — a local snapshot cache, not the source of
// truth.
package persist

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Key prefixes, mirroring the teacher's "acc:" / "pos:" / "ord:" /
// "trade:" schema extended with this system's own entities.
const (
	prefixSlabHeader  = "sh:"
	prefixPortfolio   = "pf:"
	prefixVault       = "vt:"
	prefixEscrow      = "es:"
	prefixCap         = "cp:"
)

type Store struct {
	db *pebble.DB
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func slabHeaderKey(slab [32]byte) []byte { return append([]byte(prefixSlabHeader), slab[:]...) }
func portfolioKey(router, user [32]byte) []byte {
	return append(append([]byte(prefixPortfolio), router[:]...), user[:]...)
}
func vaultKey(router [32]byte, mint [32]byte) []byte {
	return append(append([]byte(prefixVault), router[:]...), mint[:]...)
}
func escrowKey(router, slab, user, mint [32]byte) []byte {
	k := append([]byte(prefixEscrow), router[:]...)
	k = append(k, slab[:]...)
	k = append(k, user[:]...)
	return append(k, mint[:]...)
}
func capKey(routeID uint64, slab [32]byte) []byte {
	var rid [8]byte
	binary.BigEndian.PutUint64(rid[:], routeID)
	return append(append([]byte(prefixCap), rid[:]...), slab[:]...)
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

// SaveSlabHeader checkpoints a slab's header (magic/version/authority/
// router/seq/freeze), the durable-cache analogue of the teacher's
// SaveBlock — this is a periodic snapshot, not the canonical copy the
// host chain's own account storage holds.
func (s *Store) SaveSlabHeader(slab [32]byte, header any) error {
	val, err := encodeGob(header)
	if err != nil {
		return fmt.Errorf("persist: encode slab header: %w", err)
	}
	return s.db.Set(slabHeaderKey(slab), val, pebble.Sync)
}

func (s *Store) LoadSlabHeader(slab [32]byte, out any) (bool, error) {
	return s.get(slabHeaderKey(slab), out)
}

// SavePortfolio / SaveVault / SaveEscrow / SaveCap checkpoint the
// router's cross-slab state. None of these are read on the hot path —
// the in-memory router/slab structs are authoritative during a live
// process; this store only exists to survive a restart without waiting
// on the host chain's own slower replay.
func (s *Store) SavePortfolio(router, user [32]byte, portfolio any) error {
	val, err := encodeGob(portfolio)
	if err != nil {
		return fmt.Errorf("persist: encode portfolio: %w", err)
	}
	return s.db.Set(portfolioKey(router, user), val, pebble.Sync)
}

func (s *Store) LoadPortfolio(router, user [32]byte, out any) (bool, error) {
	return s.get(portfolioKey(router, user), out)
}

func (s *Store) SaveVault(router, mint [32]byte, vault any) error {
	val, err := encodeGob(vault)
	if err != nil {
		return fmt.Errorf("persist: encode vault: %w", err)
	}
	return s.db.Set(vaultKey(router, mint), val, pebble.Sync)
}

func (s *Store) LoadVault(router, mint [32]byte, out any) (bool, error) {
	return s.get(vaultKey(router, mint), out)
}

func (s *Store) SaveEscrow(router, slab, user, mint [32]byte, escrow any) error {
	val, err := encodeGob(escrow)
	if err != nil {
		return fmt.Errorf("persist: encode escrow: %w", err)
	}
	return s.db.Set(escrowKey(router, slab, user, mint), val, pebble.Sync)
}

func (s *Store) LoadEscrow(router, slab, user, mint [32]byte, out any) (bool, error) {
	return s.get(escrowKey(router, slab, user, mint), out)
}

func (s *Store) SaveCap(routeID uint64, slab [32]byte, cap any) error {
	val, err := encodeGob(cap)
	if err != nil {
		return fmt.Errorf("persist: encode cap: %w", err)
	}
	return s.db.Set(capKey(routeID, slab), val, pebble.Sync)
}

func (s *Store) LoadCap(routeID uint64, slab [32]byte, out any) (bool, error) {
	return s.get(capKey(routeID, slab), out)
}

func (s *Store) get(key []byte, out any) (bool, error) {
	val, closer, err := s.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	defer closer.Close()
	if err := decodeGob(val, out); err != nil {
		return false, fmt.Errorf("persist: decode: %w", err)
	}
	return true, nil
}
