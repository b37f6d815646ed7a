package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/manuelog-udc/tfm-munics/verifier"
)

// ErrOutOfRange is returned for indices that name no entry. It is the same
// sentinel the verifier reports, so callers can match either.
var ErrOutOfRange = verifier.ErrIndexOutOfRange

// ErrInvalidKey is returned when a key fails point validation on insertion.
var ErrInvalidKey = errors.New("invalid verifying key")

// Entry is one slot of the registry. Invalidated entries keep their index.
type Entry struct {
	Index int                    `json:"index"`
	Key   *verifier.VerifyingKey `json:"key"`
	Valid bool                   `json:"valid"`
}

// KeyRegistry is an ordered, append-only collection of verifying keys. Indices
// are assigned on insertion and never reused.
type KeyRegistry struct {
	mutex   sync.RWMutex
	entries []Entry
}

// New creates a registry holding the given keys at indices 0..n-1.
func New(initial []*verifier.VerifyingKey) (*KeyRegistry, error) {
	r := &KeyRegistry{}
	for i, vk := range initial {
		if err := checkKey(vk); err != nil {
			return nil, fmt.Errorf("initial key %d: %w", i, err)
		}
		r.entries = append(r.entries, Entry{Index: i, Key: vk.Clone(), Valid: true})
	}
	return r, nil
}

// Add appends a valid entry and returns its index.
func (r *KeyRegistry) Add(vk *verifier.VerifyingKey) (int, error) {
	if err := checkKey(vk); err != nil {
		return 0, err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	index := len(r.entries)
	r.entries = append(r.entries, Entry{Index: index, Key: vk.Clone(), Valid: true})
	return index, nil
}

// Invalidate disables the entry at index. Invalidating an already invalid
// entry is a no-op. The returned flag reports whether the entry changed.
func (r *KeyRegistry) Invalidate(index int) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if index < 0 || index >= len(r.entries) {
		return false, fmt.Errorf("%w: index %d", ErrOutOfRange, index)
	}
	if !r.entries[index].Valid {
		return false, nil
	}
	r.entries[index].Valid = false
	return true, nil
}

// Substitute invalidates every currently valid entry and appends keys as the
// new active set. It returns the index of the first new entry.
func (r *KeyRegistry) Substitute(keys []*verifier.VerifyingKey) (int, error) {
	if len(keys) == 0 {
		return 0, fmt.Errorf("%w: empty replacement set", ErrInvalidKey)
	}
	for i, vk := range keys {
		if err := checkKey(vk); err != nil {
			return 0, fmt.Errorf("replacement key %d: %w", i, err)
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i := range r.entries {
		r.entries[i].Valid = false
	}
	first := len(r.entries)
	for i, vk := range keys {
		r.entries = append(r.entries, Entry{Index: first + i, Key: vk.Clone(), Valid: true})
	}
	return first, nil
}

// Key implements verifier.KeySet.
func (r *KeyRegistry) Key(index int) (*verifier.VerifyingKey, bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if index < 0 || index >= len(r.entries) {
		return nil, false, fmt.Errorf("%w: index %d", ErrOutOfRange, index)
	}
	e := r.entries[index]
	return e.Key, e.Valid, nil
}

// Entry returns a copy of the entry at index.
func (r *KeyRegistry) Entry(index int) (Entry, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if index < 0 || index >= len(r.entries) {
		return Entry{}, fmt.Errorf("%w: index %d", ErrOutOfRange, index)
	}
	e := r.entries[index]
	e.Key = e.Key.Clone()
	return e, nil
}

// Entries returns a copy of every entry in index order.
func (r *KeyRegistry) Entries() []Entry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	res := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		e.Key = e.Key.Clone()
		res[i] = e
	}
	return res
}

// Len returns the number of entries, valid or not.
func (r *KeyRegistry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.entries)
}

// ValidCount returns the number of entries still usable for verification.
func (r *KeyRegistry) ValidCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	n := 0
	for _, e := range r.entries {
		if e.Valid {
			n++
		}
	}
	return n
}

func checkKey(vk *verifier.VerifyingKey) error {
	if vk == nil {
		return fmt.Errorf("%w: nil key", ErrInvalidKey)
	}
	if err := vk.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return nil
}
