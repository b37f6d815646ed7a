package recovery

import (
	"log/slog"

	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/manuelog-udc/tfm-munics/registry"
	"github.com/manuelog-udc/tfm-munics/verifier"
)

// AddVerifyingKey appends vk to the registry and returns its index. Only
// current wallet owners may call it.
func (m *Module) AddVerifyingKey(caller interfaces.Address, vk *verifier.VerifyingKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireOwner(caller); err != nil {
		return 0, err
	}
	index, err := m.keys.Add(vk)
	if err != nil {
		return 0, err
	}

	m.log.Info("Verifying key added", slog.String("owner", caller.String()), slog.Int("index", index))
	m.emit(interfaces.Event{Kind: interfaces.KeyAdded, Index: index})
	return index, nil
}

// InvalidateVerifyingKey disables the registry entry at index. Invalidating
// an entry that is already invalid succeeds without emitting an event.
func (m *Module) InvalidateVerifyingKey(caller interfaces.Address, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireOwner(caller); err != nil {
		return err
	}
	changed, err := m.keys.Invalidate(index)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	m.log.Info("Verifying key invalidated", slog.String("owner", caller.String()), slog.Int("index", index))
	m.emit(interfaces.Event{Kind: interfaces.KeyInvalidated, Index: index})
	return nil
}

// SubstituteVerifyingKeys replaces the active key set with keys and returns
// the index of the first new entry.
func (m *Module) SubstituteVerifyingKeys(caller interfaces.Address, keys []*verifier.VerifyingKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireOwner(caller); err != nil {
		return 0, err
	}
	first, err := m.keys.Substitute(keys)
	if err != nil {
		return 0, err
	}

	m.log.Info("Verifying keys substituted",
		slog.String("owner", caller.String()),
		slog.Int("first_index", first),
		slog.Int("count", len(keys)))
	m.emit(interfaces.Event{Kind: interfaces.KeysSubstituted, Index: first, Count: len(keys)})
	return first, nil
}

// VerifyingKeys returns a snapshot of the registry.
func (m *Module) VerifyingKeys() []registry.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys.Entries()
}
