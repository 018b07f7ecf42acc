package loader

import (
	"errors"
	"fmt"

	"github.com/opd-ai/vcable/abi"
	"github.com/sirupsen/logrus"
)

// MaxPlugins is the number of registry slots.
const MaxPlugins = 32

// Entry is one registered plugin. Module and Descriptor are always set and
// cleared together.
type Entry struct {
	Path       string
	Module     Module
	Descriptor abi.Descriptor
}

// Registry is the bounded slot table of registered plugins.
//
// It is not safe for concurrent use; the session serializes access.
type Registry struct {
	slots [MaxPlugins]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add stores entry in the first free slot and returns the slot index.
func (r *Registry) Add(entry Entry) (int, error) {
	for i, slot := range r.slots {
		if slot == nil {
			e := entry
			r.slots[i] = &e
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: maximum of %d plugins reached, skipping %s", ErrRegistryFull, MaxPlugins, entry.Path)
}

// Get returns the entry in slot i.
func (r *Registry) Get(i int) (*Entry, bool) {
	if i < 0 || i >= MaxPlugins || r.slots[i] == nil {
		return nil, false
	}
	return r.slots[i], true
}

// Len returns the number of occupied slots. Slots are filled in order and
// only cleared together by Release, so occupied slots are always 0..Len()-1.
func (r *Registry) Len() int {
	n := 0
	for _, slot := range r.slots {
		if slot != nil {
			n++
		}
	}
	return n
}

// Full reports whether every slot is occupied.
func (r *Registry) Full() bool {
	return r.Len() == MaxPlugins
}

// Contains reports whether path is already registered.
func (r *Registry) Contains(path string) bool {
	for _, slot := range r.slots {
		if slot != nil && slot.Path == path {
			return true
		}
	}
	return false
}

// Entries returns the occupied slots in slot order.
func (r *Registry) Entries() []*Entry {
	entries := make([]*Entry, 0, MaxPlugins)
	for _, slot := range r.slots {
		if slot != nil {
			entries = append(entries, slot)
		}
	}
	return entries
}

// Release closes every module and empties the registry. All close errors
// are joined; the registry is emptied regardless.
func (r *Registry) Release() error {
	var errs []error
	for i, slot := range r.slots {
		if slot == nil {
			continue
		}
		if err := slot.Module.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Registry.Release",
				"slot":     i,
				"path":     slot.Path,
				"error":    err.Error(),
			}).Warn("Failed to release plugin module")
			errs = append(errs, fmt.Errorf("release %s: %w", slot.Path, err))
		}
		r.slots[i] = nil
	}
	return errors.Join(errs...)
}
