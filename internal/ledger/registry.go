// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ledger

import (
	"fmt"
	"sync"
)

// Registry holds the available registrar variants and selects the active
// one by mode. The user-signed variant is always present. All methods are
// safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	registrars map[Mode]Registrar
	active     Mode
}

// NewRegistry creates a registry with the given active mode.
func NewRegistry(active Mode) *Registry {
	return &Registry{
		registrars: map[Mode]Registrar{ModeUser: UserSigned{}},
		active:     active,
	}
}

// Add makes a registrar available under mode.
func (r *Registry) Add(mode Mode, reg Registrar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrars[mode] = reg
}

// Active returns the registrar for the active mode.
func (r *Registry) Active() (Registrar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.registrars[r.active]
	if !ok {
		return nil, fmt.Errorf("no registrar configured for mode %q", r.active)
	}
	return reg, nil
}

// Mode returns the active mode.
func (r *Registry) Mode() Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}
