// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package translate

import (
	"errors"
	"sync"
)

// ErrNoCredentials is returned when the pool holds no API keys.
var ErrNoCredentials = errors.New("no AI credentials configured")

// KeyPool hands out API keys round-robin so translation load spreads across
// credentials and a single exhausted quota does not take the service down.
// It is an explicit object rather than process state so tests can inject
// deterministic or failing credentials.
type KeyPool struct {
	mu   sync.Mutex
	keys []string
	next int
}

// NewKeyPool builds a pool over the given keys. Order is preserved;
// rotation wraps after the last key.
func NewKeyPool(keys []string) *KeyPool {
	return &KeyPool{keys: keys}
}

// Len returns the number of keys in the pool.
func (p *KeyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Next returns the next key in rotation.
func (p *KeyPool) Next() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", ErrNoCredentials
	}
	k := p.keys[p.next]
	p.next = (p.next + 1) % len(p.keys)
	return k, nil
}
