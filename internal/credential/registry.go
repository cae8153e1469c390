// Package credential holds the process-wide token registry and the gate
// that authorizes intake requests against it.
package credential

import (
	"sort"
	"sync"

	"duck-intake/internal/domain"
)

// Registry maps token hashes to the collections they may write to. Reads
// take a shared lock and never block each other; provisioning takes the
// exclusive lock. A token that is absent has no access to anything.
type Registry struct {
	mu     sync.RWMutex
	scopes map[string]map[string]struct{} // token hash -> collections
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{scopes: make(map[string]map[string]struct{})}
}

// Allows reports whether token may write to collection.
func (r *Registry) Allows(token, collection string) (known, allowed bool) {
	hash := domain.HashToken(token)

	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.scopes[hash]
	if !ok {
		return false, false
	}
	_, allowed = set[collection]
	return true, allowed
}

// Lookup returns the sorted collections granted to token.
func (r *Registry) Lookup(token string) ([]string, bool) {
	hash := domain.HashToken(token)

	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.scopes[hash]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, true
}

// Grant adds collection to the scope of token.
func (r *Registry) Grant(token, collection string) {
	r.grantHash(domain.HashToken(token), collection)
}

func (r *Registry) grantHash(hash, collection string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.scopes[hash]
	if !ok {
		set = make(map[string]struct{})
		r.scopes[hash] = set
	}
	set[collection] = struct{}{}
}

// Revoke removes collection from the scope of token. A token left with an
// empty scope is forgotten.
func (r *Registry) Revoke(token, collection string) {
	hash := domain.HashToken(token)

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.scopes[hash]
	if !ok {
		return
	}
	delete(set, collection)
	if len(set) == 0 {
		delete(r.scopes, hash)
	}
}

// Replace swaps the whole registry contents for grants, keyed by token hash.
func (r *Registry) Replace(grants []domain.CredentialGrant) {
	scopes := make(map[string]map[string]struct{})
	for _, g := range grants {
		set, ok := scopes[g.TokenHash]
		if !ok {
			set = make(map[string]struct{})
			scopes[g.TokenHash] = set
		}
		set[g.Collection] = struct{}{}
	}

	r.mu.Lock()
	r.scopes = scopes
	r.mu.Unlock()
}

// Len returns the number of known tokens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scopes)
}
