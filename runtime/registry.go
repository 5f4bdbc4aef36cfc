package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"slices"
	"sync"
)

var _ contract.IRegistry = (*Registry)(nil)

// Registry maps canonical names to the sessions holding them.
// Members are kept in insertion order so listings are stable.
type Registry struct {
	mu      sync.RWMutex
	members map[domain.ClientName]contract.Member
	order   []domain.ClientName
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[domain.ClientName]contract.Member),
	}
}

// TryRegister inserts the member under name unless the name is already taken.
// Check and insert happen under the same lock, so two concurrent callers
// asking for the same name can never both succeed.
func (r *Registry) TryRegister(name domain.ClientName, member contract.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[name]; exists {
		return errors.ErrNameExists
	}
	r.members[name] = member
	r.order = append(r.order, name)
	return nil
}

// Unregister removes name from the registry. Unknown names are ignored.
func (r *Registry) Unregister(name domain.ClientName) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[name]; !exists {
		return
	}
	delete(r.members, name)
	if i := slices.Index(r.order, name); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
}

// Snapshot copies the current members in insertion order.
// The lock is released before the caller starts writing to anyone.
func (r *Registry) Snapshot() []contract.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]contract.Member, 0, len(r.order))
	for _, name := range r.order {
		snapshot = append(snapshot, r.members[name])
	}
	return snapshot
}

func (r *Registry) Lookup(name domain.ClientName) (contract.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	member, ok := r.members[name]
	return member, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
