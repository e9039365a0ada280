package domain

import (
	"sync/atomic"
)

// KeyRef identifies a key version within its kind.
type KeyRef struct {
	Kind    KeyKind
	Version uint
}

// Snapshot is an immutable view of the usable keys. Snapshots are built off
// the hot path and published wholesale; readers never see a half-updated chain.
type Snapshot struct {
	Active    map[KeyKind]*KeyMaterial
	ByVersion map[KeyRef]*KeyMaterial
}

// NewSnapshot builds a snapshot from unwrapped key material. Revoked versions
// are skipped entirely, so lookups cannot reach them.
func NewSnapshot(keys []*KeyMaterial) *Snapshot {
	s := &Snapshot{
		Active:    make(map[KeyKind]*KeyMaterial),
		ByVersion: make(map[KeyRef]*KeyMaterial),
	}
	for _, key := range keys {
		if !key.CanDecrypt() {
			continue
		}
		s.ByVersion[KeyRef{Kind: key.Kind, Version: key.Version}] = key
		if key.CanEncrypt() {
			s.Active[key.Kind] = key
		}
	}
	return s
}

// KeyChain publishes key snapshots for lock-free reads on the request path.
type KeyChain struct {
	snapshot atomic.Pointer[Snapshot]
}

// NewKeyChain creates an empty chain. Lookups fail until the first Publish.
func NewKeyChain() *KeyChain {
	c := &KeyChain{}
	c.snapshot.Store(&Snapshot{
		Active:    map[KeyKind]*KeyMaterial{},
		ByVersion: map[KeyRef]*KeyMaterial{},
	})
	return c
}

// Publish atomically replaces the current snapshot.
func (c *KeyChain) Publish(s *Snapshot) {
	c.snapshot.Store(s)
}

// Active returns the active key for the kind, or ErrNoActiveKey.
func (c *KeyChain) Active(kind KeyKind) (*KeyMaterial, error) {
	key, ok := c.snapshot.Load().Active[kind]
	if !ok {
		return nil, ErrNoActiveKey
	}
	return key, nil
}

// ByVersion returns a usable (active or retiring) key version, or
// ErrKeyNotFound. Revoked versions are never present in a snapshot.
func (c *KeyChain) ByVersion(kind KeyKind, version uint) (*KeyMaterial, error) {
	key, ok := c.snapshot.Load().ByVersion[KeyRef{Kind: kind, Version: version}]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}
