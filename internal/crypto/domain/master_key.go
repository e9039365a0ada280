package domain

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"

	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

var (
	// ErrMasterKeysNotSet indicates MASTER_KEYS is not configured.
	ErrMasterKeysNotSet = apperrors.New("MASTER_KEYS environment variable not set")

	// ErrActiveMasterKeyIDNotSet indicates ACTIVE_MASTER_KEY_ID is not configured.
	ErrActiveMasterKeyIDNotSet = apperrors.New("ACTIVE_MASTER_KEY_ID environment variable not set")

	// ErrInvalidMasterKeysFormat indicates a malformed MASTER_KEYS entry.
	ErrInvalidMasterKeysFormat = apperrors.New("invalid MASTER_KEYS format, expected id:base64key")

	// ErrInvalidMasterKeyBase64 indicates master key material that is not valid base64.
	ErrInvalidMasterKeyBase64 = apperrors.New("invalid master key base64")

	// ErrActiveMasterKeyNotFound indicates ACTIVE_MASTER_KEY_ID names an unknown key.
	ErrActiveMasterKeyNotFound = apperrors.New("active master key not found in chain")

	// ErrMasterKeyNotFound indicates a wrapped blob references an unknown master key.
	ErrMasterKeyNotFound = apperrors.Wrap(apperrors.ErrNotFound, "master key not found")
)

// MasterKey is the root of the key hierarchy: every symmetric key at rest is
// wrapped with a master key before it touches the database. In development the
// chain is loaded from environment variables; production deployments should
// point the key store at a KMS keeper instead.
type MasterKey struct {
	ID  string
	Key []byte
}

// MasterKeyChain holds the master keys with one designated as active. Keeping
// older keys around lets key material wrapped before a master key rotation
// remain readable while new material is wrapped with the active key.
type MasterKeyChain struct {
	activeID string
	keys     sync.Map
}

// ActiveMasterKeyID returns the ID of the master key used to wrap new material.
func (m *MasterKeyChain) ActiveMasterKeyID() string {
	return m.activeID
}

// Get retrieves a master key by its ID, for unwrapping material that predates
// the current active key.
func (m *MasterKeyChain) Get(id string) (*MasterKey, bool) {
	if masterKey, ok := m.keys.Load(id); ok {
		return masterKey.(*MasterKey), ok
	}
	return nil, false
}

// Close wipes all master key material and resets the chain.
func (m *MasterKeyChain) Close() {
	m.keys.Range(func(_, value any) bool {
		Zero(value.(*MasterKey).Key)
		return true
	})
	m.activeID = ""
	m.keys.Clear()
}

// LoadMasterKeyChainFromEnv builds the chain from two environment variables:
//
//	MASTER_KEYS="key1:<base64 32 bytes>,key2:<base64 32 bytes>"
//	ACTIVE_MASTER_KEY_ID="key2"
//
// Each entry must decode to exactly 32 bytes. On any error the partially built
// chain is closed so no key material lingers.
func LoadMasterKeyChainFromEnv() (*MasterKeyChain, error) {
	raw := os.Getenv("MASTER_KEYS")
	if raw == "" {
		return nil, ErrMasterKeysNotSet
	}

	active := os.Getenv("ACTIVE_MASTER_KEY_ID")
	if active == "" {
		return nil, ErrActiveMasterKeyIDNotSet
	}

	mkc := &MasterKeyChain{activeID: active}

	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 {
			mkc.Close()
			return nil, fmt.Errorf("%w: %q", ErrInvalidMasterKeysFormat, part)
		}
		id := p[0]
		decoded, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			mkc.Close()
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidMasterKeyBase64, id, err)
		}
		if len(decoded) != KeySize {
			Zero(decoded)
			mkc.Close()
			return nil, fmt.Errorf(
				"%w: master key %s must be %d bytes, got %d",
				ErrInvalidKeySize, id, KeySize, len(decoded),
			)
		}

		material := make([]byte, KeySize)
		copy(material, decoded)
		Zero(decoded)
		mkc.keys.Store(id, &MasterKey{ID: id, Key: material})
	}

	if _, ok := mkc.Get(active); !ok {
		mkc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_MASTER_KEY_ID=%s", ErrActiveMasterKeyNotFound, active)
	}

	return mkc, nil
}
