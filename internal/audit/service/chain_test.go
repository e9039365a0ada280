package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
)

func makeEvent(t *testing.T, prevHash []byte) *auditDomain.SecurityEvent {
	t.Helper()

	principalID := uuid.Must(uuid.NewV7())
	return &auditDomain.SecurityEvent{
		ID:          uuid.Must(uuid.NewV7()),
		Type:        auditDomain.RateLimitViolationEvent,
		PrincipalID: &principalID,
		IP:          "192.168.1.100",
		Severity:    auditDomain.SeverityMedium,
		Details: map[string]any{
			"tier": "ip",
			"cost": 1,
		},
		PrevHash:  prevHash,
		CreatedAt: time.Now().UTC(),
	}
}

func TestChainHasher_HashEvent(t *testing.T) {
	hasher := NewChainHasher()

	t.Run("Success_DeterministicDigest", func(t *testing.T) {
		event := makeEvent(t, auditDomain.GenesisHash)

		first, err := hasher.HashEvent(event)
		require.NoError(t, err)
		second, err := hasher.HashEvent(event)
		require.NoError(t, err)

		assert.Len(t, first, auditDomain.HashSize)
		assert.Equal(t, first, second)
	})

	t.Run("Success_DigestChangesWithContent", func(t *testing.T) {
		event := makeEvent(t, auditDomain.GenesisHash)
		original, err := hasher.HashEvent(event)
		require.NoError(t, err)

		event.IP = "10.0.0.1"
		mutated, err := hasher.HashEvent(event)
		require.NoError(t, err)

		assert.NotEqual(t, original, mutated)
	})

	t.Run("Error_WrongPrevHashSize", func(t *testing.T) {
		event := makeEvent(t, []byte{0x01, 0x02})

		_, err := hasher.HashEvent(event)
		assert.Error(t, err)
	})
}

func TestChainHasher_VerifyLink(t *testing.T) {
	hasher := NewChainHasher()

	buildChain := func(t *testing.T, n int) []*auditDomain.SecurityEvent {
		t.Helper()
		events := make([]*auditDomain.SecurityEvent, 0, n)
		prevHash := auditDomain.GenesisHash
		for i := 0; i < n; i++ {
			event := makeEvent(t, prevHash)
			hash, err := hasher.HashEvent(event)
			require.NoError(t, err)
			event.EventHash = hash
			events = append(events, event)
			prevHash = hash
		}
		return events
	}

	t.Run("Success_ValidChain", func(t *testing.T) {
		events := buildChain(t, 5)

		require.NoError(t, hasher.VerifyLink(nil, events[0]))
		for i := 1; i < len(events); i++ {
			assert.NoError(t, hasher.VerifyLink(events[i-1], events[i]))
		}
	})

	t.Run("Error_MutatedEventBreaksOwnLink", func(t *testing.T) {
		events := buildChain(t, 3)

		// Retroactive edit of a stored field
		events[1].Details["tier"] = "user"

		err := hasher.VerifyLink(events[0], events[1])
		assert.ErrorIs(t, err, auditDomain.ErrChainBroken)
	})

	t.Run("Error_MutatedEventBreaksSubsequentLink", func(t *testing.T) {
		events := buildChain(t, 3)

		// Rewriting an event and its hash still breaks the next backward link
		events[1].IP = "203.0.113.9"
		newHash, err := hasher.HashEvent(events[1])
		require.NoError(t, err)
		events[1].EventHash = newHash

		err = hasher.VerifyLink(events[1], events[2])
		assert.ErrorIs(t, err, auditDomain.ErrChainBroken)
	})

	t.Run("Error_GenesisWithNonZeroPrevHash", func(t *testing.T) {
		events := buildChain(t, 2)

		err := hasher.VerifyLink(nil, events[1])
		assert.ErrorIs(t, err, auditDomain.ErrChainBroken)
	})
}

func TestEventSigner(t *testing.T) {
	signer := NewEventSigner()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	t.Run("Success_SignAndVerify", func(t *testing.T) {
		event := makeEvent(t, auditDomain.GenesisHash)

		signature, err := signer.Sign(key, event)
		require.NoError(t, err)
		assert.Len(t, signature, 32)

		event.Signature = signature
		assert.NoError(t, signer.Verify(key, event))
	})

	t.Run("Error_TamperedEvent", func(t *testing.T) {
		event := makeEvent(t, auditDomain.GenesisHash)

		signature, err := signer.Sign(key, event)
		require.NoError(t, err)
		event.Signature = signature

		event.Severity = auditDomain.SeverityLow
		assert.ErrorIs(t, signer.Verify(key, event), ErrSignatureInvalid)
	})

	t.Run("Error_WrongKey", func(t *testing.T) {
		event := makeEvent(t, auditDomain.GenesisHash)

		signature, err := signer.Sign(key, event)
		require.NoError(t, err)
		event.Signature = signature

		otherKey := make([]byte, 32)
		assert.ErrorIs(t, signer.Verify(otherKey, event), ErrSignatureInvalid)
	})

	t.Run("Success_SignatureDiffersFromChainHash", func(t *testing.T) {
		// The HKDF domain separation must keep MAC output distinct from the
		// plain chain digest.
		event := makeEvent(t, auditDomain.GenesisHash)

		signature, err := signer.Sign(key, event)
		require.NoError(t, err)

		hash, err := NewChainHasher().HashEvent(event)
		require.NoError(t, err)

		assert.NotEqual(t, signature, hash)
	})
}
