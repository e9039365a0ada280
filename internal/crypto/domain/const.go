// Package domain defines the value types shared by the encryption engine.
package domain

// Algorithm identifies an AEAD cipher used to protect stored data.
type Algorithm string

const (
	// AESGCM is AES-256-GCM, preferred on hardware with AES acceleration.
	AESGCM Algorithm = "aes-gcm"
	// ChaCha20Poly1305 is the software-friendly alternative for hosts
	// without AES instructions.
	ChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// KeySize is the byte length required of every symmetric key (256 bits).
const KeySize = 32

// IsValid reports whether the algorithm is one the engine supports.
func (a Algorithm) IsValid() bool {
	switch a {
	case AESGCM, ChaCha20Poly1305:
		return true
	}
	return false
}
