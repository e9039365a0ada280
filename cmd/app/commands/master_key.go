package commands

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// RunCreateMasterKey generates a cryptographically secure 32-byte master key
// for key wrapping. Key material is zeroed from memory after encoding. If
// keyID is empty, generates a default ID in format "master-key-YYYY-MM-DD".
//
// Output format:
//   - MASTER_KEYS="<keyID>:<base64-encoded-key>"
//   - ACTIVE_MASTER_KEY_ID="<keyID>"
//
// When KMS_KEY_URI is configured the service wraps data keys with the cloud
// KMS instead and no master key environment is needed.
func RunCreateMasterKey(keyID string) error {
	// Generate default key ID if not provided
	if keyID == "" {
		keyID = fmt.Sprintf("master-key-%s", time.Now().Format("2006-01-02"))
	}

	// Generate a cryptographically secure 32-byte master key
	masterKey := make([]byte, 32)
	if _, err := rand.Read(masterKey); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}

	encodedKey := base64.StdEncoding.EncodeToString(masterKey)

	fmt.Println("# Master Key Configuration")
	fmt.Println("# Copy these environment variables to your .env file or secrets manager")
	fmt.Println()
	fmt.Printf("MASTER_KEYS=\"%s:%s\"\n", keyID, encodedKey)
	fmt.Printf("ACTIVE_MASTER_KEY_ID=\"%s\"\n", keyID)
	fmt.Println()
	fmt.Println("# For multiple master keys (key rotation), append new entries:")
	fmt.Printf("# MASTER_KEYS=\"%s:%s,new-key:base64-encoded-key\"\n", keyID, encodedKey)
	fmt.Println("# ACTIVE_MASTER_KEY_ID=\"new-key\"")

	// Zero out the master key from memory for security
	for i := range masterKey {
		masterKey[i] = 0
	}

	return nil
}
