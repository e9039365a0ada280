package domain

// EncryptedBlob is the self-describing envelope produced by the encryption
// engine. It carries everything needed to decrypt later: which key version
// sealed it, which cipher, and the per-operation nonce. The plaintext is
// recoverable only while the key version remains active or retiring.
type EncryptedBlob struct {
	Ciphertext []byte    `json:"ciphertext"`
	Nonce      []byte    `json:"nonce"`
	KeyVersion uint      `json:"key_version"`
	Algorithm  Algorithm `json:"algorithm"`
}
