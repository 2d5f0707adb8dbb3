// Package auth provides address-based signature authentication for the
// quest engine's HTTP and RPC surfaces.
package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
)

// Keypair represents an Ed25519 public/private key pair identifying an
// address.
type Keypair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateKeypair creates a fresh Ed25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return &Keypair{PublicKey: pub, PrivateKey: priv}, nil
}

// Address derives the lowercase-hex address for a public key. The address
// is the hex encoding of the public key itself, matching spec.md's
// `creator_address` / `user_address` convention of a lowercased hex string.
func Address(pub ed25519.PublicKey) string {
	return strings.ToLower(hex.EncodeToString(pub))
}

// NormalizeAddress lowercases an address string for storage and comparison.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Sign creates a signature for the given message using the private key.
func Sign(message []byte, privateKey ed25519.PrivateKey) []byte {
	return ed25519.Sign(privateKey, message)
}

// Verify checks if a signature is valid for the given message and public key.
func Verify(message []byte, signature []byte, publicKey ed25519.PublicKey) bool {
	return ed25519.Verify(publicKey, message, signature)
}
