package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidChain is returned when a signed auth chain fails verification.
var ErrInvalidChain = errors.New("invalid auth chain")

// ChainLink is one signed link in an authentication chain. The first link
// is signed by the root key and attests a (possibly delegated) signer
// public key; the final link signs the session-specific payload (the
// WebSocket challenge, or the HTTP request digest).
type ChainLink struct {
	// Type distinguishes a key-delegation link ("SIGNER") from the final
	// payload-signing link ("ECDSA_SIGNED_ENTITY" in spirit; here just
	// "PAYLOAD").
	Type string `json:"type"`
	// Payload is the message this link signs: for a SIGNER link, the hex
	// public key being delegated to; for a PAYLOAD link, the
	// application payload (e.g. the WebSocket challenge string).
	Payload string `json:"payload"`
	// Signature is the hex-encoded Ed25519 signature over Payload, made
	// by the key established by the previous link (or, for the first
	// link, by the root key itself).
	Signature string `json:"signature"`
}

// Chain is an ordered list of signed links. Verifying it recovers the
// root address.
type Chain []ChainLink

// VerifyChain walks the chain, checking each link's signature against the
// signer established by the previous link, and returns the root address
// (the lowercase-hex encoding of the first link's implied public key).
//
// The first link's signature is verified against rootPub, which the
// caller must already know (e.g. embedded in the first link itself for a
// self-signed root, or supplied out of band). For this engine the root
// public key is embedded as the payload of a synthetic zeroth link with
// Type "ROOT".
func VerifyChain(chain Chain, expectedPayload string) (address string, err error) {
	if len(chain) == 0 {
		return "", fmt.Errorf("%w: empty chain", ErrInvalidChain)
	}
	if chain[0].Type != "ROOT" {
		return "", fmt.Errorf("%w: chain must start with a ROOT link", ErrInvalidChain)
	}

	rootPub, err := decodeHexPubKey(chain[0].Payload)
	if err != nil {
		return "", fmt.Errorf("%w: bad root key: %v", ErrInvalidChain, err)
	}
	address = Address(rootPub)
	currentSigner := rootPub

	for i := 1; i < len(chain); i++ {
		link := chain[i]
		sig, err := hex.DecodeString(link.Signature)
		if err != nil {
			return "", fmt.Errorf("%w: bad signature encoding at link %d: %v", ErrInvalidChain, i, err)
		}
		if !Verify([]byte(link.Payload), sig, currentSigner) {
			return "", fmt.Errorf("%w: signature verification failed at link %d", ErrInvalidChain, i)
		}

		switch link.Type {
		case "SIGNER":
			nextPub, err := decodeHexPubKey(link.Payload)
			if err != nil {
				return "", fmt.Errorf("%w: bad delegated key at link %d: %v", ErrInvalidChain, i, err)
			}
			currentSigner = nextPub
		case "PAYLOAD":
			if link.Payload != expectedPayload {
				return "", fmt.Errorf("%w: payload mismatch at link %d", ErrInvalidChain, i)
			}
			if i != len(chain)-1 {
				return "", fmt.Errorf("%w: PAYLOAD link must be terminal", ErrInvalidChain)
			}
		default:
			return "", fmt.Errorf("%w: unknown link type %q", ErrInvalidChain, link.Type)
		}
	}

	// A chain of just the ROOT link signs nothing; require at least one
	// PAYLOAD link so the challenge itself was actually attested.
	if chain[len(chain)-1].Type != "PAYLOAD" {
		return "", fmt.Errorf("%w: chain must terminate in a PAYLOAD link", ErrInvalidChain)
	}

	return address, nil
}

func decodeHexPubKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
