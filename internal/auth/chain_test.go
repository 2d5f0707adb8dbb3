package auth

import (
	"encoding/hex"
	"testing"
)

func buildTestChain(t *testing.T, root *Keypair, payload string) Chain {
	t.Helper()
	delegated, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate delegated key: %v", err)
	}

	delegatedPubHex := hex.EncodeToString(delegated.PublicKey)
	signerSig := Sign([]byte(delegatedPubHex), root.PrivateKey)
	payloadSig := Sign([]byte(payload), delegated.PrivateKey)

	return Chain{
		{Type: "ROOT", Payload: hex.EncodeToString(root.PublicKey)},
		{Type: "SIGNER", Payload: delegatedPubHex, Signature: hex.EncodeToString(signerSig)},
		{Type: "PAYLOAD", Payload: payload, Signature: hex.EncodeToString(payloadSig)},
	}
}

func TestVerifyChainRecoversRootAddress(t *testing.T) {
	root, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate root key: %v", err)
	}

	chain := buildTestChain(t, root, "signature_challenge_abc123")

	addr, err := VerifyChain(chain, "signature_challenge_abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != Address(root.PublicKey) {
		t.Errorf("expected address %s, got %s", Address(root.PublicKey), addr)
	}
}

func TestVerifyChainRejectsPayloadMismatch(t *testing.T) {
	root, _ := GenerateKeypair()
	chain := buildTestChain(t, root, "signature_challenge_abc123")

	if _, err := VerifyChain(chain, "signature_challenge_different"); err == nil {
		t.Fatal("expected error for mismatched payload")
	}
}

func TestVerifyChainRejectsTamperedSignature(t *testing.T) {
	root, _ := GenerateKeypair()
	chain := buildTestChain(t, root, "signature_challenge_abc123")
	chain[len(chain)-1].Signature = hex.EncodeToString([]byte("not-a-real-signature-00000000000"))

	if _, err := VerifyChain(chain, "signature_challenge_abc123"); err == nil {
		t.Fatal("expected error for tampered signature")
	}
}

func TestVerifyChainRejectsEmptyChain(t *testing.T) {
	if _, err := VerifyChain(nil, "anything"); err == nil {
		t.Fatal("expected error for empty chain")
	}
}

func TestVerifyChainRequiresRootFirst(t *testing.T) {
	chain := Chain{{Type: "PAYLOAD", Payload: "x", Signature: "00"}}
	if _, err := VerifyChain(chain, "x"); err == nil {
		t.Fatal("expected error when chain does not start with ROOT")
	}
}
