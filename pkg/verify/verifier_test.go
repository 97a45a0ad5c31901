package verify_test

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/proofmesh/agent-verify-api/pkg/verify"
)

const testAccountID = "builder.agents.test"

// signedAttestation builds an attestation signed by a fresh trust-anchor key
// and returns it along with a verifier that trusts that key.
func signedAttestation(t *testing.T) (verify.Attestation, *verify.ChainVerifier) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	att := verify.Attestation{
		Codehash:            "8fe2b4a7d16c3e5f9a0b1c2d3e4f5a6b7c8d9e0f1a2b3c4d5e6f7a8b9c0d1e2f",
		TEEType:             verify.TEETypePhalaDstack,
		AttestationDocument: "eyJtZWFzdXJlbWVudCI6ICJvayJ9",
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
	}
	sig, err := crypto.Sign(verify.SigningDigest(att), key)
	require.NoError(t, err)
	att.Signature = hex.EncodeToString(sig)

	anchor, err := verify.NewTrustAnchorVerifier(hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey)))
	require.NoError(t, err)

	chainVerifier := verify.NewChainVerifier(
		verify.WithSignatureVerifier(verify.TEETypePhalaDstack, anchor),
	)
	return att, chainVerifier
}

func TestVerifyAttestationChain(t *testing.T) {
	t.Parallel()

	t.Run("agent not registered", func(t *testing.T) {
		t.Parallel()
		att, chainVerifier := signedAttestation(t)

		result := chainVerifier.VerifyAttestationChain(att, testAccountID, "")
		require.False(t, result.Valid)
		require.Equal(t, verify.LevelNone, result.Level)
		require.Contains(t, result.Reason, testAccountID)
	})

	t.Run("full pass with valid signature", func(t *testing.T) {
		t.Parallel()
		att, chainVerifier := signedAttestation(t)

		result := chainVerifier.VerifyAttestationChain(att, testAccountID, att.Codehash)
		require.True(t, result.Valid)
		require.Equal(t, verify.LevelFull, result.Level)
		require.Empty(t, result.Reason)
	})

	t.Run("codehash mismatch", func(t *testing.T) {
		t.Parallel()
		att, chainVerifier := signedAttestation(t)

		result := chainVerifier.VerifyAttestationChain(att, testAccountID, "another-codehash")
		require.False(t, result.Valid)
		require.NotEqual(t, verify.LevelFull, result.Level)
		require.Equal(t, "codehash mismatch", result.Reason)
		require.Len(t, result.Warnings, 1)
		require.Contains(t, result.Warnings[0], att.Codehash)
		require.Contains(t, result.Warnings[0], "another-codehash")
	})

	t.Run("tampered signature", func(t *testing.T) {
		t.Parallel()
		att, chainVerifier := signedAttestation(t)
		att.Codehash = att.Codehash[:len(att.Codehash)-1] + "0"

		result := chainVerifier.VerifyAttestationChain(att, testAccountID, att.Codehash)
		require.False(t, result.Valid)
		require.Equal(t, verify.LevelNone, result.Level)
		require.Equal(t, "signature verification failed", result.Reason)
	})

	t.Run("unsupported tee type falls back to structural", func(t *testing.T) {
		t.Parallel()
		att, chainVerifier := signedAttestation(t)
		att.TEEType = verify.TEETypeIntelSGX

		result := chainVerifier.VerifyAttestationChain(att, testAccountID, att.Codehash)
		require.True(t, result.Valid)
		require.Equal(t, verify.LevelStructural, result.Level)
		require.Len(t, result.Warnings, 1)
		require.Contains(t, result.Warnings[0], "cryptographic verification skipped")
	})

	t.Run("unrecognized tee type", func(t *testing.T) {
		t.Parallel()
		att, chainVerifier := signedAttestation(t)
		att.TEEType = "abacus"

		result := chainVerifier.VerifyAttestationChain(att, testAccountID, att.Codehash)
		require.False(t, result.Valid)
		require.Equal(t, verify.LevelNone, result.Level)
		require.Contains(t, result.Reason, "unrecognized teeType")
	})

	t.Run("missing fields", func(t *testing.T) {
		t.Parallel()
		att, chainVerifier := signedAttestation(t)

		for field, mutate := range map[string]func(*verify.Attestation){
			"codehash":  func(a *verify.Attestation) { a.Codehash = "" },
			"teeType":   func(a *verify.Attestation) { a.TEEType = "" },
			"signature": func(a *verify.Attestation) { a.Signature = "" },
			"timestamp": func(a *verify.Attestation) { a.Timestamp = "" },
		} {
			mutated := att
			mutate(&mutated)
			result := chainVerifier.VerifyAttestationChain(mutated, testAccountID, att.Codehash)
			require.False(t, result.Valid, "field %s", field)
			require.Equal(t, verify.LevelNone, result.Level, "field %s", field)
			require.Contains(t, result.Reason, field)
		}
	})

	t.Run("stale timestamp", func(t *testing.T) {
		t.Parallel()
		att, chainVerifier := signedAttestation(t)
		att.Timestamp = time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)

		result := chainVerifier.VerifyAttestationChain(att, testAccountID, att.Codehash)
		require.False(t, result.Valid)
		require.Equal(t, verify.LevelNone, result.Level)
		require.Contains(t, result.Reason, "outside acceptable window")
	})

	t.Run("unparseable timestamp", func(t *testing.T) {
		t.Parallel()
		att, chainVerifier := signedAttestation(t)
		att.Timestamp = "yesterday"

		result := chainVerifier.VerifyAttestationChain(att, testAccountID, att.Codehash)
		require.False(t, result.Valid)
		require.Equal(t, verify.LevelNone, result.Level)
		require.Contains(t, result.Reason, "invalid timestamp")
	})

	t.Run("issuer verified flag is ignored", func(t *testing.T) {
		t.Parallel()
		att, chainVerifier := signedAttestation(t)
		att.Verified = true

		result := chainVerifier.VerifyAttestationChain(att, testAccountID, "another-codehash")
		require.False(t, result.Valid)
	})
}

func TestLevelJSON(t *testing.T) {
	t.Parallel()

	for level, name := range map[verify.Level]string{
		verify.LevelFull:       `"full"`,
		verify.LevelStructural: `"structural"`,
		verify.LevelNone:       `"none"`,
	} {
		data, err := level.MarshalJSON()
		require.NoError(t, err)
		require.Equal(t, name, string(data))

		var decoded verify.Level
		require.NoError(t, decoded.UnmarshalJSON(data))
		require.Equal(t, level, decoded)
	}

	var decoded verify.Level
	require.Error(t, decoded.UnmarshalJSON([]byte(`"partial"`)))
}
