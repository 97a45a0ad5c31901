package verify

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// defaultMaxAge is the oldest an attestation timestamp may be.
	defaultMaxAge = time.Hour
	// maxClockSkew is how far in the future an attestation timestamp may be.
	maxClockSkew = 5 * time.Minute
)

// recognizedTEETypes are the attestation formats the verifier understands
// structurally. Types without a registered SignatureVerifier still pass the
// structural check but can never reach LevelFull.
var recognizedTEETypes = map[string]struct{}{
	TEETypeAWSNitro:    {},
	TEETypePhalaDstack: {},
	TEETypeIntelSGX:    {},
	TEETypeAMDSEV:      {},
}

const (
	TEETypeAWSNitro    = "aws-nitro"
	TEETypePhalaDstack = "phala-dstack"
	TEETypeIntelSGX    = "intel-sgx"
	TEETypeAMDSEV      = "amd-sev"
)

// SignatureVerifier cryptographically validates an attestation signature
// against the trust anchor for one TEE type.
type SignatureVerifier interface {
	Verify(att Attestation) error
}

// ChainVerifier validates attestation documents against registry-held
// reference codehashes. It holds no mutable state; verification is a pure
// function of the attestation and the registered codehash.
type ChainVerifier struct {
	verifiers map[string]SignatureVerifier
	maxAge    time.Duration
	now       func() time.Time
}

// ChainVerifierOption configures a ChainVerifier.
type ChainVerifierOption func(*ChainVerifier)

// WithSignatureVerifier registers a cryptographic verifier for a TEE type.
func WithSignatureVerifier(teeType string, v SignatureVerifier) ChainVerifierOption {
	return func(c *ChainVerifier) { c.verifiers[teeType] = v }
}

// WithMaxAge overrides the acceptable attestation age window.
func WithMaxAge(maxAge time.Duration) ChainVerifierOption {
	return func(c *ChainVerifier) { c.maxAge = maxAge }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ChainVerifierOption {
	return func(c *ChainVerifier) { c.now = now }
}

// NewChainVerifier creates a verifier with the given options.
func NewChainVerifier(opts ...ChainVerifierOption) *ChainVerifier {
	c := &ChainVerifier{
		verifiers: make(map[string]SignatureVerifier),
		maxAge:    defaultMaxAge,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VerifyAttestationChain checks the attestation for accountID against the
// registered codehash. An empty registeredCodehash means the agent has no
// registry entry. Verification failures are returned as results, never as
// errors.
func (c *ChainVerifier) VerifyAttestationChain(att Attestation, accountID, registeredCodehash string) Result {
	if registeredCodehash == "" {
		return Result{
			Valid:    false,
			Level:    LevelNone,
			Reason:   fmt.Sprintf("Agent instance not found: %s", accountID),
			Warnings: []string{},
		}
	}

	if reason := c.checkStructure(att); reason != "" {
		return Result{Valid: false, Level: LevelNone, Reason: reason, Warnings: []string{}}
	}

	if att.Codehash != registeredCodehash {
		return Result{
			Valid:  false,
			Level:  LevelNone,
			Reason: "codehash mismatch",
			Warnings: []string{
				fmt.Sprintf("attested codehash %s does not match registered codehash %s", att.Codehash, registeredCodehash),
			},
		}
	}

	verifier, ok := c.verifiers[att.TEEType]
	if !ok {
		return Result{
			Valid: true,
			Level: LevelStructural,
			Warnings: []string{
				fmt.Sprintf("cryptographic verification skipped: no signature verifier for teeType %s", att.TEEType),
			},
		}
	}
	if err := verifier.Verify(att); err != nil {
		return Result{
			Valid:    false,
			Level:    LevelNone,
			Reason:   "signature verification failed",
			Warnings: []string{err.Error()},
		}
	}

	return Result{Valid: true, Level: LevelFull, Warnings: []string{}}
}

// checkStructure returns a failure reason, or "" if the attestation is
// structurally sound.
func (c *ChainVerifier) checkStructure(att Attestation) string {
	switch {
	case att.Codehash == "":
		return "missing codehash"
	case att.TEEType == "":
		return "missing teeType"
	case att.Signature == "":
		return "missing signature"
	case att.Timestamp == "":
		return "missing timestamp"
	}
	if _, ok := recognizedTEETypes[att.TEEType]; !ok {
		return fmt.Sprintf("unrecognized teeType: %s", att.TEEType)
	}
	ts, err := time.Parse(time.RFC3339, att.Timestamp)
	if err != nil {
		return fmt.Sprintf("invalid timestamp: %v", err)
	}
	now := c.now()
	if ts.Before(now.Add(-c.maxAge)) || ts.After(now.Add(maxClockSkew)) {
		return fmt.Sprintf("attestation timestamp %s outside acceptable window", att.Timestamp)
	}
	return ""
}

// TrustAnchorVerifier validates secp256k1 attestation signatures against a
// configured trust-anchor public key. The signed digest is
// keccak256(codehash || attestationDocument || timestamp).
type TrustAnchorVerifier struct {
	pubKey []byte
}

// NewTrustAnchorVerifier parses a hex-encoded compressed or uncompressed
// secp256k1 public key.
func NewTrustAnchorVerifier(hexKey string) (*TrustAnchorVerifier, error) {
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode trust anchor key: %w", err)
	}
	if len(keyBytes) != 33 && len(keyBytes) != 65 {
		return nil, fmt.Errorf("invalid trust anchor key length: %d", len(keyBytes))
	}
	return &TrustAnchorVerifier{pubKey: keyBytes}, nil
}

// SigningDigest returns the digest a TEE must sign for the attestation to
// validate. Exported so issuers and tests construct signatures the same way.
func SigningDigest(att Attestation) []byte {
	return crypto.Keccak256([]byte(att.Codehash), []byte(att.AttestationDocument), []byte(att.Timestamp))
}

// Verify checks the attestation signature against the trust anchor.
func (v *TrustAnchorVerifier) Verify(att Attestation) error {
	sig, err := hex.DecodeString(strings.TrimPrefix(att.Signature, "0x"))
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}
	// Accept 65-byte recoverable signatures by dropping the recovery byte.
	if len(sig) == 65 {
		sig = sig[:64]
	}
	if len(sig) != 64 {
		return fmt.Errorf("invalid signature length: expected 64 bytes, got %d", len(sig))
	}
	if !crypto.VerifySignature(v.pubKey, SigningDigest(att), sig) {
		return fmt.Errorf("signature does not match trust anchor for teeType %s", att.TEEType)
	}
	return nil
}
