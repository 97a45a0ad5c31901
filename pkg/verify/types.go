// Package verify implements attestation verification for registered agents.
package verify

import (
	"encoding/json"
	"fmt"
)

// Attestation is an unverified claim produced by a remote execution environment.
type Attestation struct {
	// Codehash is the hash of the code the TEE claims to be running.
	Codehash string `json:"codehash"`
	// TEEType identifies the attestation format, e.g. "aws-nitro".
	TEEType string `json:"teeType"`
	// AttestationDocument is the raw attestation document, base64 encoded.
	AttestationDocument string `json:"attestationDocument"`
	// Signature is the attestation signature, hex encoded.
	Signature string `json:"signature"`
	// Timestamp is the RFC 3339 time the attestation was produced.
	Timestamp string `json:"timestamp"`
	// Verified is the issuer's own claim and is never trusted by the verifier.
	Verified bool `json:"verified"`
}

// AgentInstance is a registry record for an agent account.
// Codehash is the only value the verifier trusts as ground truth.
type AgentInstance struct {
	AccountID string `json:"accountId"`
	Codehash  string `json:"codehash"`
}

// Level is the strength of a verification outcome.
type Level int

const (
	// LevelNone means verification was not established.
	LevelNone Level = iota
	// LevelStructural means the codehash and document shape matched but the
	// signature could not be cryptographically validated.
	LevelStructural
	// LevelFull means the attestation passed cryptographic signature validation.
	LevelFull
)

// String returns the wire name of the level.
func (l Level) String() string {
	switch l {
	case LevelFull:
		return "full"
	case LevelStructural:
		return "structural"
	case LevelNone:
		return "none"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// MarshalJSON encodes the level as its wire name.
func (l Level) MarshalJSON() ([]byte, error) {
	switch l {
	case LevelFull, LevelStructural, LevelNone:
		return json.Marshal(l.String())
	default:
		return nil, fmt.Errorf("unknown verification level %d", int(l))
	}
}

// UnmarshalJSON decodes a level from its wire name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "full":
		*l = LevelFull
	case "structural":
		*l = LevelStructural
	case "none":
		*l = LevelNone
	default:
		return fmt.Errorf("unknown verification level %q", s)
	}
	return nil
}

// Result is the outcome of verifying an attestation chain.
type Result struct {
	Valid    bool     `json:"valid"`
	Level    Level    `json:"level"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings"`
}

// VerifyError is a typed error for verification-related errors.
type VerifyError string

func (e VerifyError) Error() string { return string(e) }

const (
	// ErrAgentNotFound is returned by a registry lookup when the account has no
	// registered agent instance.
	ErrAgentNotFound = VerifyError("agent instance not found")
)
