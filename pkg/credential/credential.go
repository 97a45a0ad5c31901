// Package credential tracks zero-knowledge credentials from generation to
// expiry and anchors verified credentials on chain.
package credential

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/proofmesh/agent-verify-api/pkg/chain"
)

// Status is a credential's position in its lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusGenerating
	StatusReady
	StatusVerified
	StatusOnChain
	StatusFailed
	StatusExpired
)

var statusNames = map[Status]string{
	StatusPending:    "pending",
	StatusGenerating: "generating",
	StatusReady:      "ready",
	StatusVerified:   "verified",
	StatusOnChain:    "on-chain",
	StatusFailed:     "failed",
	StatusExpired:    "expired",
}

// String returns the wire name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalJSON encodes the status as its wire name.
func (s Status) MarshalJSON() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown credential status %d", int(s))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a status from its wire name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for status, n := range statusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown credential status %q", name)
}

// Terminal reports whether no further transition can leave the status.
// OnChain is the sole success terminal; Failed and Expired do not self-heal.
func (s Status) Terminal() bool {
	return s == StatusOnChain || s == StatusFailed || s == StatusExpired
}

// transitions lists the forward edges of the lifecycle. Expiry is not listed:
// it is applied lazily at read time to any non-terminal credential whose
// ExpiresAt has passed.
var transitions = map[Status][]Status{
	StatusPending:    {StatusGenerating},
	StatusGenerating: {StatusReady, StatusFailed},
	StatusReady:      {StatusVerified},
	StatusVerified:   {StatusOnChain},
}

// CanTransition reports whether the lifecycle allows moving from one status
// to the next. No transition ever moves a credential backward.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Credential is a zero-knowledge credential and its lifecycle state.
type Credential struct {
	ID            string             `json:"id"`
	Owner         string             `json:"owner"`
	Circuit       chain.CircuitType  `json:"circuit"`
	Proof         chain.Groth16Proof `json:"proof"`
	PublicSignals []string           `json:"publicSignals"`
	Status        Status             `json:"status"`
	Claim         string             `json:"claim,omitempty"`
	GeneratedAt   time.Time          `json:"generatedAt"`
	ExpiresAt     time.Time          `json:"expiresAt,omitempty"`
}

// EffectiveStatus is the status as of now: a stored non-terminal status whose
// ExpiresAt has passed reads as expired even though the stored field is
// unchanged.
func (c *Credential) EffectiveStatus(now time.Time) Status {
	if !c.Status.Terminal() && !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt) {
		return StatusExpired
	}
	return c.Status
}

// OnChainCredential is the immutable, ledger-backed record minted when a
// verified credential is persisted on chain.
type OnChainCredential struct {
	ID              string            `json:"id"`
	Owner           string            `json:"owner"`
	CircuitType     chain.CircuitType `json:"circuitType"`
	PublicSignals   []string          `json:"publicSignals"`
	VerifiedAt      time.Time         `json:"verifiedAt"`
	ExpiresAt       time.Time         `json:"expiresAt"`
	Claim           string            `json:"claim,omitempty"`
	TransactionHash string            `json:"transactionHash"`
}
