// Package chain submits zero-knowledge proofs and invocation records to the
// verifier and registry contracts through a wallet-signing interface.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CircuitType identifies the ZK circuit a proof was generated for.
type CircuitType string

const (
	CircuitVerifiedBuilder  CircuitType = "verified-builder"
	CircuitGrantTrackRecord CircuitType = "grant-track-record"
	CircuitTeamAttestation  CircuitType = "team-attestation"
)

// Groth16Proof is a Groth16 proof over the BN128 curve. The element arity
// (3 / 2x2 / 3) is fixed by the proving scheme and must not be altered.
type Groth16Proof struct {
	PiA      [3]string    `json:"pi_a"`
	PiB      [2][2]string `json:"pi_b"`
	PiC      [3]string    `json:"pi_c"`
	Protocol string       `json:"protocol"`
	Curve    string       `json:"curve"`
}

// Validate checks the proof carries the expected scheme markers and no empty
// elements.
func (p *Groth16Proof) Validate() error {
	if p.Protocol != "groth16" {
		return fmt.Errorf("unsupported proof protocol: %q", p.Protocol)
	}
	if p.Curve != "bn128" {
		return fmt.Errorf("unsupported proof curve: %q", p.Curve)
	}
	for i, e := range p.PiA {
		if e == "" {
			return fmt.Errorf("pi_a[%d] is empty", i)
		}
	}
	for i, row := range p.PiB {
		for j, e := range row {
			if e == "" {
				return fmt.Errorf("pi_b[%d][%d] is empty", i, j)
			}
		}
	}
	for i, e := range p.PiC {
		if e == "" {
			return fmt.Errorf("pi_c[%d] is empty", i)
		}
	}
	return nil
}

// Action is a single contract call to be signed and submitted.
type Action struct {
	ContractID string
	Method     string
	Args       json.RawMessage
	Gas        uint64
	// Deposit is the attached value in the chain's smallest unit. All calls
	// this package builds attach zero.
	Deposit uint64
}

// Outcome is the result of an executed transaction.
type Outcome struct {
	// TransactionHash identifies the transaction on the ledger.
	TransactionHash string
	// SuccessValue is the JSON-encoded return value when execution succeeded.
	SuccessValue []byte
	// FailureMessage is non-empty when the transaction executed and failed.
	FailureMessage string
}

// Signer signs and submits a contract call, suspending until the wallet (or
// the user behind it) approves or declines. Implementations must surface a
// declined signing as an error rather than hanging.
type Signer interface {
	SignAndSend(ctx context.Context, action Action) (*Outcome, error)
}

// WalletErrorKind categorizes recoverable wallet-interaction failures.
type WalletErrorKind string

const (
	WalletNotConnected WalletErrorKind = "wallet-not-connected"
	WalletUserRejected WalletErrorKind = "user-rejected"
	WalletNetworkError WalletErrorKind = "network-error"
	WalletTimeout      WalletErrorKind = "timeout"
)

// classifyWalletError maps a signing error onto a wallet-interaction
// category. The second return is false for errors that are not wallet
// interaction failures and must be treated as fatal.
func classifyWalletError(err error) (WalletErrorKind, bool) {
	if err == nil {
		return "", false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rejected") || strings.Contains(msg, "declined") || strings.Contains(msg, "denied"):
		return WalletUserRejected, true
	case strings.Contains(msg, "not connected") || strings.Contains(msg, "no wallet"):
		return WalletNotConnected, true
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded"):
		return WalletTimeout, true
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return WalletNetworkError, true
	default:
		return "", false
	}
}

// Fault indicates proof verification could not be attempted at all, as
// opposed to a verification that ran and returned false. Callers crash-safe
// against invalid proofs and declined signings should still treat a Fault as
// a genuine integration failure.
type Fault struct {
	err error
}

// NewFault wraps err as a fatal verification fault.
func NewFault(err error) *Fault {
	return &Fault{err: err}
}

// Error implements error.
func (f *Fault) Error() string {
	return fmt.Sprintf("On-chain proof verification failed: %v", f.err)
}

// Unwrap exposes the underlying cause.
func (f *Fault) Unwrap() error {
	return f.err
}
