package chain

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	// verifyProofGas is the fixed gas allowance attached to verify_proof calls.
	verifyProofGas uint64 = 300_000_000_000_000

	// methodOnChain marks results produced by the verifier contract.
	methodOnChain = "on-chain"
)

// VerifyOptions tunes a single on-chain verification.
type VerifyOptions struct {
	// ContractID overrides the default verifier contract.
	ContractID string
}

// VerificationResult is the outcome of an on-chain proof verification.
// IsValid false with an empty Error means the contract evaluated the proof
// and rejected it; a non-empty Error means the signing interaction failed in
// a recoverable way.
type VerificationResult struct {
	IsValid         bool   `json:"isValid"`
	Method          string `json:"method,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Error           string `json:"error,omitempty"`
}

// verifyProofArgs is the exact argument shape the verifier contract expects.
type verifyProofArgs struct {
	Proof         Groth16Proof `json:"proof"`
	PublicSignals []string     `json:"publicSignals"`
}

// VerifyProofOnChain submits the proof to the verifier contract through the
// caller-supplied signer and interprets the transaction outcome.
//
// Outcomes that mean "verification ran and said no" — the contract returning
// false, the transaction failing, or the wallet interaction being declined —
// come back as results with IsValid false and never as errors. Only failures
// that mean verification could not be attempted at all return a *Fault.
func VerifyProofOnChain(ctx context.Context, signer Signer, contractID string, proof *Groth16Proof, publicSignals []string, opts *VerifyOptions) (VerificationResult, error) {
	if signer == nil {
		return VerificationResult{}, NewFault(fmt.Errorf("no signer provided"))
	}
	if err := proof.Validate(); err != nil {
		return VerificationResult{}, NewFault(fmt.Errorf("invalid proof: %w", err))
	}
	if opts != nil && opts.ContractID != "" {
		contractID = opts.ContractID
	}
	if contractID == "" {
		return VerificationResult{}, NewFault(fmt.Errorf("no verifier contract configured"))
	}

	args, err := json.Marshal(verifyProofArgs{Proof: *proof, PublicSignals: publicSignals})
	if err != nil {
		return VerificationResult{}, NewFault(fmt.Errorf("failed to encode verify_proof args: %w", err))
	}

	outcome, err := signer.SignAndSend(ctx, Action{
		ContractID: contractID,
		Method:     "verify_proof",
		Args:       args,
		Gas:        verifyProofGas,
		Deposit:    0,
	})
	if err != nil {
		if kind, ok := classifyWalletError(err); ok {
			return VerificationResult{
				IsValid: false,
				Error:   fmt.Sprintf("wallet signing failed (%s): %v", kind, err),
			}, nil
		}
		return VerificationResult{}, NewFault(err)
	}

	if outcome.FailureMessage != "" {
		// The transaction executed and failed; the verification ran.
		return VerificationResult{
			IsValid:         false,
			Method:          methodOnChain,
			TransactionHash: outcome.TransactionHash,
		}, nil
	}

	var isValid bool
	if err := json.Unmarshal(outcome.SuccessValue, &isValid); err != nil {
		return VerificationResult{}, NewFault(fmt.Errorf("verifier contract returned a non-boolean value: %w", err))
	}

	return VerificationResult{
		IsValid:         isValid,
		Method:          methodOnChain,
		TransactionHash: outcome.TransactionHash,
	}, nil
}
