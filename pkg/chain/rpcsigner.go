package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCSigner submits contract calls through a wallet daemon's JSON-RPC
// endpoint. The daemon owns the key material and may block a call on
// interactive user approval, so submissions can take unbounded real time and
// end in a rejection.
type RPCSigner struct {
	client   *rpc.Client
	signerID string
}

// DialSigner connects to the wallet daemon at rpcURL signing as signerID.
func DialSigner(ctx context.Context, rpcURL, signerID string) (*RPCSigner, error) {
	if signerID == "" {
		return nil, fmt.Errorf("signer account ID is required")
	}
	client, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet RPC: %w", err)
	}
	return &RPCSigner{client: client, signerID: signerID}, nil
}

// signRequest is the wire shape of a wallet_signAndSendTransaction call.
type signRequest struct {
	SignerID   string          `json:"signerId"`
	ContractID string          `json:"contractId"`
	Method     string          `json:"method"`
	Args       json.RawMessage `json:"args"`
	Gas        uint64          `json:"gas"`
	Deposit    uint64          `json:"deposit"`
}

// signResponse is the wire shape of the wallet's transaction outcome.
type signResponse struct {
	TransactionHash string `json:"transactionHash"`
	SuccessValue    string `json:"successValue"`
	FailureMessage  string `json:"failureMessage"`
}

// SignAndSend implements Signer.
func (s *RPCSigner) SignAndSend(ctx context.Context, action Action) (*Outcome, error) {
	var resp signResponse
	err := s.client.CallContext(ctx, &resp, "wallet_signAndSendTransaction", signRequest{
		SignerID:   s.signerID,
		ContractID: action.ContractID,
		Method:     action.Method,
		Args:       action.Args,
		Gas:        action.Gas,
		Deposit:    action.Deposit,
	})
	if err != nil {
		return nil, fmt.Errorf("wallet signing request failed: %w", err)
	}

	successValue, err := base64.StdEncoding.DecodeString(resp.SuccessValue)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction success value: %w", err)
	}
	return &Outcome{
		TransactionHash: resp.TransactionHash,
		SuccessValue:    successValue,
		FailureMessage:  resp.FailureMessage,
	}, nil
}

// Close releases the RPC connection.
func (s *RPCSigner) Close() {
	s.client.Close()
}
