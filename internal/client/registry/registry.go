// Package registry provides a client for the on-chain agent registry.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/proofmesh/agent-verify-api/pkg/verify"
)

// Client reads agent instances from the registry contract through the chain
// node's view-call RPC. It is the source of truth for registered codehashes;
// nothing the caller sends is ever trusted over it.
type Client struct {
	rpcClient  *rpc.Client
	contractID string
}

// New dials the chain node at rpcURL and reads from contractID.
func New(ctx context.Context, rpcURL, contractID string) (*Client, error) {
	if contractID == "" {
		return nil, fmt.Errorf("registry contract ID is required")
	}
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial registry RPC: %w", err)
	}
	return &Client{rpcClient: rpcClient, contractID: contractID}, nil
}

// viewRequest is the wire shape of a contract view call.
type viewRequest struct {
	ContractID string         `json:"contractId"`
	Method     string         `json:"method"`
	Args       map[string]any `json:"args"`
}

// agentInstance is the registry contract's instance record.
type agentInstance struct {
	AccountID string `json:"account_id"`
	Codehash  string `json:"codehash"`
}

// GetAgentInstance resolves an agent account ID to its registered instance.
// It returns verify.ErrAgentNotFound when the account has no registry entry.
func (c *Client) GetAgentInstance(ctx context.Context, accountID string) (*verify.AgentInstance, error) {
	var instance *agentInstance
	err := c.rpcClient.CallContext(ctx, &instance, "contract_view", viewRequest{
		ContractID: c.contractID,
		Method:     "get_agent_instance",
		Args:       map[string]any{"agent_account_id": accountID},
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, fmt.Errorf("%w: %s", verify.ErrAgentNotFound, accountID)
		}
		return nil, fmt.Errorf("registry view call failed: %w", err)
	}
	if instance == nil || instance.Codehash == "" {
		return nil, fmt.Errorf("%w: %s", verify.ErrAgentNotFound, accountID)
	}
	return &verify.AgentInstance{
		AccountID: instance.AccountID,
		Codehash:  instance.Codehash,
	}, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.rpcClient.Close()
}
