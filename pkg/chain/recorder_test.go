package chain_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/proofmesh/agent-verify-api/pkg/chain"
)

const testRegistryContract = "registry.proofmesh.test"

// recordingSigner collects every action it is asked to sign.
type recordingSigner struct {
	mu      sync.Mutex
	actions []chain.Action
	err     error
}

func (s *recordingSigner) SignAndSend(_ context.Context, action chain.Action) (*chain.Outcome, error) {
	s.mu.Lock()
	s.actions = append(s.actions, action)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &chain.Outcome{TransactionHash: "tx", SuccessValue: []byte("null")}, nil
}

func (s *recordingSigner) sent() []chain.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chain.Action(nil), s.actions...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRecorderDrainsQueue(t *testing.T) {
	t.Parallel()
	signer := &recordingSigner{}
	logger := zerolog.Nop()
	recorder := chain.NewRecorder(signer, testRegistryContract, 8, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error)
	go func() { done <- recorder.Run(ctx) }()

	recorder.Enqueue(chain.Invocation{AgentAccountID: "builder.agents.test", InvocationType: "verify_attestation"})

	waitFor(t, func() bool { return len(signer.sent()) == 1 })
	action := signer.sent()[0]
	require.Equal(t, testRegistryContract, action.ContractID)
	require.Equal(t, "record_invocation", action.Method)
	require.Zero(t, action.Deposit)

	var args chain.Invocation
	require.NoError(t, json.Unmarshal(action.Args, &args))
	require.Equal(t, "builder.agents.test", args.AgentAccountID)
	require.Equal(t, "verify_attestation", args.InvocationType)

	cancel()
	require.NoError(t, <-done)
}

func TestRecorderDropsWhenFull(t *testing.T) {
	t.Parallel()
	signer := &recordingSigner{}
	logger := zerolog.Nop()
	recorder := chain.NewRecorder(signer, testRegistryContract, 2, &logger)

	// No worker running: the third record must be dropped, not block.
	enqueued := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			recorder.Enqueue(chain.Invocation{AgentAccountID: "builder.agents.test", InvocationType: "verify_attestation"})
		}
		close(enqueued)
	}()
	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}

	// Draining afterwards records only the queued two.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error)
	go func() { done <- recorder.Run(ctx) }()

	waitFor(t, func() bool { return len(signer.sent()) == 2 })
	time.Sleep(20 * time.Millisecond)
	require.Len(t, signer.sent(), 2)

	cancel()
	require.NoError(t, <-done)
}

func TestRecorderFailureIsNotSurfaced(t *testing.T) {
	t.Parallel()
	signer := &recordingSigner{err: errors.New("rpc connection lost")}
	logger := zerolog.Nop()
	recorder := chain.NewRecorder(signer, testRegistryContract, 8, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error)
	go func() { done <- recorder.Run(ctx) }()

	recorder.Enqueue(chain.Invocation{AgentAccountID: "builder.agents.test", InvocationType: "verify_attestation"})

	// The call is retried and gives up without killing the worker.
	waitFor(t, func() bool { return len(signer.sent()) >= 3 })

	cancel()
	require.NoError(t, <-done)
}
