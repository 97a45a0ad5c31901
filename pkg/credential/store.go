package credential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/proofmesh/agent-verify-api/pkg/chain"
)

// StoreError is a typed error for credential store errors.
type StoreError string

func (e StoreError) Error() string { return string(e) }

const (
	// ErrCredentialNotFound is returned when no credential exists for an ID.
	ErrCredentialNotFound = StoreError("credential not found")
	// ErrInvalidTransition is returned when a requested status change is not a
	// legal lifecycle edge.
	ErrInvalidTransition = StoreError("invalid credential status transition")
	// ErrProofRejected is returned when the verifier contract evaluated the
	// proof and rejected it. The credential keeps its stored status.
	ErrProofRejected = StoreError("proof rejected by verifier contract")
)

// Store holds credentials for the process lifetime and enforces the
// lifecycle state machine on every mutation. A credential that fails or
// expires stays that way; a new generation mints a new identifier.
type Store struct {
	mu       sync.RWMutex
	creds    map[string]*Credential
	anchored map[string]*OnChainCredential
	now      func() time.Time
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{
		creds:    make(map[string]*Credential),
		anchored: make(map[string]*OnChainCredential),
		now:      time.Now,
	}
}

// Create mints a pending credential for owner. A ttl of zero means the
// credential never expires.
func (s *Store) Create(owner string, circuit chain.CircuitType, claim string, ttl time.Duration) (*Credential, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate credential ID: %w", err)
	}
	now := s.now()
	cred := &Credential{
		ID:          id.String(),
		Owner:       owner,
		Circuit:     circuit,
		Claim:       claim,
		Status:      StatusPending,
		GeneratedAt: now,
	}
	if ttl > 0 {
		cred.ExpiresAt = now.Add(ttl)
	}
	s.mu.Lock()
	s.creds[cred.ID] = cred
	s.mu.Unlock()

	out := *cred
	return &out, nil
}

// Get returns a copy of the credential with its effective status applied.
// The stored status field is left untouched; expiry is a read-time view.
func (s *Store) Get(id string) (*Credential, error) {
	s.mu.RLock()
	cred, ok := s.creds[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrCredentialNotFound
	}
	out := *cred
	out.Status = cred.EffectiveStatus(s.now())
	return &out, nil
}

// SetProof attaches the generated proof and moves the credential from
// generating to ready.
func (s *Store) SetProof(id string, proof chain.Groth16Proof, publicSignals []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[id]
	if !ok {
		return ErrCredentialNotFound
	}
	if err := s.advanceLocked(cred, StatusReady); err != nil {
		return err
	}
	cred.Proof = proof
	cred.PublicSignals = publicSignals
	return nil
}

// Advance moves the credential to the next lifecycle status, rejecting
// illegal edges and transitions out of an effectively expired credential.
func (s *Store) Advance(id string, next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[id]
	if !ok {
		return ErrCredentialNotFound
	}
	return s.advanceLocked(cred, next)
}

func (s *Store) advanceLocked(cred *Credential, next Status) error {
	effective := cred.EffectiveStatus(s.now())
	if !CanTransition(effective, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, effective, next)
	}
	cred.Status = next
	return nil
}

// MarkOnChain moves a verified credential to on-chain and mints its
// immutable OnChainCredential record.
func (s *Store) MarkOnChain(id, transactionHash string) (*OnChainCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[id]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	if err := s.advanceLocked(cred, StatusOnChain); err != nil {
		return nil, err
	}
	record := &OnChainCredential{
		ID:              cred.ID,
		Owner:           cred.Owner,
		CircuitType:     cred.Circuit,
		PublicSignals:   append([]string(nil), cred.PublicSignals...),
		VerifiedAt:      s.now(),
		ExpiresAt:       cred.ExpiresAt,
		Claim:           cred.Claim,
		TransactionHash: transactionHash,
	}
	s.anchored[cred.ID] = record
	out := *record
	return &out, nil
}

// Anchored returns the on-chain record minted for the credential, if any.
func (s *Store) Anchored(id string) (*OnChainCredential, bool) {
	s.mu.RLock()
	record, ok := s.anchored[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	out := *record
	return &out, true
}

// VerifyOnChain submits the credential's proof to the verifier contract and,
// when the contract accepts it, walks the credential through verified to
// on-chain, minting its ledger record.
//
// A contract rejection or a declined signing returns ErrProofRejected and
// leaves the credential in its stored status; only genuine integration
// failures propagate as a *chain.Fault.
func (s *Store) VerifyOnChain(ctx context.Context, id string, signer chain.Signer, contractID string, opts *chain.VerifyOptions) (*OnChainCredential, error) {
	cred, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if cred.Status != StatusReady && cred.Status != StatusVerified {
		return nil, fmt.Errorf("%w: cannot verify credential in status %s", ErrInvalidTransition, cred.Status)
	}

	result, err := chain.VerifyProofOnChain(ctx, signer, contractID, &cred.Proof, cred.PublicSignals, opts)
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		detail := result.Error
		if detail == "" {
			detail = "transaction " + result.TransactionHash
		}
		return nil, fmt.Errorf("%w: %s", ErrProofRejected, detail)
	}

	if cred.Status == StatusReady {
		if err := s.Advance(id, StatusVerified); err != nil {
			return nil, err
		}
	}
	return s.MarkOnChain(id, result.TransactionHash)
}
