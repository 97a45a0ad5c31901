package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AgentRegistry resolves an agent account identifier to its registered
// instance. Implementations return ErrAgentNotFound when no entry exists.
type AgentRegistry interface {
	GetAgentInstance(ctx context.Context, accountID string) (*AgentInstance, error)
}

// Service ties the registry, the cache, and the chain verifier together into
// the verification entry point used by the HTTP layer.
type Service struct {
	registry AgentRegistry
	cache    Cache
	verifier *ChainVerifier
	ttl      time.Duration
	logger   *zerolog.Logger
}

// NewService creates a verification service. A ttl of zero uses
// DefaultCacheTTL.
func NewService(registry AgentRegistry, cache Cache, verifier *ChainVerifier, ttl time.Duration, logger *zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		registry: registry,
		cache:    cache,
		verifier: verifier,
		ttl:      ttl,
		logger:   logger,
	}
}

// VerifyAgent verifies the attestation claimed by accountID. Verification
// outcomes, including invalid attestations and unregistered agents, are
// returned as results; an error is returned only when verification could not
// be attempted, e.g. the registry was unreachable.
func (s *Service) VerifyAgent(ctx context.Context, accountID string, att Attestation) (Result, error) {
	key := CacheKey(accountID, att.Codehash, att.Signature)
	if cached, ok := s.cache.Get(ctx, key); ok {
		return *cached, nil
	}

	registeredCodehash := ""
	instance, err := s.registry.GetAgentInstance(ctx, accountID)
	switch {
	case errors.Is(err, ErrAgentNotFound):
		// Verified below as an unregistered agent; the negative result is
		// cached like any other.
	case err != nil:
		return Result{}, fmt.Errorf("registry lookup for %s failed: %w", accountID, err)
	default:
		registeredCodehash = instance.Codehash
	}

	result := s.verifier.VerifyAttestationChain(att, accountID, registeredCodehash)
	s.cache.Set(ctx, key, result, s.ttl)

	s.logger.Debug().
		Str("accountId", accountID).
		Bool("valid", result.Valid).
		Str("level", result.Level.String()).
		Msg("Attestation verification computed")
	return result, nil
}
