package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/DIMO-Network/shared"
	"golang.org/x/sync/errgroup"

	"github.com/proofmesh/agent-verify-api/internal/app"
	"github.com/proofmesh/agent-verify-api/internal/client/registry"
	"github.com/proofmesh/agent-verify-api/internal/config"
	"github.com/proofmesh/agent-verify-api/pkg/chain"
	"github.com/proofmesh/agent-verify-api/pkg/server"
	"github.com/proofmesh/agent-verify-api/pkg/verify"
)

// @title                       Agent Verify API
// @version                     1.0
func main() {
	logger := server.DefaultLogger("agent-verify-api")

	// create a flag for the settings file
	settingsFile := flag.String("settings", "settings.yaml", "settings file")
	flag.Parse()
	settings, err := shared.LoadConfig[config.Settings](*settingsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Couldn't load settings.")
	}
	server.SetLevel(logger, settings.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registryClient, err := registry.New(ctx, settings.RPCURL, settings.RegistryContract)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create registry client.")
	}
	defer registryClient.Close()

	signer, err := chain.DialSigner(ctx, settings.RPCURL, settings.SignerAccountID)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transaction signer.")
	}
	defer signer.Close()

	var cache verify.Cache
	if settings.RedisURL != "" {
		redisCache, err := verify.NewRedisCache(ctx, settings.RedisURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to redis cache.")
		}
		defer redisCache.Close() //nolint:errcheck
		cache = redisCache
	} else {
		cache = verify.NewMemoryCache()
	}

	chainVerifier, err := buildChainVerifier(&settings)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure attestation verifiers.")
	}

	service := verify.NewService(registryClient, cache, chainVerifier, settings.VerificationCacheTTL, logger)
	recorder := chain.NewRecorder(signer, settings.RegistryContract, settings.RecordQueueSize, logger)

	webApp := app.CreateWebServer(logger, service, recorder, settings.AttestationVerifyEnabled)
	monApp := server.CreateMonitoringServer()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return recorder.Run(groupCtx)
	})

	logger.Info().Str("port", strconv.Itoa(settings.MonPort)).Msg("Starting monitoring server")
	server.RunFiber(groupCtx, monApp, ":"+strconv.Itoa(settings.MonPort), group)
	logger.Info().Str("port", strconv.Itoa(settings.Port)).Msg("Starting verification server")
	server.RunFiber(groupCtx, webApp, ":"+strconv.Itoa(settings.Port), group)

	err = group.Wait()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to run servers.")
	}
}

// buildChainVerifier registers the built-in nitro verifier plus one
// trust-anchor verifier per configured TEE type.
func buildChainVerifier(settings *config.Settings) (*verify.ChainVerifier, error) {
	opts := []verify.ChainVerifierOption{
		verify.WithSignatureVerifier(verify.TEETypeAWSNitro, verify.NewNitroVerifier()),
	}
	if settings.AttestationMaxAge > 0 {
		opts = append(opts, verify.WithMaxAge(settings.AttestationMaxAge))
	}
	for teeType, hexKey := range settings.TrustAnchors {
		anchor, err := verify.NewTrustAnchorVerifier(hexKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, verify.WithSignatureVerifier(teeType, anchor))
	}
	return verify.NewChainVerifier(opts...), nil
}
