package config

import "time"

// Settings contains the application config.
type Settings struct {
	Environment string `yaml:"ENVIRONMENT"`
	LogLevel    string `yaml:"LOG_LEVEL"`
	Port        int    `yaml:"PORT"`
	MonPort     int    `yaml:"MON_PORT"`

	// RPCURL is the JSON-RPC endpoint of the chain node and wallet daemon.
	RPCURL string `yaml:"RPC_URL"`
	// SignerAccountID is the account the service signs contract calls as.
	SignerAccountID string `yaml:"SIGNER_ACCOUNT_ID"`
	// VerifierContract is the default zero-knowledge verifier contract.
	VerifierContract string `yaml:"VERIFIER_CONTRACT"`
	// RegistryContract holds agent instances and invocation records.
	RegistryContract string `yaml:"REGISTRY_CONTRACT"`

	// AttestationVerifyEnabled gates the verify-attestation endpoint entirely.
	AttestationVerifyEnabled bool `yaml:"ATTESTATION_VERIFY_ENABLED"`
	// VerificationCacheTTL bounds how long verification results are reused.
	VerificationCacheTTL time.Duration `yaml:"VERIFICATION_CACHE_TTL"`
	// AttestationMaxAge is the oldest acceptable attestation timestamp.
	AttestationMaxAge time.Duration `yaml:"ATTESTATION_MAX_AGE"`
	// RecordQueueSize bounds the invocation recording queue.
	RecordQueueSize int `yaml:"RECORD_QUEUE_SIZE"`

	// RedisURL, when set, switches the verification cache to a shared Redis
	// backend.
	RedisURL string `yaml:"REDIS_URL"`
	// TrustAnchors maps a TEE type to the hex-encoded secp256k1 public key
	// its attestation signatures are validated against.
	TrustAnchors map[string]string `yaml:"TRUST_ANCHORS"`
}
