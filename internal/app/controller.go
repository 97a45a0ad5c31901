package app

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/proofmesh/agent-verify-api/pkg/chain"
	"github.com/proofmesh/agent-verify-api/pkg/verify"
)

const (
	minAccountIDLen = 2
	maxAccountIDLen = 64

	invocationTypeVerify = "verify_attestation"
)

// Controller handles verification requests.
type Controller struct {
	service       *verify.Service
	recorder      *chain.Recorder
	verifyEnabled bool
	logger        *zerolog.Logger
}

// NewController creates a Controller. The recorder may be nil when invocation
// recording is not configured.
func NewController(service *verify.Service, recorder *chain.Recorder, verifyEnabled bool, logger *zerolog.Logger) *Controller {
	return &Controller{
		service:       service,
		recorder:      recorder,
		verifyEnabled: verifyEnabled,
		logger:        logger,
	}
}

// VerifyAttestationRequest is the body of a verify-attestation call.
type VerifyAttestationRequest struct {
	AgentAccountID string             `json:"agentAccountId"`
	Attestation    verify.Attestation `json:"attestation"`
}

// VerifyAttestation godoc
// @Summary Verify an agent attestation
// @Description Verify a TEE attestation against the agent's registered codehash.
// @Tags verification
// @Accept json
// @Produce json
// @Param request body VerifyAttestationRequest true "Verification request"
// @Success 200 {object} verify.Result
// @Failure 400 {object} errorResp
// @Failure 403 {object} errorResp
// @Failure 500 {object} verify.Result
// @Router /verify-attestation [post]
func (c *Controller) VerifyAttestation(ctx *fiber.Ctx) error {
	if !c.verifyEnabled {
		return ctx.Status(fiber.StatusForbidden).JSON(errorResp{
			Error: "attestation verification is disabled",
		})
	}

	var req VerifyAttestationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(errorResp{
			Error:   "invalid request body",
			Details: err.Error(),
		})
	}
	if details := validateRequest(&req); details != "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(errorResp{
			Error:   "invalid request body",
			Details: details,
		})
	}

	result, err := c.service.VerifyAgent(ctx.Context(), req.AgentAccountID, req.Attestation)
	if err != nil {
		c.logger.Error().Err(err).Str("agentAccountId", req.AgentAccountID).Msg("Attestation verification could not be attempted")
		return ctx.Status(fiber.StatusInternalServerError).JSON(verify.Result{
			Valid:    false,
			Level:    verify.LevelNone,
			Reason:   "internal verification error",
			Warnings: []string{},
		})
	}

	if c.recorder != nil {
		c.recorder.Enqueue(chain.Invocation{
			AgentAccountID: req.AgentAccountID,
			InvocationType: invocationTypeVerify,
		})
	}

	return ctx.JSON(result)
}

// validateRequest returns a description of the first schema violation, or "".
func validateRequest(req *VerifyAttestationRequest) string {
	if len(req.AgentAccountID) < minAccountIDLen || len(req.AgentAccountID) > maxAccountIDLen {
		return fmt.Sprintf("agentAccountId must be between %d and %d characters", minAccountIDLen, maxAccountIDLen)
	}
	if req.Attestation.Codehash == "" {
		return "attestation.codehash is required"
	}
	if req.Attestation.TEEType == "" {
		return "attestation.teeType is required"
	}
	return ""
}
