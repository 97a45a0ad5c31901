// Package app wires the verification service into the HTTP layer.
package app

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/proofmesh/agent-verify-api/pkg/chain"
	"github.com/proofmesh/agent-verify-api/pkg/verify"
)

// CreateWebServer creates the verification web server.
func CreateWebServer(logger *zerolog.Logger, service *verify.Service, recorder *chain.Recorder, verifyEnabled bool) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return ErrorHandler(c, err, logger)
		},
		DisableStartupMessage: true,
	})
	ctrl := NewController(service, recorder, verifyEnabled, logger)
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(cors.New())
	app.Get("/", HealthCheck)
	app.Post("/verify-attestation", ctrl.VerifyAttestation)
	return app
}

// HealthCheck godoc
// @Summary Show the status of server.
// @Description get the status of server.
// @Tags root
// @Accept */*
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func HealthCheck(ctx *fiber.Ctx) error {
	res := map[string]any{
		"data": "Server is up and running",
	}

	return ctx.JSON(res)
}

// ErrorHandler logs recovered errors and returns JSON. Internal failures on
// the verification path come back with a result-shaped body so consumers can
// treat every response uniformly.
func ErrorHandler(ctx *fiber.Ctx, err error, logger *zerolog.Logger) error {
	code := fiber.StatusInternalServerError // Default 500 statuscode
	message := "Internal error."

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// don't log not found errors
	if code != fiber.StatusNotFound {
		logger.Err(err).Int("httpStatusCode", code).
			Str("httpPath", strings.TrimPrefix(ctx.Path(), "/")).
			Str("httpMethod", ctx.Method()).
			Msg("caught an error from http request")
	}

	if code == fiber.StatusInternalServerError {
		return ctx.Status(code).JSON(verify.Result{
			Valid:    false,
			Level:    verify.LevelNone,
			Reason:   message,
			Warnings: []string{},
		})
	}
	return ctx.Status(code).JSON(errorResp{Error: message})
}

type errorResp struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
