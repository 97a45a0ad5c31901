// Package server provides the shared logging and fiber lifecycle helpers.
package server

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultLogger creates a new logger with the given app name.
func DefaultLogger(appName string) *zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", appName).Logger()
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) == 40 {
				logger = logger.With().Str("commit", s.Value[:7]).Logger()
				break
			}
		}
	}
	return &logger
}

// SetLevel sets the log level for the logger if the level is not empty.
func SetLevel(logger *zerolog.Logger, level string) {
	if level != "" {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to parse log level.")
		}
		zerolog.SetGlobalLevel(lvl)
	}
}

// RunFiber runs a fiber server under the group and shuts it down when the
// context is cancelled.
func RunFiber(ctx context.Context, app *fiber.App, addr string, group *errgroup.Group) {
	group.Go(func() error {
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})
}

// CreateMonitoringServer creates the fiber app serving liveness and
// prometheus metrics.
func CreateMonitoringServer() *fiber.App {
	monApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	monApp.Get("/", func(c *fiber.Ctx) error { return nil })
	monApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return monApp
}
