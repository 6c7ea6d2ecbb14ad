// Package providers contains dependency injection providers for the notes server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/notes-server/internal/config"
	"github.com/listenupapp/notes-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting notes server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.App.DataPath,
		"default_webhook", cfg.Enrichment.DefaultWebhookURL != "",
		"webhook_secret", cfg.Enrichment.WebhookSecret != "",
	)

	return log, nil
}
