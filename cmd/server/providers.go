package main

import (
	"context"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/narrator"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/notify"
)

// buildEmailSender picks the delivery backend from EMAIL_PROVIDER. A
// misconfigured provider falls back to the logging stub.
func buildEmailSender(ctx context.Context, cfg *config.Config, logger *slog.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			logger.Info("email provider configured", "provider", "sendgrid")
			return s
		}
		logger.Warn("SENDGRID_API_KEY missing, using stub email sender")
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("aws config failed, using stub email sender", "error", err)
			break
		}
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			logger.Info("email provider configured", "provider", "ses")
			return s
		}
	}
	return notify.NewStubEmailSender(logger)
}

// buildLLMClient chains the configured providers, OpenAI first. It returns
// nil when none is configured; the narrator then renders templates only.
// The returned cleanup closes provider connections.
func buildLLMClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (narrator.LLMClient, func()) {
	var chain []narrator.LLMClient
	cleanup := func() {}

	if cfg.OpenAIAPIKey != "" {
		if c, err := narrator.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.AITimeout); err != nil {
			logger.Warn("openai client disabled", "error", err)
		} else {
			chain = append(chain, c)
		}
	}

	if cfg.GeminiAPIKey != "" {
		if c, err := narrator.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err != nil {
			logger.Warn("gemini client disabled", "error", err)
		} else {
			chain = append(chain, c)
			cleanup = func() { _ = c.Close() }
		}
	}

	if cfg.BedrockModelID != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("bedrock client disabled", "error", err)
		} else if c, err := narrator.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID); err != nil {
			logger.Warn("bedrock client disabled", "error", err)
		} else {
			chain = append(chain, c)
		}
	}

	var client narrator.LLMClient
	for i := len(chain) - 1; i >= 0; i-- {
		client = narrator.NewFallbackLLMClient(chain[i], client, logger)
	}
	if client != nil {
		logger.Info("narration providers configured", "count", len(chain))
	}
	return client, cleanup
}
