package assistant

import (
	"fmt"

	"github.com/comigor/mrlift-console/internal/config"
	"github.com/comigor/mrlift-console/internal/logger"
)

// New builds the client selected by assistant.mode.
func New(cfg config.Config) (Client, error) {
	switch cfg.Assistant.Mode {
	case config.ModeMock:
		logger.L.Info("assistant mode mock; no network calls will be made")
		return NewMockClient(cfg.Assistant.MockDelay), nil
	case config.ModeOpenAI:
		api := NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
		return NewAssistantsClient(api, cfg.Assistant.AssistantID, cfg.OpenAI.PollInterval)
	case config.ModeHTTP, "":
		opts := []HTTPOption{WithTestKey(cfg.Assistant.TestKey)}
		if cfg.Assistant.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Assistant.Timeout))
		}
		return NewHTTPClient(cfg.Assistant.BaseURL, cfg.Assistant.AssistantID, opts...)
	default:
		return nil, fmt.Errorf("assistant: unknown mode %q", cfg.Assistant.Mode)
	}
}
