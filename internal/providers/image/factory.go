package image

import (
	"fmt"
	"net/http"

	"outfitswap/internal/infra"
	"outfitswap/internal/providers/genai"
)

// NewEditorFromConfig selects the edit provider named by cfg.EditProvider.
func NewEditorFromConfig(cfg *infra.Config, logger *infra.Logger) (Editor, error) {
	switch cfg.EditProvider {
	case infra.EditProviderSynthetic:
		return NewSyntheticEditor(cfg.AspectRatio), nil
	case infra.EditProviderGemini, "":
		client, err := genai.NewClient(genai.Options{
			BaseURL:    cfg.GeminiBaseURL,
			Model:      cfg.GeminiModel,
			HTTPClient: &http.Client{Timeout: cfg.GeminiTimeout},
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("configure gemini client: %w", err)
		}
		if EnvAPIKey() == "" && logger != nil {
			logger.Warn().
				Str("model", client.Model()).
				Msgf("image: %s is not set; every job will fail until it is", APIKeyEnv)
		}
		return NewGeminiEditor(client,
			WithAspectRatio(cfg.AspectRatio),
			WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown edit provider %q", cfg.EditProvider)
	}
}
