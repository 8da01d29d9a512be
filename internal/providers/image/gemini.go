package image

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"outfitswap/internal/domain"
	"outfitswap/internal/infra"
	"outfitswap/internal/providers/genai"
)

const (
	geminiProviderName = "Gemini"
	// APIKeyEnv is the variable checked first for the Gemini credential.
	APIKeyEnv = "GEMINI_API_KEY"
	// FallbackAPIKeyEnv is accepted when APIKeyEnv is unset.
	FallbackAPIKeyEnv = "API_KEY"
)

type geminiEditClient interface {
	EditImage(context.Context, genai.EditRequest) (*genai.ImageAsset, error)
	Model() string
}

// KeySource resolves the API key at call time.
type KeySource func() string

// EnvAPIKey reads the Gemini credential from the process environment.
func EnvAPIKey() string {
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(FallbackAPIKeyEnv))
}

// GeminiEditor maps the Editor contract onto a single Gemini generateContent
// call. It holds no mutable state.
type GeminiEditor struct {
	client      geminiEditClient
	keys        KeySource
	aspectRatio string
	prompt      string
	logger      *infra.Logger
}

// GeminiOption customises a GeminiEditor.
type GeminiOption func(*GeminiEditor)

// WithKeySource replaces the environment lookup, mostly for tests.
func WithKeySource(keys KeySource) GeminiOption {
	return func(e *GeminiEditor) {
		if keys != nil {
			e.keys = keys
		}
	}
}

// WithAspectRatio overrides DefaultAspectRatio.
func WithAspectRatio(aspect string) GeminiOption {
	return func(e *GeminiEditor) {
		if aspect = strings.TrimSpace(aspect); aspect != "" {
			e.aspectRatio = aspect
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *infra.Logger) GeminiOption {
	return func(e *GeminiEditor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewGeminiEditor wires a Gemini client into an Editor.
func NewGeminiEditor(client geminiEditClient, opts ...GeminiOption) *GeminiEditor {
	nop := zerolog.Nop()
	e := &GeminiEditor{
		client:      client,
		keys:        EnvAPIKey,
		aspectRatio: DefaultAspectRatio,
		prompt:      BuildEditPrompt(),
		logger:      &nop,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Edit fulfils the Editor interface. The credential is checked before any
// network activity and exactly one request is issued.
func (e *GeminiEditor) Edit(ctx context.Context, base, outfit Source) (*Result, error) {
	apiKey := e.keys()
	if apiKey == "" {
		return nil, &domain.ConfigurationError{Setting: APIKeyEnv}
	}
	if e.client == nil {
		return nil, &domain.ServiceError{Provider: geminiProviderName, Err: errors.New("gemini client not configured")}
	}

	requestID := RequestIDFromContext(ctx)
	asset, err := e.client.EditImage(ctx, genai.EditRequest{
		APIKey:      apiKey,
		Prompt:      e.prompt,
		AspectRatio: e.aspectRatio,
		RequestID:   requestID,
		Images: []genai.InlineImage{
			{MIME: normalizeFormat(base.MIME), Data: base.Data},
			{MIME: normalizeFormat(outfit.MIME), Data: outfit.Data},
		},
	})
	if err != nil {
		mapped := mapGeminiError(err)
		e.logger.Warn().
			Err(err).
			Str("request_id", requestID).
			Str("model", e.client.Model()).
			Msg("image: gemini edit failed")
		return nil, mapped
	}

	mime := normalizeFormat(asset.Format)
	return &Result{
		Reference: DataURI(mime, asset.Data),
		MIME:      mime,
		Data:      asset.Data,
		Width:     asset.Width,
		Height:    asset.Height,
	}, nil
}

func mapGeminiError(err error) error {
	var noImage *genai.NoImageError
	switch {
	case errors.As(err, &noImage):
		return &domain.NoResultError{Provider: geminiProviderName, Reason: noImage.Reason}
	case errors.Is(err, genai.ErrNoImage):
		return &domain.NoResultError{Provider: geminiProviderName}
	case errors.Is(err, genai.ErrMissingAPIKey):
		return &domain.ConfigurationError{Setting: APIKeyEnv}
	default:
		return &domain.ServiceError{Provider: geminiProviderName, Err: err}
	}
}

var _ Editor = (*GeminiEditor)(nil)
