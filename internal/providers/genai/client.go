package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"outfitswap/internal/infra"
)

var (
	// ErrMissingAPIKey indicates that neither the client nor the request carried credentials.
	ErrMissingAPIKey = errors.New("genai: api key is required")
	// ErrNoImage indicates a successful response without any image part.
	ErrNoImage = errors.New("genai: no image data in response")
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the Gemini generateContent REST endpoint. It
// issues exactly one HTTP request per call and never retries.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// InlineImage is an image sent to the model as base64 inline data.
type InlineImage struct {
	MIME string
	Data []byte
}

// EditRequest represents the information required to edit images. APIKey,
// when set, takes precedence over the key the client was built with.
type EditRequest struct {
	APIKey      string
	Prompt      string
	Images      []InlineImage
	AspectRatio string
	RequestID   string
}

// ImageAsset is the normalized image returned by the Gemini client.
type ImageAsset struct {
	Format string
	Width  int
	Height int
	Data   []byte
}

// APIError is a non-2xx response from Gemini.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini status %d: %s", e.StatusCode, e.Message)
}

// NoImageError carries whatever the model said instead of returning an image.
type NoImageError struct {
	Reason string
}

func (e *NoImageError) Error() string {
	if e.Reason == "" {
		return ErrNoImage.Error()
	}
	return fmt.Sprintf("%s (%s)", ErrNoImage.Error(), e.Reason)
}

func (e *NoImageError) Is(target error) bool {
	return target == ErrNoImage
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with a generous timeout will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("genai: invalid base url: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// EditImage sends the prompt followed by the input images and returns the
// first image part of the response.
func (c *Client) EditImage(ctx context.Context, req EditRequest) (*ImageAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	apiKey := firstNonEmpty(strings.TrimSpace(req.APIKey), c.apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	parts := make([]geminiPart, 0, len(req.Images)+1)
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		parts = append(parts, geminiPart{Text: prompt})
	}
	for _, img := range req.Images {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: img.MIME,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	}
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		payload.GenerationConfig = &geminiGenerationConfig{
			ImageConfig: &geminiImageConfig{AspectRatio: aspect},
		}
	}

	var response geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model))
	if err := c.invokeGemini(ctx, apiKey, path, payload, &response); err != nil {
		return nil, err
	}

	var modelText string
	fileOnly := false
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if modelText == "" && strings.TrimSpace(part.Text) != "" {
				modelText = strings.TrimSpace(part.Text)
			}
			asset, err := decodeInlineAsset(part)
			if err != nil {
				return nil, err
			}
			if len(asset.Data) == 0 {
				if part.FileData != nil && part.FileData.FileURI != "" {
					fileOnly = true
				}
				continue
			}
			w, h := decodeImageDimensions(asset.Data)
			c.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", c.model).
				Str("mime", asset.Format).
				Int("bytes", len(asset.Data)).
				Msg("genai: received edited image")
			return &ImageAsset{
				Format: firstNonEmpty(asset.Format, "image/png"),
				Width:  w,
				Height: h,
				Data:   asset.Data,
			}, nil
		}
	}

	reason := modelText
	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		reason = "blocked: " + response.PromptFeedback.BlockReason
	} else if reason == "" && fileOnly {
		reason = "image returned as a file reference instead of inline data"
	} else if reason == "" && len(response.Candidates) > 0 && response.Candidates[0].FinishReason != "" {
		reason = "finish reason: " + response.Candidates[0].FinishReason
	}
	return nil, &NoImageError{Reason: reason}
}

type inlineAsset struct {
	Data   []byte
	Format string
}

func (c *Client) invokeGemini(ctx context.Context, apiKey, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", redactKey(err, apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

// decodeInlineAsset extracts inline image bytes. File references are not
// fetched: an edit is a single request, so they count as no image.
func decodeInlineAsset(part geminiPart) (inlineAsset, error) {
	if part.InlineData == nil || part.InlineData.Data == "" {
		return inlineAsset{}, nil
	}
	data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
	if err != nil {
		return inlineAsset{}, fmt.Errorf("decode inline data: %w", err)
	}
	return inlineAsset{Data: data, Format: part.InlineData.MimeType}, nil
}

// redactKey strips the API key from transport errors, which embed the full
// request URL.
func redactKey(err error, apiKey string) error {
	var urlErr *url.Error
	if apiKey != "" && errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, apiKey, "REDACTED")
	}
	return err
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
