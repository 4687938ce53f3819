// Package imagegen generates and edits images and writes image prompts with
// Google's generative models.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/maauso/moments-api/internal/dataurl"
)

// Default models.
const (
	DefaultImageModel = "imagen-4.0-generate-001"
	DefaultEditModel  = "gemini-2.5-flash-image-preview"
	DefaultTextModel  = "gemini-2.5-flash"
)

// Static errors for image generation.
var (
	// ErrNoImage is returned when the model answers without an image.
	ErrNoImage = errors.New("imagegen: no image returned by the model")
	// ErrEmptyPrompt is returned when a generation prompt is blank.
	ErrEmptyPrompt = errors.New("imagegen: prompt is required")
	// ErrNoText is returned when a text model answers with nothing.
	ErrNoText = errors.New("imagegen: no text returned by the model")
)

const assistantRole = "You are a creative assistant for an AI image generator."

const (
	creativeInstruction = assistantRole + " Your task is to generate short, visually descriptive, and imaginative prompts for creating images. Return only the prompt itself."
	creativeRequest     = "Generate a random, creative, and visually descriptive image prompt. The prompt should be a single sentence, under 30 words."
	enhanceInstruction  = assistantRole + " Your task is to take a user's prompt and make it more visually descriptive, artistic, and detailed. Return only the enhanced prompt, without any conversational text."
	enhanceRequest      = "Take this prompt and make it more visually descriptive and artistic: %q"
)

// Image is a generated image.
type Image struct {
	// URL is the image as a data URL.
	URL string
	// MIMEType of the image.
	MIMEType string
	// RevisedPrompt is the prompt the model reports having used, if any.
	RevisedPrompt string
}

// Generator defines the image operations the studio uses.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string) (Image, error)
	EditImage(ctx context.Context, image []byte, mimeType, prompt string) (Image, error)
	CreativePrompt(ctx context.Context) (string, error)
	EnhancePrompt(ctx context.Context, prompt string) (string, error)
}

// Models is the subset of the genai models service used here.
type Models interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements Generator on top of genai.
type Client struct {
	models     Models
	imageModel string
	editModel  string
	textModel  string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithImageModel sets the text-to-image model.
func WithImageModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.imageModel = model
		}
	}
}

// WithEditModel sets the image editing model.
func WithEditModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.editModel = model
		}
	}
}

// WithTextModel sets the prompt writing model.
func WithTextModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.textModel = model
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client over a genai models service.
func NewClient(models Models, opts ...Option) *Client {
	c := &Client{
		models:     models,
		imageModel: DefaultImageModel,
		editModel:  DefaultEditModel,
		textModel:  DefaultTextModel,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewGenAIClient connects to the Gemini API with apiKey.
func NewGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("imagegen: create genai client: %w", err)
	}
	return client, nil
}

// GenerateImage renders one PNG from prompt.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return Image{}, ErrEmptyPrompt
	}

	resp, err := c.models.GenerateImages(ctx, c.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return Image{}, fmt.Errorf("imagegen: generate image: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return Image{}, ErrNoImage
	}

	generated := resp.GeneratedImages[0]
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		if generated.RAIFilteredReason != "" {
			return Image{}, fmt.Errorf("%w: %s", ErrNoImage, generated.RAIFilteredReason)
		}
		return Image{}, ErrNoImage
	}

	c.logger.Debug("image generated",
		slog.String("model", c.imageModel),
		slog.Int("bytes", len(generated.Image.ImageBytes)),
	)

	return Image{
		URL:           dataurl.Encode("image/png", generated.Image.ImageBytes),
		MIMEType:      "image/png",
		RevisedPrompt: generated.EnhancedPrompt,
	}, nil
}

// EditImage applies the instruction in prompt to image. The first image part
// of the answer is returned.
func (c *Client) EditImage(ctx context.Context, image []byte, mimeType, prompt string) (Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return Image{}, ErrEmptyPrompt
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		genai.NewPartFromText(prompt),
	}, genai.RoleUser)}

	resp, err := c.models.GenerateContent(ctx, c.editModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return Image{}, fmt.Errorf("imagegen: edit image: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Image{}, ErrNoImage
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			out := part.InlineData.MIMEType
			if out == "" {
				out = "image/png"
			}
			return Image{URL: dataurl.Encode(out, part.InlineData.Data), MIMEType: out}, nil
		}
		text.WriteString(part.Text)
	}

	if s := strings.TrimSpace(text.String()); s != "" {
		if len(s) > 512 {
			s = s[:512] + "..."
		}
		return Image{}, fmt.Errorf("%w: %s", ErrNoImage, s)
	}
	return Image{}, ErrNoImage
}

// CreativePrompt writes a random image prompt.
func (c *Client) CreativePrompt(ctx context.Context) (string, error) {
	return c.writePrompt(ctx, creativeInstruction, creativeRequest)
}

// EnhancePrompt rewrites prompt to be more descriptive. A blank prompt yields
// an empty string without calling the model.
func (c *Client) EnhancePrompt(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", nil
	}
	return c.writePrompt(ctx, enhanceInstruction, fmt.Sprintf(enhanceRequest, prompt))
}

func (c *Client) writePrompt(ctx context.Context, instruction, request string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.textModel, genai.Text(request), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("imagegen: write prompt: %w", err)
	}
	if resp == nil {
		return "", ErrNoText
	}

	text := cleanPrompt(resp.Text())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// cleanPrompt trims whitespace and one pair of surrounding quotes.
func cleanPrompt(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return s
}

// Verify interface implementation at compile time.
var _ Generator = (*Client)(nil)
