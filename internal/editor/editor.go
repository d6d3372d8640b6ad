package editor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"smile-preview-backend/internal/falai"
)

// Fixed generation parameters.
const (
	DefaultModel = "fal-ai/nano-banana-pro/edit"
	AspectRatio  = "1:1"
	OutputFormat = "png"
	Resolution   = "1K"
	NumImages    = 1
)

// ImageRef is either image bytes we hold locally or a URL the provider can
// already fetch. Build one with Local or Remote.
type ImageRef struct {
	data        []byte
	contentType string
	name        string
	url         string
}

func Local(data []byte, contentType, name string) ImageRef {
	return ImageRef{data: data, contentType: contentType, name: name}
}

func Remote(url string) ImageRef {
	return ImageRef{url: url}
}

func (r ImageRef) IsRemote() bool { return r.url != "" }

func (r ImageRef) URL() string { return r.url }

func (r ImageRef) Data() []byte { return r.data }

func (r ImageRef) ContentType() string { return r.contentType }

func (r ImageRef) Name() string { return r.name }

// Uploader puts bytes somewhere the provider can read them.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType, fileName string) (string, error)
}

// Provider runs a queued model request to completion.
type Provider interface {
	Subscribe(ctx context.Context, model string, input any, onUpdate func(falai.QueueStatus), out any) (string, error)
}

type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("editor: upload source photo: %v", e.Err) }

func (e *UploadError) Unwrap() error { return e.Err }

type ReferenceResolutionError struct {
	Err error
}

func (e *ReferenceResolutionError) Error() string {
	return fmt.Sprintf("editor: resolve style reference: %v", e.Err)
}

func (e *ReferenceResolutionError) Unwrap() error { return e.Err }

// EmptyResultError means the job completed without any image.
type EmptyResultError struct {
	RequestID string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("editor: request %s returned no images", e.RequestID)
}

// GenerationError wraps a failed submit, poll or result fetch.
type GenerationError struct {
	RequestID string
	Err       error
}

func (e *GenerationError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("editor: generation failed: %v", e.Err)
	}
	return fmt.Sprintf("editor: generation %s failed: %v", e.RequestID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

type Client struct {
	uploader Uploader
	provider Provider
	model    string
	logger   zerolog.Logger
}

func NewClient(uploader Uploader, provider Provider, model string, logger zerolog.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		uploader: uploader,
		provider: provider,
		model:    model,
		logger:   logger.With().Str("component", "editor").Logger(),
	}
}

// BuildPrompt returns the edit instruction for a shade color.
func BuildPrompt(shadeHex string) string {
	return "Edit ONLY the FIRST image. Transform the person's teeth in the FIRST image to match the aesthetic style shown in the SECOND image (use it only as a style reference, do not include it in the output). " +
		"Apply tooth shade color " + shadeHex + " to the person's teeth in the FIRST image. " +
		"Make the teeth look healthy, perfectly aligned, and aesthetically pleasing while maintaining the person's EXACT facial features, identity, and the original photo composition. " +
		"The output must be ONLY the edited version of the FIRST image, nothing else. " +
		"Keep the same person, same face, same background, same everything - only improve the teeth."
}

// EditImage edits source toward the style reference and shade, returning the
// URL of the first result image. Any failure is returned as is; there is no
// retry here.
func (c *Client) EditImage(ctx context.Context, source, style ImageRef, shadeHex string) (string, error) {
	sourceURL, err := c.resolve(ctx, source)
	if err != nil {
		return "", &UploadError{Err: err}
	}

	styleURL, err := c.resolve(ctx, style)
	if err != nil {
		return "", &ReferenceResolutionError{Err: err}
	}

	input := falai.EditInput{
		Prompt:       BuildPrompt(shadeHex),
		ImageURLs:    []string{sourceURL, styleURL},
		NumImages:    NumImages,
		AspectRatio:  AspectRatio,
		OutputFormat: OutputFormat,
		Resolution:   Resolution,
	}

	c.logger.Info().
		Str("model", c.model).
		Str("shade", shadeHex).
		Msg("submitting edit request")

	var out falai.EditOutput
	requestID, err := c.provider.Subscribe(ctx, c.model, input, c.logUpdate, &out)
	if err != nil {
		return "", &GenerationError{RequestID: requestID, Err: err}
	}

	if len(out.Images) == 0 || strings.TrimSpace(out.Images[0].URL) == "" {
		return "", &EmptyResultError{RequestID: requestID}
	}

	c.logger.Info().
		Str("request_id", requestID).
		Str("result_url", out.Images[0].URL).
		Msg("edit request completed")

	return out.Images[0].URL, nil
}

func (c *Client) resolve(ctx context.Context, ref ImageRef) (string, error) {
	if ref.IsRemote() {
		return ref.url, nil
	}
	if len(ref.data) == 0 {
		return "", fmt.Errorf("image %q has no data", ref.name)
	}
	url, err := c.uploader.Upload(ctx, ref.data, ref.contentType, ref.name)
	if err != nil {
		return "", err
	}
	return url, nil
}

func (c *Client) logUpdate(status falai.QueueStatus) {
	evt := c.logger.Debug().Str("status", status.Status)
	if status.QueuePosition != nil {
		evt = evt.Int("queue_position", *status.QueuePosition)
	}
	evt.Msg("queue update")

	if status.Status == falai.StatusInProgress {
		for _, entry := range status.Logs {
			c.logger.Debug().Str("provider_log", entry.Message).Msg("generation progress")
		}
	}
}
