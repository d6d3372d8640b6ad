package editor_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smile-preview-backend/internal/editor"
	"smile-preview-backend/internal/falai"
)

type fakeUploader struct {
	uploads []string
	fail    map[string]error
}

func (u *fakeUploader) Upload(ctx context.Context, data []byte, contentType, fileName string) (string, error) {
	if err := u.fail[fileName]; err != nil {
		return "", err
	}
	u.uploads = append(u.uploads, fileName)
	return "https://cdn.test/" + fileName, nil
}

type fakeProvider struct {
	input  falai.EditInput
	model  string
	output falai.EditOutput
	err    error
}

func (p *fakeProvider) Subscribe(ctx context.Context, model string, input any, onUpdate func(falai.QueueStatus), out any) (string, error) {
	p.model = model
	p.input = input.(falai.EditInput)
	if onUpdate != nil {
		onUpdate(falai.QueueStatus{Status: falai.StatusInProgress, Logs: []falai.LogEntry{{Message: "working"}}})
	}
	if p.err != nil {
		return "req-x", p.err
	}
	raw, _ := json.Marshal(p.output)
	return "req-x", json.Unmarshal(raw, out)
}

func TestEditImage_OrdersTargetBeforeReference(t *testing.T) {
	uploader := &fakeUploader{}
	provider := &fakeProvider{output: falai.EditOutput{Images: []falai.Image{{URL: "https://out/1.png"}, {URL: "https://out/2.png"}}}}
	client := editor.NewClient(uploader, provider, "", zerolog.Nop())

	url, err := client.EditImage(context.Background(),
		editor.Local([]byte("photo"), "image/png", "photo.png"),
		editor.Local([]byte("ref"), "image/jpeg", "hollywood.jpg"),
		"#FFFFFF")

	require.NoError(t, err)
	assert.Equal(t, "https://out/1.png", url)
	assert.Equal(t, editor.DefaultModel, provider.model)
	assert.Equal(t, []string{"https://cdn.test/photo.png", "https://cdn.test/hollywood.jpg"}, provider.input.ImageURLs)
	assert.Contains(t, provider.input.Prompt, "#FFFFFF")
	assert.Equal(t, "1:1", provider.input.AspectRatio)
	assert.Equal(t, "png", provider.input.OutputFormat)
	assert.Equal(t, "1K", provider.input.Resolution)
	assert.Equal(t, 1, provider.input.NumImages)
}

func TestEditImage_RemoteRefsAreNotUploaded(t *testing.T) {
	uploader := &fakeUploader{}
	provider := &fakeProvider{output: falai.EditOutput{Images: []falai.Image{{URL: "https://out/1.png"}}}}
	client := editor.NewClient(uploader, provider, "m", zerolog.Nop())

	_, err := client.EditImage(context.Background(),
		editor.Remote("https://cdn/photo.png"),
		editor.Remote("https://cdn/oval.jpg"),
		"#EEEEE2")

	require.NoError(t, err)
	assert.Empty(t, uploader.uploads)
	assert.Equal(t, []string{"https://cdn/photo.png", "https://cdn/oval.jpg"}, provider.input.ImageURLs)
}

func TestEditImage_Errors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("source upload", func(t *testing.T) {
		client := editor.NewClient(&fakeUploader{fail: map[string]error{"photo.png": boom}}, &fakeProvider{}, "", zerolog.Nop())
		_, err := client.EditImage(context.Background(), editor.Local([]byte("x"), "image/png", "photo.png"), editor.Remote("https://r"), "#FFF")

		var target *editor.UploadError
		require.True(t, errors.As(err, &target))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("reference upload", func(t *testing.T) {
		client := editor.NewClient(&fakeUploader{fail: map[string]error{"ref.jpg": boom}}, &fakeProvider{}, "", zerolog.Nop())
		_, err := client.EditImage(context.Background(), editor.Remote("https://p"), editor.Local([]byte("x"), "image/jpeg", "ref.jpg"), "#FFF")

		var target *editor.ReferenceResolutionError
		require.True(t, errors.As(err, &target))
	})

	t.Run("empty reference", func(t *testing.T) {
		client := editor.NewClient(&fakeUploader{}, &fakeProvider{}, "", zerolog.Nop())
		_, err := client.EditImage(context.Background(), editor.Remote("https://p"), editor.Local(nil, "image/jpeg", "ref.jpg"), "#FFF")

		var target *editor.ReferenceResolutionError
		require.True(t, errors.As(err, &target))
	})

	t.Run("no images", func(t *testing.T) {
		client := editor.NewClient(&fakeUploader{}, &fakeProvider{}, "", zerolog.Nop())
		_, err := client.EditImage(context.Background(), editor.Remote("https://p"), editor.Remote("https://r"), "#FFF")

		var target *editor.EmptyResultError
		require.True(t, errors.As(err, &target))
		assert.Equal(t, "req-x", target.RequestID)
	})

	t.Run("provider failure", func(t *testing.T) {
		client := editor.NewClient(&fakeUploader{}, &fakeProvider{err: boom}, "", zerolog.Nop())
		_, err := client.EditImage(context.Background(), editor.Remote("https://p"), editor.Remote("https://r"), "#FFF")

		var target *editor.GenerationError
		require.True(t, errors.As(err, &target))
		assert.ErrorIs(t, err, boom)
	})
}

func TestBuildPrompt(t *testing.T) {
	prompt := editor.BuildPrompt("#F4F6F4")

	assert.Contains(t, prompt, "#F4F6F4")
	assert.Contains(t, prompt, "do not include it in the output")
	assert.Contains(t, prompt, "EXACT facial features, identity")
}
