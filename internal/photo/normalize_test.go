package photo_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smile-preview-backend/internal/photo"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func TestNormalizeToSquare_LandscapeIsLetterboxedVertically(t *testing.T) {
	red := color.RGBA{R: 220, A: 255}
	data := encodeJPEG(t, solid(2048, 1536, red))

	asset, err := photo.NormalizeToSquare(bytes.NewReader(data), 1024, photo.OriginFile)
	require.NoError(t, err)

	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, 2048, asset.SourceWidth)
	assert.Equal(t, 1536, asset.SourceHeight)
	assert.Equal(t, photo.OriginFile, asset.Origin)

	out, err := png.Decode(bytes.NewReader(asset.Data))
	require.NoError(t, err)
	assert.Equal(t, 1024, out.Bounds().Dx())
	assert.Equal(t, 1024, out.Bounds().Dy())

	// 1536 * 0.5 = 768 tall, so 128px white bands above and below.
	top := color.RGBAModel.Convert(out.At(512, 60)).(color.RGBA)
	bottom := color.RGBAModel.Convert(out.At(512, 1000)).(color.RGBA)
	middle := color.RGBAModel.Convert(out.At(512, 512)).(color.RGBA)
	left := color.RGBAModel.Convert(out.At(2, 512)).(color.RGBA)

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, top)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, bottom)
	assert.Greater(t, middle.R, uint8(180))
	assert.Less(t, middle.G, uint8(60))
	assert.Greater(t, left.R, uint8(180), "landscape fills the full width")
	assert.Less(t, left.G, uint8(60))
}

func TestNormalizeImage_PortraitIsLetterboxedHorizontally(t *testing.T) {
	asset, err := photo.NormalizeImage(solid(300, 600, color.Black), 512, photo.OriginCamera)
	require.NoError(t, err)

	out, err := png.Decode(bytes.NewReader(asset.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 512, 512), out.Bounds())

	edge := color.RGBAModel.Convert(out.At(20, 256)).(color.RGBA)
	center := color.RGBAModel.Convert(out.At(256, 256)).(color.RGBA)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, edge)
	assert.Less(t, center.R, uint8(20))
}

func TestFitRect(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		edge int
		want image.Rectangle
	}{
		{"landscape", 2048, 1536, 1024, image.Rect(0, 128, 1024, 896)},
		{"portrait", 1536, 2048, 1024, image.Rect(128, 0, 896, 1024)},
		{"square", 700, 700, 1024, image.Rect(0, 0, 1024, 1024)},
		{"upscale small", 100, 50, 1024, image.Rect(0, 256, 1024, 768)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, photo.FitRect(tt.w, tt.h, tt.edge))
		})
	}
}

func TestFitRect_MarginsWithinOnePixel(t *testing.T) {
	for _, dims := range [][2]int{{1000, 333}, {333, 1000}, {1920, 1081}, {17, 1024}, {4032, 3024}} {
		r := photo.FitRect(dims[0], dims[1], 1024)
		assert.True(t, r.Dx() == 1024 || r.Dy() == 1024, "longer side fills the edge: %v", dims)

		lead, trail := r.Min.X, 1024-r.Max.X
		if r.Dx() == 1024 {
			lead, trail = r.Min.Y, 1024-r.Max.Y
		}
		diff := lead - trail
		assert.True(t, diff >= -1 && diff <= 1, "margins %d/%d for %v", lead, trail, dims)
	}
}

func TestNormalizeToSquare_DecodeError(t *testing.T) {
	_, err := photo.NormalizeToSquare(bytes.NewReader([]byte("definitely not an image")), 1024, photo.OriginFile)

	var decodeErr *photo.DecodeError
	require.True(t, errors.As(err, &decodeErr))
}

// hugePNG encodes a 1x1 PNG and rewrites its header to declare w×h.
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(1, 1, color.Gray{Y: 128})))
	data := buf.Bytes()

	// 8-byte signature, then IHDR: length, type, 13 bytes of data, crc.
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestNormalizeToSquare_RejectsOversizedDimensions(t *testing.T) {
	data := hugePNG(t, 40000, 40000)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 40000, cfg.Width)

	_, err = photo.NormalizeToSquare(bytes.NewReader(data), 1024, photo.OriginFile)

	var decodeErr *photo.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Contains(t, err.Error(), "exceeds")
}

func TestNormalizeToSquare_DecodesAfterHeaderCheck(t *testing.T) {
	asset, err := photo.NormalizeToSquare(bytes.NewReader(encodeJPEG(t, solid(64, 32, color.Black))), 128, photo.OriginFile)
	require.NoError(t, err)
	assert.Equal(t, 64, asset.SourceWidth)
	assert.Equal(t, 32, asset.SourceHeight)
}

func TestNormalizeImage_CanvasError(t *testing.T) {
	_, err := photo.NormalizeImage(solid(10, 10, color.White), 0, photo.OriginFile)

	var canvasErr *photo.CanvasError
	require.True(t, errors.As(err, &canvasErr))
}
