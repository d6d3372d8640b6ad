package photo

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultEdgeLength is the canvas edge used by the funnel.
const DefaultEdgeLength = 1024

// MaxEdgeLength bounds the canvas allocation.
const MaxEdgeLength = 8192

// MaxSourcePixels bounds the decoded size of an input image. A few hundred
// kilobytes of PNG can declare dimensions worth gigabytes once decoded.
const MaxSourcePixels = 50_000_000

type Origin string

const (
	OriginFile   Origin = "file"
	OriginCamera Origin = "camera"
)

// Asset is a normalized photo: always square, PNG encoded, white letterboxed.
type Asset struct {
	ID           uuid.UUID
	Origin       Origin
	Data         []byte
	ContentType  string
	EdgeLength   int
	SourceWidth  int
	SourceHeight int
	CreatedAt    time.Time
}

// FileName is the name used when the asset is uploaded.
func (a *Asset) FileName() string {
	return "photo-" + a.ID.String() + ".png"
}

// DecodeError means the source bytes are not an image we can read.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("photo: decode source image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CanvasError means the square canvas could not be rasterized or encoded.
type CanvasError struct {
	Err error
}

func (e *CanvasError) Error() string {
	return fmt.Sprintf("photo: rasterize canvas: %v", e.Err)
}

func (e *CanvasError) Unwrap() error { return e.Err }

// NormalizeToSquare decodes r and fits it onto a white edge×edge canvas.
// Inputs declaring more than MaxSourcePixels are rejected before decoding.
func NormalizeToSquare(r io.Reader, edge int, origin Origin) (*Asset, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, &DecodeError{Err: fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxSourcePixels)}
	}

	src, _, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return NormalizeImage(src, edge, origin)
}

// NormalizeImage scales src so its longer side equals edge and centers it on
// a white square canvas. The shorter side is padded, never cropped.
func NormalizeImage(src image.Image, edge int, origin Origin) (*Asset, error) {
	if edge <= 0 || edge > MaxEdgeLength {
		return nil, &CanvasError{Err: fmt.Errorf("edge length %d out of range", edge)}
	}

	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &DecodeError{Err: fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())}
	}

	canvas := image.NewRGBA(image.Rect(0, 0, edge, edge))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(canvas, FitRect(b.Dx(), b.Dy(), edge), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, &CanvasError{Err: err}
	}

	return &Asset{
		ID:           uuid.New(),
		Origin:       origin,
		Data:         buf.Bytes(),
		ContentType:  "image/png",
		EdgeLength:   edge,
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// FitRect returns where a w×h image lands on an edge×edge canvas after
// scale-to-fit. Margins on the padded axis differ by at most one pixel.
func FitRect(w, h, edge int) image.Rectangle {
	dw, dh := edge, edge
	if w > h {
		dh = (h*edge + w/2) / w
	} else if h > w {
		dw = (w*edge + h/2) / h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	x := (edge - dw) / 2
	y := (edge - dh) / 2
	return image.Rect(x, y, x+dw, y+dh)
}
