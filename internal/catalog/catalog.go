package catalog

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"smile-preview-backend/internal/editor"
)

type Style struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Image string `json:"image"`
}

type Shade struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Hex   string `json:"hex"`
}

type DialCode struct {
	Code string `json:"code"`
	Flag string `json:"flag"`
}

var styles = []Style{
	{ID: "natural", Title: "Natural", Image: "/tooth-types/natural.jpg"},
	{ID: "hollywood", Title: "Hollywood", Image: "/tooth-types/hollywood.jpg"},
	{ID: "oval", Title: "Oval", Image: "/tooth-types/oval.jpg"},
	{ID: "dominant", Title: "Dominant", Image: "/tooth-types/dominant.jpg"},
}

var shades = []Shade{
	{ID: "bl1", Title: "Extra White (BL1)", Hex: "#FFFFFF"},
	{ID: "bl3", Title: "Bright White (BL3)", Hex: "#F4F6F4"},
	{ID: "a1", Title: "Natural (A1)", Hex: "#EEEEE2"},
}

var dialCodes = []DialCode{
	{Code: "+1", Flag: "🇺🇸"},
	{Code: "+44", Flag: "🇬🇧"},
	{Code: "+90", Flag: "🇹🇷"},
	{Code: "+49", Flag: "🇩🇪"},
	{Code: "+33", Flag: "🇫🇷"},
}

// Quick generator preset. The persisted labels do not match the preset
// shade; they are what the sales team filters on.
const (
	QuickStyleID    = "natural"
	QuickShadeID    = "a1"
	QuickStyleLabel = "Natural (Quick)"
	QuickShadeLabel = "BL3 (Quick)"
)

func Styles() []Style {
	out := make([]Style, len(styles))
	copy(out, styles)
	return out
}

func Shades() []Shade {
	out := make([]Shade, len(shades))
	copy(out, shades)
	return out
}

func DialCodes() []DialCode {
	out := make([]DialCode, len(dialCodes))
	copy(out, dialCodes)
	return out
}

func StyleByID(id string) (Style, bool) {
	for _, s := range styles {
		if s.ID == id {
			return s, true
		}
	}
	return Style{}, false
}

func ShadeByID(id string) (Shade, bool) {
	for _, s := range shades {
		if s.ID == id {
			return s, true
		}
	}
	return Shade{}, false
}

// ReferenceLoader turns a style into an image the editor can use. With a
// base URL the reference is already public; otherwise it is read from disk
// and uploaded by the editor.
type ReferenceLoader struct {
	assetsDir string
	baseURL   string
}

func NewReferenceLoader(assetsDir, baseURL string) *ReferenceLoader {
	return &ReferenceLoader{assetsDir: assetsDir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (l *ReferenceLoader) Load(ctx context.Context, style Style) (editor.ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return editor.ImageRef{}, err
	}
	if l.baseURL != "" {
		return editor.Remote(l.baseURL + style.Image), nil
	}

	file := filepath.Join(l.assetsDir, filepath.FromSlash(strings.TrimPrefix(style.Image, "/")))
	data, err := os.ReadFile(file)
	if err != nil {
		return editor.ImageRef{}, fmt.Errorf("failed to read style reference %s: %w", style.ID, err)
	}

	contentType := mime.TypeByExtension(path.Ext(style.Image))
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return editor.Local(data, contentType, path.Base(style.Image)), nil
}
