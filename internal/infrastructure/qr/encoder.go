// Package qr renders verification URLs as PNG QR codes.
package qr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultMargin = 1
	DefaultScale  = 6
)

// Encoder produces medium error-correction QR codes with a quiet zone of
// Margin modules and Scale pixels per module.
type Encoder struct {
	Level  qrcode.RecoveryLevel
	Margin int
	Scale  int
}

func NewEncoder() *Encoder {
	return &Encoder{Level: qrcode.Medium, Margin: DefaultMargin, Scale: DefaultScale}
}

func (e *Encoder) Encode(_ context.Context, content string) ([]byte, error) {
	code, err := qrcode.New(content, e.Level)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	code.DisableBorder = true

	img := e.render(code.Bitmap())

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("qr png: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Encoder) render(modules [][]bool) image.Image {
	n := len(modules)
	side := (n + 2*e.Margin) * e.Scale

	img := image.NewPaletted(image.Rect(0, 0, side, side), color.Palette{color.White, color.Black})
	for y, row := range modules {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0 := (x + e.Margin) * e.Scale
			y0 := (y + e.Margin) * e.Scale
			for dy := 0; dy < e.Scale; dy++ {
				for dx := 0; dx < e.Scale; dx++ {
					img.SetColorIndex(x0+dx, y0+dy, 1)
				}
			}
		}
	}
	return img
}
