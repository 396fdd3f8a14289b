// Package imagenorm re-encodes uploaded site photos: EXIF orientation is
// applied and the longest side is bounded.
package imagenorm

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

// Normalize returns the re-encoded bytes and their content type. PNG input
// stays PNG; everything else decodable becomes JPEG.
func Normalize(data []byte, maxSide int) ([]byte, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	if maxSide > 0 {
		b := img.Bounds()
		if b.Dx() > maxSide || b.Dy() > maxSide {
			img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if format == "png" {
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, "", fmt.Errorf("encode png failed: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	}
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, "", fmt.Errorf("encode jpeg failed: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
