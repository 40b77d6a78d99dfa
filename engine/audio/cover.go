package audio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/nfnt/resize"
)

// MaxCoverSize bounds the artwork accepted for embedding.
const MaxCoverSize = 10 * 1024 * 1024

// DetectMIME sniffs the image type of data.
func DetectMIME(data []byte) string {
	return http.DetectContentType(data[:min(len(data), 512)])
}

// ResizeCover scales data down so that neither side exceeds maxPx and
// re-encodes it as JPEG. Images already within bounds are returned unchanged.
func ResizeCover(data []byte, maxPx int) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty cover")
	}
	if len(data) > MaxCoverSize {
		return nil, "", fmt.Errorf("cover image too large: %d bytes (max %d)", len(data), MaxCoverSize)
	}
	mime := DetectMIME(data)
	if maxPx <= 0 {
		return data, mime, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode cover: %w", err)
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	if width <= maxPx && height <= maxPx {
		return data, mime, nil
	}

	var scaled image.Image
	if width >= height {
		scaled = resize.Resize(uint(maxPx), 0, img, resize.Lanczos3)
	} else {
		scaled = resize.Resize(0, uint(maxPx), img, resize.Lanczos3)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, scaled, &jpeg.Options{Quality: 85}); err != nil {
		return nil, "", err
	}
	if out.Len() > 500*1024 {
		out.Reset()
		if err := jpeg.Encode(&out, scaled, &jpeg.Options{Quality: 60}); err != nil {
			return nil, "", err
		}
	}
	return out.Bytes(), "image/jpeg", nil
}
