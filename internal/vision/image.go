package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
)

const (
	// MaxDimension caps the longest side before a frame is sent upstream
	MaxDimension = 1024
	jpegQuality  = 70
)

// Frame is a decoded camera frame ready for the vision model
type Frame struct {
	MIME string
	Data []byte
}

// ParseDataURL decodes a data URL of the form
// data:image/jpeg;base64,<payload>. Raw base64 without the prefix is
// accepted and assumed to be JPEG.
func ParseDataURL(raw string) (*Frame, error) {
	mime := "image/jpeg"
	payload := raw

	if strings.HasPrefix(raw, "data:") {
		header, rest, ok := strings.Cut(raw[len("data:"):], ",")
		if !ok {
			return nil, fmt.Errorf("malformed data url")
		}
		if m, _, _ := strings.Cut(header, ";"); m != "" {
			mime = m
		}
		payload = rest
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}

	return &Frame{MIME: mime, Data: data}, nil
}

// Optimize shrinks a frame so its longest side is at most MaxDimension
// and re-encodes it as JPEG. Frames that cannot be decoded pass through
// unchanged so an odd encoding never blocks a turn.
func Optimize(frame *Frame) *Frame {
	img, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return frame
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if longest := max(width, height); longest > MaxDimension {
		scale := float64(MaxDimension) / float64(longest)
		width = int(float64(width) * scale)
		height = int(float64(height) * scale)

		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return frame
	}

	// Re-encoding tiny images can grow them; keep whichever is smaller
	if buf.Len() >= len(frame.Data) && frame.MIME == "image/jpeg" {
		return frame
	}

	return &Frame{MIME: "image/jpeg", Data: buf.Bytes()}
}
