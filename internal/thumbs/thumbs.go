// Package thumbs generates fixed-width thumbnail variants for uploaded
// images, decoupled from the upload request by a job queue.
package thumbs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// ThumbKey returns the storage key of the width-pixel variant of the
// original at key.
func ThumbKey(key string, width int) string {
	return fmt.Sprintf("%s_%d", key, width)
}

// GenerateVariant reads an image and returns it resized to the given
// width, aspect ratio preserved, encoded in the format matching the
// original file name (JPEG when the extension is unknown).
func GenerateVariant(r io.Reader, name string, width int) ([]byte, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Resize(img, width, 0, imaging.Lanczos)

	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		format = imaging.JPEG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return nil, fmt.Errorf("encode %d-px variant: %w", width, err)
	}
	return buf.Bytes(), nil
}
