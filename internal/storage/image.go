package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register gif
	"image/jpeg"
	_ "image/png" // register png
	"io"

	"golang.org/x/image/draw"
)

const (
	avatarSize    = 256
	avatarQuality = 85
	maxImageBytes = 5 << 20
)

var (
	ErrInvalidAvatar = errors.New("invalid avatar")
	ErrInvalidImage  = fmt.Errorf("%w: file is not a supported image", ErrInvalidAvatar)
	ErrImageTooLarge = fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidAvatar, maxImageBytes)
)

// NormalizeAvatar decodes an image, scales it to a square avatar and
// re-encodes it as JPEG
func NormalizeAvatar(r io.Reader) ([]byte, error) {
	src, _, err := image.Decode(io.LimitReader(r, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, avatarSize, avatarSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, centerSquare(src.Bounds()), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: avatarQuality}); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}

	return buf.Bytes(), nil
}

// centerSquare crops b to its largest centered square
func centerSquare(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w == h {
		return b
	}
	if w > h {
		off := (w - h) / 2
		return image.Rect(b.Min.X+off, b.Min.Y, b.Min.X+off+h, b.Max.Y)
	}
	off := (h - w) / 2
	return image.Rect(b.Min.X, b.Min.Y+off, b.Max.X, b.Min.Y+off+w)
}
