package model

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnsupportedImage is returned for files that are not jpg, jpeg or png.
var ErrUnsupportedImage = errors.New("unsupported image type")

// ErrMalformedDataURL is returned when a src value is not a data URL.
var ErrMalformedDataURL = errors.New("malformed data URL")

// AllowedExtensions lists the file extensions accepted for attachment.
var AllowedExtensions = []string{"jpg", "jpeg", "png"}

// JPEGQuality is used when re-encoding compressed photographs.
const JPEGQuality = 50

// ExtensionOf returns the lower-case extension of a file name without the dot.
func ExtensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// CheckExtension returns ErrUnsupportedImage unless ext is allowed.
func CheckExtension(ext string) error {
	if !slices.Contains(AllowedExtensions, strings.ToLower(ext)) {
		return fmt.Errorf("%w: %q (use jpg or png)", ErrUnsupportedImage, ext)
	}
	return nil
}

// MimeType returns the media type for an image extension.
func MimeType(ext string) string {
	switch strings.ToLower(ext) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	}
	return "application/octet-stream"
}

// ExtensionForMime returns the file extension implied by a media type, or ""
// when the type is unknown.
func ExtensionForMime(mime string) string {
	switch strings.ToLower(mime) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	}
	return ""
}

// DataURL encodes data as a base64 data URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a data URL into its media type and decoded payload.
// Both base64 and percent-encoded payloads are accepted.
func ParseDataURL(src string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrMalformedDataURL)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrMalformedDataURL)
	}

	params := strings.Split(header, ";")
	mime = params[0]
	encoded := slices.Contains(params[1:], "base64")

	if encoded {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return mime, nil, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
		}
		return mime, data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return mime, nil, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
	}
	return mime, []byte(text), nil
}

// EstimateSize approximates the decoded byte size of a data URL from the
// length of its encoded payload (padding excluded). The result is
// informational and may differ from the exact decoded length.
func EstimateSize(src string) int64 {
	_, payload, ok := strings.Cut(src, ",")
	if !ok {
		return 0
	}
	payload, _, _ = strings.Cut(payload, "=")
	n := int64(len(payload))
	return n - n/4
}

// Compress halves both dimensions of a jpg or png photograph and
// re-encodes it. PNG input stays PNG; anything else becomes JPEG at
// JPEGQuality. It returns the new payload and its extension.
func Compress(data []byte, ext string) ([]byte, string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	dst := halve(src)

	var buf bytes.Buffer
	if strings.ToLower(ext) == "png" {
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "png", nil
	}
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "jpeg", nil
}

// halve downsamples by averaging each 2x2 block. Images one pixel wide or
// tall keep that dimension.
func halve(src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := max(b.Dx()/2, 1), max(b.Dy()/2, 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, bl, a, n uint32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					sx, sy := b.Min.X+2*x+dx, b.Min.Y+2*y+dy
					if sx >= b.Max.X || sy >= b.Max.Y {
						continue
					}
					cr, cg, cb, ca := src.At(sx, sy).RGBA()
					r, g, bl, a = r+cr, g+cg, bl+cb, a+ca
					n++
				}
			}
			dst.SetRGBA(x, y, color.RGBA{
				R: uint8(r / n >> 8),
				G: uint8(g / n >> 8),
				B: uint8(bl / n >> 8),
				A: uint8(a / n >> 8),
			})
		}
	}
	return dst
}
