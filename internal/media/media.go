// Package media is the file input boundary: every image that enters the
// studio is reduced to raw bytes plus a MIME type before the core sees it.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"poster-studio/internal/apperr"
)

// Image is a binary image reference. Data marshals to base64 in JSON.
type Image struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Format selects the encoder used by Encode.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
)

// ParseFormat accepts jpeg/jpg/png, defaulting to JPEG.
func ParseFormat(value string) Format {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "png":
		return PNG
	default:
		return JPEG
	}
}

// MimeType returns the MIME type produced by the format's encoder.
func (f Format) MimeType() string {
	if f == PNG {
		return "image/png"
	}
	return "image/jpeg"
}

// DetectMIME resolves the MIME type of data. A declared type wins unless it is
// empty or generic, in which case the content is sniffed.
func DetectMIME(declared string, data []byte) string {
	mimeType := stripParams(declared)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = stripParams(http.DetectContentType(data))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return mimeType
}

func stripParams(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	return strings.ToLower(mimeType)
}

// New builds an Image from raw bytes, detecting the MIME type.
func New(data []byte, declaredMIME string) Image {
	return Image{MimeType: DetectMIME(declaredMIME, data), Data: data}
}

// Read reads r fully into an Image.
func Read(r io.Reader, declaredMIME string) (Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Image{}, fmt.Errorf("read file: %w", err)
	}
	return New(data, declaredMIME), nil
}

// IsZero reports whether the reference holds no data.
func (i Image) IsZero() bool {
	return len(i.Data) == 0
}

// Base64 returns the standard base64 encoding of the data.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the data: URL form.
func (i Image) DataURL() string {
	return "data:" + i.MimeType + ";base64," + i.Base64()
}

// FromBase64 decodes a plain base64 payload.
func FromBase64(data, mimeType string) (Image, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return Image{}, apperr.Wrap(apperr.CodeInvalidInput, err, "invalid base64 data")
	}
	return New(raw, mimeType), nil
}

// ParseDataURL decodes a data: URL. Bare base64 is accepted too, with the
// MIME type sniffed from the content.
func ParseDataURL(value string) (Image, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Image{}, apperr.New(apperr.CodeInvalidInput, "empty data url")
	}

	const prefix = "data:"
	if !strings.HasPrefix(value, prefix) {
		return FromBase64(value, "")
	}

	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return Image{}, apperr.New(apperr.CodeInvalidInput, "invalid data url")
	}

	meta := strings.TrimPrefix(parts[0], prefix)
	metaParts := strings.Split(meta, ";")
	return FromBase64(parts[1], metaParts[0])
}

// Validate rejects empty payloads and anything that is not image/*.
func Validate(img Image) error {
	if img.IsZero() {
		return apperr.New(apperr.CodeInvalidInput, "image file is empty")
	}
	if !strings.HasPrefix(img.MimeType, "image/") {
		return apperr.New(apperr.CodeInvalidInput, "invalid file type %q: please select an image file", img.MimeType)
	}
	return nil
}

// ValidateVideo rejects anything that is not video/*.
func ValidateVideo(img Image) error {
	if img.IsZero() {
		return apperr.New(apperr.CodeInvalidInput, "video file is empty")
	}
	if !strings.HasPrefix(img.MimeType, "video/") {
		return apperr.New(apperr.CodeInvalidInput, "invalid file type %q: please select a video file", img.MimeType)
	}
	return nil
}

// Decode decodes the image, honouring EXIF orientation.
func Decode(img Image) (image.Image, error) {
	if img.IsZero() {
		return nil, errors.New("image is empty")
	}
	out, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", img.MimeType, err)
	}
	return out, nil
}

// AspectRatio returns width/height read from the image header.
func AspectRatio(img Image) (float64, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeInvalidInput, err, "could not read image dimensions")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, apperr.New(apperr.CodeInvalidInput, "image has no dimensions")
	}
	return float64(cfg.Width) / float64(cfg.Height), nil
}

// Encode encodes src in the given format. quality applies to JPEG only.
func Encode(src image.Image, format Format, quality int) (Image, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case PNG:
		err = imaging.Encode(&buf, src, imaging.PNG)
	default:
		if quality <= 0 || quality > 100 {
			quality = 90
		}
		err = imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return Image{}, fmt.Errorf("encode %s: %w", format, err)
	}
	return Image{MimeType: format.MimeType(), Data: buf.Bytes()}, nil
}
