package parse

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned for images outside the accepted formats.
var ErrUnsupportedImage = errors.New("unsupported image format")

var imageFormats = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ImageInfo describes an encoded raster image.
type ImageInfo struct {
	Format    string
	MediaType string
	Width     int
	Height    int
}

// ProbeImage reads just enough of r to learn the format and dimensions.
func ProbeImage(r io.Reader) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return ImageInfo{}, ErrUnsupportedImage
		}
		return ImageInfo{}, fmt.Errorf("failed to read image header: %w", err)
	}
	mediaType, ok := imageFormats[format]
	if !ok {
		return ImageInfo{}, ErrUnsupportedImage
	}
	return ImageInfo{Format: format, MediaType: mediaType, Width: cfg.Width, Height: cfg.Height}, nil
}

// Extension returns the file extension used when storing images of info's format.
func (info ImageInfo) Extension() string {
	if info.Format == "jpeg" {
		return ".jpg"
	}
	return "." + info.Format
}

// DataURI is a decoded base64 data URI.
type DataURI struct {
	MediaType string
	Data      []byte
}

// ParseDataURI decodes a "data:<media type>;base64,<payload>" string.
func ParseDataURI(s string) (DataURI, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return DataURI{}, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, fmt.Errorf("data URI has no payload")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return DataURI{}, fmt.Errorf("only base64 data URIs are supported")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return DataURI{}, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return DataURI{MediaType: mediaType, Data: data}, nil
}

// ProbeDataURI returns the dimensions of an image inlined as a data URI.
func ProbeDataURI(s string) (ImageInfo, error) {
	uri, err := ParseDataURI(s)
	if err != nil {
		return ImageInfo{}, err
	}
	return ProbeImage(bytes.NewReader(uri.Data))
}

// EncodeDataURI builds a base64 data URI.
func EncodeDataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
