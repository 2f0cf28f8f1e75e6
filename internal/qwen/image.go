package qwen

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io"
	"os"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/massmux/QwenImageBot/internal/errors"
	"github.com/nfnt/resize"
	log "github.com/sirupsen/logrus"
)

const jpegQuality = 95

// ImageSource is an image to edit. The first non-empty field in the order
// Data, Open, Path, URL, Base64 is used.
type ImageSource struct {
	Data   []byte
	Open   func() (io.ReadCloser, error)
	Path   string
	URL    string
	Base64 string
}

func (s ImageSource) Empty() bool {
	return len(s.Data) == 0 && s.Open == nil && s.Path == "" && s.URL == "" && s.Base64 == ""
}

// Load reads the source into memory.
func (c *Client) Load(ctx context.Context, s ImageSource) ([]byte, error) {
	switch {
	case len(s.Data) > 0:
		return s.Data, nil
	case s.Open != nil:
		rc, err := s.Open()
		if err != nil {
			return nil, errors.New(errors.ImageMissingError, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, errors.New(errors.ImageMissingError, err)
		}
		return data, nil
	case s.Path != "":
		data, err := os.ReadFile(s.Path)
		if err != nil {
			return nil, errors.New(errors.ImageMissingError, err)
		}
		return data, nil
	case s.URL != "":
		return c.download(ctx, s.URL)
	case s.Base64 != "":
		data, err := DecodeBase64(s.Base64)
		if err != nil {
			return nil, errors.New(errors.ImageDecodeError, err)
		}
		return data, nil
	}
	return nil, errors.Create(errors.ImageMissingError)
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()
	resp, err := c.req.Get(url, ctx)
	if err != nil {
		return nil, errors.New(errors.ImageMissingError, err)
	}
	if status := resp.Response().StatusCode; status >= 300 {
		return nil, errors.New(errors.ImageMissingError, fmt.Errorf("download status %d", status))
	}
	data, err := resp.ToBytes()
	if err != nil {
		return nil, errors.New(errors.ImageMissingError, err)
	}
	log.Debugf("[qwen] downloaded %d bytes from %s", len(data), url)
	return data, nil
}

// DecodeBase64 decodes padded or unpadded base64, with or without a data URI prefix.
func DecodeBase64(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	return data, err
}

// EncodeDataURI decodes data, flattens it onto a white RGB canvas, bounds its
// size and re-encodes it as a JPEG data URI.
func EncodeDataURI(data []byte, maxEdge uint) (string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", errors.New(errors.ImageDecodeError, err)
	}
	b := img.Bounds()
	if maxEdge > 0 && (uint(b.Dx()) > maxEdge || uint(b.Dy()) > maxEdge) {
		img = resize.Thumbnail(maxEdge, maxEdge, img, resize.Lanczos3)
		log.Debugf("[qwen] resized %s image from %dx%d to %dx%d", format, b.Dx(), b.Dy(), img.Bounds().Dx(), img.Bounds().Dy())
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", errors.New(errors.ImageDecodeError, err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	rgb := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgb, rgb.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(rgb, rgb.Bounds(), img, b.Min, draw.Over)
	return rgb
}
