// Package storage keeps uploaded media on the local filesystem under MEDIA_ROOT.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"libris/internal/observability"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Upload directories, relative to the media root.
const (
	BookCoversDir  = "books/covers"
	NewsImagesDir  = "news/images"
	UserAvatarsDir = "users/avatars"
)

const jpegQuality = 90

// maxDecodePixels bounds width*height before an upload is decoded.
const maxDecodePixels = 40_000_000

var (
	ErrEmptyUpload     = errors.New("The submitted file is empty.")
	ErrUnsupportedType = errors.New("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	ErrImageTooLarge   = errors.New("Image dimensions are too large.")
)

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Media stores images and builds their public URLs.
type Media struct {
	root     string
	baseURL  string
	maxBytes int64
	maxDim   int
}

// NewMedia returns a store rooted at root and served under mediaURL.
func NewMedia(root, mediaURL string, maxUploadMB, maxDimension int) *Media {
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}
	return &Media{
		root:     root,
		baseURL:  mediaURL,
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
		maxDim:   maxDimension,
	}
}

func (m *Media) Root() string { return m.root }

// MediaURL is the URL prefix media is served under, always ending in "/".
func (m *Media) MediaURL() string { return m.baseURL }

// SaveImage validates up, downscales it when it exceeds the configured
// dimension and writes it under dir. It returns the path relative to the root.
func (m *Media) SaveImage(dir string, up Upload) (string, error) {
	if len(up.Content) == 0 {
		return "", ErrEmptyUpload
	}
	if m.maxBytes > 0 && int64(len(up.Content)) > m.maxBytes {
		return "", fmt.Errorf("File too large (max %dMB).", m.maxBytes/(1024*1024))
	}
	if !isAllowedImageMIME(http.DetectContentType(up.Content)) {
		return "", ErrUnsupportedType
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(up.Content))
	if err != nil {
		return "", ErrUnsupportedType
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxDecodePixels {
		return "", ErrImageTooLarge
	}

	decoded, format, err := image.Decode(bytes.NewReader(up.Content))
	if err != nil {
		return "", ErrUnsupportedType
	}

	data, ext := up.Content, "."+format
	if format == "jpeg" {
		ext = ".jpg"
	}
	if resized := resizeToFit(decoded, m.maxDim); resized != decoded {
		data, ext, err = encode(resized, format)
		if err != nil {
			return "", err
		}
	}

	rel := path.Join(dir, uuid.NewString()+ext)
	if err := writeBytesToFile(filepath.Join(m.root, filepath.FromSlash(rel)), data); err != nil {
		return "", err
	}
	observability.MediaUploads.WithLabelValues(dir).Inc()
	return rel, nil
}

// Delete removes a stored file. Missing files are ignored.
func (m *Media) Delete(rel string) error {
	if rel == "" {
		return nil
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("refusing to delete %q outside media root", rel)
	}
	if err := os.Remove(filepath.Join(m.root, clean)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns the public URL of rel. With a non-empty origin such as
// "http://host:8000" the URL is absolute, otherwise it is root-relative.
// It returns nil when rel is empty.
func (m *Media) URL(origin, rel string) *string {
	if rel == "" {
		return nil
	}
	u := m.baseURL + strings.TrimPrefix(rel, "/")
	if origin != "" && !strings.Contains(m.baseURL, "://") {
		u = strings.TrimSuffix(origin, "/") + u
	}
	return &u
}

func resizeToFit(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || w <= 0 || h <= 0 || (w <= maxDim && h <= maxDim) {
		return src
	}

	scale := float64(maxDim) / float64(max(w, h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

// encode writes img in its source format where the standard encoders allow
// it. WebP sources are re-encoded as PNG.
func encode(img image.Image, format string) ([]byte, string, error) {
	buf := bytes.NewBuffer(nil)
	var err error
	ext := ".png"
	switch format {
	case "jpeg":
		ext = ".jpg"
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		ext = ".gif"
		err = gif.Encode(buf, img, nil)
	default:
		err = png.Encode(buf, img)
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), ext, nil
}

func isAllowedImageMIME(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func writeBytesToFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}
