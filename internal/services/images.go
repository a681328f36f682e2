package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/tomymiron/ETH-Global/internal/ids"
	"github.com/tomymiron/ETH-Global/internal/storage"
)

const (
	// MaxImageSize bounds profile image uploads.
	MaxImageSize = 25 << 20
	// MaxImagePixels bounds the decoded size of a profile image.
	MaxImagePixels = 40_000_000

	profileImagePrefix = "profile_images"
	profileImageSide   = 360
	jpegQuality        = 85
)

// ObjectStore is the subset of object storage used for profile images.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProfileImages stores profile pictures and serves them as square
// thumbnails.
type ProfileImages struct {
	objects ObjectStore
}

func NewProfileImages(objects ObjectStore) *ProfileImages {
	return &ProfileImages{objects: objects}
}

// Save stores the upload under a fresh name and returns that name. Files
// that are not decodable images, or exceed the pixel cap, are rejected.
func (p *ProfileImages) Save(ctx context.Context, upload Upload) (string, error) {
	if upload.Body == nil || upload.Size > MaxImageSize {
		return "", ErrInvalidInput
	}
	data, err := io.ReadAll(io.LimitReader(upload.Body, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read profile image: %w", err)
	}
	if len(data) > MaxImageSize {
		return "", ErrInvalidInput
	}
	if err := checkImageBounds(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	name := ids.New() + strings.ToLower(filepath.Ext(upload.Filename))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := p.objects.Put(ctx, profileImageKey(name), bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("store profile image: %w", err)
	}
	return name, nil
}

// Remove deletes a stored profile image.
func (p *ProfileImages) Remove(ctx context.Context, name string) error {
	return p.objects.Delete(ctx, profileImageKey(name))
}

// Thumbnail returns the named image center-cropped and scaled to
// 360x360, encoded as JPEG.
func (p *ProfileImages) Thumbnail(ctx context.Context, name string) ([]byte, error) {
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `\`) {
		return nil, ErrImageNotFound
	}

	reader, err := p.objects.Get(ctx, profileImageKey(name))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("load profile image: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("load profile image: %w", err)
	}
	if err := checkImageBounds(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode profile image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, profileImageSide, profileImageSide))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds()), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode profile image: %w", err)
	}
	return buf.Bytes(), nil
}

// checkImageBounds reads only the image header and rejects images whose
// pixel count exceeds MaxImagePixels.
func checkImageBounds(r io.Reader) error {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return fmt.Errorf("decode profile image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return fmt.Errorf("%w: %dx%d", errImageTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

// coverRect is the largest centered square inside bounds.
func coverRect(bounds image.Rectangle) image.Rectangle {
	side := bounds.Dx()
	if bounds.Dy() < side {
		side = bounds.Dy()
	}
	x := bounds.Min.X + (bounds.Dx()-side)/2
	y := bounds.Min.Y + (bounds.Dy()-side)/2
	return image.Rect(x, y, x+side, y+side)
}

func profileImageKey(name string) string {
	return profileImagePrefix + "/" + name
}
