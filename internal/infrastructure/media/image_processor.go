// Package media provides image processing utilities
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Avatar sizes generated for every upload, full size and list thumbnail.
var avatarSizes = []int{256, 64}

// ImageProcessor handles avatar processing for the media directory.
type ImageProcessor struct {
	basePath string // Points to the served media root
}

// NewImageProcessor creates a new ImageProcessor instance
func NewImageProcessor(basePath string) *ImageProcessor {
	return &ImageProcessor{
		basePath: basePath,
	}
}

// ProcessAvatar decodes a base64 avatar upload, center-crops it square and
// writes WebP renditions under /avatars. Returns the relative URL of the
// full-size rendition.
func (p *ImageProcessor) ProcessAvatar(data, userID string) (string, error) {
	if data == "" {
		return "", fmt.Errorf("empty base64 data")
	}

	decoded, err := decodeBase64Image(data)
	if err != nil {
		return "", err
	}

	return p.ProcessAvatarBytes(decoded, userID)
}

// ProcessAvatarBytes writes WebP avatar renditions from raw image bytes.
// Used for avatars fetched from an external identity provider URL.
func (p *ImageProcessor) ProcessAvatarBytes(raw []byte, userID string) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decode avatar image: %w", err)
	}

	targetDir := filepath.Join(p.basePath, "avatars")
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create avatar directory: %w", err)
	}

	var written []string
	for _, size := range avatarSizes {
		resized := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

		filename := avatarFilename(userID, size)
		fullPath := filepath.Join(targetDir, filename)

		if err := webp.Save(fullPath, resized, &webp.Options{Quality: 85}); err != nil {
			for _, path := range written {
				os.Remove(path)
			}
			return "", fmt.Errorf("failed to save avatar rendition %s: %w", filename, err)
		}
		written = append(written, fullPath)
	}

	relativePath := fmt.Sprintf("/media/avatars/%s", avatarFilename(userID, avatarSizes[0]))
	return relativePath, nil
}

// DeleteAvatar removes every rendition for a user. Missing files are ignored.
func (p *ImageProcessor) DeleteAvatar(userID string) error {
	targetDir := filepath.Join(p.basePath, "avatars")

	for _, size := range avatarSizes {
		path := filepath.Join(targetDir, avatarFilename(userID, size))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove avatar rendition: %w", err)
		}
	}
	return nil
}

func avatarFilename(userID string, size int) string {
	return fmt.Sprintf("%s_%dpx.webp", userID, size)
}

// decodeBase64Image strips the data-URL prefix and decodes the payload.
func decodeBase64Image(data string) ([]byte, error) {
	binaryPattern := regexp.MustCompile(`^data:image/\w+;base64,`)
	if !binaryPattern.MatchString(data) {
		return nil, fmt.Errorf("invalid image base64 format")
	}

	b64Data := binaryPattern.ReplaceAllString(data, "")
	decoded, err := base64.StdEncoding.DecodeString(b64Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return decoded, nil
}

// ExtractExtension auto-detects file extension from a data-URL MIME type.
func ExtractExtension(data string) string {
	if strings.Contains(data, "data:image/svg+xml") {
		return "svg"
	} else if strings.Contains(data, "data:image/png") {
		return "png"
	} else if strings.Contains(data, "data:image/jpeg") || strings.Contains(data, "data:image/jpg") {
		return "jpg"
	} else if strings.Contains(data, "data:image/webp") {
		return "webp"
	}
	// Fallback to PNG
	return "png"
}
