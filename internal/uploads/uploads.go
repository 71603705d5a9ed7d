// Package uploads stores product images on disk. Incoming files are decoded,
// downscaled to a maximum width and re-encoded, then written under a random
// name so uploads can never collide or traverse paths.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"ropastore/internal/log"
)

var ErrUnsupportedType = errors.New("unsupported image type")

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

type Manager struct {
	dir      string
	maxWidth int
	logger   *log.Logger
}

func NewManager(dir string, maxWidth int, logger *log.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Manager{
		dir:      dir,
		maxWidth: maxWidth,
		logger:   logger.WithComponent(log.ComponentUploads),
	}, nil
}

// Save processes an uploaded image and returns the stored filename. The
// original filename only contributes its extension; the stored name is a
// fresh UUID.
func (m *Manager) Save(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrUnsupportedType, err)
	}

	if img.Bounds().Dx() > m.maxWidth {
		img = imaging.Resize(img, m.maxWidth, 0, imaging.Lanczos)
	}

	filename := uuid.NewString() + ext
	path := filepath.Join(m.dir, filename)
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}

	m.logger.Info("Image stored",
		"filename", filename,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	return filename, nil
}

// Remove deletes a stored image. A missing file is not an error; the catalog
// reference is already gone.
func (m *Manager) Remove(filename string) error {
	if filename == "" {
		return nil
	}
	// Stored names are UUIDs, but never trust a value that round-tripped
	// through the database.
	if filepath.Base(filename) != filename {
		return fmt.Errorf("invalid stored filename %q", filename)
	}
	err := os.Remove(filepath.Join(m.dir, filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

// Dir returns the directory images are served from.
func (m *Manager) Dir() string {
	return m.dir
}
