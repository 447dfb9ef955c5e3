// Package images stores course banner assets on disk. Uploaded banners are
// resized to the card dimensions the catalog renders at; a gray placeholder
// is generated once so every course always has a displayable banner.
package images

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

const (
	bannerWidth  = 400
	bannerHeight = 300

	// DefaultBanner is the filename of the generated placeholder.
	DefaultBanner = "default_course.png"

	// URLPrefix is where the handler mounts the images directory.
	URLPrefix = "/images/"
)

// Library manages the banner directory.
type Library struct {
	dir string
}

// NewLibrary creates the directory when missing and ensures the default
// placeholder banner exists.
func NewLibrary(dir string) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}
	l := &Library{dir: dir}

	defaultPath := filepath.Join(dir, DefaultBanner)
	if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
		placeholder := imaging.New(bannerWidth, bannerHeight, color.Gray{Y: 0x80})
		if err := imaging.Save(placeholder, defaultPath); err != nil {
			return nil, fmt.Errorf("write default banner: %w", err)
		}
	}
	return l, nil
}

// Dir returns the directory the handler should serve at URLPrefix.
func (l *Library) Dir() string {
	return l.dir
}

// DefaultRef returns the image ref of the placeholder banner.
func (l *Library) DefaultRef() string {
	return URLPrefix + DefaultBanner
}

// SaveBanner decodes the uploaded image, resizes it to the card size and
// stores it as PNG keyed by course id. Returns the image ref to store on
// the course.
func (l *Library) SaveBanner(courseID string, r io.Reader) (string, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decode banner: %w", err)
	}
	resized := imaging.Resize(img, bannerWidth, bannerHeight, imaging.Lanczos)

	name := courseID + ".png"
	if err := imaging.Save(resized, filepath.Join(l.dir, name)); err != nil {
		return "", fmt.Errorf("save banner: %w", err)
	}
	return URLPrefix + name, nil
}

// Remove deletes the banner behind ref. The placeholder is shared and
// never removed. A missing file is not an error.
func (l *Library) Remove(ref string) error {
	name := filepath.Base(ref)
	if name == DefaultBanner || name == "." || name == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(l.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove banner: %w", err)
	}
	return nil
}
