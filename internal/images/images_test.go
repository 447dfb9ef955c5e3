package images_test

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/idg-training/portfolio/internal/images"
)

func TestNewLibraryCreatesDefaultBanner(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "banners")
	l, err := images.NewLibrary(dir)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, images.DefaultBanner))
	require.NoError(t, err)
	require.False(t, info.IsDir())
	require.Equal(t, images.URLPrefix+images.DefaultBanner, l.DefaultRef())
}

func TestSaveBannerResizesToCardSize(t *testing.T) {
	dir := t.TempDir()
	l, err := images.NewLibrary(dir)
	require.NoError(t, err)

	src := imaging.New(800, 600, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	ref, err := l.SaveBanner("course-1", &buf)
	require.NoError(t, err)
	require.Equal(t, images.URLPrefix+"course-1.png", ref)

	saved, err := imaging.Open(filepath.Join(dir, "course-1.png"))
	require.NoError(t, err)
	bounds := saved.Bounds()
	require.Equal(t, 400, bounds.Dx())
	require.Equal(t, 300, bounds.Dy())
}

func TestSaveBannerRejectsGarbage(t *testing.T) {
	l, err := images.NewLibrary(t.TempDir())
	require.NoError(t, err)

	_, err = l.SaveBanner("course-1", bytes.NewBufferString("not an image"))
	require.Error(t, err)
}

func TestRemoveKeepsDefaultBanner(t *testing.T) {
	dir := t.TempDir()
	l, err := images.NewLibrary(dir)
	require.NoError(t, err)

	src := imaging.New(10, 10, color.NRGBA{A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	ref, err := l.SaveBanner("course-1", &buf)
	require.NoError(t, err)

	require.NoError(t, l.Remove(ref))
	_, err = os.Stat(filepath.Join(dir, "course-1.png"))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, l.Remove(l.DefaultRef()))
	_, err = os.Stat(filepath.Join(dir, images.DefaultBanner))
	require.NoError(t, err)

	// Removing twice is not an error.
	require.NoError(t, l.Remove(ref))
}
