package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/jon4hz/bookshelf/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(&config.UploadConfig{
		Dir:                 filepath.Join(t.TempDir(), "images"),
		MaxSize:             1 << 20,
		MaxWidth:            60,
		MaxHeight:           90,
		Quality:             80,
		MaxDiskUsagePercent: 95,
	}, "https://books.example.com/")
	require.NoError(t, err)
	s.diskUsage = func(context.Context, string) (float64, error) { return 10, nil }
	return s
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestSaveScalesAndNames(t *testing.T) {
	s := newTestStore(t)
	data := pngBytes(t, 120, 120)

	saved, err := s.Save(context.Background(), bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(saved.Name, "book_"))
	assert.Equal(t, ".png", filepath.Ext(saved.Name))
	assert.Equal(t, "https://books.example.com/images/"+saved.Name, saved.URL)

	img, err := imaging.Open(filepath.Join(s.Dir(), saved.Name))
	require.NoError(t, err)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())

	// no temp file left behind
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveKeepsSmallImages(t *testing.T) {
	s := newTestStore(t)
	data := jpegBytes(t, 30, 40)

	saved, err := s.Save(context.Background(), bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(saved.Name))

	img, err := imaging.Open(filepath.Join(s.Dir(), saved.Name))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 40), img.Bounds())
}

func TestSaveRejects(t *testing.T) {
	s := newTestStore(t)
	s.maxSize = 64

	_, err := s.Save(context.Background(), strings.NewReader("x"), 1<<20)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Contains(t, err.Error(), "1.0 MiB exceeds the limit of 64 B")

	// announced size lies
	_, err = s.Save(context.Background(), bytes.NewReader(make([]byte, 100)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = s.Save(context.Background(), strings.NewReader("definitely not an image"), 23)
	assert.ErrorIs(t, err, ErrNotAnImage)
}

func TestSaveRejectsWhenDiskIsFull(t *testing.T) {
	s := newTestStore(t)
	s.diskUsage = func(context.Context, string) (float64, error) { return 99, nil }

	data := pngBytes(t, 10, 10)
	_, err := s.Save(context.Background(), bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrInsufficientStorage)
}

func TestSaveIgnoresDiskUsageErrors(t *testing.T) {
	s := newTestStore(t)
	s.diskUsage = func(context.Context, string) (float64, error) { return 0, errors.New("no such volume") }

	data := pngBytes(t, 10, 10)
	_, err := s.Save(context.Background(), bytes.NewReader(data), int64(len(data)))
	assert.NoError(t, err)
}

func TestCalculateScaledDimensions(t *testing.T) {
	s := &Store{maxWidth: 600, maxHeight: 900}
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{w: 300, h: 400, wantW: 300, wantH: 400},
		{w: 1200, h: 900, wantW: 600, wantH: 450},
		{w: 600, h: 1800, wantW: 300, wantH: 900},
		{w: 6000, h: 1, wantW: 600, wantH: 1},
	}
	for _, tt := range tests {
		w, h := s.calculateScaledDimensions(tt.w, tt.h)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	old := time.Now().Add(-48 * time.Hour)

	write := func(name string, mtime time.Time) {
		p := filepath.Join(s.Dir(), name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}
	write("book_1_aaaa.jpg", old)        // referenced
	write("book_2_bbbb.jpg", old)        // orphan
	write("book_3_cccc.jpg", time.Now()) // orphan within grace
	write("tmp_book_4_dddd.jpg", old)    // stale temp file
	write("README", old)                 // not ours

	removed, err := s.Prune(context.Background(), []string{s.URL("book_1_aaaa.jpg")}, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"book_1_aaaa.jpg", "book_3_cccc.jpg", "README"}, names)
}
