// Package upload stores book cover images on disk and removes covers no
// book references anymore.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jon4hz/bookshelf/internal/config"
	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	filePrefix = "book_"
	tempPrefix = "tmp_"
)

var (
	// ErrTooLarge is returned for uploads above the configured size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrNotAnImage is returned when the upload can't be decoded as an image.
	ErrNotAnImage = errors.New("file is not a supported image")
	// ErrInsufficientStorage is returned when the upload volume is too full.
	ErrInsufficientStorage = errors.New("not enough storage left for uploads")
)

// DiskUsageFunc reports the used percentage of the volume holding path.
type DiskUsageFunc func(ctx context.Context, path string) (float64, error)

// Store writes covers into a directory served under /images.
type Store struct {
	dir          string
	baseURL      string
	maxSize      int64
	maxWidth     int
	maxHeight    int
	quality      int
	maxDiskUsage float64
	diskUsage    DiskUsageFunc
}

// New creates the upload directory and returns a Store for it.
func New(cfg *config.UploadConfig, serverURL string) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{
		dir:          cfg.Dir,
		baseURL:      strings.TrimSuffix(serverURL, "/"),
		maxSize:      cfg.MaxSize,
		maxWidth:     cfg.MaxWidth,
		maxHeight:    cfg.MaxHeight,
		quality:      cfg.Quality,
		maxDiskUsage: cfg.MaxDiskUsagePercent,
		diskUsage:    usedPercent,
	}, nil
}

func usedPercent(ctx context.Context, path string) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

// Dir returns the directory covers are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// URL returns the public URL of a stored cover.
func (s *Store) URL(name string) string {
	return s.baseURL + "/images/" + name
}

// Saved describes a stored cover.
type Saved struct {
	Name string
	URL  string
}

// Save decodes the upload, scales it to fit the configured bounds and stores it.
// size is the size announced by the client; the reader is limited regardless.
func (s *Store) Save(ctx context.Context, r io.Reader, size int64) (*Saved, error) {
	if size > s.maxSize {
		return nil, s.tooLarge(size)
	}

	if s.maxDiskUsage > 0 && s.maxDiskUsage < 100 {
		used, err := s.diskUsage(ctx, s.dir)
		if err != nil {
			// don't block uploads because the volume can't be inspected
			log.Warn("failed to get disk usage", "path", s.dir, "error", err)
		} else if used >= s.maxDiskUsage {
			log.Warn("rejecting upload, disk usage above threshold", "usage", used, "threshold", s.maxDiskUsage)
			return nil, ErrInsufficientStorage
		}
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n > s.maxSize {
		return nil, s.tooLarge(n)
	}

	img, format, err := image.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAnImage, err)
	}

	bounds := img.Bounds()
	originalWidth, originalHeight := bounds.Dx(), bounds.Dy()
	if originalWidth > s.maxWidth || originalHeight > s.maxHeight {
		newWidth, newHeight := s.calculateScaledDimensions(originalWidth, originalHeight)
		img = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
		log.Debug("resized cover",
			"from", fmt.Sprintf("%dx%d", originalWidth, originalHeight),
			"to", fmt.Sprintf("%dx%d", newWidth, newHeight),
		)
	}

	name := fmt.Sprintf("%s%d_%s%s", filePrefix, time.Now().UnixMilli(), uuid.NewString()[:8], extension(format))
	finalPath := filepath.Join(s.dir, name)
	tempPath := filepath.Join(s.dir, tempPrefix+name)
	defer os.Remove(tempPath) // no-op after the rename

	if err := s.saveImage(img, tempPath); err != nil {
		return nil, fmt.Errorf("failed to save cover: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, fmt.Errorf("failed to move cover into place: %w", err)
	}

	log.Info("stored cover", "name", name, "size", humanize.IBytes(byteCount(n)))
	return &Saved{Name: name, URL: s.URL(name)}, nil
}

func (s *Store) tooLarge(size int64) error {
	return fmt.Errorf("%w: %s exceeds the limit of %s",
		ErrTooLarge,
		humanize.IBytes(byteCount(size)),
		humanize.IBytes(byteCount(s.maxSize)),
	)
}

func byteCount(n int64) uint64 {
	c, err := safecast.Convert[uint64](n)
	if err != nil {
		return 0
	}
	return c
}

func extension(format string) string {
	switch format {
	case "png", "gif":
		// keep transparency
		return ".png"
	default:
		return ".jpg"
	}
}

// calculateScaledDimensions fits the image into the bounds keeping its aspect ratio.
func (s *Store) calculateScaledDimensions(originalWidth, originalHeight int) (int, int) {
	if originalWidth <= s.maxWidth && originalHeight <= s.maxHeight {
		return originalWidth, originalHeight
	}

	widthRatio := float64(s.maxWidth) / float64(originalWidth)
	heightRatio := float64(s.maxHeight) / float64(originalHeight)
	ratio := min(widthRatio, heightRatio)

	return max(1, int(float64(originalWidth)*ratio)), max(1, int(float64(originalHeight)*ratio))
}

func (s *Store) saveImage(img image.Image, filePath string) error {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return imaging.Save(img, filePath, imaging.PNGCompressionLevel(6))
	default:
		return imaging.Save(img, filePath, imaging.JPEGQuality(s.quality))
	}
}

// Prune removes stored covers older than grace that none of the referenced
// URLs point to. It returns the number of removed files.
func (s *Store) Prune(ctx context.Context, referenced []string, grace time.Duration) (int, error) {
	inUse := lo.SliceToMap(referenced, func(ref string) (string, struct{}) {
		return path.Base(ref), struct{}{}
	})
	cutoff := time.Now().Add(-grace)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read upload directory: %w", err)
	}

	var removed int
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		name := entry.Name()
		if entry.IsDir() || !(strings.HasPrefix(name, filePrefix) || strings.HasPrefix(name, tempPrefix)) {
			continue
		}
		if _, ok := inUse[name]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Warn("failed to stat cover", "name", name, "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			log.Error("failed to remove orphaned cover", "name", name, "error", err)
			continue
		}
		log.Debug("removed orphaned cover", "name", name)
		removed++
	}
	return removed, nil
}
