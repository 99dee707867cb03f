// Package images implements the thumbnail download pass: it scans image
// rows with no local path and fills in byte-level placement on disk.
package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/klingogbang/archive/internal/fetch"
	"github.com/klingogbang/archive/internal/metrics"
	"github.com/klingogbang/archive/internal/store"
)

// Store is the subset of the archive store the downloader uses.
type Store interface {
	ExhibitionRef(ctx context.Context, id int64) (store.ExhibitionRef, error)
	PendingImages(ctx context.Context, exhibitionDBID int64) ([]store.PendingImage, error)
	ExhibitionsWithPendingImages(ctx context.Context, year *int) ([]store.ExhibitionRef, error)
	RecordImageLocation(ctx context.Context, imageID int64, localPath string) error
	MarkImageDownloaded(ctx context.Context, imageID int64, localPath string, fileSize int64, mimeType string, downloadedAt time.Time) error
	DownloadedImages(ctx context.Context) ([]store.ImageLocation, error)
	ClearImageLocalPath(ctx context.Context, imageID int64) error
}

// Stats aggregates per-image outcomes of a download batch.
type Stats struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Add accumulates another batch's outcomes.
func (s *Stats) Add(other Stats) {
	s.Downloaded += other.Downloaded
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}

// VerifyStats reports the outcome of the verify pass.
type VerifyStats struct {
	Valid   int
	Missing int
}

// Downloader fetches pending images and records their placement.
type Downloader struct {
	store  Store
	client fetch.Getter
	root   string
	logger *zap.Logger
}

// New builds a Downloader rooted at dir.
func New(st Store, client fetch.Getter, root string, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{store: st, client: client, root: root, logger: logger}
}

// LocalPath computes the deterministic placement for an image:
// <root>/<year>/<exhibitionID>/<sanitized filename>. The path depends only
// on store contents, so interrupted and repeated runs agree on it.
func (d *Downloader) LocalPath(year int, exhibitionID int64, filename string) string {
	return filepath.Join(
		d.root,
		strconv.Itoa(year),
		strconv.FormatInt(exhibitionID, 10),
		sanitizeFilename(filename),
	)
}

// sanitizeFilename replaces every character outside letters, digits and
// ./-/_ with an underscore.
func sanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// DownloadExhibition fetches every pending image of one exhibition. A file
// already present at the target path is recorded without re-fetching: a
// prior run may have written bytes and crashed before the store update, and
// this check is what recovers from that.
func (d *Downloader) DownloadExhibition(ctx context.Context, exhibitionDBID int64) (Stats, error) {
	var stats Stats

	ref, err := d.store.ExhibitionRef(ctx, exhibitionDBID)
	if err != nil {
		return stats, fmt.Errorf("download exhibition %d: %w", exhibitionDBID, err)
	}
	pending, err := d.store.PendingImages(ctx, exhibitionDBID)
	if err != nil {
		return stats, fmt.Errorf("download exhibition %d: %w", exhibitionDBID, err)
	}

	logger := d.logger.With(
		zap.Int64("exhibition_id", ref.ExhibitionID),
		zap.Int("year", ref.Year),
	)

	for _, img := range pending {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		localPath := d.LocalPath(ref.Year, ref.ExhibitionID, img.Filename)

		if fileExists(localPath) {
			if err := d.store.RecordImageLocation(ctx, img.ID, localPath); err != nil {
				logger.Warn("Failed to record existing file", zap.String("path", localPath), zap.Error(err))
				stats.Failed++
				continue
			}
			stats.Skipped++
			continue
		}

		if d.downloadOne(ctx, img, localPath, logger) {
			stats.Downloaded++
		} else {
			stats.Failed++
		}
	}
	return stats, nil
}

// downloadOne fetches, writes and records one image. On any failure the row
// stays pending for the next invocation; there is no retry within a run.
func (d *Downloader) downloadOne(ctx context.Context, img store.PendingImage, localPath string, logger *zap.Logger) bool {
	resp, err := d.client.Get(ctx, img.OriginalURL)
	if err != nil {
		logger.Warn("Failed to download image", zap.String("url", img.OriginalURL), zap.Error(err))
		metrics.TotalImageFailures.Inc()
		return false
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		logger.Warn("Failed to create image dir", zap.String("path", localPath), zap.Error(err))
		metrics.TotalImageFailures.Inc()
		return false
	}
	if err := os.WriteFile(localPath, resp.Body, 0o600); err != nil {
		logger.Warn("Failed to write image", zap.String("path", localPath), zap.Error(err))
		metrics.TotalImageFailures.Inc()
		return false
	}

	err = d.store.MarkImageDownloaded(ctx, img.ID, localPath,
		int64(len(resp.Body)), resp.ContentType(), time.Now().UTC())
	if err != nil {
		// The bytes are on disk; the file-exists check will reconcile the
		// row on the next run.
		logger.Warn("Failed to record download", zap.String("path", localPath), zap.Error(err))
		metrics.TotalImageFailures.Inc()
		return false
	}
	metrics.TotalImagesDownloaded.Inc()
	return true
}

// DownloadAll fetches pending images for every exhibition.
func (d *Downloader) DownloadAll(ctx context.Context) (Stats, error) {
	return d.downloadBatch(ctx, nil)
}

// DownloadYear fetches pending images for one year's exhibitions.
func (d *Downloader) DownloadYear(ctx context.Context, year int) (Stats, error) {
	return d.downloadBatch(ctx, &year)
}

func (d *Downloader) downloadBatch(ctx context.Context, year *int) (Stats, error) {
	var total Stats
	refs, err := d.store.ExhibitionsWithPendingImages(ctx, year)
	if err != nil {
		return total, err
	}
	d.logger.Info("Downloading images", zap.Int("exhibitions", len(refs)))

	for _, ref := range refs {
		stats, err := d.DownloadExhibition(ctx, ref.ID)
		total.Add(stats)
		if err != nil {
			if ctx.Err() != nil {
				return total, err
			}
			d.logger.Warn("Exhibition download incomplete",
				zap.Int64("exhibition_id", ref.ExhibitionID), zap.Error(err))
		}
	}
	return total, nil
}

// Verify checks that every recorded local path still exists on disk and
// marks vanished images pending again so a later pass re-fetches them.
func (d *Downloader) Verify(ctx context.Context) (VerifyStats, error) {
	var stats VerifyStats
	locations, err := d.store.DownloadedImages(ctx)
	if err != nil {
		return stats, err
	}
	for _, loc := range locations {
		if fileExists(loc.LocalPath) {
			stats.Valid++
			continue
		}
		stats.Missing++
		if err := d.store.ClearImageLocalPath(ctx, loc.ID); err != nil {
			d.logger.Warn("Failed to clear missing image", zap.Int64("image_id", loc.ID), zap.Error(err))
		}
	}
	return stats, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
