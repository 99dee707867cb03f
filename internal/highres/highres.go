// Package highres implements the full-resolution image pass. It re-parses
// each exhibition page for view links, follows them to the actual image
// bytes, and reconciles results against existing image rows by filename.
package highres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/klingogbang/archive/internal/extract"
	"github.com/klingogbang/archive/internal/fetch"
	"github.com/klingogbang/archive/internal/metrics"
	"github.com/klingogbang/archive/internal/store"
)

// Store is the subset of the archive store the high-res pass uses.
type Store interface {
	ListExhibitions(ctx context.Context) ([]store.ExhibitionRef, error)
	FindImageByFilename(ctx context.Context, exhibitionDBID int64, filename string) (int64, error)
	UpdateImageFetched(ctx context.Context, imageID int64, localPath, originalURL string, fileSize int64, downloadedAt time.Time) error
	InsertImage(ctx context.Context, img store.Image) (int64, error)
	ImagesWithFilenameMarker(ctx context.Context, marker string) ([]store.ImageFile, error)
	DeleteImage(ctx context.Context, imageID int64) error
}

// Stats aggregates the outcome of one high-res run.
type Stats struct {
	Total  int
	Saved  int
	Failed int
}

// CleanupStats reports the decorative-header cleanup outcome.
type CleanupStats struct {
	RowsDeleted  int
	FilesDeleted int
}

// extensionsByType maps declared content types to file extensions.
// Unrecognized types fall back to .jpg.
var extensionsByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Scraper runs the high-resolution pass.
type Scraper struct {
	store   Store
	client  fetch.Getter
	baseURL string
	root    string
	logger  *zap.Logger
}

// New builds a Scraper writing under root.
func New(st Store, client fetch.Getter, baseURL, root string, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{store: st, client: client, baseURL: baseURL, root: root, logger: logger}
}

// fetchedImage is a resolved full-resolution response.
type fetchedImage struct {
	body        []byte
	contentType string
	sourceURL   string
}

// Run processes every exhibition. Individual link failures are counted and
// never abort the batch; only context cancellation does.
func (s *Scraper) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	refs, err := s.store.ListExhibitions(ctx)
	if err != nil {
		return stats, err
	}
	s.logger.Info("Processing exhibitions for high-res images", zap.Int("exhibitions", len(refs)))

	for _, ref := range refs {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		s.processExhibition(ctx, ref, &stats)
	}
	return stats, nil
}

func (s *Scraper) processExhibition(ctx context.Context, ref store.ExhibitionRef, stats *Stats) {
	logger := s.logger.With(
		zap.Int64("exhibition_id", ref.ExhibitionID),
		zap.Int("year", ref.Year),
	)

	links, err := s.findGalleryLinks(ctx, ref.SourceURL)
	if err != nil {
		logger.Warn("Failed to find gallery links", zap.Error(err))
		return
	}
	if len(links) == 0 {
		return
	}
	logger.Debug("Found gallery links", zap.Int("count", len(links)))

	for _, link := range links {
		if ctx.Err() != nil {
			return
		}
		stats.Total++
		img, err := s.fetchFullRes(ctx, link.ViewID)
		if err != nil || img == nil {
			if err != nil {
				logger.Warn("Failed to fetch view link", zap.Int64("view_id", link.ViewID), zap.Error(err))
			}
			stats.Failed++
			continue
		}

		saved, err := s.saveImage(ref.Year, ref.ExhibitionID, link.ViewID, link.ThumbnailFilename, img)
		if err != nil {
			logger.Warn("Failed to save image", zap.Int64("view_id", link.ViewID), zap.Error(err))
			stats.Failed++
			continue
		}

		if err := s.reconcile(ctx, ref.ID, saved, link.AltText); err != nil {
			logger.Warn("Failed to record image", zap.String("filename", saved.filename), zap.Error(err))
			stats.Failed++
			continue
		}
		metrics.TotalImagesDownloaded.Inc()
		logger.Debug("Saved high-res image", zap.String("filename", saved.filename))
		stats.Saved++
	}
}

// findGalleryLinks re-parses the exhibition page for view links. Header
// thumbnails are already filtered by the extractor.
func (s *Scraper) findGalleryLinks(ctx context.Context, pageURL string) ([]extract.ViewLink, error) {
	resp, err := s.client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := extract.NewDocument(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return extract.GalleryLinks(doc, pageURL), nil
}

// fetchFullRes resolves one view link. The linked resource is either the
// image bytes directly, or an HTML page embedding the image, which is
// transparently followed. A nil result with nil error means the link
// resolved to nothing usable (including the decorative header).
func (s *Scraper) fetchFullRes(ctx context.Context, viewID int64) (*fetchedImage, error) {
	viewURL := fmt.Sprintf("%simage_view.php?id=%d", s.baseURL, viewID)
	resp, err := s.client.Get(ctx, viewURL)
	if err != nil {
		return nil, err
	}

	contentType := resp.ContentType()
	if strings.HasPrefix(contentType, "image/") {
		return &fetchedImage{
			body:        resp.Body,
			contentType: contentType,
			sourceURL:   viewURL,
		}, nil
	}

	if contentType != "text/html" {
		return nil, nil
	}

	doc, err := extract.NewDocument(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("parse view page %d: %w", viewID, err)
	}
	imgURL, ok := extract.EmbeddedImageURL(doc, viewURL)
	if !ok {
		return nil, nil
	}
	// The header filter applies again after following the indirection; the
	// embedded image may be the header even when the thumbnail was not.
	if extract.IsHeaderImage(imgURL) {
		return nil, nil
	}

	imgResp, err := s.client.Get(ctx, imgURL)
	if err != nil {
		return nil, err
	}
	embeddedType := imgResp.ContentType()
	if embeddedType == "" {
		embeddedType = "image/jpeg"
	}
	return &fetchedImage{
		body:        imgResp.Body,
		contentType: embeddedType,
		sourceURL:   imgURL,
	}, nil
}

// savedImage describes a high-res image written to disk.
type savedImage struct {
	filename  string
	localPath string
	sourceURL string
	fileSize  int64
}

// saveImage writes the bytes under the exhibition's directory. The filename
// derives from the thumbnail's base name plus an extension chosen from the
// declared content type; a name collision is disambiguated with the view id.
func (s *Scraper) saveImage(year int, exhibitionID, viewID int64, thumbnailFilename string, img *fetchedImage) (savedImage, error) {
	dir := filepath.Join(s.root, strconv.Itoa(year), strconv.FormatInt(exhibitionID, 10))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return savedImage{}, fmt.Errorf("create image dir: %w", err)
	}

	base := strings.TrimSuffix(thumbnailFilename, path.Ext(thumbnailFilename))
	if base == "" {
		base = fmt.Sprintf("img_%d", viewID)
	}
	ext, ok := extensionsByType[img.contentType]
	if !ok {
		ext = ".jpg"
	}

	filename := base + ext
	target := filepath.Join(dir, filename)
	if _, err := os.Stat(target); err == nil {
		filename = fmt.Sprintf("%s_%d%s", base, viewID, ext)
		target = filepath.Join(dir, filename)
	}

	if err := os.WriteFile(target, img.body, 0o600); err != nil {
		return savedImage{}, fmt.Errorf("write %s: %w", target, err)
	}
	return savedImage{
		filename:  filename,
		localPath: target,
		sourceURL: img.sourceURL,
		fileSize:  int64(len(img.body)),
	}, nil
}

// reconcile converges on one logical image per filename: when a row with
// the derived filename already exists for the exhibition (typically the
// crawler's URL-only row), it is updated in place; otherwise a new row is
// inserted. The key is the filename, not the URL: thumbnail and full-res
// URLs differ but name the same image.
func (s *Scraper) reconcile(ctx context.Context, exhibitionDBID int64, saved savedImage, altText string) error {
	now := time.Now().UTC()
	imageID, err := s.store.FindImageByFilename(ctx, exhibitionDBID, saved.filename)
	switch {
	case err == nil:
		return s.store.UpdateImageFetched(ctx, imageID, saved.localPath, saved.sourceURL, saved.fileSize, now)
	case errors.Is(err, store.ErrNotFound):
		img := store.Image{
			ExhibitionDBID: exhibitionDBID,
			Filename:       saved.filename,
			OriginalURL:    saved.sourceURL,
			LocalPath:      &saved.localPath,
			AltText:        &altText,
			FileSize:       &saved.fileSize,
			DownloadedAt:   &now,
		}
		_, err := s.store.InsertImage(ctx, img)
		return err
	default:
		return err
	}
}

// CleanupHead removes every image row and file matching the decorative
// header marker, plus stray header files under the image root. This is the
// only pass that deletes image rows.
func (s *Scraper) CleanupHead(ctx context.Context) (CleanupStats, error) {
	var stats CleanupStats
	files, err := s.store.ImagesWithFilenameMarker(ctx, extract.HeaderImageMarker)
	if err != nil {
		return stats, err
	}
	s.logger.Info("Removing decorative header images", zap.Int("rows", len(files)))

	for _, f := range files {
		if f.LocalPath != nil {
			if err := os.Remove(*f.LocalPath); err == nil {
				stats.FilesDeleted++
			} else if !os.IsNotExist(err) {
				s.logger.Warn("Failed to delete header file", zap.String("path", *f.LocalPath), zap.Error(err))
			}
		}
		if err := s.store.DeleteImage(ctx, f.ID); err != nil {
			s.logger.Warn("Failed to delete header row", zap.Int64("image_id", f.ID), zap.Error(err))
			continue
		}
		stats.RowsDeleted++
	}

	// Header files written by earlier runs may exist with no row at all.
	err = filepath.WalkDir(s.root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if d.Name() == extract.HeaderImageMarker {
			if rmErr := os.Remove(p); rmErr == nil {
				stats.FilesDeleted++
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to sweep image root", zap.Error(err))
	}
	return stats, nil
}
