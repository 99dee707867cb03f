// Package store provides the Postgres-backed archive store.
//
// Three independent collection passes (metadata crawl, thumbnail download,
// high-resolution download) converge on this store. Each logical operation
// commits independently, so interrupted runs leave the store consistent up
// to the last completed operation.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrDuplicateExhibition is returned by InsertExhibition when the external
// exhibition id is already present. Callers treat it as steady state.
var ErrDuplicateExhibition = errors.New("exhibition already exists")

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("not found")

// querier is the subset of pgxpool.Pool the store needs. Tests substitute
// a pgxmock pool.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists exhibitions, artists, images and the scrape log.
type Store struct {
	pool   querier
	logger *zap.Logger
}

// New connects to Postgres and returns a Store.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool querier, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Init creates the schema if absent. Safe to call on an existing store;
// it never drops or alters existing data.
func (s *Store) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// ExhibitionExists reports whether an exhibition with the given external
// identifier is already recorded.
func (s *Store) ExhibitionExists(ctx context.Context, exhibitionID int64) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM exhibitions WHERE exhibition_id = $1`, exhibitionID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check exhibition %d: %w", exhibitionID, err)
	}
	return true, nil
}

// InsertExhibition appends a new exhibition row and returns its internal id.
// It is not an upsert: a second insert with the same external identifier
// fails with ErrDuplicateExhibition.
func (s *Store) InsertExhibition(ctx context.Context, ex Exhibition) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO exhibitions (
	exhibition_id, title_is, title_en, start_date, end_date,
	description_is, description_en, excerpt_is, year, source_url
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id`,
		ex.ExhibitionID, ex.TitleIS, ex.TitleEN, ex.StartDate, ex.EndDate,
		ex.DescriptionIS, ex.DescriptionEN, ex.ExcerptIS, ex.Year, ex.SourceURL,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("exhibition %d: %w", ex.ExhibitionID, ErrDuplicateExhibition)
		}
		return 0, fmt.Errorf("insert exhibition %d: %w", ex.ExhibitionID, err)
	}
	return id, nil
}

// GetOrCreateArtist resolves a display name to an artist id, creating the
// row on first sight. Dedup is keyed on the normalized name, so spelling
// variants that normalize identically resolve to the same artist.
func (s *Store) GetOrCreateArtist(ctx context.Context, name string) (int64, error) {
	normalized := NormalizeArtistName(name)

	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM artists WHERE normalized_name = $1`, normalized,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("lookup artist %q: %w", name, err)
	}

	// The no-op DO UPDATE makes RETURNING yield the id even when a
	// concurrent pass inserted the same artist between our select and now.
	err = s.pool.QueryRow(ctx, `
INSERT INTO artists (name, normalized_name)
VALUES ($1, $2)
ON CONFLICT (normalized_name) DO UPDATE SET normalized_name = EXCLUDED.normalized_name
RETURNING id`,
		strings.TrimSpace(name), normalized,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create artist %q: %w", name, err)
	}
	return id, nil
}

// LinkArtistToExhibition records the many-to-many link with the artist's
// position as listed on the page. Re-linking an existing pair is a no-op.
func (s *Store) LinkArtistToExhibition(ctx context.Context, exhibitionDBID, artistID int64, displayOrder int) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO exhibition_artists (exhibition_id, artist_id, display_order)
VALUES ($1, $2, $3)
ON CONFLICT (exhibition_id, artist_id) DO NOTHING`,
		exhibitionDBID, artistID, displayOrder,
	)
	if err != nil {
		return fmt.Errorf("link artist %d to exhibition %d: %w", artistID, exhibitionDBID, err)
	}
	return nil
}

// InsertImage appends a new image row and returns its id. It does not
// deduplicate by URL; filename-level reconciliation belongs to the fetchers.
func (s *Store) InsertImage(ctx context.Context, img Image) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO images (
	exhibition_id, filename, original_url, local_path, alt_text,
	caption, width, height, file_size, mime_type, display_order, downloaded_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id`,
		img.ExhibitionDBID, img.Filename, img.OriginalURL, img.LocalPath, img.AltText,
		img.Caption, img.Width, img.Height, img.FileSize, img.MimeType,
		img.DisplayOrder, img.DownloadedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert image %q: %w", img.Filename, err)
	}
	return id, nil
}

// RecordImageLocation sets only the local path of an image row. Used when a
// prior interrupted run already left the bytes on disk.
func (s *Store) RecordImageLocation(ctx context.Context, imageID int64, localPath string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE images SET local_path = $1 WHERE id = $2`, localPath, imageID,
	)
	if err != nil {
		return fmt.Errorf("record image %d location: %w", imageID, err)
	}
	return nil
}

// MarkImageDownloaded records a completed download in place.
func (s *Store) MarkImageDownloaded(ctx context.Context, imageID int64, localPath string, fileSize int64, mimeType string, downloadedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
UPDATE images SET
	local_path = $1,
	file_size = $2,
	mime_type = $3,
	downloaded_at = $4
WHERE id = $5`,
		localPath, fileSize, mimeType, downloadedAt, imageID,
	)
	if err != nil {
		return fmt.Errorf("mark image %d downloaded: %w", imageID, err)
	}
	return nil
}

// UpdateImageFetched records a high-resolution fetch against an existing
// image row, replacing its original URL with the full-resolution source.
func (s *Store) UpdateImageFetched(ctx context.Context, imageID int64, localPath, originalURL string, fileSize int64, downloadedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
UPDATE images SET
	local_path = $1,
	original_url = $2,
	file_size = $3,
	downloaded_at = $4
WHERE id = $5`,
		localPath, originalURL, fileSize, downloadedAt, imageID,
	)
	if err != nil {
		return fmt.Errorf("update image %d: %w", imageID, err)
	}
	return nil
}

// FindImageByFilename returns the id of the image row with the given
// filename in the given exhibition, or ErrNotFound. Filenames are the
// identity key that makes thumbnail and full-resolution URLs converge on
// one logical image.
func (s *Store) FindImageByFilename(ctx context.Context, exhibitionDBID int64, filename string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM images WHERE exhibition_id = $1 AND filename = $2`,
		exhibitionDBID, filename,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find image %q: %w", filename, err)
	}
	return id, nil
}

// LogScrape appends one fetch attempt to the audit log. Logging failures
// are swallowed: an audit write must never abort the work it describes.
func (s *Store) LogScrape(ctx context.Context, url, status string, errorMessage *string, responseCode *int) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO scraping_log (url, status, error_message, response_code)
VALUES ($1, $2, $3, $4)`,
		url, status, errorMessage, responseCode,
	)
	if err != nil {
		s.logger.Warn("Failed to write scrape log entry",
			zap.String("url", url), zap.Error(err))
	}
	return nil
}

// ExhibitionRef returns the identity of an exhibition by internal id.
func (s *Store) ExhibitionRef(ctx context.Context, id int64) (ExhibitionRef, error) {
	var ref ExhibitionRef
	err := s.pool.QueryRow(ctx,
		`SELECT id, exhibition_id, year, source_url FROM exhibitions WHERE id = $1`, id,
	).Scan(&ref.ID, &ref.ExhibitionID, &ref.Year, &ref.SourceURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return ExhibitionRef{}, ErrNotFound
	}
	if err != nil {
		return ExhibitionRef{}, fmt.Errorf("exhibition ref %d: %w", id, err)
	}
	return ref, nil
}

// ListExhibitions returns every exhibition, newest year first.
func (s *Store) ListExhibitions(ctx context.Context) ([]ExhibitionRef, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, exhibition_id, year, source_url FROM exhibitions ORDER BY year DESC`)
	if err != nil {
		return nil, fmt.Errorf("list exhibitions: %w", err)
	}
	defer rows.Close()

	var refs []ExhibitionRef
	for rows.Next() {
		var ref ExhibitionRef
		if err := rows.Scan(&ref.ID, &ref.ExhibitionID, &ref.Year, &ref.SourceURL); err != nil {
			return nil, fmt.Errorf("scan exhibition ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list exhibitions: %w", err)
	}
	return refs, nil
}

// PendingImages returns the images of one exhibition that have no local
// path yet, i.e. the fetchers' remaining work.
func (s *Store) PendingImages(ctx context.Context, exhibitionDBID int64) ([]PendingImage, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, original_url, filename
FROM images
WHERE exhibition_id = $1 AND local_path IS NULL`,
		exhibitionDBID,
	)
	if err != nil {
		return nil, fmt.Errorf("pending images for %d: %w", exhibitionDBID, err)
	}
	defer rows.Close()

	var images []PendingImage
	for rows.Next() {
		var img PendingImage
		if err := rows.Scan(&img.ID, &img.OriginalURL, &img.Filename); err != nil {
			return nil, fmt.Errorf("scan pending image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending images for %d: %w", exhibitionDBID, err)
	}
	return images, nil
}

// ExhibitionsWithPendingImages returns exhibitions that still have at least
// one undownloaded image, optionally restricted to one year.
func (s *Store) ExhibitionsWithPendingImages(ctx context.Context, year *int) ([]ExhibitionRef, error) {
	query := `
SELECT DISTINCT e.id, e.exhibition_id, e.year, e.source_url
FROM exhibitions e
JOIN images i ON e.id = i.exhibition_id
WHERE i.local_path IS NULL`
	args := []any{}
	if year != nil {
		query += ` AND e.year = $1`
		args = append(args, *year)
	}
	query += ` ORDER BY e.year DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exhibitions with pending images: %w", err)
	}
	defer rows.Close()

	var refs []ExhibitionRef
	for rows.Next() {
		var ref ExhibitionRef
		if err := rows.Scan(&ref.ID, &ref.ExhibitionID, &ref.Year, &ref.SourceURL); err != nil {
			return nil, fmt.Errorf("scan exhibition ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("exhibitions with pending images: %w", err)
	}
	return refs, nil
}

// DownloadedImages returns every image with a recorded local path, for the
// verify pass.
func (s *Store) DownloadedImages(ctx context.Context) ([]ImageLocation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, local_path FROM images WHERE local_path IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("downloaded images: %w", err)
	}
	defer rows.Close()

	var locations []ImageLocation
	for rows.Next() {
		var loc ImageLocation
		if err := rows.Scan(&loc.ID, &loc.LocalPath); err != nil {
			return nil, fmt.Errorf("scan image location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("downloaded images: %w", err)
	}
	return locations, nil
}

// ClearImageLocalPath marks an image pending again, so the next download
// pass re-fetches it.
func (s *Store) ClearImageLocalPath(ctx context.Context, imageID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE images SET local_path = NULL WHERE id = $1`, imageID,
	)
	if err != nil {
		return fmt.Errorf("clear image %d local path: %w", imageID, err)
	}
	return nil
}

// ExhibitionsMissingDescription returns exhibitions whose Icelandic
// description is empty, for the text-refresh repair pass.
func (s *Store) ExhibitionsMissingDescription(ctx context.Context) ([]ExhibitionRef, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, exhibition_id, year, source_url
FROM exhibitions
WHERE description_is IS NULL OR description_is = ''`)
	if err != nil {
		return nil, fmt.Errorf("exhibitions missing description: %w", err)
	}
	defer rows.Close()

	var refs []ExhibitionRef
	for rows.Next() {
		var ref ExhibitionRef
		if err := rows.Scan(&ref.ID, &ref.ExhibitionID, &ref.Year, &ref.SourceURL); err != nil {
			return nil, fmt.Errorf("scan exhibition ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("exhibitions missing description: %w", err)
	}
	return refs, nil
}

// UpdateExhibitionTexts replaces the description fields of one exhibition.
// Only the repair pass calls this; the crawler itself is additive-only.
func (s *Store) UpdateExhibitionTexts(ctx context.Context, id int64, descriptionIS, descriptionEN string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE exhibitions SET
	description_is = $1,
	description_en = $2,
	updated_at = now()
WHERE id = $3`,
		descriptionIS, descriptionEN, id,
	)
	if err != nil {
		return fmt.Errorf("update exhibition %d texts: %w", id, err)
	}
	return nil
}

// ImagesWithFilenameMarker returns image rows whose filename equals or ends
// with the given marker, for the decorative-header cleanup pass.
func (s *Store) ImagesWithFilenameMarker(ctx context.Context, marker string) ([]ImageFile, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, local_path
FROM images
WHERE filename = $1 OR filename LIKE '%' || $1`,
		marker,
	)
	if err != nil {
		return nil, fmt.Errorf("images with marker %q: %w", marker, err)
	}
	defer rows.Close()

	var files []ImageFile
	for rows.Next() {
		var f ImageFile
		if err := rows.Scan(&f.ID, &f.LocalPath); err != nil {
			return nil, fmt.Errorf("scan image file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("images with marker %q: %w", marker, err)
	}
	return files, nil
}

// DeleteImage removes one image row. Only the cleanup pass deletes rows.
func (s *Store) DeleteImage(ctx context.Context, imageID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, imageID)
	if err != nil {
		return fmt.Errorf("delete image %d: %w", imageID, err)
	}
	return nil
}

// Statistics computes aggregate counts on demand.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM exhibitions`, &stats.Exhibitions},
		{`SELECT COUNT(*) FROM artists`, &stats.Artists},
		{`SELECT COUNT(*) FROM images`, &stats.Images},
		{`SELECT COUNT(*) FROM images WHERE local_path IS NOT NULL`, &stats.DownloadedImages},
		{`SELECT COUNT(*) FROM scraping_log WHERE status = 'failed'`, &stats.FailedScrapes},
	}
	for _, c := range counts {
		if err := s.pool.QueryRow(ctx, c.query).Scan(c.dest); err != nil {
			return Statistics{}, fmt.Errorf("statistics: %w", err)
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT year, COUNT(*) FROM exhibitions GROUP BY year ORDER BY year`)
	if err != nil {
		return Statistics{}, fmt.Errorf("statistics by year: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var yc YearCount
		if err := rows.Scan(&yc.Year, &yc.Count); err != nil {
			return Statistics{}, fmt.Errorf("scan year count: %w", err)
		}
		stats.ByYear = append(stats.ByYear, yc)
	}
	if err := rows.Err(); err != nil {
		return Statistics{}, fmt.Errorf("statistics by year: %w", err)
	}
	return stats, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
