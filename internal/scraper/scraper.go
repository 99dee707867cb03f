// Package scraper implements the exhibition metadata crawl: year listing to
// detail pages to store rows. The crawl is additive-only; exhibitions
// already in the store are skipped, never updated.
package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/klingogbang/archive/internal/extract"
	"github.com/klingogbang/archive/internal/fetch"
	"github.com/klingogbang/archive/internal/metrics"
	"github.com/klingogbang/archive/internal/store"
)

// Store is the subset of the archive store the crawler writes to.
type Store interface {
	ExhibitionExists(ctx context.Context, exhibitionID int64) (bool, error)
	InsertExhibition(ctx context.Context, ex store.Exhibition) (int64, error)
	GetOrCreateArtist(ctx context.Context, name string) (int64, error)
	LinkArtistToExhibition(ctx context.Context, exhibitionDBID, artistID int64, displayOrder int) error
	InsertImage(ctx context.Context, img store.Image) (int64, error)
	ExhibitionsMissingDescription(ctx context.Context) ([]store.ExhibitionRef, error)
	UpdateExhibitionTexts(ctx context.Context, id int64, descriptionIS, descriptionEN string) error
}

// Stats aggregates per-item outcomes of a batch.
type Stats struct {
	Total   int
	Success int
	Skipped int
	Failed  int
}

// Add accumulates another batch's outcomes.
func (s *Stats) Add(other Stats) {
	s.Total += other.Total
	s.Success += other.Success
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}

// Scraper walks the archive and populates the store.
type Scraper struct {
	store   Store
	client  fetch.Getter
	baseURL string
	english bool
	logger  *zap.Logger
}

// New builds a Scraper. When english is true the secondary-language variant
// of each detail page is fetched and merged.
func New(st Store, client fetch.Getter, baseURL string, english bool, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		store:   st,
		client:  client,
		baseURL: baseURL,
		english: english,
		logger:  logger,
	}
}

// ScrapeRange crawls every year in [startYear, endYear].
func (s *Scraper) ScrapeRange(ctx context.Context, startYear, endYear int) (Stats, error) {
	var total Stats
	for year := startYear; year <= endYear; year++ {
		stats, err := s.ScrapeYear(ctx, year)
		total.Add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ScrapeYear crawls one year's listing and every exhibition on it. Failures
// of individual exhibitions are counted, never propagated; only context
// cancellation aborts the batch.
func (s *Scraper) ScrapeYear(ctx context.Context, year int) (Stats, error) {
	logger := s.logger.With(
		zap.Int("year", year),
		zap.String("run_id", uuid.NewString()),
	)

	var stats Stats
	listURL := fmt.Sprintf("%sarchive_list.php?year=%d", s.baseURL, year)
	resp, err := s.client.Get(ctx, listURL)
	if err != nil {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		logger.Warn("Failed to fetch year listing", zap.Error(err))
		return stats, nil
	}
	doc, err := extract.NewDocument(resp.Text())
	if err != nil {
		logger.Warn("Failed to parse year listing", zap.Error(err))
		return stats, nil
	}

	ids := extract.ExhibitionIDs(doc)
	stats.Total = len(ids)
	logger.Info("Found exhibitions", zap.Int("count", len(ids)))

	for _, id := range ids {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		switch outcome := s.scrapeOne(ctx, id, year, logger); outcome {
		case outcomeSaved:
			stats.Success++
		case outcomeSkipped:
			stats.Skipped++
		case outcomeFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

type outcome int

const (
	outcomeSaved outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (s *Scraper) scrapeOne(ctx context.Context, exhibitionID int64, year int, logger *zap.Logger) outcome {
	logger = logger.With(zap.Int64("exhibition_id", exhibitionID))

	exists, err := s.store.ExhibitionExists(ctx, exhibitionID)
	if err != nil {
		logger.Error("Existence check failed", zap.Error(err))
		return outcomeFailed
	}
	if exists {
		logger.Debug("Exhibition already recorded, skipping")
		return outcomeSkipped
	}

	record, err := s.fetchExhibition(ctx, exhibitionID, year)
	if err != nil {
		logger.Warn("Failed to fetch exhibition", zap.Error(err))
		return outcomeFailed
	}

	if s.english {
		s.mergeEnglish(ctx, exhibitionID, record, logger)
	}

	// Re-check right before writing: a long crawl may race another pass
	// that inserted the same exhibition meanwhile.
	exists, err = s.store.ExhibitionExists(ctx, exhibitionID)
	if err != nil {
		logger.Error("Existence re-check failed", zap.Error(err))
		return outcomeFailed
	}
	if exists {
		return outcomeSkipped
	}

	dbID, err := s.store.InsertExhibition(ctx, record.exhibition)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateExhibition) {
			logger.Debug("Exhibition inserted by another pass, skipping")
			return outcomeSkipped
		}
		logger.Error("Failed to insert exhibition", zap.Error(err))
		return outcomeFailed
	}

	for idx, name := range record.artists {
		artistID, err := s.store.GetOrCreateArtist(ctx, name)
		if err != nil {
			logger.Warn("Failed to resolve artist", zap.String("artist", name), zap.Error(err))
			continue
		}
		if err := s.store.LinkArtistToExhibition(ctx, dbID, artistID, idx); err != nil {
			logger.Warn("Failed to link artist", zap.String("artist", name), zap.Error(err))
		}
	}

	for _, ref := range record.images {
		alt := ref.AltText
		img := store.Image{
			ExhibitionDBID: dbID,
			Filename:       ref.Filename,
			OriginalURL:    ref.URL,
			AltText:        &alt,
			DisplayOrder:   ref.DisplayOrder,
		}
		if _, err := s.store.InsertImage(ctx, img); err != nil {
			logger.Warn("Failed to insert image", zap.String("filename", ref.Filename), zap.Error(err))
		}
	}

	metrics.TotalExhibitionsSaved.Inc()
	logger.Info("Saved exhibition",
		zap.Int64("db_id", dbID),
		zap.Int("artists", len(record.artists)),
		zap.Int("images", len(record.images)),
	)
	return outcomeSaved
}

// exhibitionRecord is the parsed detail page ready for persistence.
type exhibitionRecord struct {
	exhibition store.Exhibition
	artists    []string
	images     []extract.ImageRef
}

func (s *Scraper) fetchExhibition(ctx context.Context, exhibitionID int64, year int) (*exhibitionRecord, error) {
	pageURL := fmt.Sprintf("%sarchive_view.php?id=%d", s.baseURL, exhibitionID)
	resp, err := s.client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := extract.NewDocument(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("parse exhibition %d: %w", exhibitionID, err)
	}

	detail := extract.ParseDetail(doc, pageURL)
	title := detail.Title
	if title == "" {
		title = fmt.Sprintf("Exhibition %d", exhibitionID)
	}
	start, end := extract.ParseDateRange(detail.DateText)

	ex := store.Exhibition{
		ExhibitionID: exhibitionID,
		TitleIS:      title,
		StartDate:    start,
		EndDate:      end,
		Year:         year,
		SourceURL:    pageURL,
	}
	description := detail.Description
	ex.DescriptionIS = &description

	return &exhibitionRecord{
		exhibition: ex,
		artists:    detail.Artists,
		images:     detail.Images,
	}, nil
}

// mergeEnglish fetches the secondary-language variant and merges whatever
// it meaningfully carries. Failures here degrade to the primary language.
func (s *Scraper) mergeEnglish(ctx context.Context, exhibitionID int64, record *exhibitionRecord, logger *zap.Logger) {
	pageURL := fmt.Sprintf("%sarchive_view.php?id=%d&lang=en", s.baseURL, exhibitionID)
	resp, err := s.client.Get(ctx, pageURL)
	if err != nil {
		logger.Debug("No English variant", zap.Error(err))
		return
	}
	doc, err := extract.NewDocument(resp.Text())
	if err != nil {
		logger.Debug("Failed to parse English variant", zap.Error(err))
		return
	}
	en := extract.ParseEnglish(doc)
	if en.Title != "" {
		title := en.Title
		record.exhibition.TitleEN = &title
	}
	if en.Description != "" {
		description := en.Description
		record.exhibition.DescriptionEN = &description
	}
}

// ScrapeExhibition crawls a single exhibition outside the year walk.
func (s *Scraper) ScrapeExhibition(ctx context.Context, exhibitionID int64, year int) error {
	switch s.scrapeOne(ctx, exhibitionID, year, s.logger) {
	case outcomeSaved, outcomeSkipped:
		return nil
	default:
		return fmt.Errorf("scrape exhibition %d failed", exhibitionID)
	}
}

// RefreshTexts re-fetches both language variants for every exhibition whose
// description is empty and rewrites the text fields in place. This is the
// only operation that mutates existing exhibition rows.
func (s *Scraper) RefreshTexts(ctx context.Context) (int, error) {
	refs, err := s.store.ExhibitionsMissingDescription(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Refreshing texts", zap.Int("exhibitions", len(refs)))

	fixed := 0
	for _, ref := range refs {
		if ctx.Err() != nil {
			return fixed, ctx.Err()
		}
		descIS := s.fetchDescription(ctx, fmt.Sprintf("%sarchive_view.php?id=%d", s.baseURL, ref.ExhibitionID))
		descEN := s.fetchDescription(ctx, fmt.Sprintf("%sarchive_view.php?id=%d&lang=en", s.baseURL, ref.ExhibitionID))
		if err := s.store.UpdateExhibitionTexts(ctx, ref.ID, descIS, descEN); err != nil {
			s.logger.Warn("Failed to update texts", zap.Int64("exhibition_id", ref.ExhibitionID), zap.Error(err))
			continue
		}
		fixed++
	}
	return fixed, nil
}

func (s *Scraper) fetchDescription(ctx context.Context, pageURL string) string {
	resp, err := s.client.Get(ctx, pageURL)
	if err != nil {
		s.logger.Debug("Failed to fetch page for text refresh", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	doc, err := extract.NewDocument(resp.Text())
	if err != nil {
		return ""
	}
	return extract.DescriptionText(doc)
}
