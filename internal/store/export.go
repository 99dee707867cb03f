package store

import (
	"context"
	"fmt"
	"time"
)

// Export flattens the store into one denormalized document: one record per
// exhibition with artist names and images nested in display order,
// exhibitions ordered by year descending then start date descending.
func (s *Store) Export(ctx context.Context) (ExportDocument, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, exhibition_id, title_is, title_en, start_date, end_date,
	description_is, description_en, year
FROM exhibitions
ORDER BY year DESC, start_date DESC NULLS LAST`)
	if err != nil {
		return ExportDocument{}, fmt.Errorf("export exhibitions: %w", err)
	}
	defer rows.Close()

	type exhibitionRow struct {
		dbID int64
		out  ExportExhibition
	}
	var exhibitions []exhibitionRow
	for rows.Next() {
		var (
			row            exhibitionRow
			titleEN        *string
			start, end     *time.Time
			descIS, descEN *string
		)
		if err := rows.Scan(
			&row.dbID, &row.out.ID, &row.out.Title.IS, &titleEN,
			&start, &end, &descIS, &descEN, &row.out.Year,
		); err != nil {
			return ExportDocument{}, fmt.Errorf("scan exhibition: %w", err)
		}
		row.out.Title.EN = titleEN
		row.out.Dates = DateRange{Start: formatDate(start), End: formatDate(end)}
		if descIS != nil {
			row.out.Description.IS = *descIS
		}
		row.out.Description.EN = descEN
		exhibitions = append(exhibitions, row)
	}
	if err := rows.Err(); err != nil {
		return ExportDocument{}, fmt.Errorf("export exhibitions: %w", err)
	}

	doc := ExportDocument{Exhibitions: make([]ExportExhibition, 0, len(exhibitions))}
	for _, row := range exhibitions {
		artists, err := s.exhibitionArtistNames(ctx, row.dbID)
		if err != nil {
			return ExportDocument{}, err
		}
		images, err := s.exhibitionExportImages(ctx, row.dbID)
		if err != nil {
			return ExportDocument{}, err
		}
		row.out.Artists = artists
		row.out.Images = images
		doc.Exhibitions = append(doc.Exhibitions, row.out)
	}
	return doc, nil
}

func (s *Store) exhibitionArtistNames(ctx context.Context, exhibitionDBID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
SELECT a.name
FROM exhibition_artists ea
JOIN artists a ON ea.artist_id = a.id
WHERE ea.exhibition_id = $1
ORDER BY ea.display_order`,
		exhibitionDBID,
	)
	if err != nil {
		return nil, fmt.Errorf("export artists for %d: %w", exhibitionDBID, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan artist name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("export artists for %d: %w", exhibitionDBID, err)
	}
	return names, nil
}

func (s *Store) exhibitionExportImages(ctx context.Context, exhibitionDBID int64) ([]ExportImage, error) {
	rows, err := s.pool.Query(ctx, `
SELECT original_url, local_path, caption, alt_text
FROM images
WHERE exhibition_id = $1
ORDER BY display_order`,
		exhibitionDBID,
	)
	if err != nil {
		return nil, fmt.Errorf("export images for %d: %w", exhibitionDBID, err)
	}
	defer rows.Close()

	images := []ExportImage{}
	for rows.Next() {
		var img ExportImage
		if err := rows.Scan(&img.URL, &img.LocalPath, &img.Caption, &img.AltText); err != nil {
			return nil, fmt.Errorf("scan export image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("export images for %d: %w", exhibitionDBID, err)
	}
	return images, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format("2006-01-02")
	return &formatted
}
