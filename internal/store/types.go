package store

import "time"

// Exhibition is one archived exhibition. ExhibitionID is the gallery's own
// identifier from the source site, distinct from the internal row ID.
type Exhibition struct {
	ID            int64
	ExhibitionID  int64
	TitleIS       string
	TitleEN       *string
	StartDate     *time.Time
	EndDate       *time.Time
	DescriptionIS *string
	DescriptionEN *string
	ExcerptIS     *string
	Year          int
	SourceURL     string
}

// Image is one image reference belonging to an exhibition. A nil LocalPath
// marks an image whose bytes have not been fetched yet.
type Image struct {
	ID             int64
	ExhibitionDBID int64
	Filename       string
	OriginalURL    string
	LocalPath      *string
	AltText        *string
	Caption        *string
	Width          *int
	Height         *int
	FileSize       *int64
	MimeType       *string
	DisplayOrder   int
	DownloadedAt   *time.Time
}

// ExhibitionRef is the minimal exhibition identity used by the image passes.
type ExhibitionRef struct {
	ID           int64
	ExhibitionID int64
	Year         int
	SourceURL    string
}

// PendingImage is an image row awaiting download.
type PendingImage struct {
	ID          int64
	OriginalURL string
	Filename    string
}

// ImageLocation pairs an image row with its recorded on-disk path.
type ImageLocation struct {
	ID        int64
	LocalPath string
}

// ImageFile identifies an image row and its optional file for cleanup.
type ImageFile struct {
	ID        int64
	LocalPath *string
}

// YearCount is the number of exhibitions recorded for one year.
type YearCount struct {
	Year  int
	Count int64
}

// Statistics are on-demand aggregate counts over the whole store.
type Statistics struct {
	Exhibitions      int64
	Artists          int64
	Images           int64
	DownloadedImages int64
	FailedScrapes    int64
	ByYear           []YearCount
}

// BilingualText carries the Icelandic original and an optional English
// translation of a text field.
type BilingualText struct {
	IS string  `json:"is"`
	EN *string `json:"en"`
}

// DateRange holds ISO-formatted calendar dates; either side may be null.
type DateRange struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

// ExportImage is the denormalized image shape in the JSON export.
type ExportImage struct {
	URL       string  `json:"url"`
	LocalPath *string `json:"local_path"`
	Caption   *string `json:"caption"`
	AltText   *string `json:"alt_text"`
}

// ExportExhibition is one exhibition in the JSON export, with artists and
// images nested in display order.
type ExportExhibition struct {
	ID          int64         `json:"id"`
	Title       BilingualText `json:"title"`
	Artists     []string      `json:"artists"`
	Dates       DateRange     `json:"dates"`
	Description BilingualText `json:"description"`
	Year        int           `json:"year"`
	Images      []ExportImage `json:"images"`
}

// ExportDocument is the root of the JSON export.
type ExportDocument struct {
	Exhibitions []ExportExhibition `json:"exhibitions"`
}
