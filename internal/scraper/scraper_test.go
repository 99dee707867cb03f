package scraper

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingogbang/archive/internal/fetch"
	"github.com/klingogbang/archive/internal/store"
)

const baseURL = "http://kob.test/klingogbang/"

// fakeGetter serves canned page bodies by URL. Fixtures stay ASCII so the
// ISO-8859-1 decode in Response.Text is the identity.
type fakeGetter struct {
	pages    map[string]string
	failures map[string]error
	requests []string
}

func (f *fakeGetter) Get(_ context.Context, url string) (fetch.Response, error) {
	f.requests = append(f.requests, url)
	if err, ok := f.failures[url]; ok {
		return fetch.Response{}, err
	}
	body, ok := f.pages[url]
	if !ok {
		return fetch.Response{}, fmt.Errorf("fetch %s: Not Found", url)
	}
	return fetch.Response{
		URL:        url,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte(body),
	}, nil
}

type linkedArtist struct {
	exhibitionDBID int64
	artistID       int64
	displayOrder   int
}

// fakeStore records writes in memory and hands out sequential ids.
type fakeStore struct {
	existing    map[int64]bool
	exhibitions []store.Exhibition
	artists     map[string]int64
	artistOrder []string
	links       []linkedArtist
	images      []store.Image
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing: map[int64]bool{},
		artists:  map[string]int64{},
		nextID:   1,
	}
}

func (f *fakeStore) ExhibitionExists(_ context.Context, exhibitionID int64) (bool, error) {
	return f.existing[exhibitionID], nil
}

func (f *fakeStore) InsertExhibition(_ context.Context, ex store.Exhibition) (int64, error) {
	if f.existing[ex.ExhibitionID] {
		return 0, store.ErrDuplicateExhibition
	}
	f.existing[ex.ExhibitionID] = true
	f.exhibitions = append(f.exhibitions, ex)
	id := f.nextID
	f.nextID++
	return id, nil
}

func (f *fakeStore) GetOrCreateArtist(_ context.Context, name string) (int64, error) {
	key := store.NormalizeArtistName(name)
	if id, ok := f.artists[key]; ok {
		return id, nil
	}
	id := int64(100 + len(f.artists))
	f.artists[key] = id
	f.artistOrder = append(f.artistOrder, name)
	return id, nil
}

func (f *fakeStore) LinkArtistToExhibition(_ context.Context, exhibitionDBID, artistID int64, displayOrder int) error {
	f.links = append(f.links, linkedArtist{exhibitionDBID, artistID, displayOrder})
	return nil
}

func (f *fakeStore) InsertImage(_ context.Context, img store.Image) (int64, error) {
	f.images = append(f.images, img)
	return int64(len(f.images)), nil
}

func (f *fakeStore) ExhibitionsMissingDescription(context.Context) ([]store.ExhibitionRef, error) {
	var refs []store.ExhibitionRef
	for i, ex := range f.exhibitions {
		if ex.DescriptionIS == nil || *ex.DescriptionIS == "" {
			refs = append(refs, store.ExhibitionRef{ID: int64(i + 1), ExhibitionID: ex.ExhibitionID, Year: ex.Year})
		}
	}
	return refs, nil
}

func (f *fakeStore) UpdateExhibitionTexts(_ context.Context, id int64, descriptionIS, descriptionEN string) error {
	ex := &f.exhibitions[id-1]
	ex.DescriptionIS = &descriptionIS
	ex.DescriptionEN = &descriptionEN
	return nil
}

func listingPage(ids ...int64) string {
	page := "<html><body>"
	for _, id := range ids {
		page += fmt.Sprintf(`<a href="archive_view.php?id=%d">Exhibition</a>`, id)
	}
	return page + "</body></html>"
}

func detailPage(title, artists, dates, text string) string {
	return fmt.Sprintf(`
<html><body>
<table>
<tr><td class="arc_view_head">%s</td></tr>
<tr><td class="arc_view_name">%s</td></tr>
<tr><td class="arc_view_date">%s</td></tr>
<tr><td class="arc_view_text">%s</td></tr>
</table>
<img src="myndir/work1.jpg" alt="installation view">
</body></html>`, artists, title, dates, text)
}

func TestScrapeYearSavesNewExhibitions(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	getter := &fakeGetter{pages: map[string]string{
		baseURL + "archive_list.php?year=2019": listingPage(204, 205),
		baseURL + "archive_view.php?id=204":    detailPage("White Box", "Anna Jonsdottir og Birna Palsdottir", "6. desember 2019 - 8. febrúar 2020", "Description text here."),
		baseURL + "archive_view.php?id=205":    detailPage("Second Show", "Einar", "mars 2019", "Another description."),
	}}

	s := New(st, getter, baseURL, false, nil)
	stats, err := s.ScrapeYear(context.Background(), 2019)
	require.NoError(t, err)

	assert.Equal(t, Stats{Total: 2, Success: 2}, stats)
	require.Len(t, st.exhibitions, 2)

	first := st.exhibitions[0]
	assert.Equal(t, int64(204), first.ExhibitionID)
	assert.Equal(t, "White Box", first.TitleIS)
	assert.Equal(t, 2019, first.Year)
	assert.Equal(t, baseURL+"archive_view.php?id=204", first.SourceURL)
	require.NotNil(t, first.StartDate)
	assert.Equal(t, "2019-12-06", first.StartDate.Format("2006-01-02"))
	require.NotNil(t, first.EndDate)
	assert.Equal(t, "2020-02-08", first.EndDate.Format("2006-01-02"))
	require.NotNil(t, first.DescriptionIS)
	assert.Equal(t, "Description text here.", *first.DescriptionIS)

	// Artists are linked in page order.
	require.Len(t, st.links, 2)
	assert.Equal(t, 0, st.links[0].displayOrder)
	assert.Equal(t, 1, st.links[1].displayOrder)
	assert.Equal(t, []string{"Anna Jonsdottir", "Birna Palsdottir"}, st.artistOrder[:2])

	// Image rows are URL-only at this stage.
	require.Len(t, st.images, 2)
	assert.Equal(t, "work1.jpg", st.images[0].Filename)
	assert.Nil(t, st.images[0].LocalPath)
}

func TestScrapeYearSkipsExistingExhibitions(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.existing[204] = true
	getter := &fakeGetter{pages: map[string]string{
		baseURL + "archive_list.php?year=2019": listingPage(204),
	}}

	s := New(st, getter, baseURL, false, nil)
	stats, err := s.ScrapeYear(context.Background(), 2019)
	require.NoError(t, err)

	assert.Equal(t, Stats{Total: 1, Skipped: 1}, stats)
	// Existing exhibitions must not cost a detail fetch.
	assert.Equal(t, []string{baseURL + "archive_list.php?year=2019"}, getter.requests)
}

func TestScrapeYearSecondRunIsIdempotent(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	getter := &fakeGetter{pages: map[string]string{
		baseURL + "archive_list.php?year=2019": listingPage(204),
		baseURL + "archive_view.php?id=204":    detailPage("White Box", "Anna", "mars 2019", "Text."),
	}}
	s := New(st, getter, baseURL, false, nil)

	first, err := s.ScrapeYear(context.Background(), 2019)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Success: 1}, first)

	second, err := s.ScrapeYear(context.Background(), 2019)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Skipped: 1}, second)
	assert.Len(t, st.exhibitions, 1)
}

func TestScrapeYearCountsFetchFailures(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	getter := &fakeGetter{
		pages: map[string]string{
			baseURL + "archive_list.php?year=2019": listingPage(204, 205),
			baseURL + "archive_view.php?id=205":    detailPage("Survivor", "Einar", "mars 2019", "Text."),
		},
		failures: map[string]error{
			baseURL + "archive_view.php?id=204": fmt.Errorf("fetch: connection refused"),
		},
	}

	s := New(st, getter, baseURL, false, nil)
	stats, err := s.ScrapeYear(context.Background(), 2019)
	require.NoError(t, err)

	// One exhibition failing must not abort the rest of the year.
	assert.Equal(t, Stats{Total: 2, Success: 1, Failed: 1}, stats)
	require.Len(t, st.exhibitions, 1)
	assert.Equal(t, int64(205), st.exhibitions[0].ExhibitionID)
}

func TestScrapeYearListingFetchFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	getter := &fakeGetter{failures: map[string]error{
		baseURL + "archive_list.php?year=2019": fmt.Errorf("fetch: timeout"),
	}}

	s := New(st, getter, baseURL, false, nil)
	stats, err := s.ScrapeYear(context.Background(), 2019)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestScrapeYearMergesEnglishVariant(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	getter := &fakeGetter{pages: map[string]string{
		baseURL + "archive_list.php?year=2019":      listingPage(204),
		baseURL + "archive_view.php?id=204":         detailPage("Hvitur kassi", "Anna", "mars 2019", "Islensk lysing."),
		baseURL + "archive_view.php?id=204&lang=en": detailPage("White Box", "Anna", "mars 2019", "English description."),
	}}

	s := New(st, getter, baseURL, true, nil)
	stats, err := s.ScrapeYear(context.Background(), 2019)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Success: 1}, stats)

	ex := st.exhibitions[0]
	assert.Equal(t, "Hvitur kassi", ex.TitleIS)
	require.NotNil(t, ex.TitleEN)
	assert.Equal(t, "White Box", *ex.TitleEN)
	require.NotNil(t, ex.DescriptionEN)
	assert.Equal(t, "English description.", *ex.DescriptionEN)
}

func TestScrapeYearEnglishVariantFailureDegrades(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	getter := &fakeGetter{pages: map[string]string{
		baseURL + "archive_list.php?year=2019": listingPage(204),
		baseURL + "archive_view.php?id=204":    detailPage("Hvitur kassi", "Anna", "mars 2019", "Islensk lysing."),
	}}

	s := New(st, getter, baseURL, true, nil)
	stats, err := s.ScrapeYear(context.Background(), 2019)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Success: 1}, stats)
	assert.Nil(t, st.exhibitions[0].TitleEN)
}

func TestScrapeYearUntitledExhibitionGetsPlaceholder(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	getter := &fakeGetter{pages: map[string]string{
		baseURL + "archive_list.php?year=2019": listingPage(204),
		baseURL + "archive_view.php?id=204":    "<html><body><p>bare page</p></body></html>",
	}}

	s := New(st, getter, baseURL, false, nil)
	_, err := s.ScrapeYear(context.Background(), 2019)
	require.NoError(t, err)
	require.Len(t, st.exhibitions, 1)
	assert.Equal(t, "Exhibition 204", st.exhibitions[0].TitleIS)
}

func TestScrapeRangeAggregatesYears(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	getter := &fakeGetter{pages: map[string]string{
		baseURL + "archive_list.php?year=2018": listingPage(101),
		baseURL + "archive_list.php?year=2019": listingPage(204),
		baseURL + "archive_view.php?id=101":    detailPage("Early Show", "Einar", "mai 2018", "Text."),
		baseURL + "archive_view.php?id=204":    detailPage("Later Show", "Anna", "mars 2019", "Text."),
	}}

	s := New(st, getter, baseURL, false, nil)
	stats, err := s.ScrapeRange(context.Background(), 2018, 2019)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 2, Success: 2}, stats)
	assert.Equal(t, 2018, st.exhibitions[0].Year)
	assert.Equal(t, 2019, st.exhibitions[1].Year)
}

func TestScrapeYearHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	getter := &fakeGetter{failures: map[string]error{
		baseURL + "archive_list.php?year=2019": context.Canceled,
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(st, getter, baseURL, false, nil)
	_, err := s.ScrapeYear(ctx, 2019)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshTextsFillsMissingDescriptions(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	empty := ""
	st.exhibitions = append(st.exhibitions, store.Exhibition{ExhibitionID: 204, Year: 2019, DescriptionIS: &empty})
	st.existing[204] = true
	st.nextID = 2

	getter := &fakeGetter{pages: map[string]string{
		baseURL + "archive_view.php?id=204":         detailPage("Hvitur kassi", "Anna", "mars 2019", "Recovered text."),
		baseURL + "archive_view.php?id=204&lang=en": detailPage("White Box", "Anna", "mars 2019", "Recovered English."),
	}}

	s := New(st, getter, baseURL, false, nil)
	fixed, err := s.RefreshTexts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	require.NotNil(t, st.exhibitions[0].DescriptionIS)
	assert.Equal(t, "Recovered text.", *st.exhibitions[0].DescriptionIS)
	require.NotNil(t, st.exhibitions[0].DescriptionEN)
	assert.Equal(t, "Recovered English.", *st.exhibitions[0].DescriptionEN)
}

func TestScrapeExhibitionFailureReturnsError(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	getter := &fakeGetter{}

	s := New(st, getter, baseURL, false, nil)
	err := s.ScrapeExhibition(context.Background(), 204, 2019)
	assert.Error(t, err)
}
