package highres

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingogbang/archive/internal/fetch"
	"github.com/klingogbang/archive/internal/store"
)

const baseURL = "http://kob.test/klingogbang/"

type cannedResponse struct {
	contentType string
	body        []byte
}

type fakeGetter struct {
	pages    map[string]cannedResponse
	requests []string
}

func (f *fakeGetter) Get(_ context.Context, url string) (fetch.Response, error) {
	f.requests = append(f.requests, url)
	page, ok := f.pages[url]
	if !ok {
		return fetch.Response{}, fmt.Errorf("fetch %s: Not Found", url)
	}
	return fetch.Response{
		URL:        url,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{page.contentType}},
		Body:       page.body,
	}, nil
}

type updatedImage struct {
	imageID   int64
	localPath string
	sourceURL string
	fileSize  int64
}

type fakeStore struct {
	exhibitions []store.ExhibitionRef
	byFilename  map[string]int64
	headerRows  []store.ImageFile

	updated  []updatedImage
	inserted []store.Image
	deleted  []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{byFilename: map[string]int64{}}
}

func (f *fakeStore) ListExhibitions(context.Context) ([]store.ExhibitionRef, error) {
	return f.exhibitions, nil
}

func (f *fakeStore) FindImageByFilename(_ context.Context, exhibitionDBID int64, filename string) (int64, error) {
	id, ok := f.byFilename[fmt.Sprintf("%d/%s", exhibitionDBID, filename)]
	if !ok {
		return 0, store.ErrNotFound
	}
	return id, nil
}

func (f *fakeStore) UpdateImageFetched(_ context.Context, imageID int64, localPath, originalURL string, fileSize int64, _ time.Time) error {
	f.updated = append(f.updated, updatedImage{imageID, localPath, originalURL, fileSize})
	return nil
}

func (f *fakeStore) InsertImage(_ context.Context, img store.Image) (int64, error) {
	f.inserted = append(f.inserted, img)
	return int64(1000 + len(f.inserted)), nil
}

func (f *fakeStore) ImagesWithFilenameMarker(_ context.Context, marker string) ([]store.ImageFile, error) {
	return f.headerRows, nil
}

func (f *fakeStore) DeleteImage(_ context.Context, imageID int64) error {
	f.deleted = append(f.deleted, imageID)
	return nil
}

func detailPageWithLinks(links string) cannedResponse {
	return cannedResponse{
		contentType: "text/html",
		body:        []byte("<html><body>" + links + "</body></html>"),
	}
}

func TestRunUpdatesExistingRowByFilename(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	st := newFakeStore()
	sourceURL := baseURL + "archive_view.php?id=204"
	st.exhibitions = []store.ExhibitionRef{{ID: 1, ExhibitionID: 204, Year: 2019, SourceURL: sourceURL}}
	// Row left by the crawler; the full-res filename derives to the same name.
	st.byFilename["1/thumb_verk1.jpg"] = 10

	getter := &fakeGetter{pages: map[string]cannedResponse{
		sourceURL: detailPageWithLinks(
			`<a href="image_view.php?id=901"><img src="myndir/thumb_verk1.jpg" alt="Verk 1"></a>`),
		baseURL + "image_view.php?id=901": {contentType: "image/jpeg", body: []byte("fullresbytes")},
	}}

	s := New(st, getter, baseURL, root, nil)
	stats, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Saved: 1}, stats)

	// Reconciliation converges on the existing row instead of adding one.
	assert.Empty(t, st.inserted)
	require.Len(t, st.updated, 1)
	assert.Equal(t, int64(10), st.updated[0].imageID)
	assert.Equal(t, baseURL+"image_view.php?id=901", st.updated[0].sourceURL)
	assert.Equal(t, int64(len("fullresbytes")), st.updated[0].fileSize)

	data, err := os.ReadFile(filepath.Join(root, "2019", "204", "thumb_verk1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("fullresbytes"), data)
}

func TestRunInsertsRowForUnknownFilename(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	st := newFakeStore()
	sourceURL := baseURL + "archive_view.php?id=204"
	st.exhibitions = []store.ExhibitionRef{{ID: 1, ExhibitionID: 204, Year: 2019, SourceURL: sourceURL}}

	getter := &fakeGetter{pages: map[string]cannedResponse{
		sourceURL: detailPageWithLinks(
			`<a href="image_view.php?id=901"><img src="myndir/extra.jpg" alt="Extra"></a>`),
		baseURL + "image_view.php?id=901": {contentType: "image/jpeg", body: []byte("newbytes")},
	}}

	s := New(st, getter, baseURL, root, nil)
	stats, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Saved: 1}, stats)

	assert.Empty(t, st.updated)
	require.Len(t, st.inserted, 1)
	img := st.inserted[0]
	assert.Equal(t, int64(1), img.ExhibitionDBID)
	assert.Equal(t, "extra.jpg", img.Filename)
	require.NotNil(t, img.LocalPath)
	assert.Equal(t, filepath.Join(root, "2019", "204", "extra.jpg"), *img.LocalPath)
	require.NotNil(t, img.AltText)
	assert.Equal(t, "Extra", *img.AltText)
	require.NotNil(t, img.FileSize)
	assert.Equal(t, int64(len("newbytes")), *img.FileSize)
	require.NotNil(t, img.DownloadedAt)
}

func TestRunFollowsHTMLViewPageToEmbeddedImage(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	st := newFakeStore()
	sourceURL := baseURL + "archive_view.php?id=204"
	st.exhibitions = []store.ExhibitionRef{{ID: 1, ExhibitionID: 204, Year: 2019, SourceURL: sourceURL}}

	getter := &fakeGetter{pages: map[string]cannedResponse{
		sourceURL: detailPageWithLinks(
			`<a href="image_view.php?id=901"><img src="myndir/thumb_verk1.jpg"></a>`),
		baseURL + "image_view.php?id=901": {
			contentType: "text/html",
			body:        []byte(`<html><body><img class="img_main" src="myndir/full_verk1.png"></body></html>`),
		},
		baseURL + "myndir/full_verk1.png": {contentType: "image/png", body: []byte("pngbytes")},
	}}

	s := New(st, getter, baseURL, root, nil)
	stats, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Saved: 1}, stats)

	// Extension follows the embedded image's declared type, base name the
	// thumbnail's.
	assert.FileExists(t, filepath.Join(root, "2019", "204", "thumb_verk1.png"))
	require.Len(t, st.inserted, 1)
	assert.Equal(t, "thumb_verk1.png", st.inserted[0].Filename)
	assert.Equal(t, baseURL+"myndir/full_verk1.png", st.inserted[0].OriginalURL)
}

func TestRunSkipsEmbeddedHeaderImage(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	st := newFakeStore()
	sourceURL := baseURL + "archive_view.php?id=204"
	st.exhibitions = []store.ExhibitionRef{{ID: 1, ExhibitionID: 204, Year: 2019, SourceURL: sourceURL}}

	getter := &fakeGetter{pages: map[string]cannedResponse{
		sourceURL: detailPageWithLinks(
			`<a href="image_view.php?id=901"><img src="myndir/thumb_verk1.jpg"></a>`),
		baseURL + "image_view.php?id=901": {
			contentType: "text/html",
			body:        []byte(`<html><body><img class="img_main" src="gfx/head.jpg"></body></html>`),
		},
	}}

	s := New(st, getter, baseURL, root, nil)
	stats, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Total: 1, Failed: 1}, stats)
	assert.Empty(t, st.inserted)
	assert.Empty(t, st.updated)
	// The header bytes are never fetched.
	assert.NotContains(t, getter.requests, baseURL+"gfx/head.jpg")
}

func TestRunDisambiguatesFilenameCollision(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	st := newFakeStore()
	sourceURL := baseURL + "archive_view.php?id=204"
	st.exhibitions = []store.ExhibitionRef{{ID: 1, ExhibitionID: 204, Year: 2019, SourceURL: sourceURL}}

	// Two view links share a thumbnail name.
	getter := &fakeGetter{pages: map[string]cannedResponse{
		sourceURL: detailPageWithLinks(
			`<a href="image_view.php?id=901"><img src="myndir/verk.jpg"></a>` +
				`<a href="image_view.php?id=902"><img src="myndir/verk.jpg"></a>`),
		baseURL + "image_view.php?id=901": {contentType: "image/jpeg", body: []byte("first")},
		baseURL + "image_view.php?id=902": {contentType: "image/jpeg", body: []byte("second")},
	}}

	s := New(st, getter, baseURL, root, nil)
	stats, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 2, Saved: 2}, stats)

	assert.FileExists(t, filepath.Join(root, "2019", "204", "verk.jpg"))
	assert.FileExists(t, filepath.Join(root, "2019", "204", "verk_902.jpg"))
	require.Len(t, st.inserted, 2)
	assert.Equal(t, "verk.jpg", st.inserted[0].Filename)
	assert.Equal(t, "verk_902.jpg", st.inserted[1].Filename)
}

func TestRunCountsUnresolvableLinks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	st := newFakeStore()
	sourceURL := baseURL + "archive_view.php?id=204"
	st.exhibitions = []store.ExhibitionRef{{ID: 1, ExhibitionID: 204, Year: 2019, SourceURL: sourceURL}}

	getter := &fakeGetter{pages: map[string]cannedResponse{
		sourceURL: detailPageWithLinks(
			`<a href="image_view.php?id=901"><img src="myndir/thumb_verk1.jpg"></a>`),
		// The view link 404s.
	}}

	s := New(st, getter, baseURL, root, nil)
	stats, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Failed: 1}, stats)
}

func TestCleanupHeadRemovesRowsFilesAndStrays(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	recorded := filepath.Join(root, "2019", "204", "head.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(recorded), 0o750))
	require.NoError(t, os.WriteFile(recorded, []byte("headerbytes"), 0o600))

	stray := filepath.Join(root, "2018", "101", "head.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(stray), 0o750))
	require.NoError(t, os.WriteFile(stray, []byte("headerbytes"), 0o600))

	keep := filepath.Join(root, "2019", "204", "verk1.jpg")
	require.NoError(t, os.WriteFile(keep, []byte("jpegbytes"), 0o600))

	st := newFakeStore()
	st.headerRows = []store.ImageFile{
		{ID: 10, LocalPath: &recorded},
		{ID: 11, LocalPath: nil},
	}

	s := New(st, &fakeGetter{}, baseURL, root, nil)
	stats, err := s.CleanupHead(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CleanupStats{RowsDeleted: 2, FilesDeleted: 2}, stats)
	assert.Equal(t, []int64{10, 11}, st.deleted)
	assert.NoFileExists(t, recorded)
	assert.NoFileExists(t, stray)
	assert.FileExists(t, keep)
}
