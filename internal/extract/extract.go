// Package extract parses the gallery's legacy page layout into normalized
// records. It knows nothing about fetching or persistence; callers hand it
// decoded page text.
package extract

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HeaderImageMarker is the filename of the site's reused decorative header
// graphic. Anything matching it must never be captured as content.
const HeaderImageMarker = "head.jpg"

var (
	archiveViewID = regexp.MustCompile(`archive_view\.php\?id=(\d+)`)
	imageViewID   = regexp.MustCompile(`image_view\.php\?id=(\d+)`)
	artistSplit   = regexp.MustCompile(`,|\s+og\s+`)
)

// noiseMarkers identify navigation and UI images on detail pages.
var noiseMarkers = []string{"logo", "nav", "button", "arrow", "icon"}

// ImageRef is one content image found on a detail page, URL only.
type ImageRef struct {
	URL          string
	Filename     string
	AltText      string
	DisplayOrder int
}

// Detail is the normalized record extracted from an exhibition detail page.
type Detail struct {
	Title       string
	Artists     []string
	DateText    string
	Description string
	Images      []ImageRef
}

// English is the secondary-language variant of a detail page. Either field
// may be empty when the page carries no meaningful translation.
type English struct {
	Title       string
	Description string
}

// ViewLink is a full-resolution "view" link found on a detail page. ViewID
// is the link's own numeric identifier, distinct from the exhibition id.
type ViewLink struct {
	ViewID            int64
	ThumbnailSrc      string
	ThumbnailFilename string
	AltText           string
}

// NewDocument parses already-decoded page text.
func NewDocument(pageText string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(pageText))
}

// IsHeaderImage reports whether a URL, path or filename refers to the
// decorative header graphic.
func IsHeaderImage(s string) bool {
	return strings.Contains(s, HeaderImageMarker)
}

// ExhibitionIDs harvests exhibition identifiers from a year listing page.
// The listing may link the same exhibition several times; duplicates are
// dropped, first-seen order kept.
func ExhibitionIDs(doc *goquery.Document) []int64 {
	seen := map[int64]struct{}{}
	var ids []int64
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		m := archiveViewID.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})
	return ids
}

// ParseDetail extracts the exhibition record from a detail page. Missing
// elements degrade to empty fields; the page is never rejected.
func ParseDetail(doc *goquery.Document, pageURL string) Detail {
	var detail Detail

	if head := doc.Find(".arc_view_head").First(); head.Length() > 0 {
		detail.Artists = SplitArtists(head.Text())
	}
	if name := doc.Find(".arc_view_name").First(); name.Length() > 0 {
		detail.Title = strings.TrimSpace(name.Text())
	}
	if date := doc.Find(".arc_view_date").First(); date.Length() > 0 {
		detail.DateText = strings.TrimSpace(date.Text())
	}
	detail.Description = DescriptionText(doc)

	doc.Find("img").Each(func(idx int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if src == "" || strings.HasSuffix(src, ".gif") || strings.HasSuffix(src, "spacer") {
			return
		}
		lowered := strings.ToLower(src)
		for _, marker := range noiseMarkers {
			if strings.Contains(lowered, marker) {
				return
			}
		}
		full := resolveURL(pageURL, src)
		alt, _ := sel.Attr("alt")
		detail.Images = append(detail.Images, ImageRef{
			URL:          full,
			Filename:     filenameFromURL(full),
			AltText:      alt,
			DisplayOrder: idx,
		})
	})
	return detail
}

// SplitArtists splits the artist heading on commas and the Icelandic "og"
// (and) conjunction, preserving page order.
func SplitArtists(heading string) []string {
	var artists []string
	for _, part := range artistSplit.Split(heading, -1) {
		if name := strings.TrimSpace(part); name != "" {
			artists = append(artists, name)
		}
	}
	return artists
}

// DescriptionText joins the text of every description cell, skipping
// non-breaking-space placeholders and other noise.
func DescriptionText(doc *goquery.Document) string {
	var parts []string
	doc.Find(".arc_view_text").Each(func(_ int, sel *goquery.Selection) {
		sel.Find("script, style").Remove()
		text := strings.TrimSpace(sel.Text())
		if text != "" && text != " " && len([]rune(text)) > 1 {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

// ParseEnglish extracts the translated title and description from the
// secondary-language variant of a detail page.
func ParseEnglish(doc *goquery.Document) English {
	var en English
	if name := doc.Find(".arc_view_name").First(); name.Length() > 0 {
		en.Title = strings.TrimSpace(name.Text())
	}
	if cell := doc.Find(".arc_view_text").First(); cell.Length() > 0 {
		paragraphs := cell.Find("p")
		if paragraphs.Length() > 0 {
			var parts []string
			paragraphs.Each(func(_ int, p *goquery.Selection) {
				if text := strings.TrimSpace(p.Text()); text != "" {
					parts = append(parts, text)
				}
			})
			en.Description = strings.Join(parts, "\n\n")
		} else {
			en.Description = strings.TrimSpace(cell.Text())
		}
	}
	return en
}

// GalleryLinks finds the full-resolution view links on a detail page. Links
// whose thumbnail is the decorative header graphic are dropped here, before
// any fetch happens.
func GalleryLinks(doc *goquery.Document, pageURL string) []ViewLink {
	var links []ViewLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		m := imageViewID.FindStringSubmatch(href)
		if m == nil {
			return
		}
		viewID, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return
		}
		thumb := sel.Find("img").First()
		if thumb.Length() == 0 {
			return
		}
		src, _ := thumb.Attr("src")
		filename := filenameFromURL(resolveURL(pageURL, src))
		if filename == HeaderImageMarker {
			return
		}
		alt, _ := thumb.Attr("alt")
		links = append(links, ViewLink{
			ViewID:            viewID,
			ThumbnailSrc:      src,
			ThumbnailFilename: filename,
			AltText:           alt,
		})
	})
	return links
}

// EmbeddedImageURL locates the full-resolution image on an HTML view page:
// the element carrying the main-image marker class wins, then the generic
// image class, then the first image on the page.
func EmbeddedImageURL(doc *goquery.Document, pageURL string) (string, bool) {
	for _, selector := range []string{"img.img_main", "img.img", "img"} {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			continue
		}
		return resolveURL(pageURL, src), true
	}
	return "", false
}

func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func filenameFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return path.Base(raw)
	}
	return path.Base(parsed.Path)
}
