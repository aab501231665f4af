package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"eclass-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Detail is the cleaned body of one record's detail page.
type Detail struct {
	// cleaned text, paragraphs separated by single newlines; empty when
	// the page has no text-viewer region
	Content string
	// inner markup of the text-viewer region before cleanup, kept for
	// format-preserving exports
	ContentHtml string
	Attachments []Attachment
}

// SizeUnknown marks an attachment whose display text carried no
// parenthesized size suffix.
const SizeUnknown = "unknown"

type Attachment struct {
	Name string
	Size string
	Url  string
}

// ParseDetail extracts the designated text-viewer cell of a detail page
// plus any attachment anchors present in static markup. A page without a
// viewer yields an empty Detail, not an error.
func ParseDetail(doc *goquery.Document, baseUrl string) Detail {
	viewer := doc.Find("td.textviewer").First()
	if viewer.Length() == 0 {
		slog.Warn("detail page has no textviewer cell")
		return Detail{Attachments: Attachments(doc, baseUrl)}
	}

	// cleanContent rewrites the viewer's nodes, snapshot the markup first
	contentHtml, err := viewer.Html()
	if err != nil {
		contentHtml = ""
	}

	return Detail{
		Content:     cleanContent(viewer),
		ContentHtml: contentHtml,
		Attachments: Attachments(doc, baseUrl),
	}
}

// cleanContent normalizes <br> to newlines, terminates each paragraph
// with a single newline and collapses runs of blank lines.
func cleanContent(sel *goquery.Selection) string {
	sel.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		p.AfterHtml("\n")
	})

	lines := strings.Split(sel.Text(), "\n")
	var out []string
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, strings.TrimRight(line, " \t"))
		blank = false
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n")
}

var attachmentSizeRegex = regexp.MustCompile(`\((.*?)\)\s*$`)

// Attachments harvests attachment entries from the designated attachment
// list element. The display text carries the size as a trailing
// parenthesized suffix; when absent the size is marked unknown rather
// than defaulted to zero.
func Attachments(doc *goquery.Document, baseUrl string) []Attachment {
	var attachments []Attachment

	doc.Find("div.attfile-list a.site-link").Each(func(_ int, link *goquery.Selection) {
		title := htmlutil.CleanText(link.Text())

		size := SizeUnknown
		name := title
		if groups := attachmentSizeRegex.FindStringSubmatch(title); len(groups) >= 2 {
			size = groups[1]
			name = strings.TrimSpace(attachmentSizeRegex.ReplaceAllString(title, ""))
		}
		name = strings.Trim(name, "- ")

		href := link.AttrOr("href", "")
		if strings.HasPrefix(href, "/") {
			href = baseUrl + href
		}

		attachments = append(attachments, Attachment{
			Name: name,
			Size: size,
			Url:  href,
		})
	})

	return attachments
}

// HasAttachmentContainer reports whether the detail page structurally
// declares attachments, even when no anchors are retrievable from static
// markup (the portal fills the container by script in that case).
func HasAttachmentContainer(doc *goquery.Document) bool {
	return doc.Find("div#tbody_file, div.attfile-list").Length() > 0
}
