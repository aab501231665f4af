package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"eclass-backend/lib/htmlutil"
	"eclass-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
)

// Record is one row of a paginated list page (notice, material,
// assignment, ...). Rows come out in the source's most-recent-first order;
// the view client reverses them before returning.
type Record struct {
	Seq    string
	Title  string
	Author string
	Views  string
	// raw published-date cell and its parsed form (zero when unparsable)
	Date        string
	PublishedAt time.Time
	// absolute detail page url recovered from the row's onclick directive
	DetailUrl string
	// numeric article key, recovered from the same directive
	ArticleId string
	// secondary key needed to resolve attachments, may be empty
	ContentSeq string
}

var (
	pageMoveRegex   = regexp.MustCompile(`pageMove\('([^']+)'`)
	articleIdRegex  = regexp.MustCompile(`ARTL_NUM=(\d+)`)
	contentSeqRegex = regexp.MustCompile(`downloadClick\('(.+?)'\)`)
)

// ListRows selects the clickable data rows of a list page. A row is kept
// only if it has at least 5 cells; shorter rows are spacers or notices
// rendered by the portal and are silently dropped.
func ListRows(doc *goquery.Document, baseUrl string) []Record {
	rows := doc.Find(`tr[style="cursor: pointer;"]`)
	if rows.Length() == 0 {
		slog.Warn("no clickable rows found in list page")
		return nil
	}

	var records []Record
	rows.Each(func(_ int, row *goquery.Selection) {
		cols := row.Find("td")
		if cols.Length() < 5 {
			return
		}

		titleCell := cols.Eq(2)
		title, author, views := parseTitleBlock(titleCell.Find("a.site-link").First())

		onclick := titleCell.AttrOr("onclick", "")
		records = append(records, Record{
			Seq:         strings.TrimSpace(cols.Eq(0).Text()),
			Title:       title,
			Author:      author,
			Views:       views,
			Date:        strings.TrimSpace(cols.Eq(4).Text()),
			PublishedAt: timezone.ParseDate(strings.TrimSpace(cols.Eq(4).Text())),
			DetailUrl:   extractDetailUrl(onclick, baseUrl),
			ArticleId:   firstGroup(articleIdRegex, onclick),
			ContentSeq:  extractContentSeq(cols.Eq(3)),
		})
	})

	return records
}

// parseTitleBlock decodes the nested two-line block inside a row's title
// cell: the top line is the title, the bottom line is "author ... views"
// where the view count is the last whitespace-separated token.
func parseTitleBlock(link *goquery.Selection) (title, author, views string) {
	if link.Length() == 0 {
		return "", "", ""
	}

	// the nested blocks carry the surrounding markup's indentation
	top := link.Find("div.subjt_top").First()
	if top.Length() > 0 {
		title = htmlutil.CleanText(top.Text())
	} else {
		title = htmlutil.CleanText(link.Find("div").First().Text())
	}

	bottom := link.Find("div.subjt_bottom").First()
	if bottom.Length() == 0 {
		return title, "", ""
	}
	spans := bottom.Find("span")
	if spans.Length() == 0 {
		return title, "", ""
	}

	author = htmlutil.CleanText(spans.First().Text())
	fields := strings.Fields(spans.Last().Text())
	if len(fields) > 0 {
		views = fields[len(fields)-1]
	}
	return title, author, views
}

func extractDetailUrl(onclick, baseUrl string) string {
	path := firstGroup(pageMoveRegex, onclick)
	if path == "" {
		slog.Warn("could not extract detail url from onclick", "onclick", onclick)
		return ""
	}
	// the directive carries pagination state after '&', the detail path is
	// only the first segment
	path = strings.SplitN(path, "&", 2)[0]
	return baseUrl + path
}

func extractContentSeq(attachmentCell *goquery.Selection) string {
	icon := attachmentCell.Find("img.download_icon").First()
	if icon.Length() == 0 {
		return ""
	}
	return firstGroup(contentSeqRegex, icon.AttrOr("onclick", ""))
}

func firstGroup(re *regexp.Regexp, s string) string {
	groups := re.FindStringSubmatch(s)
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}
