package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Course is one enrollment parsed off the portal landing page.
type Course struct {
	// opaque portal key, used to enter the course sub-site
	Id       string
	Name     string
	Code     string
	Schedule string
}

// Courses finds course cards on the landing page. A card is recognized by
// its inline style carrying a background image; there is no stable class
// to select on.
func Courses(doc *goquery.Document) []Course {
	var courses []Course

	doc.Find("li[style]").Each(func(_ int, li *goquery.Selection) {
		if !strings.Contains(li.AttrOr("style", ""), "background: url") {
			return
		}

		nameElem := li.Find("em.sub_open").First()
		if nameElem.Length() == 0 {
			return
		}

		name, code := splitCourseName(strings.TrimSpace(nameElem.Text()))
		courses = append(courses, Course{
			Id:       nameElem.AttrOr("kj", ""),
			Name:     name,
			Code:     code,
			Schedule: strings.TrimSpace(li.Find("span").First().Text()),
		})
	})

	return courses
}

// splitCourseName splits a full display name on the last opening
// parenthesis, e.g. "Data Structures(CS201-01)" -> name, code. The code
// defaults to empty when the name carries no parenthesized suffix.
func splitCourseName(full string) (name, code string) {
	idx := strings.LastIndexByte(full, '(')
	if idx < 0 {
		return strings.TrimSpace(full), ""
	}
	name = strings.TrimSpace(full[:idx])
	code = strings.Trim(full[idx+1:], ") ")
	return name, code
}
