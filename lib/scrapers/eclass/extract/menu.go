// Package extract turns raw portal markup into typed records. It performs
// no network I/O; missing or mangled elements degrade to empty fields with
// a logged warning instead of failing the whole page.
package extract

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MenuType is the closed set of course-section categories the portal
// exposes. The vocabulary is fixed; unknown menu items are ignored.
type MenuType int

const (
	MenuUnknown MenuType = iota
	MenuPlan
	MenuOnlineLecture
	MenuNotice
	MenuLectureMaterial
	MenuAttendance
	MenuAssignment
	MenuTeamProject
	MenuExam
)

// element id -> menu type, as rendered on the course landing page
var menuIds = map[string]MenuType{
	"st_plan":             MenuPlan,
	"st_onlineclass":      MenuOnlineLecture,
	"st_notice":           MenuNotice,
	"st_lecture_material": MenuLectureMaterial,
	"st_attendance":       MenuAttendance,
	"st_report":           MenuAssignment,
	"st_teamproject":      MenuTeamProject,
	"st_exam":             MenuExam,
}

func (t MenuType) String() string {
	switch t {
	case MenuPlan:
		return "plan"
	case MenuOnlineLecture:
		return "online_lecture"
	case MenuNotice:
		return "notice"
	case MenuLectureMaterial:
		return "lecture_material"
	case MenuAttendance:
		return "attendance"
	case MenuAssignment:
		return "assignment"
	case MenuTeamProject:
		return "team_project"
	case MenuExam:
		return "exam"
	}
	return "unknown"
}

// MenuTypes lists every known menu type in display order.
func MenuTypes() []MenuType {
	return []MenuType{
		MenuPlan, MenuOnlineLecture, MenuNotice, MenuLectureMaterial,
		MenuAttendance, MenuAssignment, MenuTeamProject, MenuExam,
	}
}

type MenuEntry struct {
	Type MenuType
	Name string
	Url  string
}

// MenuMap scans the course landing page for the fixed-role menu items and
// returns one entry per recognized menu type. Relative hrefs are prefixed
// with the portal origin.
func MenuMap(doc *goquery.Document, baseUrl string) map[MenuType]MenuEntry {
	menus := map[MenuType]MenuEntry{}

	doc.Find("li.course_menu_item").Each(func(_ int, item *goquery.Selection) {
		id := item.AttrOr("id", "")
		menuType, ok := menuIds[id]
		if !ok {
			return
		}

		link := item.Find("a").First()
		if link.Length() == 0 {
			slog.Warn("menu item has no link", "id", id)
			return
		}

		href := link.AttrOr("href", "")
		if strings.HasPrefix(href, "/") {
			href = baseUrl + href
		}
		menus[menuType] = MenuEntry{
			Type: menuType,
			Name: strings.TrimSpace(link.Text()),
			Url:  href,
		}
	})

	return menus
}
