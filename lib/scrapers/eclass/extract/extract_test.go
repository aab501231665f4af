package extract_test

import (
	"bytes"
	_ "embed"
	"testing"
	"time"

	"eclass-backend/lib/scrapers/eclass/extract"
	"eclass-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/course_list.html
var courseListPage []byte

//go:embed testdata/submain.html
var submainPage []byte

//go:embed testdata/notice_list.html
var noticeListPage []byte

//go:embed testdata/detail.html
var detailPage []byte

//go:embed testdata/detail_script.html
var detailScriptPage []byte

const baseUrl = "https://eclass.example.ac.kr"

func docFrom(t *testing.T, page []byte) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestCourses(t *testing.T) {
	courses := extract.Courses(docFrom(t, courseListPage))
	require.Equal(t, []extract.Course{
		{
			Id:       "KJ2024101",
			Name:     "Data Structures",
			Code:     "CS201-01",
			Schedule: "월 09:00-10:30",
		},
		{
			Id:       "KJ2024102",
			Name:     "운영체제",
			Code:     "CS301-02",
			Schedule: "수 13:00-14:30",
		},
		{
			Id:       "KJ2024103",
			Name:     "Capstone Seminar",
			Code:     "",
			Schedule: "금 15:00-17:00",
		},
	}, courses)
}

func TestMenuMap(t *testing.T) {
	menus := extract.MenuMap(docFrom(t, submainPage), baseUrl)

	// st_survey has no fixed role and must not surface
	require.Len(t, menus, 5)

	require.Equal(t, extract.MenuEntry{
		Type: extract.MenuPlan,
		Name: "강의계획서",
		Url:  baseUrl + "/ilos/st/course/plan_form.acl?KJKEY=KJ2024101",
	}, menus[extract.MenuPlan])
	require.Equal(t, "공지사항", menus[extract.MenuNotice].Name)
	require.Equal(t, "강의자료실", menus[extract.MenuLectureMaterial].Name)
	require.Equal(t, "과제", menus[extract.MenuAssignment].Name)

	// absolute hrefs pass through untouched
	require.Equal(t,
		"https://exam.example.com/entry?KJKEY=KJ2024101",
		menus[extract.MenuExam].Url,
	)
}

func TestListRows(t *testing.T) {
	records := extract.ListRows(docFrom(t, noticeListPage), baseUrl)

	// the tail marker row has fewer than 5 cells and is dropped
	require.Len(t, records, 3)

	require.Equal(t, extract.Record{
		Seq:         "3",
		Title:       "기말고사 안내",
		Author:      "김교수",
		Views:       "41",
		Date:        "2024.06.10",
		PublishedAt: time.Date(2024, 6, 10, 0, 0, 0, 0, timezone.Location),
		DetailUrl:   baseUrl + "/ilos/st/course/notice_view_form.acl?ARTL_NUM=12347",
		ArticleId:   "12347",
		ContentSeq:  "SEQ-912",
	}, records[0])

	// rows keep the page's most-recent-first order here
	require.Equal(t, "중간고사 안내", records[1].Title)
	require.Equal(t, "개강 공지", records[2].Title)
	require.Empty(t, records[1].ContentSeq)
	require.Equal(t, "120", records[2].Views)
}

func TestListRowsIdempotent(t *testing.T) {
	first := extract.ListRows(docFrom(t, noticeListPage), baseUrl)
	second := extract.ListRows(docFrom(t, noticeListPage), baseUrl)
	require.Empty(t, cmp.Diff(first, second))
}

func TestListRowsNoRows(t *testing.T) {
	doc := docFrom(t, []byte(`<html><body><table><tr><td>empty</td></tr></table></body></html>`))
	require.Empty(t, extract.ListRows(doc, baseUrl))
}

func TestParseDetail(t *testing.T) {
	detail := extract.ParseDetail(docFrom(t, detailPage), baseUrl)

	require.Equal(t,
		"첫 번째 공지 내용입니다.\n두 번째 단락.\n줄바꿈 포함.\n\n마지막 단락.",
		detail.Content,
	)
	// the raw markup survives for format-preserving exports
	require.Contains(t, detail.ContentHtml, "<br/>")
	require.Equal(t, []extract.Attachment{
		{
			Name: "syllabus.pdf",
			Size: "245KB",
			Url:  baseUrl + "/ilos/co/efile_download.acl?path=notice&num=1",
		},
		{
			Name: "notes.pdf",
			Size: extract.SizeUnknown,
			Url:  "https://cdn.example.com/notes.pdf",
		},
	}, detail.Attachments)
}

func TestParseDetailNoViewer(t *testing.T) {
	doc := docFrom(t, []byte(`<html><body><div class="attfile-list">
		<a class="site-link" href="/f/1">- a.zip (1MB)</a>
	</div></body></html>`))

	detail := extract.ParseDetail(doc, baseUrl)
	require.Empty(t, detail.Content)
	require.Len(t, detail.Attachments, 1)
	require.Equal(t, "a.zip", detail.Attachments[0].Name)
}

func TestHasAttachmentContainer(t *testing.T) {
	require.True(t, extract.HasAttachmentContainer(docFrom(t, detailScriptPage)))
	require.True(t, extract.HasAttachmentContainer(docFrom(t, detailPage)))
	require.False(t, extract.HasAttachmentContainer(docFrom(t, courseListPage)))

	// the script-rendered page declares the container but exposes no anchors
	require.Empty(t, extract.Attachments(docFrom(t, detailScriptPage), baseUrl))
}
