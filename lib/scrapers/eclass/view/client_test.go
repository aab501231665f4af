package view_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"eclass-backend/lib/scrapers/eclass/core"
	"eclass-backend/lib/scrapers/eclass/extract"
	"eclass-backend/lib/scrapers/eclass/render"
	"eclass-backend/lib/scrapers/eclass/view"
	"eclass-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const listPage = `<html><body><table><tbody>
<tr style="cursor: pointer;">
  <td>2</td><td></td>
  <td onclick="pageMove('/ilos/st/course/notice_view_form.acl?ARTL_NUM=22&amp;start=1')">
    <a class="site-link" href="#">
      <div class="subjt_top">둘째 공지</div>
      <div class="subjt_bottom"><span>김교수</span><span>조회 5</span></div>
    </a>
  </td>
  <td></td><td>2024.04.02</td>
</tr>
<tr style="cursor: pointer;">
  <td>1</td><td></td>
  <td onclick="pageMove('/ilos/st/course/notice_view_form.acl?ARTL_NUM=21&amp;start=1')">
    <a class="site-link" href="#">
      <div class="subjt_top">첫째 공지</div>
      <div class="subjt_bottom"><span>김교수</span><span>조회 9</span></div>
    </a>
  </td>
  <td></td><td>2024.03.05</td>
</tr>
</tbody></table></body></html>`

const staticDetailPage = `<html><body>
<table><tr><td class="textviewer"><p>본문</p></td></tr></table>
<div class="attfile-list">
  <a class="site-link" href="/ilos/co/efile_download.acl?num=7">- slides.pdf (2MB)</a>
</div>
</body></html>`

const scriptDetailPage = `<html><body>
<table><tr><td class="textviewer"><p>첨부파일 참고.</p></td></tr></table>
<div id="tbody_file"></div>
</body></html>`

const plainDetailPage = `<html><body>
<table><tr><td class="textviewer"><p>첨부 없음.</p></td></tr></table>
</body></html>`

type stubResolver struct {
	calls       int
	lastRequest render.ResolveRequest
	attachments []extract.Attachment
	err         error
}

func (s *stubResolver) Resolve(_ context.Context, req render.ResolveRequest) ([]extract.Attachment, error) {
	s.calls++
	s.lastRequest = req
	return s.attachments, s.err
}

// newPortal stands up a stub portal that accepts any login and serves the
// given extra routes, recording the last form posted to the list endpoint.
func newPortal(t *testing.T, routes map[string]string) (*httptest.Server, *url.Values) {
	t.Helper()

	lastListForm := &url.Values{}
	mux := http.NewServeMux()
	mux.HandleFunc(core.LoginPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`document.location.href='/ilos/main/main_form.acl'`))
	})
	mux.HandleFunc("/ilos/st/course/notice_list.acl", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		*lastListForm = r.PostForm
		w.Write([]byte(listPage))
	})
	for path, body := range routes {
		page := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(page))
		})
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, lastListForm
}

func newViewClient(t *testing.T, baseUrl string, resolver view.RenderResolver) view.Client {
	t.Helper()
	t.Cleanup(telemetry.SetupForTesting(t, "test:scrapers/eclass/view"))

	coreClient, err := core.NewClient(context.Background(), core.ClientOptions{BaseUrl: baseUrl})
	require.NoError(t, err)

	client := view.NewClient(coreClient, view.ClientOptions{Render: resolver})
	require.NoError(t, client.Login(context.Background(), "s2024001", "hunter2"))
	return client
}

func TestEnterCourse(t *testing.T) {
	cases := map[string]struct {
		envelope  string
		returnUrl string
		check     func(t *testing.T, err error)
	}{
		"accepted": {
			envelope:  `{"isError":false,"message":"","returnURL":"/ilos/st/course/submain_form.acl?KJKEY=KJ2024101"}`,
			returnUrl: "/ilos/st/course/submain_form.acl?KJKEY=KJ2024101",
		},
		"rejected": {
			envelope: `{"isError":true,"message":"수강 대상이 아닙니다.","returnURL":""}`,
			check: func(t *testing.T, err error) {
				var rejected *core.RejectedError
				require.ErrorAs(t, err, &rejected)
				require.Equal(t, "수강 대상이 아닙니다.", rejected.Message)
			},
		},
		"malformed envelope": {
			envelope: `<html><body>세션이 만료되었습니다.</body></html>`,
			check: func(t *testing.T, err error) {
				var netErr *core.NetworkError
				require.ErrorAs(t, err, &netErr)
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			server, _ := newPortal(t, map[string]string{
				core.CourseAccessPath: tc.envelope,
			})
			client := newViewClient(t, server.URL, &stubResolver{})

			returnUrl, err := client.EnterCourse(context.Background(), "KJ2024101")
			if tc.check != nil {
				tc.check(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.returnUrl, returnUrl)
		})
	}
}

func TestMenusEmpty(t *testing.T) {
	server, _ := newPortal(t, map[string]string{
		"/ilos/st/course/submain_form.acl": `<html><body><p>열린 메뉴가 없습니다.</p></body></html>`,
	})
	client := newViewClient(t, server.URL, &stubResolver{})

	menus, err := client.Menus(context.Background(), "/ilos/st/course/submain_form.acl")
	require.NoError(t, err)
	require.Empty(t, menus)
}

func TestFetchPageAscending(t *testing.T) {
	server, lastForm := newPortal(t, nil)
	client := newViewClient(t, server.URL, &stubResolver{})

	course := extract.Course{Id: "KJ2024101", Name: "Data Structures"}
	records, err := client.FetchPage(context.Background(), course, extract.MenuNotice, 2)
	require.NoError(t, err)

	// the portal renders most-recent-first; callers get oldest-first
	require.Len(t, records, 2)
	require.Equal(t, "첫째 공지", records[0].Title)
	require.Equal(t, "둘째 공지", records[1].Title)
	require.True(t, records[0].PublishedAt.Before(records[1].PublishedAt))

	form := *lastForm
	require.Equal(t, "21", form.Get("start"))
	require.Equal(t, "20", form.Get("display"))
	require.Equal(t, "s2024001", form.Get("ud"))
	require.Equal(t, "KJ2024101", form.Get("ky"))
}

func TestFetchPageNoListView(t *testing.T) {
	server, _ := newPortal(t, nil)
	client := newViewClient(t, server.URL, &stubResolver{})

	_, err := client.FetchPage(context.Background(), extract.Course{Id: "KJ2024101"}, extract.MenuPlan, 1)
	require.Error(t, err)
}

func TestFetchDetail(t *testing.T) {
	server, _ := newPortal(t, map[string]string{
		"/ilos/st/course/notice_view_form.acl": staticDetailPage,
	})
	client := newViewClient(t, server.URL, &stubResolver{})

	detail, err := client.FetchDetail(context.Background(), extract.Record{
		DetailUrl: server.URL + "/ilos/st/course/notice_view_form.acl?ARTL_NUM=22",
		ArticleId: "22",
	})
	require.NoError(t, err)
	require.Equal(t, "본문", detail.Content)
	require.Len(t, detail.Attachments, 1)
}

func TestFetchDetailNoUrl(t *testing.T) {
	server, _ := newPortal(t, nil)
	client := newViewClient(t, server.URL, &stubResolver{})

	detail, err := client.FetchDetail(context.Background(), extract.Record{Title: "잘린 행"})
	require.NoError(t, err)
	require.Empty(t, detail.Content)
	require.Empty(t, detail.Attachments)
}

func TestResolveAttachmentsStatic(t *testing.T) {
	server, _ := newPortal(t, map[string]string{
		"/ilos/st/course/notice_view_form.acl": staticDetailPage,
	})
	resolver := &stubResolver{}
	client := newViewClient(t, server.URL, resolver)

	attachments, err := client.ResolveAttachments(context.Background(),
		extract.Course{Id: "KJ2024101"},
		extract.Record{DetailUrl: server.URL + "/ilos/st/course/notice_view_form.acl?ARTL_NUM=22", ArticleId: "22"},
	)
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	require.Equal(t, "slides.pdf", attachments[0].Name)
	require.Equal(t, "2MB", attachments[0].Size)

	// anchors were in static markup, no browser needed
	require.Zero(t, resolver.calls)
}

func TestResolveAttachmentsFallback(t *testing.T) {
	server, _ := newPortal(t, map[string]string{
		"/ilos/st/course/lecture_material_view_form.acl": scriptDetailPage,
	})
	resolver := &stubResolver{
		attachments: []extract.Attachment{{Name: "week3.zip", Size: "10MB", Url: "https://cdn.example.com/week3.zip"}},
	}
	client := newViewClient(t, server.URL, resolver)

	attachments, err := client.ResolveAttachments(context.Background(),
		extract.Course{Id: "KJ2024101"},
		extract.Record{DetailUrl: server.URL + "/ilos/st/course/lecture_material_view_form.acl?ARTL_NUM=31", ArticleId: "31"},
	)
	require.NoError(t, err)
	require.Equal(t, resolver.attachments, attachments)

	// the container was declared but empty, so the fallback ran exactly once
	require.Equal(t, 1, resolver.calls)
	require.Equal(t, "KJ2024101", resolver.lastRequest.CourseId)
	require.Equal(t, "31", resolver.lastRequest.ArticleId)
	require.Equal(t, "s2024001", resolver.lastRequest.Username)
	require.Equal(t, "hunter2", resolver.lastRequest.Password)
	require.Equal(t, 1, resolver.lastRequest.Display)
	require.Equal(t, 1, resolver.lastRequest.Start)
}

func TestResolveAttachmentsFallbackFailure(t *testing.T) {
	server, _ := newPortal(t, map[string]string{
		"/ilos/st/course/lecture_material_view_form.acl": scriptDetailPage,
	})
	resolver := &stubResolver{err: &core.RenderError{Stage: "launch", Err: context.DeadlineExceeded}}
	client := newViewClient(t, server.URL, resolver)

	// a broken rendering backend degrades to no attachments, it must not
	// abort the caller's record loop
	attachments, err := client.ResolveAttachments(context.Background(),
		extract.Course{Id: "KJ2024101"},
		extract.Record{DetailUrl: server.URL + "/ilos/st/course/lecture_material_view_form.acl?ARTL_NUM=31", ArticleId: "31"},
	)
	require.NoError(t, err)
	require.Empty(t, attachments)
	require.Equal(t, 1, resolver.calls)
}

func TestDownload(t *testing.T) {
	server, _ := newPortal(t, map[string]string{
		"/ilos/co/efile_download.acl": "%PDF-1.4 fake document body",
		"/ilos/co/expired.acl":        "<html><body>세션이 만료되었습니다.</body></html>",
	})
	client := newViewClient(t, server.URL, &stubResolver{})
	dir := t.TempDir()

	path, err := client.Download(context.Background(), extract.Attachment{
		Name: "syllabus.pdf",
		Url:  server.URL + "/ilos/co/efile_download.acl?num=7",
	}, dir)
	require.NoError(t, err)
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 fake document body", string(contents))

	// expired references answer with an html error page, not a file
	_, err = client.Download(context.Background(), extract.Attachment{
		Name: "gone.pdf",
		Url:  server.URL + "/ilos/co/expired.acl",
	}, dir)
	require.Error(t, err)

	_, err = client.Download(context.Background(), extract.Attachment{Name: "detached"}, dir)
	require.Error(t, err)
}

func TestResolveAttachmentsNoContainer(t *testing.T) {
	server, _ := newPortal(t, map[string]string{
		"/ilos/st/course/notice_view_form.acl": plainDetailPage,
	})
	resolver := &stubResolver{}
	client := newViewClient(t, server.URL, resolver)

	attachments, err := client.ResolveAttachments(context.Background(),
		extract.Course{Id: "KJ2024101"},
		extract.Record{DetailUrl: server.URL + "/ilos/st/course/notice_view_form.acl?ARTL_NUM=22", ArticleId: "22"},
	)
	require.NoError(t, err)
	require.Empty(t, attachments)
	require.Zero(t, resolver.calls)
}
