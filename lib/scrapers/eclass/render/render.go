// Package render drives a headless browser to reproduce the portal's
// script-triggered access flow. It is the expensive fallback for
// attachment metadata the static session cannot surface; one Session is
// launched per resolution and must always be closed.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"eclass-backend/lib/scrapers/eclass/core"
	"eclass-backend/lib/scrapers/eclass/extract"

	"github.com/PuerkitoBio/goquery"
	"github.com/mazen160/go-random"
	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/eclass/render")

const listViewPath = "/ilos/st/course/lecture_material_view_form.acl"

type Session struct {
	// correlates this browser session's log lines and debug dumps
	Id      string
	pw      *playwright.Playwright
	browser playwright.Browser
}

// Launch boots a headless chromium instance. Callers must Close the
// session on every exit path or the OS-level browser process leaks.
func Launch(ctx context.Context) (*Session, error) {
	_, span := tracer.Start(ctx, "render:Launch")
	defer span.End()

	pw, err := playwright.Run()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start playwright")
		return nil, &core.RenderError{Stage: "launch", Err: err}
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to launch chromium")
		return nil, &core.RenderError{Stage: "launch", Err: err}
	}

	id, err := random.String(8)
	if err != nil {
		id = "session"
	}
	return &Session{Id: id, pw: pw, browser: browser}, nil
}

func (s *Session) Close() {
	if s.browser != nil {
		s.browser.Close()
	}
	if s.pw != nil {
		s.pw.Stop()
	}
}

type ResolveRequest struct {
	BaseUrl  string
	Username string
	Password string
	// course key, replayed through the in-page entry exchange so the
	// browser's cookies match what the static session established
	CourseId    string
	ArticleId   string
	SearchKey   string
	SearchValue string
	Display     int
	Start       int
}

type entryEnvelope struct {
	IsError   bool   `json:"isError"`
	Message   string `json:"message"`
	ReturnUrl string `json:"returnURL"`
}

// ResolveAttachments logs in inside the browser, replays the course-entry
// exchange from page script and scrapes the rendered list-view page for
// the attachment entries the static markup could not provide.
func (s *Session) ResolveAttachments(ctx context.Context, req ResolveRequest) ([]extract.Attachment, error) {
	ctx, span := tracer.Start(ctx, "render:ResolveAttachments")
	defer span.End()
	span.SetAttributes(
		attribute.String("session", s.Id),
		attribute.String("article", req.ArticleId),
	)

	page, err := s.browser.NewPage()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open page")
		return nil, &core.RenderError{Stage: "page", Err: err}
	}
	defer page.Close()

	if err := s.login(page, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to login in browser")
		return nil, err
	}

	if err := s.enterCourse(page, req.CourseId); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enter course in browser")
		return nil, err
	}

	viewUrl := req.BaseUrl + listViewPath + "?" + orderedQuery(req)
	if _, err := page.Goto(viewUrl, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to navigate to list view")
		return nil, &core.RenderError{Stage: "navigate", Err: err}
	}

	content, err := page.Content()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read rendered page")
		return nil, &core.RenderError{Stage: "content", Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse rendered page")
		return nil, &core.RenderError{Stage: "parse", Err: err}
	}

	return extract.Attachments(doc, req.BaseUrl), nil
}

func (s *Session) login(page playwright.Page, req ResolveRequest) error {
	if _, err := page.Goto(req.BaseUrl+core.LoginPath, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return &core.RenderError{Stage: "login", Err: err}
	}

	if err := page.Fill("#usr_id", req.Username); err != nil {
		return &core.RenderError{Stage: "login", Err: err}
	}
	if err := page.Fill("#usr_pwd", req.Password); err != nil {
		return &core.RenderError{Stage: "login", Err: err}
	}
	if err := page.Click(`input[type='image'][alt='확인']`); err != nil {
		return &core.RenderError{Stage: "login", Err: err}
	}

	// the portal occasionally opens announcement popups on login
	for _, popup := range page.Context().Pages() {
		if popup != page {
			popup.Close()
		}
	}
	return nil
}

// enterCourse replays the course-entry exchange with an in-page XHR so the
// cookies it sets land in the browser context, matching what the static
// session sees.
func (s *Session) enterCourse(page playwright.Page, courseId string) error {
	script := `(kjkey) => {
		var xhr = new XMLHttpRequest();
		xhr.open('POST', '/ilos/st/course/eclass_room2.acl', false);
		xhr.setRequestHeader('Content-Type', 'application/x-www-form-urlencoded');
		xhr.send('KJKEY=' + kjkey + '&returnData=json&returnURI=/ilos/st/course/submain_form.acl&encoding=utf-8');
		return xhr.responseText;
	}`

	result, err := page.Evaluate(script, courseId)
	if err != nil {
		return &core.RenderError{Stage: "enter_course", Err: err}
	}
	text, ok := result.(string)
	if !ok {
		return &core.RenderError{Stage: "enter_course", Err: fmt.Errorf("unexpected evaluate result %T", result)}
	}

	var envelope entryEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return &core.RenderError{Stage: "enter_course", Err: err}
	}
	if envelope.IsError {
		return &core.RenderError{Stage: "enter_course", Err: &core.RejectedError{Message: envelope.Message}}
	}
	if envelope.ReturnUrl == "" {
		return &core.RenderError{Stage: "enter_course", Err: fmt.Errorf("no return url in entry response")}
	}
	return nil
}

// orderedQuery builds the list-view query string by hand: the portal is
// sensitive to parameter order, url.Values would sort the keys.
func orderedQuery(req ResolveRequest) string {
	var q strings.Builder
	q.WriteString("ARTL_NUM=" + url.QueryEscape(req.ArticleId))
	q.WriteString("&SCH_KEY=" + url.QueryEscape(req.SearchKey))
	q.WriteString("&SCH_VALUE=" + url.QueryEscape(req.SearchValue))
	q.WriteString(fmt.Sprintf("&display=%d", req.Display))
	q.WriteString(fmt.Sprintf("&start=%d", req.Start))
	return q.String()
}
