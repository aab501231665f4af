// Package view layers course navigation and the list/detail/attachment
// pipeline on top of the session core. It is the surface a controller
// (CLI, exporter) talks to.
package view

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"eclass-backend/lib/scrapers/eclass/core"
	"eclass-backend/lib/scrapers/eclass/extract"
	"eclass-backend/lib/scrapers/eclass/render"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/eclass/view")

// RenderResolver abstracts the headless-browser fallback so tests can
// substitute a stub. The production implementation boots one browser per
// call and always tears it down.
type RenderResolver interface {
	Resolve(ctx context.Context, req render.ResolveRequest) ([]extract.Attachment, error)
}

// PlaywrightResolver is the production RenderResolver.
type PlaywrightResolver struct{}

func (PlaywrightResolver) Resolve(ctx context.Context, req render.ResolveRequest) ([]extract.Attachment, error) {
	session, err := render.Launch(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	return session.ResolveAttachments(ctx, req)
}

type Client struct {
	Core   *core.Client
	Render RenderResolver
	// rows requested per list page
	Display int
}

type ClientOptions struct {
	// defaults to PlaywrightResolver when nil
	Render RenderResolver
	// defaults to 20
	Display int
}

func NewClient(coreClient *core.Client, opts ClientOptions) Client {
	r := opts.Render
	if r == nil {
		r = PlaywrightResolver{}
	}
	display := opts.Display
	if display <= 0 {
		display = 20
	}
	return Client{
		Core:    coreClient,
		Render:  r,
		Display: display,
	}
}

// Login authenticates the underlying session.
func (c Client) Login(ctx context.Context, username, password string) error {
	return c.Core.Login(ctx, username, password)
}

// Close invalidates the underlying session.
func (c Client) Close() {
	c.Core.Close()
}

// Courses fetches the landing page and returns the user's enrollments.
func (c Client) Courses(ctx context.Context) ([]extract.Course, error) {
	ctx, span := tracer.Start(ctx, "client:Courses")
	defer span.End()

	body, err := c.Core.Get(ctx, core.MainPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, &core.NetworkError{Op: "GET", Url: core.MainPath, Err: err}
	}

	return extract.Courses(doc), nil
}

type entryEnvelope struct {
	IsError   bool   `json:"isError"`
	Message   string `json:"message"`
	ReturnUrl string `json:"returnURL"`
}

// EnterCourse performs the explicit "enter classroom" exchange and returns
// the validated sub-site url. A malformed envelope surfaces as a
// *core.NetworkError, a portal-side rejection as a *core.RejectedError —
// callers can tell the two apart.
func (c Client) EnterCourse(ctx context.Context, courseId string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:EnterCourse")
	defer span.End()
	span.SetAttributes(attribute.String("course", courseId))

	body, err := c.Core.Post(ctx, core.CourseAccessPath, map[string]string{
		"KJKEY":      courseId,
		"returnData": "json",
		"returnURI":  core.SubmainPath,
		"encoding":   "utf-8",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post course entry")
		return "", err
	}

	var envelope entryEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed entry envelope")
		return "", &core.NetworkError{Op: "POST", Url: core.CourseAccessPath, Err: err}
	}
	if envelope.IsError {
		span.SetStatus(codes.Error, "course entry rejected")
		return "", &core.RejectedError{Message: envelope.Message}
	}
	return envelope.ReturnUrl, nil
}

// Menus fetches a course sub-site landing page and returns its enabled
// menu items. An empty map with a nil error is a legitimate result for a
// course with no menus enabled, not a failure.
func (c Client) Menus(ctx context.Context, courseUrl string) (map[extract.MenuType]extract.MenuEntry, error) {
	ctx, span := tracer.Start(ctx, "client:Menus")
	defer span.End()

	body, err := c.Core.Get(ctx, courseUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, &core.NetworkError{Op: "GET", Url: courseUrl, Err: err}
	}

	return extract.MenuMap(doc, c.Core.BaseUrl.String()), nil
}

// per-menu-type list endpoints; Plan and Attendance have no paginated
// list view and are absent on purpose
var listPaths = map[extract.MenuType]string{
	extract.MenuNotice:          "/ilos/st/course/notice_list.acl",
	extract.MenuLectureMaterial: "/ilos/st/course/lecture_material_list.acl",
	extract.MenuAssignment:      "/ilos/st/course/report_list.acl",
	extract.MenuTeamProject:     "/ilos/st/course/teamproject_list.acl",
	extract.MenuExam:            "/ilos/st/course/exam_list.acl",
	extract.MenuOnlineLecture:   "/ilos/st/course/online_lecture_list.acl",
}

// ListPath reports the list endpoint for a menu type, if it has one.
func ListPath(t extract.MenuType) (string, bool) {
	path, ok := listPaths[t]
	return path, ok
}

// FetchPage fetches one page of a menu's list view and returns its records
// in ascending chronological order. The portal renders most-recent-first;
// the reversal here is part of the contract. Aggregating multiple pages is
// the caller's loop.
func (c Client) FetchPage(ctx context.Context, course extract.Course, menu extract.MenuType, page int) ([]extract.Record, error) {
	ctx, span := tracer.Start(ctx, "client:FetchPage")
	defer span.End()
	span.SetAttributes(
		attribute.String("course", course.Id),
		attribute.String("menu", menu.String()),
		attribute.Int("page", page),
	)

	path, ok := listPaths[menu]
	if !ok {
		return nil, fmt.Errorf("menu %s has no list view", menu)
	}
	if page < 1 {
		page = 1
	}

	body, err := c.Core.Post(ctx, path, map[string]string{
		"start":     strconv.Itoa((page-1)*c.Display + 1),
		"display":   strconv.Itoa(c.Display),
		"SCH_VALUE": "",
		"ud":        c.Core.Username,
		"ky":        course.Id,
		"encoding":  "utf-8",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch list page")
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, &core.NetworkError{Op: "POST", Url: path, Err: err}
	}

	records := extract.ListRows(doc, c.Core.BaseUrl.String())
	slices.Reverse(records)
	return records, nil
}

// FetchDetail fetches and parses a record's detail page. A page without a
// text-viewer region yields an empty Detail, a degraded state rather than
// an error.
func (c Client) FetchDetail(ctx context.Context, record extract.Record) (extract.Detail, error) {
	ctx, span := tracer.Start(ctx, "client:FetchDetail")
	defer span.End()
	span.SetAttributes(attribute.String("article", record.ArticleId))

	if record.DetailUrl == "" {
		slog.WarnContext(ctx, "record has no detail url", "title", record.Title)
		return extract.Detail{}, nil
	}

	body, err := c.Core.Get(ctx, record.DetailUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch detail")
		return extract.Detail{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return extract.Detail{}, &core.NetworkError{Op: "GET", Url: record.DetailUrl, Err: err}
	}

	return extract.ParseDetail(doc, c.Core.BaseUrl.String()), nil
}

// ResolveAttachments returns a record's attachment entries. Anchors
// present in static markup are the cheap path; when the detail page
// declares an attachment container without retrievable links, the
// rendering backend is invoked exactly once for the record. A backend
// fault is logged and yields an empty list — it never aborts the
// surrounding list/detail flow.
func (c Client) ResolveAttachments(ctx context.Context, course extract.Course, record extract.Record) ([]extract.Attachment, error) {
	ctx, span := tracer.Start(ctx, "client:ResolveAttachments")
	defer span.End()
	span.SetAttributes(attribute.String("article", record.ArticleId))

	if record.DetailUrl == "" {
		return nil, nil
	}

	body, err := c.Core.Get(ctx, record.DetailUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch detail")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, &core.NetworkError{Op: "GET", Url: record.DetailUrl, Err: err}
	}

	attachments := extract.Attachments(doc, c.Core.BaseUrl.String())
	if len(attachments) > 0 {
		return attachments, nil
	}
	if !extract.HasAttachmentContainer(doc) {
		return nil, nil
	}

	// the real download reference is rendered by page script keyed on the
	// article id and content-sequence token, so boot the browser fallback
	username, password := c.Core.Credentials()
	attachments, err = c.Render.Resolve(ctx, render.ResolveRequest{
		BaseUrl:     c.Core.BaseUrl.String(),
		Username:    username,
		Password:    password,
		CourseId:    course.Id,
		ArticleId:   record.ArticleId,
		SearchValue: "",
		Display:     1,
		Start:       1,
	})
	if err != nil {
		slog.WarnContext(ctx, "render fallback failed", "article", record.ArticleId, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "render fallback failed")
		return nil, nil
	}
	return attachments, nil
}

// Download streams an attachment into dir and returns the written path.
func (c Client) Download(ctx context.Context, attachment extract.Attachment, dir string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:Download")
	defer span.End()

	if attachment.Url == "" {
		return "", fmt.Errorf("attachment %q has no download reference", attachment.Name)
	}

	// an expired or rejected download reference answers with an HTML error
	// page instead of the file
	probe, err := c.Core.Head(ctx, attachment.Url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to probe download")
		return "", err
	}
	if strings.Contains(probe.Header().Get("Content-Type"), "text/html") {
		return "", fmt.Errorf("attachment %q does not resolve to a file", attachment.Name)
	}

	body, err := c.Core.Get(ctx, attachment.Url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to download")
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(attachment.Name))
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", err
	}
	return path, nil
}
