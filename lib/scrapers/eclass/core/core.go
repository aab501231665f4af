// Package core owns the authenticated portal session: the cookie jar, the
// login flow and the minimal fetch primitives every other component is
// built on.
package core

import (
	"context"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"eclass-backend/lib/restyutil"
	"eclass-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/eclass/core")

const (
	LoginPath        = "/ilos/lo/login.acl"
	MainPath         = "/ilos/main/main_form.acl"
	CourseAccessPath = "/ilos/st/course/eclass_room2.acl"
	SubmainPath      = "/ilos/st/course/submain_form.acl"
)

// the portal answers 200 on both login outcomes; success is inferred from
// one of these body fragments
const (
	loginRedirectMarker = "document.location.href="
	loginLandingMarker  = "main_form.acl"
)

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	// set after a successful Login; list requests carry it as `ud`
	Username string

	password      string
	authenticated bool
}

type ClientOptions struct {
	BaseUrl string
	// optional dump target for every HTTP exchange, nil disables
	DebugOutput restyutil.InstrumentOutput
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/eclass/http")
	restyutil.InstrumentClient(client, opts.DebugOutput)

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}
	return c, nil
}

// Login submits credentials to the fixed login endpoint. A failed login is
// terminal for the run: repeated attempts can trigger portal-side lockout,
// so the caller gets ErrLoginFailed and decides, there is no retry here.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"usr_id":    username,
			"usr_pwd":   password,
			"returnURL": "",
		}).
		Post(LoginPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return &NetworkError{Op: "POST", Url: LoginPath, Err: err}
	}

	body := string(res.Body())
	if !strings.Contains(body, loginRedirectMarker) && !strings.Contains(body, loginLandingMarker) {
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		return ErrLoginFailed
	}

	c.Username = username
	c.password = password
	c.authenticated = true
	return nil
}

func (c *Client) Authenticated() bool {
	return c.authenticated
}

// Credentials returns the login pair of the live session. The rendering
// backend needs them to repeat the login inside its own browser context.
func (c *Client) Credentials() (username, password string) {
	return c.Username, c.password
}

// Get fetches a page over the authenticated session.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if !c.authenticated {
		return nil, ErrNotAuthenticated
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, &NetworkError{Op: "GET", Url: url, Err: err}
	}
	return res.Body(), nil
}

// Post submits form fields over the authenticated session.
func (c *Client) Post(ctx context.Context, url string, form map[string]string) ([]byte, error) {
	if !c.authenticated {
		return nil, ErrNotAuthenticated
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(url)
	if err != nil {
		return nil, &NetworkError{Op: "POST", Url: url, Err: err}
	}
	return res.Body(), nil
}

// Head issues a HEAD request, used to probe download references without
// pulling the file.
func (c *Client) Head(ctx context.Context, url string) (*resty.Response, error) {
	if !c.authenticated {
		return nil, ErrNotAuthenticated
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Head(url)
	if err != nil {
		return nil, &NetworkError{Op: "HEAD", Url: url, Err: err}
	}
	return res, nil
}

// Close invalidates the session. The client cannot be reused afterwards.
func (c *Client) Close() {
	c.authenticated = false
	c.Username = ""
	c.password = ""
	jar, err := cookiejar.New(nil)
	if err == nil {
		c.Http.SetCookieJar(jar)
	}
}
