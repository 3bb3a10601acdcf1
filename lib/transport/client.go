package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leetfetch/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lib/transport")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Credentials are the session cookies for the authenticated user. They
// are read-only once the client is constructed.
type Credentials struct {
	Username     string
	SessionToken string
	CSRFToken    string
}

func (c Credentials) Validate() error {
	if c.Username == "" {
		return errors.New("credentials: username is empty")
	}
	if c.SessionToken == "" {
		return errors.New("credentials: session token is empty")
	}
	if c.CSRFToken == "" {
		return errors.New("credentials: csrf token is empty")
	}
	return nil
}

type ClientOptions struct {
	BaseUrl     string
	Credentials Credentials
	// zero value means DefaultRetryPolicy
	Retry RetryPolicy
	// Scraping clients accept html and route through the cloudflare
	// bypass transport, json clients advertise json.
	Scraping bool
}

// Client performs one logical request at a time with credentials
// attached, classifying every outcome into the error taxonomy above. It
// is scoped to a single fetch run.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	creds Credentials
	retry RetryPolicy
}

func NewClient(opts ClientOptions) (*Client, error) {
	if err := opts.Credentials.Validate(); err != nil {
		return nil, err
	}
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
	jar.SetCookies(baseUrl, []*http.Cookie{
		{Name: "LEETCODE_SESSION", Value: opts.Credentials.SessionToken},
		{Name: "csrftoken", Value: opts.Credentials.CSRFToken},
	})
	client.SetCookieJar(jar)

	client.SetHeader("user-agent", userAgent)
	client.SetHeader("referer", opts.BaseUrl+"/")
	client.SetHeader("x-csrftoken", opts.Credentials.CSRFToken)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	if opts.Scraping {
		client.SetHeader("accept", "text/html,application/xhtml+xml,application/xml")
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
		telemetry.InstrumentResty(client, "transport/scrape")
	} else {
		client.SetHeader("accept", "application/json, text/javascript, */*; q=0.01")
		telemetry.InstrumentResty(client, "transport/query")
	}

	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
		creds:   opts.Credentials,
		retry:   retry,
	}, nil
}

func (c *Client) Credentials() Credentials { return c.creds }

// Request describes one logical request. Body, when non-nil, is
// serialized as json.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

type Response struct {
	StatusCode  int
	Header      http.Header
	Body        []byte
	ContentType string
}

// Do executes the request, retrying rate-limit and network failures with
// exponential backoff. Authentication failures and unexpected response
// shapes are returned immediately.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("client:Do %s %s", req.Method, req.Path))
	defer span.End()

	var last error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.retry.Delay(attempt-1, retryAfterOf(last))
			span.AddEvent("backoff", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.String("delay", delay.String()),
			))
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		res, err := c.attempt(ctx, req)
		if err == nil {
			return res, nil
		}

		var rateLimited *RateLimitError
		var netErr *NetError
		switch {
		case errors.As(err, &rateLimited), errors.As(err, &netErr):
			last = err
		default:
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	span.SetStatus(codes.Error, "retries exhausted")
	return nil, last
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	r := c.Http.R().SetContext(ctx)
	if req.Query != nil {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("content-type", "application/json")
		r.SetBody(req.Body)
	}

	res, err := r.Execute(req.Method, req.Path)
	if err != nil {
		return nil, &NetError{Err: err}
	}

	status := res.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, &AuthError{Status: status}
	case status == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(res.Header())}
	case status >= 500:
		return nil, &NetError{Err: fmt.Errorf("upstream status %d", status)}
	case status < 200 || status >= 300:
		return nil, &UnavailableError{Reason: fmt.Sprintf("unexpected status %d", status)}
	}

	return &Response{
		StatusCode:  status,
		Header:      res.Header(),
		Body:        res.Body(),
		ContentType: res.Header().Get("content-type"),
	}, nil
}

// DecodeJSON unmarshals a 2xx body into out. A body that is not json at
// all (typically an html error or challenge page) reports the endpoint
// as unavailable rather than failing the run.
func DecodeJSON(res *Response, out any) error {
	if strings.Contains(res.ContentType, "text/html") {
		return &UnavailableError{Reason: "html response where json was expected"}
	}
	trimmed := strings.TrimSpace(string(res.Body))
	if strings.HasPrefix(trimmed, "<") {
		return &UnavailableError{Reason: "html response where json was expected"}
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return &UnavailableError{Reason: "response body did not match the expected shape", Err: err}
	}
	return nil
}

func parseRetryAfter(h http.Header) time.Duration {
	raw := h.Get("Retry-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func retryAfterOf(err error) time.Duration {
	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		return rateLimited.RetryAfter
	}
	return 0
}
