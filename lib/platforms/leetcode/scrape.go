package leetcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"leetfetch/lib/htmlutil"
	"leetfetch/lib/transport"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ScrapeClient re-derives the same entities from rendered pages. Markup
// shifts underneath scrapers, so this client is strictly the fallback:
// missing optional fields degrade to null, only a missing container for
// the entity itself is reported as unavailable.
type ScrapeClient struct {
	http *transport.Client

	rowsMu sync.Mutex
	rows   map[string][]submissionRow
}

func NewScrapeClient(client *transport.Client) *ScrapeClient {
	return &ScrapeClient{
		http: client,
		rows: map[string][]submissionRow{},
	}
}

func (c *ScrapeClient) document(ctx context.Context, path string, query url.Values) (*goquery.Document, error) {
	res, err := c.http.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, &transport.ParseError{Entity: "html document", Err: err}
	}
	return doc, nil
}

func (c *ScrapeClient) FetchProfileStats(ctx context.Context, username string) (ProfileStats, error) {
	ctx, span := tracer.Start(ctx, "scrape:FetchProfileStats")
	defer span.End()

	doc, err := c.document(ctx, fmt.Sprintf("/%s/", username), nil)
	if err != nil {
		return ProfileStats{}, err
	}

	panel := doc.Find("[data-difficulty]")
	if panel.Length() == 0 {
		span.SetStatus(codes.Error, "solved-count panel missing")
		return ProfileStats{}, &transport.UnavailableError{Reason: "could not locate solved-count panel on profile page"}
	}

	var stats ProfileStats
	panel.Each(func(_ int, sel *goquery.Selection) {
		count, err := leadingInt(sel.Text())
		if err != nil {
			return
		}
		switch strings.ToLower(sel.AttrOr("data-difficulty", "")) {
		case "easy":
			stats.Easy = count
		case "medium":
			stats.Medium = count
		case "hard":
			stats.Hard = count
		}
	})

	total := doc.Find("[data-total-solved]").First()
	if count, err := leadingInt(total.Text()); err == nil && total.Length() > 0 {
		stats.TotalSolved = count
	} else {
		stats.TotalSolved = stats.Easy + stats.Medium + stats.Hard
	}
	return stats, nil
}

// leadingInt parses counters rendered as either "42" or "42/800".
func leadingInt(text string) (int, error) {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '/'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	return strconv.Atoi(text)
}

func (c *ScrapeClient) FetchSolvedSlugs(ctx context.Context, username string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "scrape:FetchSolvedSlugs")
	defer span.End()

	rows, err := c.submissionRows(ctx, username)
	if err != nil {
		span.SetStatus(codes.Error, "failed to scrape submission pages")
		return nil, err
	}

	seen := map[string]bool{}
	var slugs []string
	for _, row := range rows {
		if row.status != "Accepted" || row.slug == "" || seen[row.slug] {
			continue
		}
		seen[row.slug] = true
		slugs = append(slugs, row.slug)
	}
	span.SetAttributes(attribute.Int("custom.solved", len(slugs)))
	return slugs, nil
}

func (c *ScrapeClient) FetchProblemDetail(ctx context.Context, slug string) (Problem, error) {
	ctx, span := tracer.Start(ctx, "scrape:FetchProblemDetail")
	defer span.End()
	span.SetAttributes(attribute.String("custom.slug", slug))

	doc, err := c.document(ctx, fmt.Sprintf("/problems/%s/", slug), nil)
	if err != nil {
		return Problem{}, err
	}

	descSel := doc.Find(`div[class*="content__"]`)
	if descSel.Length() == 0 {
		descSel = doc.Find("div.question-content")
	}
	if descSel.Length() == 0 && doc.Find(`div[data-cy="question-title"]`).Length() == 0 {
		span.SetStatus(codes.Error, "description container missing")
		return Problem{}, &transport.UnavailableError{Reason: "could not locate problem description container"}
	}
	description := htmlutil.CollapseWhitespace(descSel.Text())

	title := strings.TrimSpace(strings.Replace(doc.Find("title").Text(), " - LeetCode", "", 1))
	if title == "" {
		title = slug
	}

	difficulty := normalizeDifficulty(doc.Find("div[diff]").AttrOr("diff", ""))

	tags := []string{}
	doc.Find("div.tag-v2, a.tag-v2").Each(func(_ int, sel *goquery.Selection) {
		if tag := strings.TrimSpace(sel.Text()); tag != "" {
			tags = append(tags, tag)
		}
	})

	return Problem{
		Title:       title,
		Slug:        slug,
		Description: description,
		Difficulty:  difficulty,
		Tags:        tags,
	}, nil
}

func (c *ScrapeClient) FetchSubmissions(ctx context.Context, slug string) ([]Submission, error) {
	ctx, span := tracer.Start(ctx, "scrape:FetchSubmissions")
	defer span.End()
	span.SetAttributes(attribute.String("custom.slug", slug))

	rows, err := c.submissionRows(ctx, c.http.Credentials().Username)
	if err != nil {
		span.SetStatus(codes.Error, "failed to scrape submission pages")
		return nil, err
	}

	var submissions []Submission
	for _, row := range rows {
		if row.slug != slug {
			continue
		}
		code, err := c.submissionCode(ctx, row.id)
		if err != nil {
			// the row is still worth keeping without code
			slog.WarnContext(ctx, "failed to scrape submission code",
				"submission", row.id, "err", err)
		}
		submissions = append(submissions, Submission{
			Status:    row.status,
			Code:      code,
			Timestamp: row.timestamp,
			Runtime:   optionalMetric(row.runtime),
			Memory:    optionalMetric(row.memory),
			Language:  row.lang,
		})
	}
	sortSubmissions(submissions)
	return submissions, nil
}

type submissionRow struct {
	id        string
	slug      string
	status    string
	runtime   string
	memory    string
	lang      string
	timestamp string
}

// submissionRows returns the user's complete submissions listing. The
// paginated pages are walked once per user per client, every per-slug
// lookup afterwards filters the same rows.
func (c *ScrapeClient) submissionRows(ctx context.Context, username string) ([]submissionRow, error) {
	c.rowsMu.Lock()
	defer c.rowsMu.Unlock()

	if rows, ok := c.rows[username]; ok {
		return rows, nil
	}
	rows, err := c.scrapeSubmissionRows(ctx, username)
	if err != nil {
		return nil, err
	}
	c.rows[username] = rows
	return rows, nil
}

// scrapeSubmissionRows walks the paginated submissions pages until an
// empty page. Page one without any submissions table at all means the
// layout changed or the page was never rendered for us.
func (c *ScrapeClient) scrapeSubmissionRows(ctx context.Context, username string) ([]submissionRow, error) {
	var rows []submissionRow

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))

		doc, err := c.document(ctx, fmt.Sprintf("/%s/submissions/", username), query)
		if err != nil {
			return nil, err
		}

		pageRows := doc.Find("tr[data-submission-id]")
		if pageRows.Length() == 0 {
			if page == 1 && doc.Find("table").Length() == 0 {
				return nil, &transport.UnavailableError{Reason: "could not locate submissions table"}
			}
			return rows, nil
		}

		pageRows.Each(func(_ int, tr *goquery.Selection) {
			anchor := tr.Find(`a[href*="/problems/"]`).First()
			rows = append(rows, submissionRow{
				id:        tr.AttrOr("data-submission-id", ""),
				slug:      slugFromHref(anchor.AttrOr("href", "")),
				status:    strings.TrimSpace(tr.Find("td:nth-child(3)").Text()),
				runtime:   strings.TrimSpace(tr.Find("td:nth-child(4)").Text()),
				memory:    strings.TrimSpace(tr.Find("td:nth-child(5)").Text()),
				lang:      strings.TrimSpace(tr.Find("td:nth-child(6)").Text()),
				timestamp: tr.Find("td:nth-child(2) span").AttrOr("data-timestamp", "0"),
			})
		})
	}
}

func slugFromHref(href string) string {
	parts := strings.Split(strings.Trim(href, "/"), "/")
	if len(parts) < 2 || parts[0] != "problems" {
		return ""
	}
	return parts[1]
}

// submissionCode pulls the code out of the submission detail page's
// editor markup, one rendered line per div.
func (c *ScrapeClient) submissionCode(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	doc, err := c.document(ctx, fmt.Sprintf("/submissions/detail/%s/", id), nil)
	if err != nil {
		return "", err
	}

	editor := doc.Find("div.CodeMirror-code")
	if editor.Length() == 0 {
		return "", nil
	}
	var lines []string
	editor.Find("div").Each(func(_ int, line *goquery.Selection) {
		lines = append(lines, line.Text())
	})
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func normalizeDifficulty(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "easy":
		return "Easy"
	case "medium":
		return "Medium"
	case "hard":
		return "Hard"
	}
	return "Unknown"
}
