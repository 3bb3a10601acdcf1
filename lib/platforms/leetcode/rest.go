package leetcode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"leetfetch/lib/transport"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FetchSolvedSlugs lists the slugs of problems the user has an accepted
// submission for, via the problem-set status endpoint, in the order the
// endpoint reports them.
func (c *QueryClient) FetchSolvedSlugs(ctx context.Context, username string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "query:FetchSolvedSlugs")
	defer span.End()

	res, err := c.http.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/api/problems/algorithms/",
	})
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, err
	}

	var payload struct {
		StatStatusPairs []struct {
			Stat struct {
				TitleSlug string `json:"question__title_slug"`
			} `json:"stat"`
			Status string `json:"status"`
		} `json:"stat_status_pairs"`
	}
	if err := transport.DecodeJSON(res, &payload); err != nil {
		span.SetStatus(codes.Error, "failed to parse problem list")
		return nil, err
	}

	var slugs []string
	for _, pair := range payload.StatStatusPairs {
		if pair.Status != "ac" || pair.Stat.TitleSlug == "" {
			continue
		}
		slugs = append(slugs, pair.Stat.TitleSlug)
	}
	span.SetAttributes(attribute.Int("custom.solved", len(slugs)))
	return slugs, nil
}

type restSubmission struct {
	Id            json.Number `json:"id"`
	Lang          string      `json:"lang"`
	Timestamp     json.Number `json:"timestamp"`
	StatusDisplay string      `json:"status_display"`
	Runtime       string      `json:"runtime"`
	Memory        string      `json:"memory"`
	Code          string      `json:"code"`
}

// FetchSubmissions returns the user's submission history for one
// problem, oldest first. Submissions the dump omits the code for are
// filled in from the detail page when a code scraper is wired in.
func (c *QueryClient) FetchSubmissions(ctx context.Context, slug string) ([]Submission, error) {
	ctx, span := tracer.Start(ctx, "query:FetchSubmissions")
	defer span.End()
	span.SetAttributes(attribute.String("custom.slug", slug))

	res, err := c.http.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/api/submissions/%s/", slug),
	})
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, err
	}

	var payload struct {
		SubmissionsDump []restSubmission `json:"submissions_dump"`
	}
	if err := transport.DecodeJSON(res, &payload); err != nil {
		span.SetStatus(codes.Error, "failed to parse submission dump")
		return nil, err
	}

	submissions := make([]Submission, 0, len(payload.SubmissionsDump))
	for _, dump := range payload.SubmissionsDump {
		code := dump.Code
		if code == "" && c.codeScraper != nil {
			recovered, err := c.codeScraper.submissionCode(ctx, dump.Id.String())
			if err != nil {
				// the submission is still worth keeping without code
				slog.WarnContext(ctx, "failed to recover submission code",
					"submission", dump.Id.String(), "err", err)
			} else {
				code = recovered
			}
		}
		submissions = append(submissions, Submission{
			Status:    dump.StatusDisplay,
			Code:      code,
			Timestamp: dump.Timestamp.String(),
			Runtime:   optionalMetric(dump.Runtime),
			Memory:    optionalMetric(dump.Memory),
			Language:  dump.Lang,
		})
	}
	sortSubmissions(submissions)
	return submissions, nil
}

func sortSubmissions(submissions []Submission) {
	sort.SliceStable(submissions, func(i, j int) bool {
		a, errA := json.Number(submissions[i].Timestamp).Int64()
		b, errB := json.Number(submissions[j].Timestamp).Int64()
		if errA != nil || errB != nil {
			return false
		}
		return a < b
	})
}
