// Package fetcher drives the end-to-end fetch for one user: it sequences
// the entity fetches, decides when to fall back from the structured-query
// transport to the markup scraper, and assembles whatever survived into a
// FetchResult. Partial results always beat total failure; only a session
// problem aborts the run, since no transport switch can fix stale cookies.
package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"leetfetch/lib/platforms/leetcode"
	"leetfetch/lib/transport"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/fetcher")

// Source is one strategy for retrieving entities. Both the structured
// query client and the markup scraper satisfy it.
type Source interface {
	FetchProfileStats(ctx context.Context, username string) (leetcode.ProfileStats, error)
	FetchSolvedSlugs(ctx context.Context, username string) ([]string, error)
	FetchProblemDetail(ctx context.Context, slug string) (leetcode.Problem, error)
	FetchSubmissions(ctx context.Context, slug string) ([]leetcode.Submission, error)
}

type Options struct {
	Username string
	Primary  Source
	// Fallback is consulted per entity when Primary reports anything
	// other than success or an authentication failure. Optional.
	Fallback Source
	// Probe verifies the session is signed in before any entity is
	// fetched. Optional.
	Probe func(ctx context.Context) error
	// Delay is a politeness pause between problems.
	Delay time.Duration
}

type Fetcher struct {
	opts Options
}

func New(opts Options) *Fetcher {
	return &Fetcher{opts: opts}
}

// fetchEntity tries the primary transport, then the fallback. An
// authentication error from either side is returned unchanged and
// untried on the other, everything else degrades per entity.
func fetchEntity[T any](ctx context.Context, f *Fetcher, entity string, op func(Source) (T, error)) (T, error) {
	var zero T

	value, err := op(f.opts.Primary)
	if err == nil {
		return value, nil
	}
	if !transport.ShouldFallback(err) {
		return zero, err
	}
	if f.opts.Fallback == nil {
		return zero, err
	}

	slog.WarnContext(ctx, "primary transport failed, falling back to scraping",
		"entity", entity, "err", err)

	value, fallbackErr := op(f.opts.Fallback)
	if fallbackErr == nil {
		return value, nil
	}
	if transport.IsAuth(fallbackErr) {
		return zero, fallbackErr
	}
	return zero, errors.Join(err, fallbackErr)
}

// Run fetches everything for the configured user. Cancelling the context
// is cooperative: the result assembled so far is returned without error.
func (f *Fetcher) Run(ctx context.Context) (*FetchResult, error) {
	ctx, span := tracer.Start(ctx, "fetcher:Run")
	defer span.End()
	span.SetAttributes(attribute.String("custom.username", f.opts.Username))

	result := &FetchResult{
		Username: f.opts.Username,
		Problems: []leetcode.Problem{},
	}

	if f.opts.Probe != nil {
		if err := f.opts.Probe(ctx); err != nil {
			if transport.IsAuth(err) {
				span.SetStatus(codes.Error, "session rejected")
				return nil, err
			}
			slog.WarnContext(ctx, "signed-in probe failed, continuing anyway", "err", err)
		}
	}

	stats, err := fetchEntity(ctx, f, "profile stats", func(s Source) (leetcode.ProfileStats, error) {
		return s.FetchProfileStats(ctx, f.opts.Username)
	})
	switch {
	case transport.IsAuth(err):
		span.SetStatus(codes.Error, "session rejected")
		return nil, err
	case err != nil:
		slog.WarnContext(ctx, "profile stats unavailable from both transports, keeping zeros", "err", err)
	default:
		result.ProfileStats = stats
		if !stats.Consistent() {
			slog.WarnContext(ctx, "difficulty buckets do not add up to the reported total, keeping source values",
				"total", stats.TotalSolved,
				"easy", stats.Easy, "medium", stats.Medium, "hard", stats.Hard)
		}
	}

	if ctx.Err() != nil {
		return result, nil
	}

	slugs, err := fetchEntity(ctx, f, "solved slugs", func(s Source) ([]string, error) {
		return s.FetchSolvedSlugs(ctx, f.opts.Username)
	})
	switch {
	case transport.IsAuth(err):
		span.SetStatus(codes.Error, "session rejected")
		return nil, err
	case err != nil:
		slog.WarnContext(ctx, "solved-problem list unavailable from both transports", "err", err)
		return result, nil
	}
	slog.InfoContext(ctx, "fetched solved problems", "count", len(slugs))

	// a problem is fetched at most once per run even if the slug list
	// repeats itself
	seen := make(map[string]bool, len(slugs))

	for i, slug := range slugs {
		if seen[slug] {
			continue
		}
		seen[slug] = true
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "cancelled, returning partial result",
				"fetched", len(result.Problems), "solved", len(slugs))
			return result, nil
		}
		if i > 0 && f.opts.Delay > 0 {
			if !sleep(ctx, f.opts.Delay) {
				return result, nil
			}
		}
		slog.InfoContext(ctx, "fetching problem", "slug", slug, "index", i+1, "total", len(slugs))

		problem, detailErr := fetchEntity(ctx, f, "problem detail", func(s Source) (leetcode.Problem, error) {
			return s.FetchProblemDetail(ctx, slug)
		})
		if transport.IsAuth(detailErr) {
			span.SetStatus(codes.Error, "session rejected")
			return nil, detailErr
		}

		// a detail failure must not stop the submission attempt, and
		// vice versa
		submissions, subErr := fetchEntity(ctx, f, "submissions", func(s Source) ([]leetcode.Submission, error) {
			return s.FetchSubmissions(ctx, slug)
		})
		if transport.IsAuth(subErr) {
			span.SetStatus(codes.Error, "session rejected")
			return nil, subErr
		}

		if detailErr != nil {
			slog.WarnContext(ctx, "skipping problem, detail unavailable from both transports",
				"slug", slug, "err", detailErr)
			continue
		}
		if subErr != nil {
			slog.WarnContext(ctx, "submissions unavailable from both transports, keeping problem without them",
				"slug", slug, "err", subErr)
		}
		if submissions == nil {
			submissions = []leetcode.Submission{}
		}
		if problem.Tags == nil {
			problem.Tags = []string{}
		}
		problem.Submissions = submissions
		result.Problems = append(result.Problems, problem)
	}

	span.SetAttributes(attribute.Int("custom.problems", len(result.Problems)))
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
