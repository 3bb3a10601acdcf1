package leetcode

import (
	"context"
	"fmt"
	"net/http"

	"leetfetch/lib/htmlutil"
	"leetfetch/lib/transport"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type graphqlPayload struct {
	Name      string `json:"operationName,omitempty"`
	Variables any    `json:"variables,omitempty"`
	Query     string `json:"query"`
}

type graphqlResult[Data any] struct {
	Data Data `json:"data"`
}

func graphqlQuery[Variables, Data any](
	ctx context.Context,
	client *transport.Client,
	name,
	query string,
	variables Variables,
) (Data, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("graphql:%s", name))
	defer span.End()

	span.SetAttributes(attribute.String("custom.name", name))

	var zero Data
	res, err := client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/graphql",
		Body: graphqlPayload{
			Name:      name,
			Query:     query,
			Variables: variables,
		},
	})
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return zero, err
	}

	var result graphqlResult[Data]
	if err := transport.DecodeJSON(res, &result); err != nil {
		span.SetStatus(codes.Error, "failed to parse json response")
		return zero, err
	}
	return result.Data, nil
}

// QueryClient is the primary transport. It speaks the structured-query
// endpoints and never looks at rendered markup, except through the
// optional code scraper wired in by RecoverCodeWith.
type QueryClient struct {
	http        *transport.Client
	codeScraper *ScrapeClient
}

func NewQueryClient(client *transport.Client) *QueryClient {
	return &QueryClient{http: client}
}

// RecoverCodeWith wires in a scraping client for submission-code
// recovery. The submission dump occasionally returns an empty code
// body for a submission whose detail page still renders it.
func (c *QueryClient) RecoverCodeWith(scrape *ScrapeClient) {
	c.codeScraper = scrape
}

const signedInQuery = `
{
    userStatus {
        userId
        isSignedIn
    }
}`

// CheckSignedIn probes the session before any data is fetched. A
// well-formed "signed out" answer means the cookies are stale, which is
// an authentication failure, not an availability problem.
func (c *QueryClient) CheckSignedIn(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "query:CheckSignedIn")
	defer span.End()

	data, err := graphqlQuery[struct{}, struct {
		UserStatus struct {
			UserId     int  `json:"userId"`
			IsSignedIn bool `json:"isSignedIn"`
		} `json:"userStatus"`
	}](ctx, c.http, "", signedInQuery, struct{}{})
	if err != nil {
		return err
	}
	if !data.UserStatus.IsSignedIn {
		span.SetStatus(codes.Error, "session is signed out")
		return &transport.AuthError{Reason: "session is signed out or expired"}
	}
	return nil
}

const profileStatsQuery = `
query userPublicProfile($username: String!) {
    matchedUser(username: $username) {
        username
        submitStats: submitStatsGlobal {
            acSubmissionNum {
                difficulty
                count
            }
        }
    }
}`

type profileStatsVariables struct {
	Username string `json:"username"`
}

func (c *QueryClient) FetchProfileStats(ctx context.Context, username string) (ProfileStats, error) {
	ctx, span := tracer.Start(ctx, "query:FetchProfileStats")
	defer span.End()

	data, err := graphqlQuery[profileStatsVariables, struct {
		MatchedUser *struct {
			SubmitStats struct {
				AcSubmissionNum []struct {
					Difficulty string `json:"difficulty"`
					Count      int    `json:"count"`
				} `json:"acSubmissionNum"`
			} `json:"submitStats"`
		} `json:"matchedUser"`
	}](ctx, c.http, "userPublicProfile", profileStatsQuery, profileStatsVariables{Username: username})
	if err != nil {
		return ProfileStats{}, err
	}
	if data.MatchedUser == nil {
		span.SetStatus(codes.Error, "matchedUser missing")
		return ProfileStats{}, &transport.UnavailableError{Reason: "matchedUser missing from response"}
	}

	var stats ProfileStats
	total := -1
	for _, bucket := range data.MatchedUser.SubmitStats.AcSubmissionNum {
		switch bucket.Difficulty {
		case "All":
			total = bucket.Count
		case "Easy":
			stats.Easy = bucket.Count
		case "Medium":
			stats.Medium = bucket.Count
		case "Hard":
			stats.Hard = bucket.Count
		}
	}
	// the source's own total is kept even when it disagrees with the
	// buckets, the orchestrator reports the mismatch
	if total >= 0 {
		stats.TotalSolved = total
	} else {
		stats.TotalSolved = stats.Easy + stats.Medium + stats.Hard
	}
	return stats, nil
}

const problemDetailQuery = `
query questionData($titleSlug: String!) {
    question(titleSlug: $titleSlug) {
        title
        content
        difficulty
        topicTags {
            name
        }
    }
}`

type problemDetailVariables struct {
	TitleSlug string `json:"titleSlug"`
}

func (c *QueryClient) FetchProblemDetail(ctx context.Context, slug string) (Problem, error) {
	ctx, span := tracer.Start(ctx, "query:FetchProblemDetail")
	defer span.End()
	span.SetAttributes(attribute.String("custom.slug", slug))

	data, err := graphqlQuery[problemDetailVariables, struct {
		Question *struct {
			Title      string `json:"title"`
			Content    string `json:"content"`
			Difficulty string `json:"difficulty"`
			TopicTags  []struct {
				Name string `json:"name"`
			} `json:"topicTags"`
		} `json:"question"`
	}](ctx, c.http, "questionData", problemDetailQuery, problemDetailVariables{TitleSlug: slug})
	if err != nil {
		return Problem{}, err
	}
	if data.Question == nil {
		span.SetStatus(codes.Error, "question missing")
		return Problem{}, &transport.UnavailableError{Reason: "question missing from response"}
	}

	description, err := htmlutil.FlattenFragment(data.Question.Content)
	if err != nil {
		span.SetStatus(codes.Error, "failed to flatten description")
		return Problem{}, &transport.ParseError{Entity: "problem description", Err: err}
	}

	tags := make([]string, 0, len(data.Question.TopicTags))
	for _, tag := range data.Question.TopicTags {
		tags = append(tags, tag.Name)
	}

	return Problem{
		Title:       data.Question.Title,
		Slug:        slug,
		Description: description,
		Difficulty:  data.Question.Difficulty,
		Tags:        tags,
	}, nil
}
