package leetcode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leetfetch/lib/telemetry"
	"leetfetch/lib/transport"

	"github.com/stretchr/testify/require"
)

var testCreds = transport.Credentials{
	Username:     "alice",
	SessionToken: "s1",
	CSRFToken:    "c1",
}

func newTestQueryClient(t *testing.T, handler http.Handler) *QueryClient {
	t.Helper()
	t.Cleanup(telemetry.SetupForTesting(t, "test:platforms/leetcode"))
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := transport.NewClient(transport.ClientOptions{
		BaseUrl:     server.URL,
		Credentials: testCreds,
		Retry:       transport.RetryPolicy{Base: time.Millisecond, MaxDelay: time.Millisecond * 10, MaxAttempts: 2},
	})
	require.NoError(t, err)
	return NewQueryClient(client)
}

func graphqlHandler(t *testing.T, responses map[string]string) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Name  string `json:"operationName"`
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		body, ok := responses[payload.Name]
		require.True(t, ok, "unexpected operation %q", payload.Name)
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(body))
	})
	return mux
}

func TestCheckSignedIn(t *testing.T) {
	client := newTestQueryClient(t, graphqlHandler(t, map[string]string{
		"": `{"data":{"userStatus":{"userId":7,"isSignedIn":true}}}`,
	}))
	require.NoError(t, client.CheckSignedIn(context.Background()))
}

func TestCheckSignedInStaleSession(t *testing.T) {
	client := newTestQueryClient(t, graphqlHandler(t, map[string]string{
		"": `{"data":{"userStatus":{"userId":0,"isSignedIn":false}}}`,
	}))
	err := client.CheckSignedIn(context.Background())
	require.True(t, transport.IsAuth(err))
}

func TestFetchProfileStats(t *testing.T) {
	client := newTestQueryClient(t, graphqlHandler(t, map[string]string{
		"userPublicProfile": `{"data":{"matchedUser":{"username":"alice","submitStats":{"acSubmissionNum":[
			{"difficulty":"All","count":10},
			{"difficulty":"Easy","count":5},
			{"difficulty":"Medium","count":4},
			{"difficulty":"Hard","count":1}
		]}}}}`,
	}))

	stats, err := client.FetchProfileStats(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, ProfileStats{TotalSolved: 10, Easy: 5, Medium: 4, Hard: 1}, stats)
	require.True(t, stats.Consistent())
}

func TestFetchProfileStatsMismatchKept(t *testing.T) {
	// the upstream total disagrees with its own buckets, the numbers
	// must come through untouched
	client := newTestQueryClient(t, graphqlHandler(t, map[string]string{
		"userPublicProfile": `{"data":{"matchedUser":{"username":"alice","submitStats":{"acSubmissionNum":[
			{"difficulty":"All","count":12},
			{"difficulty":"Easy","count":5},
			{"difficulty":"Medium","count":4},
			{"difficulty":"Hard","count":1}
		]}}}}`,
	}))

	stats, err := client.FetchProfileStats(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, 12, stats.TotalSolved)
	require.False(t, stats.Consistent())
}

func TestFetchProfileStatsMissingUser(t *testing.T) {
	client := newTestQueryClient(t, graphqlHandler(t, map[string]string{
		"userPublicProfile": `{"data":{"matchedUser":null}}`,
	}))

	_, err := client.FetchProfileStats(context.Background(), "alice")
	var unavailable *transport.UnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestFetchProblemDetail(t *testing.T) {
	client := newTestQueryClient(t, graphqlHandler(t, map[string]string{
		"questionData": `{"data":{"question":{
			"title":"Two Sum",
			"content":"<p>Given an array of integers.</p><pre>Input: nums = [2,7]</pre>",
			"difficulty":"Easy",
			"topicTags":[{"name":"Array"},{"name":"Hash Table"}]
		}}}`,
	}))

	problem, err := client.FetchProblemDetail(context.Background(), "two-sum")
	require.NoError(t, err)
	require.Equal(t, Problem{
		Title:       "Two Sum",
		Slug:        "two-sum",
		Description: "Given an array of integers.",
		Difficulty:  "Easy",
		Tags:        []string{"Array", "Hash Table"},
	}, problem)
}

func TestFetchProblemDetailMissingQuestion(t *testing.T) {
	client := newTestQueryClient(t, graphqlHandler(t, map[string]string{
		"questionData": `{"data":{"question":null}}`,
	}))

	_, err := client.FetchProblemDetail(context.Background(), "two-sum")
	var unavailable *transport.UnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestGraphqlHtmlResponseIsUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html")
		w.Write([]byte("<html><body>maintenance</body></html>"))
	})
	client := newTestQueryClient(t, mux)

	_, err := client.FetchProblemDetail(context.Background(), "two-sum")
	var unavailable *transport.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.True(t, transport.ShouldFallback(err))
}
