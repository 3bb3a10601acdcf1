package leetcode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leetfetch/lib/telemetry"
	"leetfetch/lib/transport"

	"github.com/stretchr/testify/require"
)

func TestFetchSolvedSlugs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/problems/algorithms/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`{"stat_status_pairs":[
			{"stat":{"question__title":"Two Sum","question__title_slug":"two-sum"},"status":"ac","difficulty":{"level":1}},
			{"stat":{"question__title":"LRU Cache","question__title_slug":"lru-cache"},"status":"notac","difficulty":{"level":2}},
			{"stat":{"question__title":"Add Two Numbers","question__title_slug":"add-two-numbers"},"status":"ac","difficulty":{"level":2}},
			{"stat":{"question__title":"Median","question__title_slug":"median-of-two-sorted-arrays"},"status":null,"difficulty":{"level":3}}
		]}`))
	})
	client := newTestQueryClient(t, mux)

	slugs, err := client.FetchSolvedSlugs(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"two-sum", "add-two-numbers"}, slugs)
}

func TestFetchSubmissions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions/two-sum/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		// newest first, as the endpoint returns them
		w.Write([]byte(`{"submissions_dump":[
			{"id":2,"lang":"golang","timestamp":1700000100,"status_display":"Accepted","runtime":"60 ms","memory":"15 MB","code":"func twoSum() {}"},
			{"id":1,"lang":"golang","timestamp":1700000000,"status_display":"Wrong Answer","runtime":"N/A","memory":"N/A","code":"func broken() {}"}
		]}`))
	})
	client := newTestQueryClient(t, mux)

	submissions, err := client.FetchSubmissions(context.Background(), "two-sum")
	require.NoError(t, err)
	require.Len(t, submissions, 2)

	// oldest first after normalization
	require.Equal(t, "Wrong Answer", submissions[0].Status)
	require.Equal(t, "1700000000", submissions[0].Timestamp)
	require.Nil(t, submissions[0].Runtime)
	require.Nil(t, submissions[0].Memory)

	require.Equal(t, "Accepted", submissions[1].Status)
	require.Equal(t, "1700000100", submissions[1].Timestamp)
	require.NotNil(t, submissions[1].Runtime)
	require.Equal(t, "60 ms", *submissions[1].Runtime)
	require.NotNil(t, submissions[1].Memory)
	require.Equal(t, "15 MB", *submissions[1].Memory)
	require.Equal(t, "golang", submissions[1].Language)
}

func TestFetchSubmissionsRecoversOmittedCode(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:platforms/leetcode")
	defer cleanup()

	detailRequests := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions/two-sum/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`{"submissions_dump":[
			{"id":102,"lang":"golang","timestamp":1700000100,"status_display":"Accepted","runtime":"60 ms","memory":"15 MB","code":"func twoSum() {}"},
			{"id":101,"lang":"golang","timestamp":1700000000,"status_display":"Wrong Answer","runtime":"N/A","memory":"N/A","code":""}
		]}`))
	})
	mux.HandleFunc("/submissions/detail/101/", func(w http.ResponseWriter, r *http.Request) {
		detailRequests++
		fmt.Fprint(w, `<html><body><div class="CodeMirror-code"><div>func broken() {</div><div>}</div></div></body></html>`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	options := transport.ClientOptions{
		BaseUrl:     server.URL,
		Credentials: testCreds,
		Retry:       transport.RetryPolicy{Base: time.Millisecond, MaxDelay: time.Millisecond * 10, MaxAttempts: 2},
	}
	queryTransport, err := transport.NewClient(options)
	require.NoError(t, err)
	options.Scraping = true
	scrapeTransport, err := transport.NewClient(options)
	require.NoError(t, err)

	client := NewQueryClient(queryTransport)
	client.RecoverCodeWith(NewScrapeClient(scrapeTransport))

	submissions, err := client.FetchSubmissions(context.Background(), "two-sum")
	require.NoError(t, err)
	require.Len(t, submissions, 2)

	// the omitted code is pulled from the detail page
	require.Equal(t, "func broken() {\n}", submissions[0].Code)
	// the dump's own code is never second-guessed
	require.Equal(t, "func twoSum() {}", submissions[1].Code)
	require.Equal(t, 1, detailRequests)
}

func TestFetchSubmissionsKeepsOmittedCodeEmptyWithoutScraper(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions/two-sum/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`{"submissions_dump":[
			{"id":101,"lang":"golang","timestamp":1700000000,"status_display":"Wrong Answer","runtime":"N/A","memory":"N/A","code":""}
		]}`))
	})
	client := newTestQueryClient(t, mux)

	submissions, err := client.FetchSubmissions(context.Background(), "two-sum")
	require.NoError(t, err)
	require.Len(t, submissions, 1)
	require.Equal(t, "", submissions[0].Code)
}

func TestFetchSubmissionsHtmlIsUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions/two-sum/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html")
		w.Write([]byte("<html>please sign in</html>"))
	})
	client := newTestQueryClient(t, mux)

	_, err := client.FetchSubmissions(context.Background(), "two-sum")
	var unavailable *transport.UnavailableError
	require.ErrorAs(t, err, &unavailable)
}
