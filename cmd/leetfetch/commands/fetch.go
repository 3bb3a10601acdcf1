package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"leetfetch/lib/configutil"
	"leetfetch/lib/platforms/leetcode"
	"leetfetch/lib/serviceutil"
	"leetfetch/lib/telemetry"
	"leetfetch/lib/transport"
	"leetfetch/services/fetcher"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	Username string `json:"username"`
	Session  string `json:"session"`
	Csrf     string `json:"csrf"`
	BaseUrl  string `json:"base_url"`
	DelayMs  int    `json:"delay_ms"`
}

var (
	fetchConfig   *string
	fetchOut      *string
	fetchUsername *string
	fetchSession  *string
	fetchCsrf     *string
)

func init() {
	fetchConfig = fetchCmd.Flags().String("config", "config.json5", "The config file carrying credentials.")
	fetchOut = fetchCmd.Flags().String("out", "-", "Where to write the result document, '-' for stdout.")
	fetchUsername = fetchCmd.Flags().String("username", "", "Overrides the configured username.")
	fetchSession = fetchCmd.Flags().String("session", "", "Overrides the configured LEETCODE_SESSION cookie.")
	fetchCsrf = fetchCmd.Flags().String("csrf", "", "Overrides the configured csrftoken cookie.")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [--config <path/to/config.json5>] [--out <path/to/result.json>]",
	Short: "Fetches the authenticated user's solve history and writes it as json.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := configutil.ReadConfig[Config](*fetchConfig)
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to read config", err)
		}
		if *fetchUsername != "" {
			cfg.Username = *fetchUsername
		}
		if *fetchSession != "" {
			cfg.Session = *fetchSession
		}
		if *fetchCsrf != "" {
			cfg.Csrf = *fetchCsrf
		}
		if cfg.BaseUrl == "" {
			cfg.BaseUrl = leetcode.DefaultBaseUrl
		}

		tel, err := telemetry.SetupFromEnv(ctx, "leetfetch")
		if err == nil {
			defer tel.Shutdown(ctx)
			telemetry.InstrumentPerfStats(ctx)
		} else if !os.IsNotExist(err) {
			serviceutil.Fatal("failed to setup telemetry", err)
		}

		creds := transport.Credentials{
			Username:     cfg.Username,
			SessionToken: cfg.Session,
			CSRFToken:    cfg.Csrf,
		}
		queryTransport, err := transport.NewClient(transport.ClientOptions{
			BaseUrl:     cfg.BaseUrl,
			Credentials: creds,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize query transport", err)
		}
		scrapeTransport, err := transport.NewClient(transport.ClientOptions{
			BaseUrl:     cfg.BaseUrl,
			Credentials: creds,
			Scraping:    true,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize scrape transport", err)
		}

		query := leetcode.NewQueryClient(queryTransport)
		scrape := leetcode.NewScrapeClient(scrapeTransport)
		query.RecoverCodeWith(scrape)

		slog.Info("fetching solve history", "username", cfg.Username)
		f := fetcher.New(fetcher.Options{
			Username: cfg.Username,
			Primary:  query,
			Fallback: scrape,
			Probe:    query.CheckSignedIn,
			Delay:    time.Duration(cfg.DelayMs) * time.Millisecond,
		})

		t1 := time.Now()
		result, err := f.Run(ctx)
		if err != nil {
			serviceutil.Fatal("fetch failed", err)
		}
		slog.Info("fetch time", "seconds", time.Since(t1).Seconds())

		printSummary(result)

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			serviceutil.Fatal("failed to serialize result", err)
		}
		if *fetchOut == "-" {
			fmt.Println(string(out))
			return
		}
		err = os.WriteFile(*fetchOut, out, 0644)
		if err != nil {
			serviceutil.Fatal("failed to write result", err)
		}
		slog.Info("wrote result", "path", *fetchOut)
	},
}

func printSummary(result *fetcher.FetchResult) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stderr)
	t.AppendHeader(table.Row{"slug", "difficulty", "submissions"})
	for _, problem := range result.Problems {
		t.AppendRow(table.Row{problem.Slug, problem.Difficulty, len(problem.Submissions)})
	}
	t.AppendFooter(table.Row{
		"total solved: " + strconv.Itoa(result.ProfileStats.TotalSolved),
		"", "",
	})
	t.Render()
}
