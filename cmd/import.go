package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xdmiq/jobmatch/internal/jobboard"
	"github.com/xdmiq/jobmatch/internal/secrets"
	"github.com/xdmiq/jobmatch/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import job postings from the configured job board",
	Run: func(cmd *cobra.Command, _ []string) {
		importPostings(cmd)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringP("query", "q", "", "free-text search narrowing the imported postings")
}

func importPostings(cmd *cobra.Command) {
	ctx := context.Background()

	zl := newLogger()

	config, err := getConfig()
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}

	client, err := newJobBoardClient(config.JobBoard, zl)
	if err != nil {
		zl.Fatal("building the job board client", zap.Error(err))
	}

	query, _ := cmd.Flags().GetString("query")

	jobs, err := client.FetchPostings(ctx, &jobboard.SearchParams{Query: query})
	if err != nil {
		zl.Fatal("fetching postings", zap.Error(err))
	}

	if len(jobs) == 0 {
		zl.Info("exiting", zap.String("reason", "the job board returned no postings"))
		return
	}

	st, err := store.New(config.Database.Path)
	if err != nil {
		zl.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	if err := st.UpsertJobPostings(ctx, jobs); err != nil {
		zl.Fatal("storing postings", zap.Error(err))
	}

	active := 0
	for _, j := range jobs {
		if j.Active {
			active++
		}
	}

	zl.Info("imported postings",
		zap.Int("count", len(jobs)),
		zap.Int("active", active),
	)
}

// newJobBoardClient resolves the optional API token and builds the
// client. The board URL is the only required setting.
func newJobBoardClient(cfg *JobBoardConfig, zl *zap.Logger) (*jobboard.Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("jobboard.url is not configured")
	}

	token := ""
	if cfg.APIKeyFile != "" {
		loaded, err := secrets.Load(secrets.Source{
			Name: "job board api key",
			File: cfg.APIKeyFile,
		})
		if err != nil {
			return nil, err
		}
		token = loaded
	}

	return jobboard.New(zl, cfg.URL, token), nil
}
