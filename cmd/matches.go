package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List a user's persisted matches, best first",
	Run: func(cmd *cobra.Command, _ []string) {
		listMatches(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchesCmd)

	matchesCmd.Flags().StringP("user", "u", "", "anonymous user id")
	matchesCmd.Flags().IntP("limit", "l", 0, "maximum number of matches to list (default from config)")

	if err := matchesCmd.MarkFlagRequired("user"); err != nil {
		panic(err)
	}
}

func listMatches(cmd *cobra.Command) {
	ctx := context.Background()

	zl := newLogger()

	config, err := getConfig()
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}

	userID, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 && config.Matching != nil {
		limit = config.Matching.Limit
	}

	engine, st, err := buildEngine(ctx, config, zl, nil)
	if err != nil {
		zl.Fatal("building the matching engine", zap.Error(err))
	}
	defer st.Close()

	matches, err := engine.ListUserMatches(ctx, userID, limit)
	if err != nil {
		zl.Fatal("listing matches", zap.Error(err))
	}

	zl.Info("listing matches", zap.String("user_id", userID), zap.Int("count", len(matches)))

	pretty, _ := json.MarshalIndent(matches, "", "  ")
	fmt.Println(string(pretty))
}
