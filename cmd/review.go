package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xdmiq/jobmatch/internal/matching"
)

var reviewCmd = &cobra.Command{
	Use:   "review <match-id>",
	Short: "Apply a human review decision to a generated match",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		review(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringP("reviewer", "r", "", "reviewer id recorded on the match")
	reviewCmd.Flags().String("decision", "", "approved, rejected or needs_revision (prompted when omitted)")
	reviewCmd.Flags().String("feedback", "", "optional free-form feedback")

	if err := reviewCmd.MarkFlagRequired("reviewer"); err != nil {
		panic(err)
	}
}

func review(cmd *cobra.Command, matchID string) {
	ctx := context.Background()

	zl := newLogger()

	config, err := getConfig()
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}

	engine, st, err := buildEngine(ctx, config, zl, nil)
	if err != nil {
		zl.Fatal("building the matching engine", zap.Error(err))
	}
	defer st.Close()

	reviewer, _ := cmd.Flags().GetString("reviewer")
	decision, _ := cmd.Flags().GetString("decision")

	if decision == "" {
		_, decision, err = (&promptui.Select{
			Label: "Decision",
			Items: []string{matching.DecisionApproved, matching.DecisionRejected, matching.DecisionNeedsRevision},
		}).Run()
		if err != nil {
			zl.Fatal("reading decision", zap.Error(err))
		}
	}

	var feedback *string
	if text, _ := cmd.Flags().GetString("feedback"); text != "" {
		feedback = &text
	}

	match, err := engine.HumanReviewMatch(ctx, matchID, reviewer, decision, feedback)
	if err != nil {
		if errors.Is(err, matching.ErrMatchNotFound) {
			zl.Fatal("no such match", zap.String("match_id", matchID))
		}
		zl.Fatal("reviewing match", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(match, "", "  ")
	fmt.Println(string(pretty))
}
