package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xdmiq/jobmatch/internal/filtering"
	"github.com/xdmiq/jobmatch/internal/matching"
	"github.com/xdmiq/jobmatch/internal/model"
)

const promptBack = "back"

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate ranked matches for a user from their latest capability assessment",
	Run: func(cmd *cobra.Command, _ []string) {
		generate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("user", "u", "", "anonymous user id to generate matches for")
	generateCmd.Flags().IntP("limit", "l", 0, "maximum number of matches to return (default from config)")
	generateCmd.Flags().BoolP("interactive", "i", false, "step into reviewing the generated matches")
	generateCmd.Flags().Bool("include-matched", false, "do not skip postings the user already has a match for")

	if err := generateCmd.MarkFlagRequired("user"); err != nil {
		panic(err)
	}
}

func generate(cmd *cobra.Command) {
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

	filters := filtering.Default()
	if includeMatched, _ := cmd.Flags().GetBool("include-matched"); includeMatched {
		filtering.DisableByName(filters, "matched_history", "include-matched flag is set")
	}

	engine, st, err := buildEngine(ctx, config, zl, filters)
	if err != nil {
		zl.Fatal("building the matching engine", zap.Error(err))
	}
	defer st.Close()

	zl.Info("generating matches", zap.String("user_id", userID), zap.Int("limit", limit))

	matches, err := engine.GenerateMatches(ctx, userID, limit)
	if err != nil {
		if errors.Is(err, matching.ErrNoAssessment) || errors.Is(err, matching.ErrUserNotFound) {
			zl.Fatal("cannot generate matches", zap.Error(err))
		}
		zl.Fatal("generating matches", zap.Error(err))
	}

	if len(matches) == 0 {
		zl.Info("exiting", zap.String("reason", "no postings cleared the compatibility threshold"))
		return
	}

	zl.Info("generated matches", zap.Int("count", len(matches)))

	pretty, _ := json.MarshalIndent(matches, "", "  ")
	fmt.Println(string(pretty))

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		if err := reviewLoop(ctx, engine, matches, zl); err != nil {
			zl.Fatal("interactive review", zap.Error(err))
		}
	}
}

// reviewLoop lets an operator walk the freshly generated matches and
// apply review decisions one by one.
func reviewLoop(ctx context.Context, engine *matching.Engine, matches []model.Match, zl *zap.Logger) error {
	reviewer, err := (&promptui.Prompt{Label: "Reviewer id"}).Run()
	if err != nil {
		return err
	}

	for {
		items := make([]string, 0, len(matches)+1)
		for _, m := range matches {
			items = append(items, fmt.Sprintf("%s score=%d job=%s", m.ID, m.MatchScore, m.JobPostingID))
		}
		items = append(items, promptBack)

		_, selected, err := (&promptui.Select{
			Label: "Choose a match to review",
			Items: items,
		}).Run()
		if err != nil {
			return err
		}
		if selected == promptBack {
			return nil
		}

		matchID := strings.Split(selected, " ")[0]

		updated, err := promptReview(ctx, engine, matchID, reviewer)
		if err != nil {
			return err
		}

		zl.Info("match reviewed",
			zap.String("match_id", updated.ID),
			zap.Int("match_score", updated.MatchScore),
		)

		for i := range matches {
			if matches[i].ID == updated.ID {
				matches[i] = *updated
			}
		}
	}
}

// promptReview asks for a decision and optional feedback, then applies
// the review.
func promptReview(ctx context.Context, engine *matching.Engine, matchID, reviewer string) (*model.Match, error) {
	_, decision, err := (&promptui.Select{
		Label: "Decision",
		Items: []string{matching.DecisionApproved, matching.DecisionRejected, matching.DecisionNeedsRevision},
	}).Run()
	if err != nil {
		return nil, err
	}

	feedbackText, err := (&promptui.Prompt{
		Label:     "Feedback (optional)",
		AllowEdit: true,
	}).Run()
	if err != nil {
		return nil, err
	}

	var feedback *string
	if feedbackText != "" {
		feedback = &feedbackText
	}

	return engine.HumanReviewMatch(ctx, matchID, reviewer, decision, feedback)
}
