package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/xdmiq/jobmatch/internal/model"
)

type matchedHistoryFilter struct {
	disabled bool
	reason   string
}

// NewMatchedHistory creates a filter that removes postings the user
// already has a match for, so repeated generation runs surface new
// postings instead of duplicating rows.
func NewMatchedHistory() Filter {
	return &matchedHistoryFilter{}
}

func (f *matchedHistoryFilter) Name() string { return "matched_history" }

func (f *matchedHistoryFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *matchedHistoryFilter) IsEnabled() bool { return !f.disabled }

func (f *matchedHistoryFilter) Validate(*Config) error { return nil }

func (f *matchedHistoryFilter) Apply(ctx context.Context, deps Deps, jobs []model.JobPosting) ([]model.JobPosting, Step, error) {
	initial := len(jobs)

	if deps.Matches == nil {
		return nil, Step{}, fmt.Errorf("match store is required")
	}
	if deps.UserID == "" {
		return nil, Step{}, fmt.Errorf("user id is required")
	}

	existing, err := deps.Matches.ListUserMatches(ctx, deps.UserID, 0)
	if err != nil {
		return nil, Step{}, fmt.Errorf("list existing matches: %w", err)
	}

	matched := make([]string, 0, len(existing))
	for _, m := range existing {
		matched = append(matched, m.JobPostingID)
	}

	kept, removed := exclude(jobs, matched, func(j model.JobPosting) string { return j.ID })
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding postings with existing matches",
			zap.String("user_id", deps.UserID),
			zap.Strings("excluded_postings", removed),
			zap.Int("postings_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(removed), Left: len(kept)}, nil
}

func (f *matchedHistoryFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: !f.disabled,
		Reason:  f.reason,
		Details: map[string]string{
			"exclude_matched": strconv.FormatBool(!f.disabled),
		},
	}
}
