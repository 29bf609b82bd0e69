// Package filtering removes candidate postings before scoring. Filters
// run sequentially and only ever shrink the candidate list; scoring and
// ranking stay untouched.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xdmiq/jobmatch/internal/model"
)

// Filter represents a single filtering step applied to candidate
// postings.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, jobs []model.JobPosting) ([]model.JobPosting, Step, error)
}

// MatchLister is the slice of the match store consumed by history-aware
// filters.
type MatchLister interface {
	ListUserMatches(ctx context.Context, userID string, limit int) ([]model.Match, error)
}

// Deps aggregates dependencies shared across all filtering steps. They
// are assembled per generation run since UserID changes each call.
type Deps struct {
	Matches MatchLister
	Logger  *zap.Logger
	UserID  string
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	ExcludedCompanies []string
	ExcludeFile       string
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Default returns the standard filter chain in execution order.
func Default() []Filter {
	return []Filter{
		NewCompanies(),
		NewExcludeFile(),
		NewMatchedHistory(),
	}
}

// Run executes the supplied filters sequentially and returns the
// postings that survived every enabled step.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, jobs []model.JobPosting) ([]model.JobPosting, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, jobs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		jobs = next
	}

	return jobs, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// exclude drops the postings whose key matches one of the given values
// and returns the survivors plus the ids of the dropped postings. Keys
// are compared verbatim.
func exclude(jobs []model.JobPosting, values []string, key func(model.JobPosting) string) ([]model.JobPosting, []string) {
	if len(values) == 0 {
		return jobs, nil
	}

	drop := make(map[string]struct{}, len(values))
	for _, v := range values {
		drop[v] = struct{}{}
	}

	kept := jobs[:0:0]
	var removed []string
	for _, job := range jobs {
		if _, ok := drop[key(job)]; ok {
			removed = append(removed, job.ID)
			continue
		}
		kept = append(kept, job)
	}

	return kept, removed
}
