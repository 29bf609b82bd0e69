package filtering

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xdmiq/jobmatch/internal/model"
)

type excludeFileFilter struct {
	path string
}

// excludeList is the on-disk format of an exclude file.
type excludeList struct {
	JobIDs []string `yaml:"job_ids"`
}

// NewExcludeFile creates a filter that removes postings listed in an
// exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, jobs []model.JobPosting) ([]model.JobPosting, Step, error) {
	initial := len(jobs)
	if f.path == "" {
		return jobs, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, Step{}, fmt.Errorf("read exclude file: %w", err)
	}

	var list excludeList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, Step{}, fmt.Errorf("parse exclude file %s: %w", f.path, err)
	}

	kept, removed := exclude(jobs, list.JobIDs, func(j model.JobPosting) string { return j.ID })
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding postings from exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_postings", removed),
			zap.Int("postings_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(removed), Left: len(kept)}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
