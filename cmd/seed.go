package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/xdmiq/jobmatch/internal/model"
	"github.com/xdmiq/jobmatch/internal/store"
)

// seedFixture mirrors the yaml fixture layout consumed by the seed
// command.
type seedFixture struct {
	Users []struct {
		ID          string `yaml:"id"`
		Alias       string `yaml:"alias"`
		Assessments []struct {
			Type    string         `yaml:"type"`
			Results map[string]any `yaml:"results"`
		} `yaml:"assessments"`
	} `yaml:"users"`
	Jobs []struct {
		ID              string   `yaml:"id"`
		Title           string   `yaml:"title"`
		Company         string   `yaml:"company"`
		RequiredSkills  []string `yaml:"required_skills"`
		PreferredSkills []string `yaml:"preferred_skills"`
		Active          *bool    `yaml:"active"`
	} `yaml:"jobs"`
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load users, assessments and job postings from a yaml fixture",
	Run: func(cmd *cobra.Command, _ []string) {
		seed(cmd)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringP("file", "f", "", "fixture file to load")

	if err := seedCmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
}

func seed(cmd *cobra.Command) {
	ctx := context.Background()

	zl := newLogger()

	config, err := getConfig()
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}

	file, _ := cmd.Flags().GetString("file")

	fixture, err := loadFixture(file)
	if err != nil {
		zl.Fatal("loading fixture", zap.Error(err))
	}

	st, err := store.New(config.Database.Path)
	if err != nil {
		zl.Fatal("opening store", zap.Error(err))
	}
	defer st.Close()

	users, assessments, err := seedUsers(ctx, st, fixture)
	if err != nil {
		zl.Fatal("seeding users", zap.Error(err))
	}

	jobs, err := seedJobs(ctx, st, fixture)
	if err != nil {
		zl.Fatal("seeding postings", zap.Error(err))
	}

	zl.Info("fixture loaded",
		zap.String("file", file),
		zap.Int("users", users),
		zap.Int("assessments", assessments),
		zap.Int("job_postings", jobs),
	)
}

func loadFixture(path string) (*seedFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var fixture seedFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &fixture, nil
}

func seedUsers(ctx context.Context, st *store.Store, fixture *seedFixture) (users, assessments int, err error) {
	for _, u := range fixture.Users {
		if err := st.CreateUser(ctx, &model.AnonymousUser{ID: u.ID, Alias: u.Alias}); err != nil {
			return users, assessments, err
		}
		users++

		for _, a := range u.Assessments {
			err := st.CreateAssessment(ctx, &model.CapabilityAssessment{
				UserID:         u.ID,
				AssessmentType: a.Type,
				Results:        datatypes.JSONMap(a.Results),
			})
			if err != nil {
				return users, assessments, err
			}
			assessments++
		}
	}
	return users, assessments, nil
}

func seedJobs(ctx context.Context, st *store.Store, fixture *seedFixture) (int, error) {
	jobs := make([]model.JobPosting, 0, len(fixture.Jobs))
	for _, j := range fixture.Jobs {
		active := true
		if j.Active != nil {
			active = *j.Active
		}
		jobs = append(jobs, model.JobPosting{
			ID:              j.ID,
			Title:           j.Title,
			Company:         j.Company,
			RequiredSkills:  datatypes.NewJSONSlice(j.RequiredSkills),
			PreferredSkills: datatypes.NewJSONSlice(j.PreferredSkills),
			Active:          active,
		})
	}

	if err := st.UpsertJobPostings(ctx, jobs); err != nil {
		return 0, err
	}
	return len(jobs), nil
}
