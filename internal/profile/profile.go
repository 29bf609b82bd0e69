package profile

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/xdmiq/jobmatch/internal/model"
)

// Engagement is one past engagement of a user, kept only for its
// duration.
type Engagement struct {
	DurationMonths float64 `mapstructure:"duration_months"`
}

// Range is a compensation range in the platform currency.
type Range struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// UserProfile is the in-memory view of a user built from their primary
// capability assessment. It is derived fresh per match-generation call
// and never persisted.
type UserProfile struct {
	Skills          []string
	LearningGoals   []string
	WorkStyle       map[string]string
	CareerStage     string
	PastEngagements []Engagement
	Compensation    *Range
	Proficiency     int
}

// JobProfile is the in-memory view of a job posting consumed by the
// longevity predictor.
type JobProfile struct {
	RequiredSkills  []string
	PreferredSkills []string
	WorkStyle       map[string]string
	Compensation    *Range
}

// xdmiqResults mirrors the results payload of an XDMIQ assessment.
type xdmiqResults struct {
	XDMIQScore struct {
		OverallScore float64  `mapstructure:"overall_score"`
		Strengths    []string `mapstructure:"strengths"`
	} `mapstructure:"xdmiq_score"`
	LearningGoals            []string          `mapstructure:"learning_goals"`
	WorkStyle                map[string]string `mapstructure:"work_style"`
	CareerStage              string            `mapstructure:"career_stage"`
	PastEngagements          []Engagement      `mapstructure:"past_engagements"`
	CompensationExpectations *Range            `mapstructure:"compensation_expectations"`
}

// genericResults mirrors the results payload of any non-XDMIQ
// assessment.
type genericResults struct {
	Skills               []string `mapstructure:"skills"`
	ToolProficiencyScore float64  `mapstructure:"tool_proficiency_score"`
	LearningGoals        []string `mapstructure:"learning_goals"`
}

// SelectPrimaryAssessment picks the assessment that acts as the
// skill/proficiency source for a user: the newest XDMIQ assessment when
// one exists, otherwise the newest assessment of any type. Returns nil
// for an empty candidate list.
func SelectPrimaryAssessment(candidates []model.CapabilityAssessment) *model.CapabilityAssessment {
	var newest, newestXDMIQ *model.CapabilityAssessment
	for i := range candidates {
		c := &candidates[i]
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
		if c.AssessmentType != model.AssessmentTypeXDMIQ {
			continue
		}
		if newestXDMIQ == nil || c.CreatedAt.After(newestXDMIQ.CreatedAt) {
			newestXDMIQ = c
		}
	}

	if newestXDMIQ != nil {
		return newestXDMIQ
	}
	return newest
}

// FromAssessment decodes the results payload of the given assessment
// into a UserProfile. XDMIQ payloads carry a nested xdmiq_score object
// whose strengths list is used as the skill set; any other payload is
// decoded as a plain skill list plus proficiency number.
func FromAssessment(a *model.CapabilityAssessment) (UserProfile, error) {
	if a == nil {
		return UserProfile{}, fmt.Errorf("assessment is required")
	}

	if a.AssessmentType == model.AssessmentTypeXDMIQ {
		var results xdmiqResults
		if err := decode(a.Results, &results); err != nil {
			return UserProfile{}, fmt.Errorf("decode xdmiq results: %w", err)
		}

		return UserProfile{
			Skills:          results.XDMIQScore.Strengths,
			LearningGoals:   results.LearningGoals,
			WorkStyle:       results.WorkStyle,
			CareerStage:     results.CareerStage,
			PastEngagements: results.PastEngagements,
			Compensation:    results.CompensationExpectations,
			Proficiency:     clampScore(results.XDMIQScore.OverallScore),
		}, nil
	}

	var results genericResults
	if err := decode(a.Results, &results); err != nil {
		return UserProfile{}, fmt.Errorf("decode %s results: %w", a.AssessmentType, err)
	}

	return UserProfile{
		Skills:        results.Skills,
		LearningGoals: results.LearningGoals,
		Proficiency:   clampScore(results.ToolProficiencyScore),
	}, nil
}

// FromJobPosting derives the job-side profile consumed by the longevity
// predictor.
//
// Work style and compensation extraction from postings is not
// implemented yet, so both stay empty and the cultural-fit and
// compensation modifiers of the longevity score remain at their neutral
// values for every real posting.
func FromJobPosting(job model.JobPosting) JobProfile {
	return JobProfile{
		RequiredSkills:  job.RequiredSkills,
		PreferredSkills: job.PreferredSkills,
		WorkStyle:       map[string]string{},
		Compensation:    nil,
	}
}

// SkillSet normalizes a skill list into a lookup set. Matching is
// case-insensitive and ignores surrounding whitespace.
func SkillSet(skills []string) map[string]struct{} {
	set := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		if key := NormalizeSkill(s); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

// NormalizeSkill returns the canonical lookup form of a skill name.
func NormalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func decode(in map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v)
	}
}
