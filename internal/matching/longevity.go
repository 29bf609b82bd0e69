package matching

import (
	"math"

	"github.com/xdmiq/jobmatch/internal/profile"
)

// Sub-score caps. They sum to 100, so the longevity score is the capped
// sum of the five parts.
const (
	maxCapabilityAlignment = 30
	maxGrowthPotential     = 25
	maxCulturalFit         = 20
	maxStability           = 15
	maxMutualInvestment    = 10
)

// Factor strings reported when a sub-score clears roughly two thirds of
// its cap.
const (
	factorCapability = "Strong capability alignment with role requirements"
	factorGrowth     = "High growth potential in this role"
	factorCultural   = "Good cultural and work-style fit"
	factorStability  = "Track record of stable engagements"
	factorInvestment = "Strong mutual investment signals"
)

// Longevity is the predicted engagement durability for one user/job
// pairing.
//
// Confidence is a data-completeness heuristic in [0,1], not a
// statistical interval; it never feeds back into Score.
type Longevity struct {
	Score           int
	Factors         []string
	Confidence      float64
	PredictedMonths int
}

// PredictLongevity scores how durable an engagement between the user
// and the job is expected to be, on a 0-100 scale. Deterministic, no
// I/O.
func PredictLongevity(user profile.UserProfile, job profile.JobProfile, compatibility int) Longevity {
	capability := capabilityAlignment(user, job)
	growth := growthPotential(user, job)
	cultural := culturalFit(user, job)
	stability := stabilityScore(user)
	investment := mutualInvestment(user, job, compatibility)

	total := capability + growth + cultural + stability + investment
	score := int(math.Round(total))
	if score > 100 {
		score = 100
	}

	var factors []string
	if capability >= 20 {
		factors = append(factors, factorCapability)
	}
	if growth >= 15 {
		factors = append(factors, factorGrowth)
	}
	if cultural >= 12 {
		factors = append(factors, factorCultural)
	}
	if stability >= 10 {
		factors = append(factors, factorStability)
	}
	if investment >= 6 {
		factors = append(factors, factorInvestment)
	}

	return Longevity{
		Score:           score,
		Factors:         factors,
		Confidence:      confidence(user, job),
		PredictedMonths: predictedMonths(score),
	}
}

// capabilityAlignment rewards coverage of the posting's skill lists.
// A posting without required skills gets the neutral midpoint.
func capabilityAlignment(user profile.UserProfile, job profile.JobProfile) float64 {
	if len(job.RequiredSkills) == 0 {
		return 15
	}

	skills := profile.SkillSet(user.Skills)
	score := coverage(skills, job.RequiredSkills) * 20
	if len(job.PreferredSkills) > 0 {
		score += coverage(skills, job.PreferredSkills) * 10
	}
	return capped(score, maxCapabilityAlignment)
}

// growthPotential rewards a sweet spot of 60-90% required-skill
// coverage, where the user is competent but still has room to grow,
// plus the overlap between the posting's skill gap and the user's
// stated learning goals.
func growthPotential(user profile.UserProfile, job profile.JobProfile) float64 {
	var score float64

	if len(job.RequiredSkills) > 0 {
		switch cov := coverage(profile.SkillSet(user.Skills), job.RequiredSkills); {
		case cov >= 0.9:
			// May be overqualified.
			score += 5
		case cov >= 0.6:
			score += 12
		case cov >= 0.4:
			score += 8
		}
	}

	if gap := skillGap(user, job); len(gap) > 0 {
		goals := profile.SkillSet(user.LearningGoals)
		wanted := 0
		for skill := range gap {
			if _, ok := goals[skill]; ok {
				wanted++
			}
		}
		score += float64(wanted) / float64(len(gap)) * 13
	}

	return capped(score, maxGrowthPotential)
}

// culturalFit starts neutral and adds points for each work-style
// dimension both sides specify with the same value. Posting work-style
// extraction is still a no-op, so real postings stay at the neutral 10.
func culturalFit(user profile.UserProfile, job profile.JobProfile) float64 {
	score := 10.0
	if styleMatches(user.WorkStyle, job.WorkStyle, "remote_preference") {
		score += 5
	}
	if styleMatches(user.WorkStyle, job.WorkStyle, "collaboration_style") {
		score += 3
	}
	if styleMatches(user.WorkStyle, job.WorkStyle, "communication_frequency") {
		score += 2
	}
	return capped(score, maxCulturalFit)
}

// stabilityScore starts neutral and rewards a history of long
// engagements and a settled career stage.
func stabilityScore(user profile.UserProfile) float64 {
	score := 8.0

	if len(user.PastEngagements) > 0 {
		total := 0.0
		for _, e := range user.PastEngagements {
			total += e.DurationMonths
		}
		switch mean := total / float64(len(user.PastEngagements)); {
		case mean >= 12:
			score += 7
		case mean >= 6:
			score += 4
		}
	}

	if user.CareerStage == "mid-career" || user.CareerStage == "senior" {
		score += 3
	}

	return capped(score, maxStability)
}

// mutualInvestment starts neutral and adds points when the overall
// compatibility is already strong and when compensation expectations
// fit inside what the posting offers.
func mutualInvestment(user profile.UserProfile, job profile.JobProfile, compatibility int) float64 {
	score := 5.0

	switch {
	case compatibility >= 80:
		score += 3
	case compatibility >= 60:
		score += 1.5
	}

	if user.Compensation != nil && job.Compensation != nil && user.Compensation.Min <= job.Compensation.Max {
		score += 2
	}

	return capped(score, maxMutualInvestment)
}

// confidence reports how many of ten weighted data points were present
// on either side of the pairing.
func confidence(user profile.UserProfile, job profile.JobProfile) float64 {
	points := 0
	if len(user.Skills) > 0 {
		points += 2
	}
	if len(user.LearningGoals) > 0 {
		points++
	}
	if len(user.WorkStyle) > 0 {
		points += 2
	}
	if len(user.PastEngagements) > 0 {
		points += 2
	}
	if len(job.RequiredSkills) > 0 {
		points += 2
	}
	if len(job.WorkStyle) > 0 {
		points++
	}
	return float64(points) / 10
}

// predictedMonths buckets the longevity score into the categorical
// engagement estimate surfaced to the business side.
func predictedMonths(score int) int {
	switch {
	case score >= 90:
		return 36
	case score >= 75:
		return 24
	case score >= 60:
		return 18
	case score >= 45:
		return 12
	case score >= 30:
		return 6
	default:
		return 3
	}
}

// skillGap returns the posting's skills, required and preferred, that
// the user does not have yet.
func skillGap(user profile.UserProfile, job profile.JobProfile) map[string]struct{} {
	skills := profile.SkillSet(user.Skills)
	gap := make(map[string]struct{})
	for _, s := range append(append([]string{}, job.RequiredSkills...), job.PreferredSkills...) {
		key := profile.NormalizeSkill(s)
		if key == "" {
			continue
		}
		if _, ok := skills[key]; !ok {
			gap[key] = struct{}{}
		}
	}
	return gap
}

func styleMatches(userStyle, jobStyle map[string]string, key string) bool {
	userValue, ok := userStyle[key]
	if !ok {
		return false
	}
	jobValue, ok := jobStyle[key]
	if !ok {
		return false
	}
	return userValue == jobValue
}

func capped(score, max float64) float64 {
	if score > max {
		return max
	}
	return score
}
