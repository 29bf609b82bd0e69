package matching

import "github.com/xdmiq/jobmatch/internal/profile"

// MinCompatibility is the hard admission threshold: a posting scoring
// below it is never turned into a match.
const MinCompatibility = 50

// noRequirementsBonus replaces the required-skill term when a posting
// lists no required skills at all, so such postings are not penalized
// for being unspecific.
const noRequirementsBonus = 20

// CompatibilityScore computes the immediate skill-fit score between a
// user and a single posting on a 0-100 scale.
//
// The score is the truncated sum of three terms: 40% of the user's
// proficiency, up to 40 points for required-skill coverage and up to 20
// points for preferred-skill coverage.
func CompatibilityScore(userSkills []string, proficiency int, required, preferred []string) int {
	skills := profile.SkillSet(userSkills)

	score := float64(proficiency) * 0.4

	if len(required) > 0 {
		score += coverage(skills, required) * 40
	} else {
		score += noRequirementsBonus
	}

	if len(preferred) > 0 {
		score += coverage(skills, preferred) * 20
	}

	result := int(score)
	if result > 100 {
		result = 100
	}
	return result
}

// coverage returns the fraction of wanted skills present in the user's
// skill set. The caller guards against an empty wanted list.
func coverage(skills map[string]struct{}, wanted []string) float64 {
	matched := 0
	for _, w := range wanted {
		if _, ok := skills[profile.NormalizeSkill(w)]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(wanted))
}

// overlapping returns the posting's required skills, in posting order,
// that the user also has. Used for reason generation.
func overlapping(userSkills, required []string) []string {
	skills := profile.SkillSet(userSkills)
	var matched []string
	for _, r := range required {
		if _, ok := skills[profile.NormalizeSkill(r)]; ok {
			matched = append(matched, r)
		}
	}
	return matched
}
