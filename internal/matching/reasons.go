package matching

import (
	"fmt"

	"github.com/xdmiq/jobmatch/internal/model"
)

const (
	reasonHighCompatibility = "High compatibility score"
	reasonGoodAlignment     = "Good skill alignment"

	// maxSkillReasons caps how many overlapping required skills are
	// called out individually.
	maxSkillReasons = 3
)

// matchReasons builds the short explanation list for a generated match:
// up to three overlapping required skills, a qualitative note for
// strong compatibility, then the longevity factors.
func matchReasons(userSkills []string, job model.JobPosting, compatibility int, factors []string) []string {
	var reasons []string

	matched := overlapping(userSkills, job.RequiredSkills)
	if len(matched) > maxSkillReasons {
		matched = matched[:maxSkillReasons]
	}
	for _, skill := range matched {
		reasons = append(reasons, fmt.Sprintf("Matches required skill: %s", skill))
	}

	switch {
	case compatibility >= 80:
		reasons = append(reasons, reasonHighCompatibility)
	case compatibility >= 60:
		reasons = append(reasons, reasonGoodAlignment)
	}

	return append(reasons, factors...)
}
