package jobboard

import (
	"gorm.io/datatypes"

	"github.com/xdmiq/jobmatch/internal/model"
)

// postingsResponse is one page of the /postings endpoint.
type postingsResponse struct {
	Items   []wirePosting
	Found   int
	Pages   int
	Page    int
	PerPage int `json:"per_page"`
}

const statusOpen = "open"

// wirePosting is a posting as served by the job-board API.
type wirePosting struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	RequiredSkills  []string `json:"required_skills"`
	PreferredSkills []string `json:"preferred_skills"`
	Status          string   `json:"status"`
}

// toModel converts the wire posting into a local row. Boards that do
// not report a status serve open postings only.
func (p wirePosting) toModel() model.JobPosting {
	return model.JobPosting{
		ID:              p.ID,
		Title:           p.Title,
		Company:         p.Company,
		RequiredSkills:  datatypes.NewJSONSlice(p.RequiredSkills),
		PreferredSkills: datatypes.NewJSONSlice(p.PreferredSkills),
		Active:          p.Status == "" || p.Status == statusOpen,
	}
}
