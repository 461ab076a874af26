package models

// JobPosting is a job catalog entry that can be bound to a workflow session
type JobPosting struct {
	ID                   string   `json:"id" db:"id"`
	Title                string   `json:"title" db:"title" binding:"required"`
	Company              string   `json:"company" db:"company" binding:"required"`
	Location             string   `json:"location,omitempty" db:"location"`
	Salary               string   `json:"salary,omitempty" db:"salary"`
	Tags                 []string `json:"tags" db:"tags"`
	PostedDate           string   `json:"postedDate,omitempty" db:"posted_date"`
	MatchScore           int      `json:"matchScore" db:"match_score"`
	Description          string   `json:"description,omitempty" db:"description"`
	Requirements         []string `json:"requirements" db:"requirements"`
	Benefits             []string `json:"benefits,omitempty" db:"benefits"`
	RecommendationReason string   `json:"recommendationReason,omitempty" db:"recommendation_reason"`
}

// JobQuery filters the job catalog
type JobQuery struct {
	Search string `form:"search" json:"search,omitempty"`
	Page   int    `form:"page" json:"page" binding:"gte=0"`
	Size   int    `form:"size" json:"size" binding:"gte=0,lte=100"`
}

// DefaultJobPageSize is used when a query does not set Size
const DefaultJobPageSize = 20

// Normalize fills in paging defaults
func (q JobQuery) Normalize() JobQuery {
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Size <= 0 {
		q.Size = DefaultJobPageSize
	}
	return q
}

// JobPage is one page of job catalog results
type JobPage struct {
	Content       []JobPosting `json:"content"`
	TotalElements int          `json:"totalElements"`
	TotalPages    int          `json:"totalPages"`
	Number        int          `json:"number"`
	Size          int          `json:"size"`
}

// NewJobPage computes paging totals for a result slice
func NewJobPage(content []JobPosting, total int, q JobQuery) JobPage {
	q = q.Normalize()
	pages := total / q.Size
	if total%q.Size != 0 {
		pages++
	}
	if content == nil {
		content = []JobPosting{}
	}
	return JobPage{
		Content:       content,
		TotalElements: total,
		TotalPages:    pages,
		Number:        q.Page,
		Size:          q.Size,
	}
}
