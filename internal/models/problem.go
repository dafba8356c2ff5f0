package models

// Problem is a coding problem that can be loaded into a room.
type Problem struct {
	ID           int64      `gorm:"primaryKey" json:"id" yaml:"id"`
	Title        string     `gorm:"size:200;not null" json:"title" yaml:"title"`
	Description  string     `gorm:"type:text;not null" json:"description" yaml:"description"`
	TemplateCode string     `gorm:"type:text" json:"templateCode" yaml:"template_code"`
	TestCases    []TestCase `gorm:"constraint:OnDelete:CASCADE" json:"-" yaml:"test_cases"`
}

// TestCase is a single judged input/output pair of a problem.
type TestCase struct {
	ID             int64  `gorm:"primaryKey" json:"id" yaml:"-"`
	ProblemID      int64  `gorm:"index;not null" json:"problemId" yaml:"-"`
	Input          string `gorm:"type:text;not null" json:"input" yaml:"input"`
	ExpectedOutput string `gorm:"type:text;not null" json:"expectedOutput" yaml:"expected_output"`
	Hidden         bool   `gorm:"not null;default:true" json:"hidden" yaml:"hidden"`
}

// ProblemSummary is the catalogue listing entry.
type ProblemSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ProblemDetails is what participants see of a loaded problem.
type ProblemDetails struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	TemplateCode string `json:"templateCode"`
}

// Details strips the judged test cases.
func (p *Problem) Details() ProblemDetails {
	return ProblemDetails{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		TemplateCode: p.TemplateCode,
	}
}
