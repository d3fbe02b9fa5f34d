package models

type GuidelineCompliance struct {
	Guideline   string  `json:"guideline" db:"guideline"`
	Followed    bool    `json:"followed" db:"followed"`
	Explanation string  `json:"explanation" db:"explanation"`
	Evidence    *string `json:"evidence" db:"evidence"`
}

type ComplianceAnalysis struct {
	ComplianceID     string                `json:"compliance_id"`
	OverallScore     float64               `json:"overall_score"`
	GuidelineResults []GuidelineCompliance `json:"guideline_results"`
	Summary          string                `json:"summary"`
}
